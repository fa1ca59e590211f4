// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"encoding/json"

	"github.com/AleutianAI/graphc/services/graphc/cache"
	"github.com/AleutianAI/graphc/services/graphc/registry"
)

// CompileRequest is the body of POST /v1/compile.
type CompileRequest struct {
	// Graph is a graph document.
	Graph json.RawMessage `json:"graph" binding:"required"`

	// Library replaces the server's node library for this request.
	Library json.RawMessage `json:"library,omitempty"`

	Parallel bool   `json:"parallel,omitempty"`
	Package  string `json:"package,omitempty"`
	FuncName string `json:"func_name,omitempty"`
}

// InlineRequest is the body of POST /v1/inline.
type InlineRequest struct {
	Source   string            `json:"source" binding:"required"`
	Branches map[string]string `json:"branches,omitempty"`
	Params   map[string]string `json:"params,omitempty"`
}

// InlineResponse is returned by POST /v1/inline.
type InlineResponse struct {
	Body          string `json:"body"`
	Placeholders  int    `json:"placeholders"`
	Replaced      int    `json:"replaced"`
	Substitutions int    `json:"substitutions"`
}

// LabelsRequest is the body of POST /v1/labels.
type LabelsRequest struct {
	Source string `json:"source" binding:"required"`
}

// LabelsResponse is returned by POST /v1/labels.
type LabelsResponse struct {
	Labels []string `json:"labels"`
}

// RegistryResponse is returned by GET /v1/registry.
type RegistryResponse struct {
	Entries  []*registry.Entry  `json:"entries"`
	Findings []registry.Finding `json:"findings"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string       `json:"status"`
	Version string       `json:"version"`
	Entries int          `json:"entries"`
	Cache   *cache.Stats `json:"cache,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}
