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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/graphc/services/graphc/cache"
	"github.com/AleutianAI/graphc/services/graphc/compiler"
	"github.com/AleutianAI/graphc/services/graphc/dataflow"
	"github.com/AleutianAI/graphc/services/graphc/graph"
	"github.com/AleutianAI/graphc/services/graphc/inline"
	"github.com/AleutianAI/graphc/services/graphc/registry"
)

func (s *Server) handlerLogger(c *gin.Context, handler string) *slog.Logger {
	return s.logger.With(
		slog.String("request_id", getRequestID(c)),
		slog.String("handler", handler),
	)
}

// handleCompile handles POST /v1/compile.
//
// Description:
//
//	Decodes the graph document (and the optional per-request library),
//	validates the graph and compiles it. Compilation failures map to
//	422 with a code naming the failure; malformed input maps to 400.
func (s *Server) handleCompile(c *gin.Context) {
	logger := s.handlerLogger(c, "compile")

	var req CompileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Code: "INVALID_REQUEST", Details: err.Error()})
		return
	}

	reg := s.cfg.Registry
	if len(req.Library) > 0 {
		lib, err := registry.ParseLibrary(req.Library)
		if err != nil {
			logger.Warn("invalid library", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid library", Code: "INVALID_LIBRARY", Details: err.Error()})
			return
		}
		reg = lib
	}

	g, err := graph.Parse(req.Graph, graph.FormatJSON)
	if err == nil {
		err = graph.Validate(g)
	}
	if err != nil {
		logger.Warn("invalid graph", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid graph", Code: "INVALID_GRAPH", Details: err.Error()})
		return
	}

	res, err := compiler.Compile(c.Request.Context(), g, reg, compiler.Options{
		Parallel: req.Parallel,
		Executor: s.cfg.Executor,
		Cache:    s.cfg.Cache,
		Package:  req.Package,
		FuncName: req.FuncName,
		Logger:   logger,
	})
	if err != nil {
		status, code := errorStatus(err)
		logger.Warn("compile failed",
			slog.String("graph", g.Name),
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
		c.JSON(status, ErrorResponse{Error: "compile failed", Code: code, Details: err.Error()})
		return
	}

	logger.Info("compiled graph",
		slog.String("graph", g.Name),
		slog.String("session", res.SessionID),
		slog.Int("fragments", res.Stats.Fragments),
	)
	c.JSON(http.StatusOK, res)
}

// handleInline handles POST /v1/inline.
func (s *Server) handleInline(c *gin.Context) {
	logger := s.handlerLogger(c, "inline")

	var req InlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Code: "INVALID_REQUEST", Details: err.Error()})
		return
	}

	body, stats, err := inline.InlineStats(c.Request.Context(), req.Source, req.Branches, req.Params)
	if err != nil {
		status, code := errorStatus(err)
		logger.Debug("inline failed", slog.String("error", err.Error()))
		c.JSON(status, ErrorResponse{Error: "inline failed", Code: code, Details: err.Error()})
		return
	}

	c.JSON(http.StatusOK, InlineResponse{
		Body:          body,
		Placeholders:  stats.Placeholders,
		Replaced:      stats.Replaced,
		Substitutions: stats.Substitutions,
	})
}

// handleLabels handles POST /v1/labels.
func (s *Server) handleLabels(c *gin.Context) {
	var req LabelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Code: "INVALID_REQUEST", Details: err.Error()})
		return
	}

	labels, err := inline.ExtractLabels(req.Source)
	if err != nil {
		status, code := errorStatus(err)
		c.JSON(status, ErrorResponse{Error: "label extraction failed", Code: code, Details: err.Error()})
		return
	}
	if labels == nil {
		labels = []string{}
	}
	c.JSON(http.StatusOK, LabelsResponse{Labels: labels})
}

// handleRegistry handles GET /v1/registry.
func (s *Server) handleRegistry(c *gin.Context) {
	findings := registry.Lint(s.cfg.Registry)
	if findings == nil {
		findings = []registry.Finding{}
	}
	c.JSON(http.StatusOK, RegistryResponse{
		Entries:  s.cfg.Registry.All(),
		Findings: findings,
	})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(c *gin.Context) {
	resp := HealthResponse{
		Status:  "healthy",
		Version: Version,
		Entries: len(s.cfg.Registry.All()),
	}
	if bc, ok := s.cfg.Cache.(*cache.BadgerCache); ok {
		st := bc.Stats()
		resp.Cache = &st
	}
	c.JSON(http.StatusOK, resp)
}

// errorStatus maps a compile or inline error to an HTTP status and code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, compiler.ErrInvalidOptions):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, dataflow.ErrCyclicDependency):
		return http.StatusUnprocessableEntity, "CYCLIC_DEPENDENCY"
	case errors.Is(err, dataflow.ErrNonFiniteConstant):
		return http.StatusUnprocessableEntity, "NON_FINITE_CONSTANT"
	case errors.Is(err, compiler.ErrUnknownNodeType):
		return http.StatusUnprocessableEntity, "UNKNOWN_NODE_TYPE"
	case errors.Is(err, inline.ErrReplacementParse), errors.Is(err, inline.ErrSubstitutionParse):
		return http.StatusUnprocessableEntity, "REPLACEMENT_PARSE"
	case errors.Is(err, inline.ErrParseFailed), errors.Is(err, inline.ErrBodyExtraction):
		return http.StatusUnprocessableEntity, "PARSE_FAILED"
	case errors.Is(err, compiler.ErrFormat):
		return http.StatusInternalServerError, "FORMAT_FAILED"
	case errors.Is(err, cache.ErrCacheClosed):
		return http.StatusServiceUnavailable, "CACHE_CLOSED"
	default:
		return http.StatusInternalServerError, "COMPILE_FAILED"
	}
}
