// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph documents.
var (
	// ErrNodeNotFound indicates a connection references a node id that
	// does not exist in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrPinNotFound indicates a connection references a pin that the
	// node does not declare.
	ErrPinNotFound = errors.New("pin not found")

	// ErrInvalidConnection indicates a connection whose kind does not
	// match the pins it joins, or an unknown connection kind.
	ErrInvalidConnection = errors.New("invalid connection")

	// ErrDuplicateNode indicates two nodes in a document share an id.
	ErrDuplicateNode = errors.New("duplicate node id")

	// ErrInvalidValue indicates a malformed property value.
	ErrInvalidValue = errors.New("invalid property value")

	// ErrInvalidType indicates a malformed pin type.
	ErrInvalidType = errors.New("invalid pin type")

	// ErrInvalidDocument indicates a document that cannot be decoded or
	// fails field validation.
	ErrInvalidDocument = errors.New("invalid graph document")

	// ErrUnknownFormat indicates a document format other than yaml or json.
	ErrUnknownFormat = errors.New("unknown document format")
)

// ValidationError reports a structural problem at a specific location.
type ValidationError struct {
	// Location is a node id or "connections[i]".
	Location string

	// Message describes the problem.
	Message string

	// Err is the sentinel category.
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Location, e.Message, e.Err)
}

// Unwrap returns the sentinel category.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err contains a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
