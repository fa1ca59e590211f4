// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compiler

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownNodeType indicates a node whose type is not in the registry.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrInvalidOptions indicates a package or function name that is not
	// a valid Go identifier.
	ErrInvalidOptions = errors.New("invalid compile options")

	// ErrFormat indicates the assembled program is not valid Go.
	ErrFormat = errors.New("generated source is not valid Go")
)

// NodeError attributes a failure to one node.
type NodeError struct {
	NodeID string
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.NodeID, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// IsNodeError reports whether err carries a *NodeError.
func IsNodeError(err error) bool {
	var ne *NodeError
	return errors.As(err, &ne)
}
