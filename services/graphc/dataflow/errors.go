// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCyclicDependency indicates data wires between pure nodes form a
	// cycle, so no evaluation order exists.
	ErrCyclicDependency = errors.New("cyclic dependency between pure nodes")

	// ErrNonFiniteConstant indicates a NaN or infinite number property
	// that has no literal form.
	ErrNonFiniteConstant = errors.New("non-finite constant")
)

// CycleError reports a failed evaluation ordering.
type CycleError struct {
	// Path is one cycle in wire direction, closed: its first and last
	// elements are the same node.
	Path []string

	// Remaining lists every pure node that could not be ordered, sorted.
	Remaining []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s (%d nodes unresolved)",
		ErrCyclicDependency, strings.Join(e.Path, " -> "), len(e.Remaining))
}

func (e *CycleError) Unwrap() error {
	return ErrCyclicDependency
}

// ConstantError reports a property that cannot become a literal.
type ConstantError struct {
	NodeID string
	Pin    string
	Value  float64
}

func (e *ConstantError) Error() string {
	return fmt.Sprintf("%v: node %s input %s = %v", ErrNonFiniteConstant, e.NodeID, e.Pin, e.Value)
}

func (e *ConstantError) Unwrap() error {
	return ErrNonFiniteConstant
}

// IsCycleError reports whether err is a cyclic dependency failure.
func IsCycleError(err error) bool {
	return errors.Is(err, ErrCyclicDependency)
}
