// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolAlreadyInitialized is returned by a second Init or
	// InitDefault. It is informational: the existing pool keeps working.
	ErrPoolAlreadyInitialized = errors.New("pool already initialized")

	// ErrPoolClosed is returned by Map and Init after Close.
	ErrPoolClosed = errors.New("pool closed")

	// ErrInvalidConfig indicates a negative thread count or stack size.
	ErrInvalidConfig = errors.New("invalid pool config")

	// ErrTaskPanic indicates a task panicked. The panic is recovered.
	ErrTaskPanic = errors.New("task panicked")
)

// PanicError carries a recovered task panic.
type PanicError struct {
	Index int
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%v: index %d: %v", ErrTaskPanic, e.Index, e.Value)
}

func (e *PanicError) Unwrap() error {
	return ErrTaskPanic
}
