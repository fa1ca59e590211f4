// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package inline

import (
	"errors"
	"fmt"
)

// Sentinel errors for fragment transformation.
//
// These can be checked with errors.Is to tell the failure category
// apart without inspecting messages.
var (
	// ErrParseFailed indicates the source fragment is not a single valid
	// Go function declaration. Nothing is transformed.
	ErrParseFailed = errors.New("fragment parse failed")

	// ErrBodyExtraction indicates the printed function could not be cut
	// down to its body text.
	ErrBodyExtraction = errors.New("could not extract function body")

	// ErrReplacementParse indicates branch replacement code that parses
	// neither as an expression nor as a statement list.
	ErrReplacementParse = errors.New("replacement did not parse")

	// ErrSubstitutionParse indicates a parameter substitution that does
	// not parse as an expression.
	ErrSubstitutionParse = errors.New("substitution did not parse")
)

// ParseError reports a failure to parse or re-emit a fragment.
//
// Line and Column are relative to the fragment as supplied by the
// caller. Both are 0 when the failure has no source position.
type ParseError struct {
	Line    int
	Column  int
	Message string

	// Kind is ErrParseFailed or ErrBodyExtraction.
	Kind error

	// Cause is the underlying parser error, if any.
	Cause error
}

// Error returns "fragment:line:col: message".
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("fragment:%d:%d: %v: %s", e.Line, e.Column, e.Kind, e.Message)
	}
	return fmt.Sprintf("fragment: %v: %s", e.Kind, e.Message)
}

// Unwrap exposes both the category and the parser cause.
func (e *ParseError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// ReplacementError reports caller-supplied code that did not parse.
//
// Exactly one of Label or Param is set: Label for a branch replacement,
// Param for a parameter substitution.
type ReplacementError struct {
	Label string
	Param string
	Code  string
	Cause error
}

// Error implements the error interface.
func (e *ReplacementError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%v: param %q = %q: %v", ErrSubstitutionParse, e.Param, e.Code, e.Cause)
	}
	return fmt.Sprintf("%v: branch %q = %q: %v", ErrReplacementParse, e.Label, e.Code, e.Cause)
}

// Unwrap returns the category sentinel.
func (e *ReplacementError) Unwrap() error {
	if e.Param != "" {
		return ErrSubstitutionParse
	}
	return ErrReplacementParse
}

// IsParseError reports whether err is a fragment parse or extraction failure.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsReplacementError reports whether err is a replacement or
// substitution parse failure.
func IsReplacementError(err error) bool {
	var re *ReplacementError
	return errors.As(err, &re)
}
