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
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/AleutianAI/graphc/services/graphc/graph"
)

// SourceKind says where an input pin gets its value.
type SourceKind int

const (
	// SourceDefault means the zero value of the pin's type.
	SourceDefault SourceKind = iota

	// SourceConnected means a data wire from another node's output.
	SourceConnected

	// SourceConstant means a literal taken from a node property.
	SourceConstant
)

func (k SourceKind) String() string {
	switch k {
	case SourceConnected:
		return "connected"
	case SourceConstant:
		return "constant"
	default:
		return "default"
	}
}

// Source is the provenance of one input pin. Node and Pin are set for
// SourceConnected, Literal for SourceConstant.
type Source struct {
	Kind    SourceKind
	Node    string
	Pin     string
	Literal string
}

// Connected returns a connected source.
func Connected(node, pin string) Source {
	return Source{Kind: SourceConnected, Node: node, Pin: pin}
}

// Constant returns a constant source.
func Constant(literal string) Source {
	return Source{Kind: SourceConstant, Literal: literal}
}

// Default returns a default source.
func Default() Source {
	return Source{Kind: SourceDefault}
}

func (s Source) String() string {
	switch s.Kind {
	case SourceConnected:
		return fmt.Sprintf("connected(%s.%s)", s.Node, s.Pin)
	case SourceConstant:
		return fmt.Sprintf("constant(%s)", s.Literal)
	default:
		return "default"
	}
}

// PinSource pairs an input pin name with its provenance.
type PinSource struct {
	Pin    string
	Source Source
}

// Canonicalize returns the literal text of a property value.
//
// Text is quoted as a Go string literal. Whole numbers print without a
// fractional part (42.0 becomes "42"), other numbers in their shortest
// decimal form. Vectors and colors print as "(x, y)" tuples with the
// same number rules. NaN and infinities are rejected with
// ErrNonFiniteConstant.
func Canonicalize(v graph.Value) (string, error) {
	switch v.Kind {
	case graph.ValueText:
		return strconv.Quote(v.Text), nil
	case graph.ValueBool:
		return strconv.FormatBool(v.Bool), nil
	case graph.ValueNumber:
		return formatNumber(v.Number)
	case graph.ValueVector2, graph.ValueVector3, graph.ValueColor:
		comps := v.Components()
		parts := make([]string, len(comps))
		for i, c := range comps {
			s, err := formatNumber(c)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "(" + strings.Join(parts, ", ") + ")", nil
	}
	return "", fmt.Errorf("%w: value kind %v", graph.ErrInvalidValue, v.Kind)
}

func formatNumber(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", ErrNonFiniteConstant
	}
	if f == 0 {
		// Drops the sign of negative zero.
		return "0", nil
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

// Sanitize maps a node id to identifier characters: Unicode letters,
// digits and underscores are kept, anything else becomes '_'.
func Sanitize(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// VariableName returns the base result variable for a node id.
func VariableName(id string) string {
	return "node_" + Sanitize(id) + "_result"
}
