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
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	ValueText ValueKind = iota
	ValueNumber
	ValueBool
	ValueVector2
	ValueVector3
	ValueColor
)

// String returns the document key used for the kind.
func (k ValueKind) String() string {
	switch k {
	case ValueText:
		return "text"
	case ValueNumber:
		return "number"
	case ValueBool:
		return "bool"
	case ValueVector2:
		return "vec2"
	case ValueVector3:
		return "vec3"
	case ValueColor:
		return "color"
	default:
		return "unknown"
	}
}

// components returns how many floats a vector kind holds, or 0.
func (k ValueKind) components() int {
	switch k {
	case ValueVector2:
		return 2
	case ValueVector3:
		return 3
	case ValueColor:
		return 4
	default:
		return 0
	}
}

// Value is a literal property value.
//
// Only the field matching Kind is meaningful. Vector kinds use the first
// two, three or four entries of Vec.
//
// Document form: text, numbers and booleans are plain scalars; vectors
// and colors are single-key maps such as {vec3: [1, 2, 3]} or
// {color: [1, 0, 0, 1]}.
type Value struct {
	Kind   ValueKind
	Text   string
	Number float64
	Bool   bool
	Vec    [4]float64
}

// TextValue returns a text literal.
func TextValue(s string) Value { return Value{Kind: ValueText, Text: s} }

// NumberValue returns a numeric literal.
func NumberValue(f float64) Value { return Value{Kind: ValueNumber, Number: f} }

// BoolValue returns a boolean literal.
func BoolValue(b bool) Value { return Value{Kind: ValueBool, Bool: b} }

// Vector2Value returns a 2-vector literal.
func Vector2Value(x, y float64) Value {
	return Value{Kind: ValueVector2, Vec: [4]float64{x, y}}
}

// Vector3Value returns a 3-vector literal.
func Vector3Value(x, y, z float64) Value {
	return Value{Kind: ValueVector3, Vec: [4]float64{x, y, z}}
}

// ColorValue returns an RGBA color literal.
func ColorValue(r, g, b, a float64) Value {
	return Value{Kind: ValueColor, Vec: [4]float64{r, g, b, a}}
}

// Components returns the vector components for vector and color kinds
// and nil otherwise.
func (v Value) Components() []float64 {
	n := v.Kind.components()
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	copy(out, v.Vec[:n])
	return out
}

func vectorValue(kind ValueKind, comps []float64) (Value, error) {
	if len(comps) != kind.components() {
		return Value{}, fmt.Errorf("%w: %s needs %d components, got %d",
			ErrInvalidValue, kind, kind.components(), len(comps))
	}
	v := Value{Kind: kind}
	copy(v.Vec[:], comps)
	return v, nil
}

func kindForKey(key string) (ValueKind, bool) {
	switch key {
	case "vec2", "vector2":
		return ValueVector2, true
	case "vec3", "vector3":
		return ValueVector3, true
	case "color":
		return ValueColor, true
	}
	return 0, false
}

func (v Value) documentForm() any {
	switch v.Kind {
	case ValueText:
		return v.Text
	case ValueNumber:
		return v.Number
	case ValueBool:
		return v.Bool
	default:
		return map[string][]float64{v.Kind.String(): v.Components()}
	}
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (any, error) {
	return v.documentForm(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return err
			}
			*v = BoolValue(b)
		case "!!int", "!!float":
			var f float64
			if err := node.Decode(&f); err != nil {
				return err
			}
			*v = NumberValue(f)
		default:
			*v = TextValue(node.Value)
		}
		return nil

	case yaml.MappingNode:
		var m map[string][]float64
		if err := node.Decode(&m); err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrInvalidValue, node.Line, err)
		}
		return v.fromVectorMap(m)
	}
	return fmt.Errorf("%w: line %d: unsupported property form", ErrInvalidValue, node.Line)
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.documentForm())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty value", ErrInvalidValue)
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = TextValue(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case '{':
		var m map[string][]float64
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return v.fromVectorMap(m)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		*v = NumberValue(f)
	}
	return nil
}

func (v *Value) fromVectorMap(m map[string][]float64) error {
	if len(m) != 1 {
		return fmt.Errorf("%w: vector property needs exactly one of vec2, vec3, color", ErrInvalidValue)
	}
	for key, comps := range m {
		kind, ok := kindForKey(key)
		if !ok {
			return fmt.Errorf("%w: unknown vector kind %q", ErrInvalidValue, key)
		}
		parsed, err := vectorValue(kind, comps)
		if err != nil {
			return err
		}
		*v = parsed
	}
	return nil
}
