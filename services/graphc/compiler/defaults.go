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

import "strings"

var zeroNumeric = map[string]bool{
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"uintptr": true, "byte": true, "rune": true,
	"float32": true, "float64": true, "complex64": true, "complex128": true,
}

var nilPrefixes = []string{"*", "[]", "map[", "func(", "func ", "chan ", "chan<-", "<-chan", "interface{", "interface {"}

// DefaultValue returns the Go zero value expression for a type.
//
// Numeric types give 0, bool false, string "". Pointers, slices, maps,
// funcs, channels, interfaces, any and error give nil. Anything else is
// assumed to be a struct or array and gives T{}.
func DefaultValue(goType string) string {
	t := strings.TrimSpace(goType)
	switch {
	case t == "":
		return "nil"
	case zeroNumeric[t]:
		return "0"
	case t == "bool":
		return "false"
	case t == "string":
		return `""`
	case t == "any" || t == "error":
		return "nil"
	}
	for _, p := range nilPrefixes {
		if strings.HasPrefix(t, p) {
			return "nil"
		}
	}
	return t + "{}"
}

// compositeLiteral turns a tuple constant such as "(1, 2)" into a
// composite literal of goType. Other literals are returned unchanged.
func compositeLiteral(literal, goType string) string {
	if goType == "" || !strings.HasPrefix(literal, "(") || !strings.HasSuffix(literal, ")") {
		return literal
	}
	inner := literal[1 : len(literal)-1]
	if !strings.Contains(inner, ",") {
		return literal
	}
	return goType + "{" + inner + "}"
}
