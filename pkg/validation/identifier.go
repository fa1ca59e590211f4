// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks user-provided names before they are spliced
// into generated source.
//
// Package names, function names and import paths reach the generated
// program verbatim.
package validation

import (
	"fmt"
	"go/token"
	"regexp"
	"strings"

	"golang.org/x/mod/module"
)

// identifierPattern matches ASCII Go identifiers.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// importPathPattern matches the characters allowed in import path
// elements: letters, digits, dots, hyphens, underscores and tildes.
var importPathPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-]+(/[A-Za-z0-9._~\-]+)*$`)

// ValidateIdentifier validates a generated function or variable name.
//
// Valid identifiers:
//   - Start with a letter or underscore
//   - Continue with letters, digits or underscores (ASCII only)
//   - Are not Go keywords
//   - Are not the blank identifier
//
// Example:
//
//	if err := validation.ValidateIdentifier(opts.FuncName); err != nil {
//	    return nil, fmt.Errorf("function name: %w", err)
//	}
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier: %q (must be ASCII letters, digits or underscores, not starting with a digit)", name)
	}
	if token.IsKeyword(name) {
		return fmt.Errorf("invalid identifier: %q is a Go keyword", name)
	}
	if name == "_" {
		return fmt.Errorf("invalid identifier: the blank identifier cannot be declared")
	}
	return nil
}

// ValidatePackageName validates a package clause name. Package names
// follow the identifier rules.
func ValidatePackageName(name string) error {
	if err := ValidateIdentifier(name); err != nil {
		return fmt.Errorf("package name: %w", err)
	}
	return nil
}

// ValidateImportPath validates an import path declared by a node library.
// Paths are slash-separated, with no empty elements and no element
// starting with a dot, and must pass the module import path rules.
func ValidateImportPath(path string) error {
	if path == "" {
		return fmt.Errorf("import path cannot be empty")
	}
	if !importPathPattern.MatchString(path) {
		return fmt.Errorf("invalid import path: %q", path)
	}
	for _, elem := range strings.Split(path, "/") {
		if strings.HasPrefix(elem, ".") {
			return fmt.Errorf("invalid import path: %q has element %q with a leading dot", path, elem)
		}
	}
	if err := module.CheckImportPath(path); err != nil {
		return fmt.Errorf("invalid import path: %w", err)
	}
	return nil
}

// ValidateImportPaths validates every path and reports all invalid ones.
func ValidateImportPaths(paths []string) error {
	var invalid []string
	for _, p := range paths {
		if err := ValidateImportPath(p); err != nil {
			invalid = append(invalid, p)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid import paths: %q", invalid)
	}
	return nil
}
