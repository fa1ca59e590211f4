// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/graphc/pkg/validation"
)

// Library is the document form of a node library.
type Library struct {
	Version string   `yaml:"version,omitempty" json:"version,omitempty"`
	Nodes   []*Entry `yaml:"nodes" json:"nodes" validate:"dive,required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateEntry, Entry{})
	return v
}

// validateEntry enforces kind-specific rules that struct tags cannot express.
func validateEntry(sl validator.StructLevel) {
	e := sl.Current().Interface().(Entry)
	switch e.Kind {
	case KindPure:
		if len(e.ExecOutputs) > 0 {
			sl.ReportError(e.ExecOutputs, "ExecOutputs", "exec_outputs", "pure_no_exec", "")
		}
	case KindControlFlow:
		if len(e.ExecOutputs) == 0 {
			sl.ReportError(e.ExecOutputs, "ExecOutputs", "exec_outputs", "branch_needs_exec", "")
		}
	}
	seen := make(map[string]bool, len(e.Params))
	for _, p := range e.Params {
		if seen[p.Name] {
			sl.ReportError(e.Params, "Params", "params", "unique_param", p.Name)
		}
		seen[p.Name] = true
	}
	for _, path := range e.Imports {
		if err := validation.ValidateImportPath(path); err != nil {
			sl.ReportError(e.Imports, "Imports", "imports", "import_path", path)
		}
	}
}

// ValidateEntry checks a single entry.
func ValidateEntry(e *Entry) error {
	if e == nil {
		return fmt.Errorf("%w: nil entry", ErrInvalidEntry)
	}
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidEntry, e.Name, err)
	}
	return nil
}

// ParseLibrary decodes a YAML (or JSON) node library into a registry.
//
// Description:
//
//	Every entry is validated: name and source are required, pure entries
//	declare no exec outputs, control-flow entries declare at least one,
//	and parameter names are unique. Duplicate entry names are rejected.
//
// Inputs:
//
//	data - Library document bytes.
//
// Outputs:
//
//	*MapRegistry - The loaded registry.
//	error - Wraps ErrInvalidLibrary, ErrInvalidEntry or ErrDuplicateEntry.
func ParseLibrary(data []byte) (*MapRegistry, error) {
	var lib Library
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLibrary, err)
	}

	reg := NewMapRegistry()
	for _, e := range lib.Nodes {
		if err := ValidateEntry(e); err != nil {
			return nil, err
		}
		if err := reg.Register(e); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// LoadLibrary reads a node library from disk.
func LoadLibrary(path string) (*MapRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read library %s: %w", path, err)
	}
	reg, err := ParseLibrary(data)
	if err != nil {
		return nil, fmt.Errorf("load library %s: %w", path, err)
	}
	return reg, nil
}
