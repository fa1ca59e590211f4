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

	"github.com/AleutianAI/graphc/services/graphc/inline"
)

// Severity ranks a lint finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one problem found in a registry entry.
type Finding struct {
	Entry    string   `json:"entry"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s: %s", f.Severity, f.Entry, f.Message)
}

// Lint checks every entry's source against its declaration.
//
// Description:
//
//	Reports sources that do not parse, declared exec outputs with no
//	exec_output placeholder in the source, placeholders whose label is
//	not declared, and pure entries without a return type. Entries are
//	visited in name order; findings for one entry keep declaration order.
//
// Inputs:
//
//	reg - The registry to check.
//
// Outputs:
//
//	[]Finding - Empty when the registry is clean.
func Lint(reg Registry) []Finding {
	findings := []Finding{}
	for _, e := range reg.All() {
		findings = append(findings, lintEntry(e)...)
	}
	return findings
}

func lintEntry(e *Entry) []Finding {
	var out []Finding
	add := func(sev Severity, format string, args ...any) {
		out = append(out, Finding{Entry: e.Name, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	if e.Kind == KindPure && !e.ProducesValue() {
		add(SeverityWarning, "pure entry has no return type and is never evaluated")
	}

	labels, err := inline.ExtractLabels(e.Source)
	if err != nil {
		add(SeverityError, "source does not parse: %v", err)
		return out
	}

	found := make(map[string]bool, len(labels))
	for _, l := range labels {
		found[l] = true
	}
	declared := make(map[string]bool, len(e.ExecOutputs))
	for _, name := range e.ExecOutputs {
		declared[name] = true
	}

	if e.Kind == KindControlFlow {
		for _, name := range e.ExecOutputs {
			if !found[name] {
				add(SeverityError, "exec output %q has no placeholder", name)
			}
		}
	}

	reported := make(map[string]bool)
	for _, l := range labels {
		if declared[l] || reported[l] {
			continue
		}
		reported[l] = true
		add(SeverityError, "placeholder %q is not a declared exec output", l)
	}
	return out
}
