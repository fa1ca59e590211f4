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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const libraryYAML = `version: "1"
nodes:
  - name: math.add
    kind: pure
    category: math
    params:
      - {name: a, type: float64}
      - {name: b, type: float64}
    return_type: float64
    source: |
      func add(a, b float64) float64 {
      	return a + b
      }
  - name: flow.branch
    kind: branch
    category: flow
    params:
      - {name: condition, type: bool}
    exec_outputs: ["True", "False"]
    source: |
      func branch(condition bool) {
      	if condition {
      		exec_output("True")
      	} else {
      		exec_output("False")
      	}
      }
  - name: io.print
    kind: side_effect
    category: io
    params:
      - {name: message, type: string}
    exec_outputs: [Then]
    imports: [fmt]
    source: |
      func print(message string) {
      	fmt.Println(message)
      }
  - name: event.begin
    kind: event
    category: event
    exec_outputs: [Then]
    source: |
      func begin() {}
`

func TestParseLibrary(t *testing.T) {
	reg, err := ParseLibrary([]byte(libraryYAML))
	require.NoError(t, err)
	assert.Equal(t, 4, reg.Len())

	add, ok := reg.Lookup("math.add")
	require.True(t, ok)
	assert.Equal(t, KindPure, add.Kind)
	assert.True(t, add.IsPure())
	assert.Equal(t, "float64", add.ReturnType)

	p, ok := add.Param("b")
	require.True(t, ok)
	assert.Equal(t, "float64", p.Type)

	branch, ok := reg.Lookup("flow.branch")
	require.True(t, ok)
	assert.Equal(t, KindControlFlow, branch.Kind)
	assert.False(t, branch.IsPure())
	assert.Equal(t, []string{"True", "False"}, branch.ExecOutputs)

	printer, ok := reg.Lookup("io.print")
	require.True(t, ok)
	assert.Equal(t, KindFunction, printer.Kind)
	assert.Equal(t, []string{"fmt"}, printer.Imports)

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)
}

func TestMapRegistry_Ordering(t *testing.T) {
	reg := NewMapRegistry(
		&Entry{Name: "z.last", Category: "z", Source: "func f() {}"},
		&Entry{Name: "a.first", Category: "a", Source: "func f() {}"},
		&Entry{Name: "a.second", Category: "a", Source: "func f() {}"},
	)

	var names []string
	for _, e := range reg.All() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"a.first", "a.second", "z.last"}, names)

	cat := reg.ByCategory("a")
	require.Len(t, cat, 2)
	assert.Equal(t, "a.first", cat[0].Name)
	assert.Equal(t, "a.second", cat[1].Name)

	assert.Empty(t, reg.ByCategory("none"))
}

func TestMapRegistry_Register(t *testing.T) {
	reg := NewMapRegistry()
	require.NoError(t, reg.Register(&Entry{Name: "x", Source: "func f() {}"}))

	err := reg.Register(&Entry{Name: "x", Source: "func g() {}"})
	assert.ErrorIs(t, err, ErrDuplicateEntry)

	err = reg.Register(&Entry{})
	assert.ErrorIs(t, err, ErrInvalidEntry)

	err = reg.Register(nil)
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestParseLibrary_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{
			name: "malformed yaml",
			yaml: "nodes: [",
			want: ErrInvalidLibrary,
		},
		{
			name: "unknown kind",
			yaml: "nodes:\n  - {name: a, kind: sideways, source: 'func f() {}'}\n",
			want: ErrUnknownKind,
		},
		{
			name: "missing source",
			yaml: "nodes:\n  - {name: a, kind: pure}\n",
			want: ErrInvalidEntry,
		},
		{
			name: "pure with exec outputs",
			yaml: "nodes:\n  - {name: a, kind: pure, return_type: int, exec_outputs: [Then], source: 'func f() int { return 1 }'}\n",
			want: ErrInvalidEntry,
		},
		{
			name: "branch without exec outputs",
			yaml: "nodes:\n  - {name: a, kind: control_flow, source: 'func f() {}'}\n",
			want: ErrInvalidEntry,
		},
		{
			name: "duplicate param",
			yaml: "nodes:\n  - name: a\n    kind: fn\n    params: [{name: x, type: int}, {name: x, type: int}]\n    source: 'func f(x int) {}'\n",
			want: ErrInvalidEntry,
		},
		{
			name: "bad import path",
			yaml: "nodes:\n  - {name: a, kind: fn, imports: ['fmt\"; \"os'], source: 'func f() {}'}\n",
			want: ErrInvalidEntry,
		},
		{
			name: "duplicate entry",
			yaml: "nodes:\n  - {name: a, kind: fn, source: 'func f() {}'}\n  - {name: a, kind: fn, source: 'func g() {}'}\n",
			want: ErrDuplicateEntry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLibrary([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadLibrary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.yaml")
	require.NoError(t, os.WriteFile(path, []byte(libraryYAML), 0o600))

	reg, err := LoadLibrary(path)
	require.NoError(t, err)
	assert.Equal(t, 4, reg.Len())

	_, err = LoadLibrary(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"pure", KindPure},
		{"fn", KindFunction},
		{"function", KindFunction},
		{"side_effect", KindFunction},
		{"control_flow", KindControlFlow},
		{"Branch", KindControlFlow},
		{"event", KindEvent},
		{" entry ", KindEvent},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseKind("loop")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestLint(t *testing.T) {
	t.Run("clean library", func(t *testing.T) {
		reg, err := ParseLibrary([]byte(libraryYAML))
		require.NoError(t, err)
		assert.Empty(t, Lint(reg))
	})

	t.Run("mismatched labels", func(t *testing.T) {
		reg := NewMapRegistry(&Entry{
			Name:        "flow.branch",
			Kind:        KindControlFlow,
			ExecOutputs: []string{"True", "False"},
			Source: `func branch(c bool) {
	if c {
		exec_output("True")
	} else {
		exec_output("Otherwise")
		exec_output("Otherwise")
	}
}`,
		})

		findings := Lint(reg)
		require.Len(t, findings, 2)
		assert.Equal(t, SeverityError, findings[0].Severity)
		assert.Contains(t, findings[0].Message, `"False"`)
		assert.Contains(t, findings[1].Message, `"Otherwise"`)
		assert.Equal(t, "flow.branch", findings[1].Entry)
	})

	t.Run("unparseable source", func(t *testing.T) {
		reg := NewMapRegistry(&Entry{Name: "bad", Kind: KindFunction, Source: "func ("})

		findings := Lint(reg)
		require.Len(t, findings, 1)
		assert.Contains(t, findings[0].Message, "does not parse")
	})

	t.Run("pure without return type", func(t *testing.T) {
		reg := NewMapRegistry(&Entry{Name: "noop", Kind: KindPure, Source: "func noop() {}"})

		findings := Lint(reg)
		require.Len(t, findings, 1)
		assert.Equal(t, SeverityWarning, findings[0].Severity)
	})
}
