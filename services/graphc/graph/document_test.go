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
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
name: branch_demo
metadata:
  description: prints yes or no
nodes:
  - id: start
    type: event.begin
    outputs:
      - {name: exec, type: exec}
  - id: check
    type: flow.branch
    inputs:
      - {name: exec, type: exec}
      - {name: condition, type: boolean}
    outputs:
      - {name: "True", type: exec}
      - {name: "False", type: exec}
    properties:
      condition: true
  - id: add-1
    type: math.add
    inputs:
      - {name: a, type: number}
      - {name: b, type: int64}
    outputs:
      - {name: result, type: number}
    properties:
      a: 42
      b: 3.14
      label: "hi \"there\""
      offset: {vec2: [1, 2]}
      tint: {color: [1, 0, 0, 0.5]}
connections:
  - {source_node: start, source_pin: exec, target_node: check, target_pin: exec, kind: exec}
  - {source_node: add-1, source_pin: result, target_node: check, target_pin: condition, kind: data}
`

func TestParse_YAML(t *testing.T) {
	g, err := Parse([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "branch_demo", g.Name)
	assert.Equal(t, []string{"add-1", "check", "start"}, g.NodeIDs())
	require.Len(t, g.Connections, 2)
	assert.Equal(t, Execution, g.Connections[0].Kind)
	assert.Equal(t, Data, g.Connections[1].Kind)

	add, ok := g.Node("add-1")
	require.True(t, ok)
	assert.Equal(t, Of(PinNumber), add.Inputs[0].Type)
	assert.Equal(t, Typed("int64"), add.Inputs[1].Type)

	a, _ := add.Property("a")
	assert.Equal(t, NumberValue(42), a)
	label, _ := add.Property("label")
	assert.Equal(t, TextValue(`hi "there"`), label)
	offset, _ := add.Property("offset")
	assert.Equal(t, []float64{1, 2}, offset.Components())
	tint, _ := add.Property("tint")
	assert.Equal(t, ValueColor, tint.Kind)
	assert.Equal(t, 0.5, tint.Vec[3])

	check, _ := g.Node("check")
	cond, _ := check.Property("condition")
	assert.Equal(t, BoolValue(true), cond)
}

func TestParse_YAMLNaN(t *testing.T) {
	doc := `
name: nan
nodes:
  - id: n
    type: t
    properties:
      x: .nan
`
	g, err := Parse([]byte(doc), FormatYAML)
	require.NoError(t, err)
	v, _ := g.Nodes["n"].Property("x")
	assert.True(t, math.IsNaN(v.Number))
}

func TestEncodeParse_JSON(t *testing.T) {
	g, err := Parse([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)

	data, err := Encode(g, FormatJSON)
	require.NoError(t, err)

	back, err := Parse(data, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, g.NodeIDs(), back.NodeIDs())
	assert.Equal(t, g.Connections, back.Connections)
	assert.Equal(t, g.Nodes["add-1"].Properties, back.Nodes["add-1"].Properties)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "missing name",
			doc:  "nodes: [{id: a, type: t}]",
			want: ErrInvalidDocument,
		},
		{
			name: "missing node type",
			doc:  "name: g\nnodes: [{id: a}]",
			want: ErrInvalidDocument,
		},
		{
			name: "duplicate node",
			doc:  "name: g\nnodes: [{id: a, type: t}, {id: a, type: t}]",
			want: ErrDuplicateNode,
		},
		{
			name: "bad connection kind",
			doc:  "name: g\nnodes: [{id: a, type: t}]\nconnections: [{source_node: a, source_pin: o, target_node: a, target_pin: i, kind: teleport}]",
			want: ErrInvalidDocument,
		},
		{
			name: "short vector",
			doc:  "name: g\nnodes: [{id: a, type: t, properties: {v: {vec3: [1, 2]}}}]",
			want: ErrInvalidDocument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatYAML)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParse_UnknownFormat(t *testing.T) {
	_, err := Parse([]byte("{}"), Format("toml"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	g, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 3)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	g, err := Parse([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)
	assert.NoError(t, Validate(g))

	g.AddConnection(DataWire("ghost", "out", "check", "condition"))
	g.AddConnection(DataWire("add-1", "nope", "check", "condition"))
	g.AddConnection(ExecWire("add-1", "result", "check", "exec"))

	err = Validate(g)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.ErrorIs(t, err, ErrPinNotFound)
	assert.ErrorIs(t, err, ErrInvalidConnection)
	assert.True(t, IsValidationError(err))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "connections[2]", ve.Location)
}

func TestParseDataType(t *testing.T) {
	tests := []struct {
		in   string
		want DataType
	}{
		{"exec", Exec},
		{"execution", Exec},
		{"number", Of(PinNumber)},
		{"vector3", Of(PinVector3)},
		{"map[string]int", Typed("map[string]int")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDataType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseDataType("  ")
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestDataType_GoType(t *testing.T) {
	assert.Equal(t, "float64", Of(PinNumber).GoType())
	assert.Equal(t, "[4]float64", Of(PinColor).GoType())
	assert.Equal(t, "int32", Typed("int32").GoType())
	assert.Equal(t, "", Exec.GoType())
}

func TestGraph_Builders(t *testing.T) {
	g := New("g")
	g.AddNode(NewNode("b", "t").AddInput("x", Of(PinNumber)).SetProperty("x", NumberValue(1)))
	g.AddNode(NewNode("a", "t").AddOutput("y", Of(PinNumber)))
	g.AddConnection(DataWire("a", "y", "b", "x"))
	g.AddConnection(ExecWire("a", "then", "b", "exec"))

	assert.Equal(t, []string{"a", "b"}, g.NodeIDs())
	assert.Equal(t, 1, g.CountByKind(Data))
	assert.Equal(t, 1, g.CountByKind(Execution))

	_, ok := g.Nodes["b"].Input("x")
	assert.True(t, ok)
	_, ok = g.Nodes["b"].Output("x")
	assert.False(t, ok)
}
