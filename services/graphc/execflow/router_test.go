// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package execflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/graphc/services/graphc/graph"
)

func branchGraph() *graph.Graph {
	g := graph.New("routes")
	g.AddConnection(graph.ExecWire("begin", "Then", "check", "exec"))
	g.AddConnection(graph.ExecWire("check", "True", "yes", "exec"))
	g.AddConnection(graph.DataWire("value", "result", "check", "condition"))
	g.AddConnection(graph.ExecWire("check", "False", "no", "exec"))
	g.AddConnection(graph.ExecWire("check", "True", "also", "exec"))
	g.AddConnection(graph.ExecWire("check", "True", "yes", "exec"))
	return g
}

func TestRouter_Successors(t *testing.T) {
	r := Build(branchGraph())

	assert.Equal(t, []string{"check"}, r.Successors("begin", "Then"))
	assert.Equal(t, []string{"yes", "also", "yes"}, r.Successors("check", "True"))
	assert.Equal(t, []string{"no"}, r.Successors("check", "False"))

	none := r.Successors("check", "Maybe")
	assert.NotNil(t, none)
	assert.Empty(t, none)

	assert.Empty(t, r.Successors("value", "result"), "data wires are not routed")
}

func TestRouter_OutputPins(t *testing.T) {
	r := Build(branchGraph())

	assert.True(t, r.HasExecutionOutputs("check"))
	assert.True(t, r.HasExecutionOutputs("begin"))
	assert.False(t, r.HasExecutionOutputs("yes"))
	assert.False(t, r.HasExecutionOutputs("value"))

	assert.Equal(t, []string{"True", "False"}, r.OutputPins("check"))
	assert.Empty(t, r.OutputPins("yes"))
	assert.Equal(t, 3, r.Entries())
}

func TestRouter_ResultsAreCopies(t *testing.T) {
	r := Build(branchGraph())

	s := r.Successors("check", "True")
	s[0] = "changed"
	assert.Equal(t, "yes", r.Successors("check", "True")[0])

	p := r.OutputPins("check")
	p[0] = "changed"
	assert.Equal(t, "True", r.OutputPins("check")[0])
}

func TestRouter_Empty(t *testing.T) {
	r := Build(graph.New("empty"))
	assert.Equal(t, 0, r.Entries())
	assert.Empty(t, r.Successors("a", "b"))
	assert.False(t, r.HasExecutionOutputs("a"))
}
