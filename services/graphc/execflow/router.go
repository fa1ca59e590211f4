// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package execflow routes control flow between nodes.
//
// The Router is a successor table built from execution wires only:
// (source node, source pin) maps to the target nodes in wire declaration
// order. A branching node looks up one list per exec output; a pin with
// several wires fans out to every target in order.
package execflow

import (
	"github.com/AleutianAI/graphc/services/graphc/graph"
)

// PinKey identifies an output pin.
type PinKey struct {
	Node string
	Pin  string
}

// Router is the execution routing table of one graph.
//
// Thread Safety: Immutable after Build; safe for concurrent reads.
type Router struct {
	routes map[PinKey][]string
	pins   map[string][]string
}

// Build collects the execution wires of g. Data wires are ignored.
// Duplicate wires are kept. Build never fails; wires to unknown nodes
// are routed as declared.
func Build(g *graph.Graph) *Router {
	r := &Router{
		routes: make(map[PinKey][]string),
		pins:   make(map[string][]string),
	}
	for _, c := range g.Connections {
		if c.Kind != graph.Execution {
			continue
		}
		key := PinKey{Node: c.SourceNode, Pin: c.SourcePin}
		if _, seen := r.routes[key]; !seen {
			r.pins[c.SourceNode] = append(r.pins[c.SourceNode], c.SourcePin)
		}
		r.routes[key] = append(r.routes[key], c.TargetNode)
	}
	return r
}

// Successors returns the targets wired to an exec output in declaration
// order. The result is empty, never nil, when nothing is wired, and is a
// copy the caller may modify.
func (r *Router) Successors(node, pin string) []string {
	targets := r.routes[PinKey{Node: node, Pin: pin}]
	out := make([]string, len(targets))
	copy(out, targets)
	return out
}

// HasExecutionOutputs reports whether any execution wire leaves node.
func (r *Router) HasExecutionOutputs(node string) bool {
	return len(r.pins[node]) > 0
}

// OutputPins returns the wired exec outputs of node in order of first
// declaration.
func (r *Router) OutputPins(node string) []string {
	pins := r.pins[node]
	out := make([]string, len(pins))
	copy(out, pins)
	return out
}

// Entries returns the number of wired (node, pin) pairs.
func (r *Router) Entries() int {
	return len(r.routes)
}
