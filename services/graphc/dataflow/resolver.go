// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dataflow resolves where every node input gets its value.
//
// A Resolver is built once per compilation from an immutable graph
// snapshot and is read-only afterwards. It answers three questions:
//
//   - Provenance: for each (node, input pin), a connected source, a
//     constant literal from the node's properties, or the type default.
//   - Naming: a unique Go identifier holding each node's result.
//   - Ordering: an evaluation order of the pure nodes in which every data
//     dependency comes first.
//
// Build and BuildParallel run the same algorithm. The parallel variant
// fans the mapping and naming phases out over a pool.Executor; each item
// writes its own slot and the slots are merged in item order, so both
// variants produce identical resolvers.
package dataflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/AleutianAI/graphc/services/graphc/graph"
	"github.com/AleutianAI/graphc/services/graphc/pool"
	"github.com/AleutianAI/graphc/services/graphc/registry"
)

type pinKey struct {
	node string
	pin  string
}

// Resolver holds the provenance map, result variables and pure
// evaluation order of one graph.
//
// Thread Safety: Immutable after construction; safe for concurrent reads.
type Resolver struct {
	sources   map[pinKey]Source
	pinOrder  map[string][]string
	variables map[string]string
	order     []string
}

// Build resolves a graph sequentially.
//
// Description:
//
//	Runs the three phases on pool.Sequential(): connection mapping,
//	variable naming and pure evaluation ordering. The context is checked
//	between phases.
//
// Inputs:
//
//	ctx - Cancellation and tracing.
//	g - Graph snapshot. Not modified.
//	reg - Node type registry, used to classify pure nodes.
//
// Outputs:
//
//	*Resolver - The resolved data flow.
//	error - *CycleError, *ConstantError or the context error.
func Build(ctx context.Context, g *graph.Graph, reg registry.Registry) (*Resolver, error) {
	return build(ctx, g, reg, pool.Sequential(), "sequential")
}

// BuildParallel resolves a graph with phases 1 and 2 on exec. A nil
// executor means pool.Default(). The result is identical to Build.
func BuildParallel(ctx context.Context, g *graph.Graph, reg registry.Registry, exec pool.Executor) (*Resolver, error) {
	if exec == nil {
		exec = pool.Default()
	}
	return build(ctx, g, reg, exec, "parallel")
}

func build(ctx context.Context, g *graph.Graph, reg registry.Registry, exec pool.Executor, mode string) (*Resolver, error) {
	start := time.Now()
	ctx, span := startBuildSpan(ctx, g, mode, exec.Workers())
	defer span.End()

	r, err := resolve(ctx, g, reg, exec)
	setBuildSpanResult(span, r, err)
	recordBuildMetrics(ctx, mode, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	slog.Debug("data flow resolved",
		slog.String("graph", g.Name),
		slog.String("mode", mode),
		slog.Int("nodes", len(g.Nodes)),
		slog.Int("inputs", len(r.sources)),
		slog.Int("pure_nodes", len(r.order)),
		slog.Duration("duration", time.Since(start)),
	)
	return r, nil
}

func resolve(ctx context.Context, g *graph.Graph, reg registry.Registry, exec pool.Executor) (*Resolver, error) {
	r := &Resolver{}
	ids := g.NodeIDs()

	if err := r.mapInputs(ctx, g, ids, exec); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := r.nameVariables(ctx, ids, exec); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	order, err := evaluationOrder(g, pureNodes(g, reg))
	if err != nil {
		return nil, err
	}
	r.order = order
	return r, nil
}

type connSlot struct {
	key pinKey
	src Source
	ok  bool
}

type nodeSlot struct {
	pins    []string
	sources []Source
}

// mapInputs is phase 1. Data wires are mapped first, a later wire to
// the same pin replacing an earlier one; then every declared input pin
// not reached by a wire gets a constant or the default.
func (r *Resolver) mapInputs(ctx context.Context, g *graph.Graph, ids []string, exec pool.Executor) error {
	conns := make([]connSlot, len(g.Connections))
	err := exec.Map(ctx, len(g.Connections), func(i int) error {
		c := g.Connections[i]
		if c.Kind != graph.Data {
			return nil
		}
		conns[i] = connSlot{
			key: pinKey{node: c.TargetNode, pin: c.TargetPin},
			src: Connected(c.SourceNode, c.SourcePin),
			ok:  true,
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("map connections: %w", err)
	}

	r.sources = make(map[pinKey]Source, len(g.Connections)+len(ids))
	for _, s := range conns {
		if s.ok {
			r.sources[s.key] = s.src
		}
	}

	// Read-only from here until the merge below.
	wired := r.sources

	nodes := make([]nodeSlot, len(ids))
	err = exec.Map(ctx, len(ids), func(i int) error {
		id := ids[i]
		n := g.Nodes[id]
		slot := nodeSlot{pins: make([]string, 0, len(n.Inputs))}
		seen := make(map[string]bool, len(n.Inputs))
		for _, pin := range n.Inputs {
			if seen[pin.Name] {
				continue
			}
			seen[pin.Name] = true
			slot.pins = append(slot.pins, pin.Name)

			if _, ok := wired[pinKey{node: id, pin: pin.Name}]; ok {
				slot.sources = append(slot.sources, Source{})
				continue
			}
			src, err := propertySource(id, pin.Name, n)
			if err != nil {
				return err
			}
			slot.sources = append(slot.sources, src)
		}
		nodes[i] = slot
		return nil
	})
	if err != nil {
		var ce *ConstantError
		if errors.As(err, &ce) {
			return err
		}
		return fmt.Errorf("map unconnected inputs: %w", err)
	}

	r.pinOrder = make(map[string][]string, len(ids))
	for i, id := range ids {
		slot := nodes[i]
		r.pinOrder[id] = slot.pins
		for j, pin := range slot.pins {
			key := pinKey{node: id, pin: pin}
			if _, ok := r.sources[key]; !ok {
				r.sources[key] = slot.sources[j]
			}
		}
	}
	return nil
}

// propertySource returns the constant for a same-named property, or the
// default when there is none.
func propertySource(id, pin string, n *graph.Node) (Source, error) {
	v, ok := n.Property(pin)
	if !ok {
		return Default(), nil
	}
	lit, err := Canonicalize(v)
	if err != nil {
		if errors.Is(err, ErrNonFiniteConstant) {
			return Source{}, &ConstantError{NodeID: id, Pin: pin, Value: firstNonFinite(v)}
		}
		return Source{}, fmt.Errorf("node %s input %s: %w", id, pin, err)
	}
	return Constant(lit), nil
}

func firstNonFinite(v graph.Value) float64 {
	if v.Kind == graph.ValueNumber {
		return v.Number
	}
	for _, c := range v.Components() {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return c
		}
	}
	return 0
}

// nameVariables is phase 2. Base names are computed per node; the merge
// walks ids in ascending order, the first holder of a base name keeps
// it and later holders get "_2", "_3", ... appended.
func (r *Resolver) nameVariables(ctx context.Context, ids []string, exec pool.Executor) error {
	base := make([]string, len(ids))
	err := exec.Map(ctx, len(ids), func(i int) error {
		base[i] = VariableName(ids[i])
		return nil
	})
	if err != nil {
		return fmt.Errorf("name variables: %w", err)
	}

	r.variables = make(map[string]string, len(ids))
	used := make(map[string]bool, len(ids))
	for i, id := range ids {
		name := base[i]
		for k := 2; used[name]; k++ {
			name = base[i] + "_" + strconv.Itoa(k)
		}
		used[name] = true
		r.variables[id] = name
	}
	return nil
}

// InputSource returns the provenance of a node input. The second result
// is false for pins that are neither declared nor wired.
func (r *Resolver) InputSource(node, pin string) (Source, bool) {
	s, ok := r.sources[pinKey{node: node, pin: pin}]
	return s, ok
}

// Inputs returns the provenance of every declared input of a node in
// declaration order.
func (r *Resolver) Inputs(node string) []PinSource {
	pins := r.pinOrder[node]
	out := make([]PinSource, 0, len(pins))
	for _, pin := range pins {
		out = append(out, PinSource{Pin: pin, Source: r.sources[pinKey{node: node, pin: pin}]})
	}
	return out
}

// ResultVariable returns the identifier holding a node's result.
func (r *Resolver) ResultVariable(node string) (string, bool) {
	v, ok := r.variables[node]
	return v, ok
}

// EvaluationOrder returns a copy of the pure evaluation order.
func (r *Resolver) EvaluationOrder() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
