// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compiler turns a graph into a Go program.
//
// A Session is built once per graph: it resolves data flow, builds the
// execution router and then walks the graph through a Generator. The
// default GoGenerator inlines every node type's source fragment with the
// node's arguments and splices the code of downstream nodes into the
// fragment's exec_output placeholders.
package compiler

import (
	"context"
	"fmt"
	"go/format"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/graphc/pkg/validation"
	"github.com/AleutianAI/graphc/services/graphc/cache"
	"github.com/AleutianAI/graphc/services/graphc/dataflow"
	"github.com/AleutianAI/graphc/services/graphc/execflow"
	"github.com/AleutianAI/graphc/services/graphc/graph"
	"github.com/AleutianAI/graphc/services/graphc/pool"
	"github.com/AleutianAI/graphc/services/graphc/registry"
)

// Options configures a Session.
type Options struct {
	// Parallel builds the resolver with dataflow.BuildParallel.
	Parallel bool

	// Executor runs the parallel build. Nil means pool.Default().
	Executor pool.Executor

	// Cache memoizes fragment inlining. Nil means cache.NoCache.
	Cache cache.FragmentCache

	// Package is the generated package name. Default "main".
	Package string

	// FuncName is the generated function name. Default "main".
	FuncName string

	// Generator overrides the code generation strategy. Nil means a
	// GoGenerator built from Package and FuncName.
	Generator Generator

	// Logger receives compilation logs. Nil means slog.Default().
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Cache == nil {
		o.Cache = cache.NoCache{}
	}
	if o.Package == "" {
		o.Package = "main"
	}
	if o.FuncName == "" {
		o.FuncName = "main"
	}
	if o.Generator == nil {
		o.Generator = &GoGenerator{Package: o.Package, FuncName: o.FuncName}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func (o Options) validate() error {
	if err := validation.ValidatePackageName(o.Package); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if err := validation.ValidateIdentifier(o.FuncName); err != nil {
		return fmt.Errorf("%w: function name: %w", ErrInvalidOptions, err)
	}
	return nil
}

// Session holds everything derived from one graph snapshot.
//
// Thread Safety: Compile may be called concurrently; the derived
// structures are read-only.
type Session struct {
	ID       string
	Graph    *graph.Graph
	Registry registry.Registry
	Resolver *dataflow.Resolver
	Router   *execflow.Router

	opts     Options
	entries  map[string]*registry.Entry
	consumed map[string]bool
}

// Stats summarizes one compilation.
type Stats struct {
	Nodes       int           `json:"nodes"`
	PureNodes   int           `json:"pure_nodes"`
	Events      int           `json:"events"`
	Fragments   int           `json:"fragments"`
	LoopMarkers int           `json:"loop_markers"`
	Duration    time.Duration `json:"duration_ns"`
}

// Result is the output of Compile.
type Result struct {
	SessionID string `json:"session_id"`
	Graph     string `json:"graph"`

	// Source is the formatted Go program.
	Source string `json:"source"`

	// Fragments maps node ids to the first code generated for them.
	Fragments map[string]string `json:"fragments"`

	Imports []string `json:"imports"`
	Stats   Stats    `json:"stats"`
}

// NewSession prepares a graph for compilation.
//
// Description:
//
//	Looks up every node's type, then builds the data flow resolver
//	(sequentially or on the configured executor) and the execution router.
//
// Inputs:
//
//	ctx - Cancellation and tracing.
//	g - Graph snapshot. Must not be modified while the session is in use.
//	reg - Node type registry.
//	opts - Session options.
//
// Outputs:
//
//	*Session - Ready to Compile.
//	error - ErrInvalidOptions, *NodeError wrapping ErrUnknownNodeType, or a
//	        dataflow error.
func NewSession(ctx context.Context, g *graph.Graph, reg registry.Registry, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	s := &Session{
		ID:       uuid.New().String()[:8],
		Graph:    g,
		Registry: reg,
		opts:     opts,
		entries:  make(map[string]*registry.Entry, len(g.Nodes)),
		consumed: make(map[string]bool),
	}

	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		e, ok := reg.Lookup(n.Type)
		if !ok {
			return nil, &NodeError{NodeID: id, Err: fmt.Errorf("%w %q", ErrUnknownNodeType, n.Type)}
		}
		s.entries[id] = e
	}
	for _, c := range g.Connections {
		if c.Kind == graph.Data {
			s.consumed[c.SourceNode] = true
		}
	}

	var err error
	if opts.Parallel {
		s.Resolver, err = dataflow.BuildParallel(ctx, g, reg, opts.Executor)
	} else {
		s.Resolver, err = dataflow.Build(ctx, g, reg)
	}
	if err != nil {
		return nil, err
	}
	s.Router = execflow.Build(g)

	opts.Logger.Debug("compile session created",
		slog.String("session_id", s.ID),
		slog.String("graph", g.Name),
		slog.Bool("parallel", opts.Parallel),
		slog.Int("routes", s.Router.Entries()),
	)
	return s, nil
}

// Entry returns the registry entry of a node.
func (s *Session) Entry(nodeID string) (*registry.Entry, bool) {
	e, ok := s.entries[nodeID]
	return e, ok
}

// Events returns the ids of event nodes in ascending order.
func (s *Session) Events() []string {
	var out []string
	for _, id := range s.Graph.NodeIDs() {
		if s.entries[id].Kind == registry.KindEvent {
			out = append(out, id)
		}
	}
	return out
}

// Consumed reports whether any data wire reads the node's result.
func (s *Session) Consumed(nodeID string) bool {
	return s.consumed[nodeID]
}

// Compile generates and formats the program.
func (s *Session) Compile(ctx context.Context) (*Result, error) {
	start := time.Now()
	ctx, span := startCompileSpan(ctx, s)
	defer span.End()

	res, err := s.compile(ctx)
	if res != nil {
		res.Stats.Duration = time.Since(start)
	}
	setCompileSpanResult(span, res, err)
	recordCompileMetrics(ctx, time.Since(start), err)
	if err != nil {
		s.opts.Logger.Warn("compile failed",
			slog.String("session_id", s.ID),
			slog.String("graph", s.Graph.Name),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.opts.Logger.Info("graph compiled",
		slog.String("session_id", s.ID),
		slog.String("graph", s.Graph.Name),
		slog.Int("fragments", res.Stats.Fragments),
		slog.Int("pure_nodes", res.Stats.PureNodes),
		slog.Duration("duration", res.Stats.Duration),
	)
	return res, nil
}

func (s *Session) compile(ctx context.Context) (*Result, error) {
	c := newContext(s)
	raw, err := s.opts.Generator.Program(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := format.Source([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	imports := make([]string, 0, len(c.imports))
	for imp := range c.imports {
		imports = append(imports, imp)
	}
	sort.Strings(imports)

	c.stats.Nodes = len(s.Graph.Nodes)
	return &Result{
		SessionID: s.ID,
		Graph:     s.Graph.Name,
		Source:    string(src),
		Fragments: c.fragments,
		Imports:   imports,
		Stats:     c.stats,
	}, nil
}

// Compile is NewSession followed by Session.Compile.
func Compile(ctx context.Context, g *graph.Graph, reg registry.Registry, opts Options) (*Result, error) {
	s, err := NewSession(ctx, g, reg, opts)
	if err != nil {
		return nil, err
	}
	return s.Compile(ctx)
}
