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

import (
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/graphc/services/graphc/dataflow"
	"github.com/AleutianAI/graphc/services/graphc/graph"
	"github.com/AleutianAI/graphc/services/graphc/inline"
	"github.com/AleutianAI/graphc/services/graphc/registry"
)

// Context is the bookkeeping of one Compile call.
//
// It tracks the nodes on the execution path being generated, so that
// exec wiring that loops back ends in a marker instead of recursing, and
// the node results declared in the current scope, so that pure nodes fed
// by side-effecting nodes are emitted once their inputs exist.
//
// Thread Safety: Not safe for concurrent use. One Context per Compile.
type Context struct {
	Session *Session

	path      map[string]bool
	indent    int
	available map[string]bool
	imports   map[string]bool
	fragments map[string]string
	stats     Stats
}

func newContext(s *Session) *Context {
	return &Context{
		Session:   s,
		path:      make(map[string]bool),
		available: make(map[string]bool),
		imports:   make(map[string]bool),
		fragments: make(map[string]string),
	}
}

// Visited reports whether a node is on the current execution path.
func (c *Context) Visited(nodeID string) bool {
	return c.path[nodeID]
}

// Indent returns the current indentation.
func (c *Context) Indent() string {
	return strings.Repeat("\t", c.indent)
}

func (c *Context) PushIndent() { c.indent++ }

func (c *Context) PopIndent() {
	if c.indent > 0 {
		c.indent--
	}
}

// Available reports whether a node's result is declared in scope.
func (c *Context) Available(nodeID string) bool {
	return c.available[nodeID]
}

// MarkAvailable records that a node's result is declared in scope.
func (c *Context) MarkAvailable(nodeID string) {
	c.available[nodeID] = true
}

// Walk generates a node reached through execution wires, together with
// everything it routes to.
func (c *Context) Walk(ctx context.Context, nodeID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.path[nodeID] {
		c.stats.LoopMarkers++
		return fmt.Sprintf("%s// graphc: execution loops back to %s\n", c.Indent(), nodeID), nil
	}

	n, ok := c.Session.Graph.Node(nodeID)
	if !ok {
		return "", &NodeError{NodeID: nodeID, Err: graph.ErrNodeNotFound}
	}
	e, ok := c.Session.Entry(nodeID)
	if !ok {
		return "", &NodeError{NodeID: nodeID, Err: fmt.Errorf("%w %q", ErrUnknownNodeType, n.Type)}
	}

	c.path[nodeID] = true
	defer delete(c.path, nodeID)

	gen := c.Session.opts.Generator
	switch e.Kind {
	case registry.KindFunction:
		return gen.FunctionNode(ctx, c, n, e)
	case registry.KindControlFlow:
		return gen.ControlFlowNode(ctx, c, n, e)
	case registry.KindEvent:
		return gen.EventNode(ctx, c, n, e)
	default:
		// Pure nodes are evaluated from data flow, never from exec wires.
		return "", nil
	}
}

// Continuation generates the successors of an exec output in wire order.
//
// A scoped continuation is spliced into a nested block, so results it
// declares are forgotten afterwards. An unscoped one follows the node in
// the same block.
func (c *Context) Continuation(ctx context.Context, nodeID, pin string, scoped bool) (string, error) {
	var saved map[string]bool
	if scoped {
		saved = make(map[string]bool, len(c.available))
		for k, v := range c.available {
			saved[k] = v
		}
		c.PushIndent()
		defer func() {
			c.available = saved
			c.PopIndent()
		}()
	}

	var b strings.Builder
	for _, next := range c.Session.Router.Successors(nodeID, pin) {
		code, err := c.Walk(ctx, next)
		if err != nil {
			return "", err
		}
		b.WriteString(code)
	}
	return b.String(), nil
}

// Arguments maps each parameter of e to the Go expression feeding it on
// node n: the source node's result variable, the constant or the zero
// value of the parameter type.
func (c *Context) Arguments(n *graph.Node, e *registry.Entry) map[string]string {
	args := make(map[string]string, len(e.Params))
	for _, p := range e.Params {
		src, ok := c.Session.Resolver.InputSource(n.ID, p.Name)
		if !ok {
			args[p.Name] = DefaultValue(p.Type)
			continue
		}
		switch src.Kind {
		case dataflow.SourceConnected:
			v, ok := c.Session.Resolver.ResultVariable(src.Node)
			if !ok {
				v = DefaultValue(p.Type)
			}
			args[p.Name] = v
		case dataflow.SourceConstant:
			args[p.Name] = compositeLiteral(src.Literal, p.Type)
		default:
			args[p.Name] = DefaultValue(p.Type)
		}
	}
	return args
}

// Inline rewrites a node's fragment through the session cache and
// records its imports.
func (c *Context) Inline(ctx context.Context, n *graph.Node, e *registry.Entry, branches, args map[string]string) (string, error) {
	body, err := c.Session.opts.Cache.GetOrInline(ctx, e.Source, branches, args)
	if err != nil {
		return "", &NodeError{NodeID: n.ID, Err: err}
	}
	c.stats.Fragments++
	for _, imp := range e.Imports {
		c.imports[imp] = true
	}
	return body, nil
}

// Labels returns the placeholder labels of a node's fragment.
func (c *Context) Labels(n *graph.Node, e *registry.Entry) ([]string, error) {
	labels, err := inline.ExtractLabels(e.Source)
	if err != nil {
		return nil, &NodeError{NodeID: n.ID, Err: err}
	}
	return labels, nil
}

func (c *Context) recordFragment(nodeID, code string) {
	if _, ok := c.fragments[nodeID]; !ok {
		c.fragments[nodeID] = code
	}
}

// pureReady reports whether every connected input of a node is declared.
func (c *Context) pureReady(nodeID string) bool {
	for _, in := range c.Session.Resolver.Inputs(nodeID) {
		if in.Source.Kind == dataflow.SourceConnected && !c.available[in.Source.Node] {
			return false
		}
	}
	return true
}

// EmitReadyPure generates, in evaluation order, every pure node whose
// inputs are now in scope and which is not yet declared.
func (c *Context) EmitReadyPure(ctx context.Context) (string, error) {
	var b strings.Builder
	for _, id := range c.Session.Resolver.EvaluationOrder() {
		if c.available[id] || !c.pureReady(id) {
			continue
		}
		n, _ := c.Session.Graph.Node(id)
		e, _ := c.Session.Entry(id)
		code, err := c.Session.opts.Generator.PureNode(ctx, c, n, e)
		if err != nil {
			return "", err
		}
		c.available[id] = true
		c.stats.PureNodes++
		b.WriteString(code)
	}
	return b.String(), nil
}
