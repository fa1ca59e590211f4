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
	"sort"
	"strconv"
	"strings"

	"github.com/AleutianAI/graphc/services/graphc/graph"
	"github.com/AleutianAI/graphc/services/graphc/registry"
)

// Generator is a code generation strategy.
//
// The node methods return the code for one node. Executable nodes
// (function, control flow, event) include the code of the nodes they
// route to, obtained through Context.Continuation. Program assembles
// the whole output and is the only method Session calls directly.
type Generator interface {
	PureNode(ctx context.Context, c *Context, n *graph.Node, e *registry.Entry) (string, error)
	FunctionNode(ctx context.Context, c *Context, n *graph.Node, e *registry.Entry) (string, error)
	ControlFlowNode(ctx context.Context, c *Context, n *graph.Node, e *registry.Entry) (string, error)
	EventNode(ctx context.Context, c *Context, n *graph.Node, e *registry.Entry) (string, error)
	Program(ctx context.Context, c *Context) (string, error)
}

// GoGenerator emits one Go function that runs every event chain in
// ascending event id order.
type GoGenerator struct {
	Package  string
	FuncName string
}

var _ Generator = (*GoGenerator)(nil)

// PureNode declares the node's result as an expression of its inputs.
func (g *GoGenerator) PureNode(ctx context.Context, c *Context, n *graph.Node, e *registry.Entry) (string, error) {
	body, err := c.Inline(ctx, n, e, nil, c.Arguments(n, e))
	if err != nil {
		return "", err
	}
	expr := valueExpr(body, e.ReturnType)
	c.recordFragment(n.ID, expr)
	return g.declare(c, n.ID, expr), nil
}

// FunctionNode inlines a side-effecting node. A fragment that declares
// names gets its own block so repeated node types do not collide.
func (g *GoGenerator) FunctionNode(ctx context.Context, c *Context, n *graph.Node, e *registry.Entry) (string, error) {
	return g.executable(ctx, c, n, e, true)
}

// ControlFlowNode inlines a branching node with one continuation per
// placeholder.
func (g *GoGenerator) ControlFlowNode(ctx context.Context, c *Context, n *graph.Node, e *registry.Entry) (string, error) {
	return g.executable(ctx, c, n, e, false)
}

// EventNode inlines an entry point.
func (g *GoGenerator) EventNode(ctx context.Context, c *Context, n *graph.Node, e *registry.Entry) (string, error) {
	return g.executable(ctx, c, n, e, false)
}

// executable generates a node reached through exec wires.
//
// Every placeholder label in the fragment receives the continuation of
// the exec output of the same name, or "" when nothing is wired, which
// deletes the placeholder. Wired exec outputs without a placeholder run
// after the fragment in the same scope.
func (g *GoGenerator) executable(ctx context.Context, c *Context, n *graph.Node, e *registry.Entry, block bool) (string, error) {
	labels, err := c.Labels(n, e)
	if err != nil {
		return "", err
	}
	branches := make(map[string]string, len(labels))
	for _, label := range labels {
		if _, done := branches[label]; done {
			continue
		}
		cont, err := c.Continuation(ctx, n.ID, label, true)
		if err != nil {
			return "", err
		}
		branches[label] = cont
	}

	body, err := c.Inline(ctx, n, e, branches, c.Arguments(n, e))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	switch {
	case e.ProducesValue():
		expr := valueExpr(body, e.ReturnType)
		c.recordFragment(n.ID, expr)
		b.WriteString(g.declare(c, n.ID, expr))
		c.MarkAvailable(n.ID)
		ready, err := c.EmitReadyPure(ctx)
		if err != nil {
			return "", err
		}
		b.WriteString(ready)
	case body == "":
		c.recordFragment(n.ID, body)
	case block && declaresNames(body):
		c.recordFragment(n.ID, body)
		fmt.Fprintf(&b, "%s{\n%s\n%s}\n", c.Indent(), body, c.Indent())
	default:
		c.recordFragment(n.ID, body)
		fmt.Fprintf(&b, "%s%s\n", c.Indent(), body)
	}

	for _, pin := range c.Session.Router.OutputPins(n.ID) {
		if _, spliced := branches[pin]; spliced {
			continue
		}
		cont, err := c.Continuation(ctx, n.ID, pin, false)
		if err != nil {
			return "", err
		}
		b.WriteString(cont)
	}
	return b.String(), nil
}

// declare assigns expr to the node's result variable and discards it
// when no data wire reads it.
func (g *GoGenerator) declare(c *Context, nodeID, expr string) string {
	v, _ := c.Session.Resolver.ResultVariable(nodeID)
	out := fmt.Sprintf("%s%s := %s\n", c.Indent(), v, expr)
	if !c.Session.Consumed(nodeID) {
		out += fmt.Sprintf("%s_ = %s\n", c.Indent(), v)
	}
	return out
}

// Program emits the file: header, imports and one function holding the
// pure prelude followed by each event chain.
func (g *GoGenerator) Program(ctx context.Context, c *Context) (string, error) {
	c.PushIndent()
	prelude, err := c.EmitReadyPure(ctx)
	if err != nil {
		return "", err
	}

	var chains strings.Builder
	events := c.Session.Events()
	for _, id := range events {
		code, err := c.Walk(ctx, id)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&chains, "%s// event: %s\n%s", c.Indent(), id, code)
	}
	c.PopIndent()
	c.stats.Events = len(events)

	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated by graphc from graph %q. DO NOT EDIT.\n\n", c.Session.Graph.Name)
	fmt.Fprintf(&b, "package %s\n\n", g.Package)
	if imports := sortedImports(c.imports); len(imports) > 0 {
		b.WriteString("import (\n")
		for _, imp := range imports {
			fmt.Fprintf(&b, "\t%s\n", imp)
		}
		b.WriteString(")\n\n")
	}
	fmt.Fprintf(&b, "func %s() {\n%s%s}\n", g.FuncName, prelude, chains.String())
	return b.String(), nil
}

// valueExpr turns an inlined body into an expression: the operand of a
// lone one-line return, or an immediately invoked function literal.
func valueExpr(body, returnType string) string {
	body = strings.TrimSpace(body)
	if !strings.Contains(body, "\n") && strings.HasPrefix(body, "return ") {
		return strings.TrimPrefix(body, "return ")
	}
	return fmt.Sprintf("func() %s {\n%s\n}()", returnType, body)
}

func declaresNames(body string) bool {
	return strings.Contains(body, ":=") || strings.Contains(body, "var ") || strings.Contains(body, "const ")
}

// sortedImports returns the quoted import specs in path order. Library
// validation guarantees the paths are bare.
func sortedImports(set map[string]bool) []string {
	paths := make([]string, 0, len(set))
	for imp := range set {
		paths = append(paths, imp)
	}
	sort.Strings(paths)
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = strconv.Quote(p)
	}
	return out
}
