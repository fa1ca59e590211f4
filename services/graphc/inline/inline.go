// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package inline rewrites node source fragments for inlining.
//
// A fragment is a Go function declaration. Inside its body, each call
// exec_output("Label") marks where the continuation for the exec branch
// "Label" goes. Inline splices caller code into those placeholders,
// substitutes parameter identifiers with argument expressions and
// returns the rewritten body text without the signature.
//
// Example:
//
//	src := `func branch(condition bool) {
//		if condition {
//			exec_output("True")
//		} else {
//			exec_output("False")
//		}
//	}`
//	body, err := inline.Inline(ctx, src,
//	    map[string]string{"True": `fmt.Println("yes")`, "False": `fmt.Println("no")`},
//	    map[string]string{"condition": "x > 5"},
//	)
//	// body:
//	// if x > 5 {
//	// 	fmt.Println("yes")
//	// } else {
//	// 	fmt.Println("no")
//	// }
//
// The rewrite is structural: the fragment is parsed with go/parser,
// nodes are replaced during a pre-order walk (astutil.Apply, source
// order) and the result is printed with go/format. Comments inside
// fragments are not preserved.
//
// Thread Safety: All functions are safe for concurrent use; each call
// works on its own syntax tree.
package inline

import (
	"bytes"
	"context"
	"go/ast"
	"go/format"
	"go/scanner"
	"go/token"
	"strings"
	"time"

	"golang.org/x/tools/go/ast/astutil"
)

// Stats counts the rewrites performed by one Inline call.
type Stats struct {
	Placeholders  int
	Replaced      int
	Substitutions int
}

// Inline splices branch code and parameter expressions into a fragment.
//
// Description:
//
//  1. Parses source as a single function declaration. Failure returns a
//     *ParseError (ErrParseFailed) before anything else happens.
//  2. Replaces every exec_output("Label") whose label has an entry in
//     branches, at every occurrence. In statement position the code is
//     spliced as statements; in expression position a statement list
//     becomes func() { ... }(). Labels without an entry stay as they are.
//     Replacement code is not scanned for further placeholders.
//  3. Replaces bare identifier references named in params with the
//     parsed expression, including var initializers and map or slice
//     literal keys. Selector expressions, declared names, assignment
//     targets, struct literal keys, labels and type positions are left
//     alone.
//  4. Prints the body and returns the text between its braces, trimmed
//     and dedented one level. Raw string contents are kept verbatim.
//
// Inputs:
//
//	ctx - Context for tracing.
//	source - Go function declaration.
//	branches - Exec label to replacement code. May be nil.
//	params - Parameter name to argument expression. May be nil.
//
// Outputs:
//
//	string - The rewritten body.
//	error - *ParseError (ErrParseFailed, ErrBodyExtraction) or
//	        *ReplacementError (ErrReplacementParse, ErrSubstitutionParse).
func Inline(ctx context.Context, source string, branches, params map[string]string) (string, error) {
	body, _, err := InlineStats(ctx, source, branches, params)
	return body, err
}

// InlineStats is Inline that also reports what was rewritten.
func InlineStats(ctx context.Context, source string, branches, params map[string]string) (string, Stats, error) {
	start := time.Now()
	ctx, span := startInlineSpan(ctx, len(source), len(branches), len(params))
	defer span.End()

	body, stats, err := transform(source, branches, params)
	setInlineSpanResult(span, stats, err)
	recordInlineMetrics(ctx, time.Since(start), stats, err)
	return body, stats, err
}

func transform(source string, branches, params map[string]string) (string, Stats, error) {
	var stats Stats

	fset := token.NewFileSet()
	fn, err := parseFunc(fset, source)
	if err != nil {
		return "", stats, err
	}

	if err := replaceBranches(fset, fn.Body, branches, &stats); err != nil {
		return "", stats, err
	}
	if err := substituteParams(fset, fn.Body, params, &stats); err != nil {
		return "", stats, err
	}

	body, err := printBody(fset, fn.Body)
	if err != nil {
		return "", stats, err
	}
	return body, stats, nil
}

// ExtractLabels returns the label of every placeholder in the fragment
// body in pre-order source order, duplicates included.
func ExtractLabels(source string) ([]string, error) {
	fset := token.NewFileSet()
	fn, err := parseFunc(fset, source)
	if err != nil {
		return nil, err
	}

	labels := []string{}
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		if label, ok := placeholderLabel(n); ok {
			labels = append(labels, label)
			return false
		}
		return true
	})
	return labels, nil
}

// replaceBranches rewrites placeholders that have a replacement.
func replaceBranches(fset *token.FileSet, body *ast.BlockStmt, branches map[string]string, stats *Stats) error {
	var firstErr error

	astutil.Apply(body, func(c *astutil.Cursor) bool {
		if firstErr != nil {
			return false
		}

		switch n := c.Node().(type) {
		case *ast.ExprStmt:
			label, ok := placeholderLabel(n.X)
			if !ok {
				return true
			}
			stats.Placeholders++
			code, ok := branches[label]
			if !ok {
				return false
			}
			repl, err := parseReplacement(fset, label, code, n.Pos())
			if err != nil {
				firstErr = err
				return false
			}
			spliceStmts(c, repl.asStmts(), n.Pos())
			stats.Replaced++
			return false

		case *ast.CallExpr:
			label, ok := placeholderLabel(n)
			if !ok {
				return true
			}
			stats.Placeholders++
			code, ok := branches[label]
			if !ok {
				return false
			}
			repl, err := parseReplacement(fset, label, code, n.Pos())
			if err != nil {
				firstErr = err
				return false
			}
			replaceExpr(c, repl.asExpr(), n.Pos())
			stats.Replaced++
			return false
		}
		return true
	}, nil)

	return firstErr
}

// spliceStmts replaces the statement under the cursor with stmts.
func spliceStmts(c *astutil.Cursor, stmts []ast.Stmt, pos token.Pos) {
	if c.Index() < 0 {
		// Single statement slot, such as a labeled statement body.
		if len(stmts) == 1 {
			c.Replace(stmts[0])
		} else {
			c.Replace(&ast.BlockStmt{Lbrace: pos, List: stmts, Rbrace: pos})
		}
		return
	}

	if len(stmts) == 0 {
		c.Delete()
		return
	}
	for i := len(stmts) - 1; i >= 1; i-- {
		c.InsertAfter(stmts[i])
	}
	c.Replace(stmts[0])
}

// replaceExpr replaces the expression under the cursor, respecting
// slots that only accept a call and adding parentheses where the
// surrounding operator would bind tighter.
func replaceExpr(c *astutil.Cursor, expr ast.Expr, pos token.Pos) {
	switch c.Parent().(type) {
	case *ast.GoStmt, *ast.DeferStmt:
		if _, ok := expr.(*ast.CallExpr); !ok {
			expr = invoke([]ast.Stmt{&ast.ExprStmt{X: expr}}, pos)
		}
		c.Replace(expr)
		return
	}
	c.Replace(parenthesize(c, expr, pos))
}

// parenthesize wraps non-primary expressions placed under an operator.
func parenthesize(c *astutil.Cursor, expr ast.Expr, pos token.Pos) ast.Expr {
	switch expr.(type) {
	case *ast.Ident, *ast.BasicLit, *ast.CallExpr, *ast.ParenExpr, *ast.SelectorExpr,
		*ast.IndexExpr, *ast.IndexListExpr, *ast.CompositeLit, *ast.SliceExpr, *ast.TypeAssertExpr:
		return expr
	}

	paren := &ast.ParenExpr{Lparen: pos, X: expr, Rparen: pos}
	switch c.Parent().(type) {
	case *ast.BinaryExpr, *ast.UnaryExpr, *ast.StarExpr, *ast.SelectorExpr:
		return paren
	case *ast.TypeAssertExpr, *ast.SliceExpr, *ast.IndexExpr:
		if c.Name() == "X" {
			return paren
		}
	case *ast.CallExpr:
		if c.Name() == "Fun" {
			return paren
		}
	}
	return expr
}

// substituteParams replaces bare identifier references. Each occurrence
// gets its own parse of the argument so no node is shared.
func substituteParams(fset *token.FileSet, body *ast.BlockStmt, params map[string]string, stats *Stats) error {
	if len(params) == 0 {
		return nil
	}

	var firstErr error
	keys := valueKeys(body)

	astutil.Apply(body, func(c *astutil.Cursor) bool {
		if firstErr != nil {
			return false
		}

		switch n := c.Node().(type) {
		case *ast.FuncType, *ast.ArrayType, *ast.MapType, *ast.ChanType,
			*ast.StructType, *ast.InterfaceType, *ast.Ellipsis:
			return false
		case *ast.Ident:
			code, ok := params[n.Name]
			if !ok || !isValueReference(c, keys) {
				return false
			}
			expr, err := parseExpr(fset, code)
			if err != nil {
				firstErr = &ReplacementError{Param: n.Name, Code: code, Cause: err}
				return false
			}
			movePositions(expr, n.Pos())
			c.Replace(parenthesize(c, expr, n.Pos()))
			stats.Substitutions++
			return false
		}
		return true
	}, nil)

	return firstErr
}

// isValueReference reports whether the identifier under the cursor is
// read as a value, as opposed to being declared, assigned, used as a
// label, a struct field key or a type.
func isValueReference(c *astutil.Cursor, keys map[*ast.KeyValueExpr]bool) bool {
	switch p := c.Parent().(type) {
	case *ast.SelectorExpr:
		// Neither the base nor the field of a selector is a bare reference.
		return false
	case *ast.AssignStmt:
		return c.Name() != "Lhs"
	case *ast.IncDecStmt:
		return false
	case *ast.RangeStmt:
		return c.Name() == "X"
	case *ast.ValueSpec:
		return c.Name() == "Values"
	case *ast.Field, *ast.TypeSpec, *ast.LabeledStmt, *ast.BranchStmt:
		return false
	case *ast.KeyValueExpr:
		return c.Name() != "Key" || keys[p]
	case *ast.CompositeLit:
		return c.Name() != "Type"
	case *ast.TypeAssertExpr:
		return c.Name() != "Type"
	case *ast.CallExpr:
		// new(T) and make(T, ...) take a type as the first argument.
		if fun, ok := p.Fun.(*ast.Ident); ok && (fun.Name == "new" || fun.Name == "make") {
			return c.Name() != "Args" || c.Index() != 0
		}
	}
	return true
}

// valueKeys returns the elements of map, slice and array literals whose
// keys are expressions. Keys of struct literals, and of literals whose
// type is a name, are field names and are not included. Elided inner
// literals take the element type of the enclosing literal.
func valueKeys(body *ast.BlockStmt) map[*ast.KeyValueExpr]bool {
	keys := make(map[*ast.KeyValueExpr]bool)

	var visit func(lit *ast.CompositeLit, typ ast.Expr)
	visit = func(lit *ast.CompositeLit, typ ast.Expr) {
		if star, ok := typ.(*ast.StarExpr); ok {
			typ = star.X
		}
		var keyType, elemType ast.Expr
		switch t := typ.(type) {
		case *ast.MapType:
			keyType, elemType = t.Key, t.Value
		case *ast.ArrayType:
			elemType = t.Elt
		default:
			return
		}
		for _, elt := range lit.Elts {
			if kv, ok := elt.(*ast.KeyValueExpr); ok {
				keys[kv] = true
				if inner, ok := kv.Key.(*ast.CompositeLit); ok && inner.Type == nil && keyType != nil {
					visit(inner, keyType)
				}
				elt = kv.Value
			}
			if inner, ok := elt.(*ast.CompositeLit); ok && inner.Type == nil {
				visit(inner, elemType)
			}
		}
	}

	ast.Inspect(body, func(n ast.Node) bool {
		if lit, ok := n.(*ast.CompositeLit); ok && lit.Type != nil {
			visit(lit, lit.Type)
		}
		return true
	})
	return keys
}

// printBody prints a function body and strips the braces.
func printBody(fset *token.FileSet, body *ast.BlockStmt) (string, error) {
	var buf bytes.Buffer
	if err := format.Node(&buf, fset, body); err != nil {
		return "", &ParseError{Kind: ErrBodyExtraction, Message: "print body", Cause: err}
	}
	return extractBody(buf.String())
}

// extractBody returns the text between the first '{' and the last '}',
// trimmed and dedented by one tab. Lines inside multi-line raw string
// literals are not dedented.
func extractBody(code string) (string, error) {
	start := strings.IndexByte(code, '{')
	end := strings.LastIndexByte(code, '}')
	if start < 0 || end < 0 || end < start {
		return "", &ParseError{Kind: ErrBodyExtraction, Message: "no enclosing braces in printed function"}
	}

	inner := strings.Trim(code[start+1:end], "\n")
	verbatim := rawStringLines(inner)
	lines := strings.Split(inner, "\n")
	for i, line := range lines {
		if verbatim[i] {
			continue
		}
		lines[i] = strings.TrimPrefix(line, "\t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// rawStringLines returns the zero-based indexes of the lines that
// continue a raw string literal opened on an earlier line.
func rawStringLines(code string) map[int]bool {
	fset := token.NewFileSet()
	file := fset.AddFile("body.go", -1, len(code))

	var s scanner.Scanner
	s.Init(file, []byte(code), nil, 0)

	lines := make(map[int]bool)
	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		if tok != token.STRING || !strings.HasPrefix(lit, "`") {
			continue
		}
		first := file.Line(pos) - 1
		for i := 1; i <= strings.Count(lit, "\n"); i++ {
			lines[first+i] = true
		}
	}
	return lines
}
