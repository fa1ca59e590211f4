// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package inline

import (
	"errors"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"reflect"
	"strconv"
)

// Marker is the name of the placeholder call: exec_output("Label").
const Marker = "exec_output"

// fragmentPrefix is prepended so a bare function declaration parses as
// a file. It spans fragmentPrefixLines lines.
const (
	fragmentPrefix      = "package fragment\n\n"
	fragmentPrefixLines = 2
)

const parseMode = parser.SkipObjectResolution

// parseFunc parses a fragment holding exactly one function declaration
// with a body.
func parseFunc(fset *token.FileSet, source string) (*ast.FuncDecl, error) {
	file, err := parser.ParseFile(fset, "fragment.go", fragmentPrefix+source, parseMode)
	if err != nil {
		return nil, newSourceParseError(err)
	}

	if len(file.Decls) != 1 {
		return nil, &ParseError{
			Kind:    ErrParseFailed,
			Message: "expected exactly one function declaration, found " + strconv.Itoa(len(file.Decls)) + " declarations",
		}
	}
	fn, ok := file.Decls[0].(*ast.FuncDecl)
	if !ok || fn.Body == nil {
		return nil, &ParseError{Kind: ErrParseFailed, Message: "declaration is not a function with a body"}
	}
	return fn, nil
}

func newSourceParseError(err error) *ParseError {
	pe := &ParseError{Kind: ErrParseFailed, Message: err.Error(), Cause: err}

	var list scanner.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		first := list[0]
		pe.Message = first.Msg
		pe.Line = first.Pos.Line - fragmentPrefixLines
		pe.Column = first.Pos.Column
		if pe.Line < 1 {
			pe.Line, pe.Column = 0, 0
		}
	}
	return pe
}

// placeholderLabel returns the label of an exec_output("Label") call.
// Any other shape, including a non-literal argument, is not a placeholder.
func placeholderLabel(n ast.Node) (string, bool) {
	call, ok := n.(*ast.CallExpr)
	if !ok || len(call.Args) != 1 || call.Ellipsis.IsValid() {
		return "", false
	}
	ident, ok := call.Fun.(*ast.Ident)
	if !ok || ident.Name != Marker {
		return "", false
	}
	lit, ok := call.Args[0].(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", false
	}
	label, err := strconv.Unquote(lit.Value)
	if err != nil {
		return "", false
	}
	return label, true
}

// parseExpr parses code as a single expression.
func parseExpr(fset *token.FileSet, code string) (ast.Expr, error) {
	return parser.ParseExprFrom(fset, "replacement.go", code, parseMode)
}

// parseStmts parses code as the statement list of a function body.
func parseStmts(fset *token.FileSet, code string) ([]ast.Stmt, error) {
	src := "package replacement\n\nfunc _() {\n" + code + "\n}\n"
	file, err := parser.ParseFile(fset, "replacement.go", src, parseMode)
	if err != nil {
		return nil, err
	}
	if len(file.Decls) != 1 {
		return nil, errors.New("replacement closes the enclosing block")
	}
	fn, ok := file.Decls[0].(*ast.FuncDecl)
	if !ok || fn.Body == nil {
		return nil, errors.New("replacement closes the enclosing block")
	}
	return fn.Body.List, nil
}

var posType = reflect.TypeOf(token.NoPos)

// movePositions places every valid token.Pos under n at pos, the
// position of the node being replaced, so printed line breaks follow
// the fragment. Invalid positions stay invalid: some select syntax,
// such as the ellipsis of a call.
func movePositions(n ast.Node, pos token.Pos) {
	ast.Inspect(n, func(node ast.Node) bool {
		if node == nil {
			return false
		}
		v := reflect.ValueOf(node)
		if v.Kind() != reflect.Pointer || v.IsNil() {
			return true
		}
		v = v.Elem()
		if v.Kind() != reflect.Struct {
			return true
		}
		for i := 0; i < v.NumField(); i++ {
			f := v.Field(i)
			if f.Type() == posType && f.CanSet() && token.Pos(f.Int()).IsValid() {
				f.SetInt(int64(pos))
			}
		}
		return true
	})
}

// replacement is parsed branch code: either an expression or a
// statement list.
type replacement struct {
	expr  ast.Expr
	stmts []ast.Stmt
	pos   token.Pos
}

// parseReplacement tries an expression first and falls back to a
// statement list. The parsed nodes are placed at pos.
func parseReplacement(fset *token.FileSet, label, code string, pos token.Pos) (replacement, error) {
	if expr, err := parseExpr(fset, code); err == nil {
		movePositions(expr, pos)
		return replacement{expr: expr, pos: pos}, nil
	}
	stmts, err := parseStmts(fset, code)
	if err != nil {
		return replacement{}, &ReplacementError{Label: label, Code: code, Cause: err}
	}
	for _, stmt := range stmts {
		movePositions(stmt, pos)
	}
	return replacement{stmts: stmts, pos: pos}, nil
}

// asStmts returns the replacement in statement form.
func (r replacement) asStmts() []ast.Stmt {
	if r.expr != nil {
		return []ast.Stmt{&ast.ExprStmt{X: r.expr}}
	}
	return r.stmts
}

// asExpr returns the replacement in expression form. A statement list
// becomes an immediately invoked function literal.
func (r replacement) asExpr() ast.Expr {
	if r.expr != nil {
		return r.expr
	}
	return invoke(r.stmts, r.pos)
}

// invoke wraps statements as func() { ... }() placed at pos.
func invoke(stmts []ast.Stmt, pos token.Pos) *ast.CallExpr {
	return &ast.CallExpr{
		Fun: &ast.FuncLit{
			Type: &ast.FuncType{Func: pos, Params: &ast.FieldList{Opening: pos, Closing: pos}},
			Body: &ast.BlockStmt{Lbrace: pos, List: stmts, Rbrace: pos},
		},
		Lparen: pos,
		Rparen: pos,
	}
}
