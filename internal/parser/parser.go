// Package parser implements a recursive-descent parser that turns an ML
// token stream into a typed ast.Program. It performs no semantic analysis:
// the security analyzer and code generator are separate passes over the
// tree this package produces.
package parser

import (
	"fmt"
	"strings"

	"github.com/duns-scotus/mlpy/internal/ast"
	"github.com/duns-scotus/mlpy/internal/lexer"
	"github.com/duns-scotus/mlpy/internal/logging"
)

// Parser holds parsing state over a fixed token slice.
type Parser struct {
	file string
	src  string
	toks []lexer.Token
	pos  int
}

// Parse lexes and parses src, returning a Program or a *SyntaxError.
// Deterministic; performs no I/O.
func Parse(src, file string) (*ast.Program, error) {
	toks, err := lexer.Lex(src, file)
	if err != nil {
		if lexErr, ok := err.(*lexer.Error); ok {
			return nil, &SyntaxError{
				Span:    lexErr.Span,
				Found:   "invalid token",
				Context: sourceLine(src, lexErr.Span.Line),
			}
		}
		return nil, err
	}
	p := &Parser{file: file, src: src, toks: toks}
	prog, err := p.parseProgram()
	if err != nil {
		return nil, err
	}
	logging.ParserDebug("parsed %s: %d top-level statements", file, len(prog.Statements))
	return prog, nil
}

func sourceLine(src string, line int) string {
	lines := strings.Split(src, "\n")
	if line-1 < 0 || line-1 >= len(lines) {
		return ""
	}
	return strings.TrimRight(lines[line-1], "\r")
}

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) peek(n int) lexer.Token {
	idx := p.pos + n
	if idx >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[idx]
}

func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) atEOF() bool { return p.cur().Kind == lexer.EOF }

func (p *Parser) errorHere(expected ...string) error {
	t := p.cur()
	found := t.Text
	if t.Kind == lexer.EOF {
		found = "end of input"
	}
	return &SyntaxError{
		Span:     t.Span,
		Found:    found,
		Expected: expected,
		Context:  sourceLine(p.src, t.Span.Line),
	}
}

// isOp reports whether the current token is an Op with the given text.
func (p *Parser) isOp(text string) bool {
	t := p.cur()
	return t.Kind == lexer.Op && t.Text == text
}

// isKeyword reports whether the current token is the given keyword.
func (p *Parser) isKeyword(kw string) bool {
	t := p.cur()
	return t.Kind == lexer.Keyword && t.Text == kw
}

func (p *Parser) expectOp(text string) (lexer.Token, error) {
	if !p.isOp(text) {
		return lexer.Token{}, p.errorHere(fmt.Sprintf("%q", text))
	}
	return p.advance(), nil
}

func (p *Parser) expectKeyword(kw string) (lexer.Token, error) {
	if !p.isKeyword(kw) {
		return lexer.Token{}, p.errorHere(kw)
	}
	return p.advance(), nil
}

func (p *Parser) expectIdent() (lexer.Token, error) {
	if p.cur().Kind != lexer.Ident {
		return lexer.Token{}, p.errorHere("identifier")
	}
	return p.advance(), nil
}

// ---- Program & statements ----

func (p *Parser) parseProgram() (*ast.Program, error) {
	start := p.cur().Span
	var stmts []ast.Stmt
	for !p.atEOF() {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	end := start
	if len(stmts) > 0 {
		end = stmts[len(stmts)-1].Span()
	}
	return &ast.Program{SpanV: ast.Union(start, end), Statements: stmts}, nil
}

func (p *Parser) parseBlock() ([]ast.Stmt, error) {
	if _, err := p.expectOp("{"); err != nil {
		return nil, err
	}
	var stmts []ast.Stmt
	for !p.isOp("}") {
		if p.atEOF() {
			return nil, p.errorHere("}")
		}
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	if _, err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	t := p.cur()
	if t.Kind == lexer.Keyword {
		switch t.Text {
		case "function":
			return p.parseFunctionDecl()
		case "if":
			return p.parseIf()
		case "while":
			return p.parseWhile()
		case "for":
			return p.parseFor()
		case "return":
			return p.parseReturn()
		case "break":
			p.advance()
			span := t.Span
			if _, err := p.expectOp(";"); err != nil {
				return nil, err
			}
			return &ast.Break{SpanV: span}, nil
		case "continue":
			p.advance()
			span := t.Span
			if _, err := p.expectOp(";"); err != nil {
				return nil, err
			}
			return &ast.Continue{SpanV: span}, nil
		case "throw":
			return p.parseThrow()
		case "try":
			return p.parseTryExcept()
		case "import":
			return p.parseImport()
		case "capability":
			return p.parseCapabilityDecl()
		}
	}
	return p.parseAssignOrExprStmt()
}

func (p *Parser) parseFunctionDecl() (ast.Stmt, error) {
	start := p.cur().Span
	p.advance() // function
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if !ast.IsValidIdentifier(name.Text) {
		return nil, &SyntaxError{Span: name.Span, Found: name.Text, Expected: []string{"valid function name"}}
	}
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FunctionDecl{SpanV: ast.Union(start, p.lastSpan()), Name: name.Text, Params: params, Body: body}, nil
}

func (p *Parser) parseParamList() ([]string, error) {
	if _, err := p.expectOp("("); err != nil {
		return nil, err
	}
	var params []string
	for !p.isOp(")") {
		id, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		params = append(params, id.Text)
		if p.isOp(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *Parser) lastSpan() ast.Span {
	if p.pos == 0 {
		return p.toks[0].Span
	}
	return p.toks[p.pos-1].Span
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	start := p.cur().Span
	p.advance() // if
	if _, err := p.expectOp("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	node := &ast.If{SpanV: start, Cond: cond, Then: then}
	for p.isKeyword("elif") {
		p.advance()
		if _, err := p.expectOp("("); err != nil {
			return nil, err
		}
		econd, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOp(")"); err != nil {
			return nil, err
		}
		ebody, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		node.Elifs = append(node.Elifs, ast.ElseIf{Cond: econd, Body: ebody})
	}
	if p.isKeyword("else") {
		p.advance()
		ebody, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		node.Else = ebody
	}
	node.SpanV = ast.Union(start, p.lastSpan())
	return node, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	start := p.cur().Span
	p.advance()
	if _, err := p.expectOp("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.While{SpanV: ast.Union(start, p.lastSpan()), Cond: cond, Body: body}, nil
}

// parseFor disambiguates `for (v in iter) {...}` from `for (init; cond; step) {...}`.
func (p *Parser) parseFor() (ast.Stmt, error) {
	start := p.cur().Span
	p.advance() // for
	if _, err := p.expectOp("("); err != nil {
		return nil, err
	}

	if p.cur().Kind == lexer.Ident && p.peek(1).Kind == lexer.Keyword && p.peek(1).Text == "in" {
		varName := p.advance()
		p.advance() // in
		iter, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOp(")"); err != nil {
			return nil, err
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &ast.ForIn{SpanV: ast.Union(start, p.lastSpan()), Var: varName.Text, Iter: iter, Body: body}, nil
	}

	var init ast.Stmt
	if !p.isOp(";") {
		var err error
		init, err = p.parseSimpleStmt()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expectOp(";"); err != nil {
		return nil, err
	}
	var cond ast.Expr
	if !p.isOp(";") {
		var err error
		cond, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expectOp(";"); err != nil {
		return nil, err
	}
	var step ast.Stmt
	if !p.isOp(")") {
		var err error
		step, err = p.parseSimpleStmt()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.ForC{SpanV: ast.Union(start, p.lastSpan()), Init: init, Cond: cond, Step: step, Body: body}, nil
}

// parseSimpleStmt parses an assign/expr statement without its trailing
// semicolon, for use inside a ForC header.
func (p *Parser) parseSimpleStmt() (ast.Stmt, error) {
	start := p.cur().Span
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if op, ok := p.assignOpText(); ok {
		p.advance()
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		value = desugarCompoundAssign(op, e, value)
		return &ast.Assign{SpanV: ast.Union(start, p.lastSpan()), Target: e, Value: value}, nil
	}
	return &ast.ExprStmt{SpanV: ast.Union(start, p.lastSpan()), E: e}, nil
}

func (p *Parser) assignOpText() (string, bool) {
	t := p.cur()
	if t.Kind != lexer.Op {
		return "", false
	}
	switch t.Text {
	case "=", "+=", "-=", "*=", "/=":
		return t.Text, true
	}
	return "", false
}

func desugarCompoundAssign(op string, target, value ast.Expr) ast.Expr {
	if op == "=" {
		return value
	}
	binOp := strings.TrimSuffix(op, "=")
	return &ast.BinOp{SpanV: ast.Union(target.Span(), value.Span()), Op: binOp, L: target, R: value}
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	start := p.cur().Span
	p.advance()
	if p.isOp(";") {
		p.advance()
		return &ast.Return{SpanV: start}, nil
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(";"); err != nil {
		return nil, err
	}
	return &ast.Return{SpanV: ast.Union(start, p.lastSpan()), E: e}, nil
}

func (p *Parser) parseThrow() (ast.Stmt, error) {
	start := p.cur().Span
	p.advance()
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(";"); err != nil {
		return nil, err
	}
	return &ast.Throw{SpanV: ast.Union(start, p.lastSpan()), E: e}, nil
}

func (p *Parser) parseTryExcept() (ast.Stmt, error) {
	start := p.cur().Span
	p.advance() // try
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	node := &ast.TryExcept{SpanV: start, Body: body}
	for p.isKeyword("except") {
		p.advance()
		name := ""
		if p.cur().Kind == lexer.Ident {
			name = p.advance().Text
		}
		hbody, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		node.Handlers = append(node.Handlers, ast.ExceptHandler{Name: name, Body: hbody})
	}
	if p.isKeyword("finally") {
		p.advance()
		fbody, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		node.Finally = fbody
	}
	if len(node.Handlers) == 0 && node.Finally == nil {
		return nil, p.errorHere("except", "finally")
	}
	node.SpanV = ast.Union(start, p.lastSpan())
	return node, nil
}

func (p *Parser) parseImport() (ast.Stmt, error) {
	start := p.cur().Span
	p.advance()
	pathTok := p.cur()
	if pathTok.Kind != lexer.String {
		return nil, p.errorHere("string literal")
	}
	p.advance()
	alias := ""
	if p.cur().Kind == lexer.Ident && p.cur().Text == "as" {
		p.advance()
		aliasTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if !ast.IsValidIdentifier(aliasTok.Text) {
			return nil, &SyntaxError{Span: aliasTok.Span, Found: aliasTok.Text, Expected: []string{"valid identifier"}}
		}
		alias = aliasTok.Text
	}
	if _, err := p.expectOp(";"); err != nil {
		return nil, err
	}
	return &ast.Import{SpanV: ast.Union(start, p.lastSpan()), Path: pathTok.StringValue, Alias: alias}, nil
}

func (p *Parser) parseCapabilityDecl() (ast.Stmt, error) {
	start := p.cur().Span
	p.advance() // capability
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if !ast.IsValidIdentifier(name.Text) {
		return nil, &SyntaxError{Span: name.Span, Found: name.Text, Expected: []string{"valid capability name"}}
	}
	if _, err := p.expectOp("{"); err != nil {
		return nil, err
	}

	var resources []string
	var ops []string
	var body []ast.Stmt
	for !p.isOp("}") {
		if p.atEOF() {
			return nil, p.errorHere("}")
		}
		switch {
		case p.isKeyword("resource"):
			p.advance()
			tok := p.cur()
			if tok.Kind != lexer.String {
				return nil, p.errorHere("string literal")
			}
			p.advance()
			resources = append(resources, tok.StringValue)
			if _, err := p.expectOp(";"); err != nil {
				return nil, err
			}
		case p.isKeyword("allow"):
			p.advance()
			for {
				opTok, err := p.expectIdent()
				if err != nil {
					return nil, err
				}
				ops = append(ops, opTok.Text)
				if p.isOp(",") {
					p.advance()
					continue
				}
				break
			}
			if _, err := p.expectOp(";"); err != nil {
				return nil, err
			}
		default:
			s, err := p.parseStmt()
			if err != nil {
				return nil, err
			}
			body = append(body, s)
		}
	}
	if _, err := p.expectOp("}"); err != nil {
		return nil, err
	}
	if err := ast.ValidateCapabilityOps(ops); err != nil {
		return nil, &SyntaxError{Span: start, Found: name.Text, Expected: []string{err.Error()}}
	}
	return &ast.CapabilityDecl{
		SpanV:     ast.Union(start, p.lastSpan()),
		Name:      name.Text,
		Resources: resources,
		Ops:       ops,
		Body:      body,
	}, nil
}

func (p *Parser) parseAssignOrExprStmt() (ast.Stmt, error) {
	start := p.cur().Span
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if op, ok := p.assignOpText(); ok {
		if !isAssignable(e) {
			return nil, &SyntaxError{Span: e.Span(), Found: "expression", Expected: []string{"assignable target"}}
		}
		p.advance()
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		value = desugarCompoundAssign(op, e, value)
		if _, err := p.expectOp(";"); err != nil {
			return nil, err
		}
		return &ast.Assign{SpanV: ast.Union(start, p.lastSpan()), Target: e, Value: value}, nil
	}
	if _, err := p.expectOp(";"); err != nil {
		return nil, err
	}
	return &ast.ExprStmt{SpanV: ast.Union(start, p.lastSpan()), E: e}, nil
}

func isAssignable(e ast.Expr) bool {
	switch e.(type) {
	case *ast.Identifier, *ast.Index, *ast.Attr:
		return true
	default:
		return false
	}
}
