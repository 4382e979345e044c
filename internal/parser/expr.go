package parser

import (
	"github.com/duns-scotus/mlpy/internal/ast"
	"github.com/duns-scotus/mlpy/internal/lexer"
)

// parseExpr parses a full expression, starting at the ternary level, which
// is the lowest-precedence expression-level construct (assignment is
// handled one level up, at the statement grammar).
func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseTernary()
}

func (p *Parser) parseTernary() (ast.Expr, error) {
	cond, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if p.isOp("?") {
		p.advance()
		then, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOp(":"); err != nil {
			return nil, err
		}
		els, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Ternary{SpanV: ast.Union(cond.Span(), els.Span()), Cond: cond, T: then, E: els}, nil
	}
	return cond, nil
}

func (p *Parser) parseLogicalOr() (ast.Expr, error) {
	left, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for p.isOp("||") {
		op := p.advance()
		right, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{SpanV: ast.Union(left.Span(), right.Span()), Op: op.Text, L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseLogicalAnd() (ast.Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.isOp("&&") {
		op := p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{SpanV: ast.Union(left.Span(), right.Span()), Op: op.Text, L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseEquality() (ast.Expr, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.isOp("==") || p.isOp("!=") {
		op := p.advance()
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{SpanV: ast.Union(left.Span(), right.Span()), Op: op.Text, L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseRelational() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.isOp("<") || p.isOp("<=") || p.isOp(">") || p.isOp(">=") {
		op := p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{SpanV: ast.Union(left.Span(), right.Span()), Op: op.Text, L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{SpanV: ast.Union(left.Span(), right.Span()), Op: op.Text, L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") || p.isOp("%") {
		op := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{SpanV: ast.Union(left.Span(), right.Span()), Op: op.Text, L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.isOp("!") || p.isOp("-") {
		op := p.advance()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnOp{SpanV: ast.Union(op.Span, e.Span()), Op: op.Text, E: e}, nil
	}
	if p.isOp("...") {
		op := p.advance()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Spread{SpanV: ast.Union(op.Span, e.Span()), E: e}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isOp("."):
			p.advance()
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			e = &ast.Attr{SpanV: ast.Union(e.Span(), name.Span), Target: e, Name: name.Text}
		case p.isOp("("):
			args, endSpan, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			e = &ast.Call{SpanV: ast.Union(e.Span(), endSpan), Callee: e, Args: args}
		case p.isOp("["):
			next, err := p.parseIndexOrSlice(e)
			if err != nil {
				return nil, err
			}
			e = next
		default:
			return e, nil
		}
	}
}

func (p *Parser) parseArgs() ([]ast.Expr, ast.Span, error) {
	if _, err := p.expectOp("("); err != nil {
		return nil, ast.Span{}, err
	}
	var args []ast.Expr
	for !p.isOp(")") {
		a, err := p.parseExpr()
		if err != nil {
			return nil, ast.Span{}, err
		}
		args = append(args, a)
		if p.isOp(",") {
			p.advance()
			continue
		}
		break
	}
	closeTok, err := p.expectOp(")")
	if err != nil {
		return nil, ast.Span{}, err
	}
	return args, closeTok.Span, nil
}

// parseIndexOrSlice handles `target[key]` and `target[start?:stop?:step?]`.
func (p *Parser) parseIndexOrSlice(target ast.Expr) (ast.Expr, error) {
	start := p.cur().Span
	p.advance() // consume '['

	var first ast.Expr
	if !p.isOp(":") && !p.isOp("]") {
		var err error
		first, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}

	if !p.isOp(":") {
		// plain index
		closeTok, err := p.expectOp("]")
		if err != nil {
			return nil, err
		}
		return &ast.Index{SpanV: ast.Union(target.Span(), closeTok.Span), Target: target, Key: first}, nil
	}

	// slice: first is Start (may be nil)
	p.advance() // ':'
	var stop ast.Expr
	if !p.isOp(":") && !p.isOp("]") {
		var err error
		stop, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	var step ast.Expr
	if p.isOp(":") {
		p.advance()
		if !p.isOp("]") {
			var err error
			step, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
	}
	closeTok, err := p.expectOp("]")
	if err != nil {
		return nil, err
	}
	_ = start
	return &ast.Slice{SpanV: ast.Union(target.Span(), closeTok.Span), Target: target, Start: first, Stop: stop, Step: step}, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	t := p.cur()
	switch t.Kind {
	case lexer.Number:
		p.advance()
		return &ast.Literal{SpanV: t.Span, Kind: ast.NumberLit, Number: t.NumberValue}, nil
	case lexer.String:
		p.advance()
		return &ast.Literal{SpanV: t.Span, Kind: ast.StringLit, Str: t.StringValue}, nil
	case lexer.Bool:
		p.advance()
		return &ast.Literal{SpanV: t.Span, Kind: ast.BoolLit, Bool: t.StringValue == "true"}, nil
	case lexer.Null:
		p.advance()
		return &ast.Literal{SpanV: t.Span, Kind: ast.NullLit}, nil
	case lexer.Ident:
		p.advance()
		return &ast.Identifier{SpanV: t.Span, Name: t.Text}, nil
	case lexer.Keyword:
		if t.Text == "function" {
			return p.parseLambda()
		}
	}
	if p.isOp("(") {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return e, nil
	}
	if p.isOp("[") {
		return p.parseArrayLiteral()
	}
	if p.isOp("{") {
		return p.parseObjectLiteral()
	}
	return nil, p.errorHere("expression")
}

func (p *Parser) parseLambda() (ast.Expr, error) {
	start := p.cur().Span
	p.advance() // function
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.Lambda{SpanV: ast.Union(start, p.lastSpan()), Params: params, Body: body}, nil
}

func (p *Parser) parseArrayLiteral() (ast.Expr, error) {
	start := p.cur().Span
	p.advance() // '['
	var items []ast.Expr
	for !p.isOp("]") {
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.isOp(",") {
			p.advance()
			continue
		}
		break
	}
	closeTok, err := p.expectOp("]")
	if err != nil {
		return nil, err
	}
	return &ast.Array{SpanV: ast.Union(start, closeTok.Span), Items: items}, nil
}

func (p *Parser) parseObjectLiteral() (ast.Expr, error) {
	start := p.cur().Span
	p.advance() // '{'
	var pairs []ast.ObjectPair
	for !p.isOp("}") {
		var key string
		switch p.cur().Kind {
		case lexer.String:
			key = p.advance().StringValue
		case lexer.Ident:
			key = p.advance().Text
		default:
			return nil, p.errorHere("object key")
		}
		if _, err := p.expectOp(":"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, ast.ObjectPair{Key: key, Value: val})
		if p.isOp(",") {
			p.advance()
			continue
		}
		break
	}
	closeTok, err := p.expectOp("}")
	if err != nil {
		return nil, err
	}
	return &ast.Object{SpanV: ast.Union(start, closeTok.Span), Pairs: pairs}, nil
}
