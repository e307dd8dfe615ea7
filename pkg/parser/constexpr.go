package parser

import (
	"mir9cc/pkg/ctypes"
	"mir9cc/pkg/token"
)

// parseConstExpr evaluates an integer constant expression directly to its
// value, rather than building an AST node: array bounds, enum constant
// values, and case labels must all be known before sema runs, so this is
// a small standalone evaluator (+ - * / % unary +- ~ ! sizeof/_Alignof,
// parenthesization, and enum-constant references) separate from the full
// expression grammar in expr.go.
func (p *Parser) parseConstExpr() int64 { return p.parseConstAdditive() }

func (p *Parser) parseConstAdditive() int64 {
	v := p.parseConstMultiplicative()
	for {
		switch p.cur().Type {
		case token.PLUS:
			p.advance()
			v += p.parseConstMultiplicative()
		case token.MINUS:
			p.advance()
			v -= p.parseConstMultiplicative()
		default:
			return v
		}
	}
}

func (p *Parser) parseConstMultiplicative() int64 {
	v := p.parseConstUnary()
	for {
		switch p.cur().Type {
		case token.STAR:
			p.advance()
			v *= p.parseConstUnary()
		case token.SLASH:
			p.advance()
			d := p.parseConstUnary()
			if d == 0 {
				p.fail("division by zero in constant expression")
			}
			v /= d
		case token.PERCENT:
			p.advance()
			d := p.parseConstUnary()
			if d == 0 {
				p.fail("division by zero in constant expression")
			}
			v %= d
		default:
			return v
		}
	}
}

func (p *Parser) parseConstUnary() int64 {
	switch p.cur().Type {
	case token.MINUS:
		p.advance()
		return -p.parseConstUnary()
	case token.PLUS:
		p.advance()
		return p.parseConstUnary()
	case token.TILDE:
		p.advance()
		return ^p.parseConstUnary()
	case token.BANG:
		p.advance()
		if p.parseConstUnary() == 0 {
			return 1
		}
		return 0
	case token.SIZEOF:
		p.advance()
		return p.parseConstSizeofLike(false)
	case token.ALIGNOF:
		p.advance()
		return p.parseConstSizeofLike(true)
	}
	return p.parseConstPrimary()
}

func (p *Parser) parseConstSizeofLike(alignof bool) int64 {
	p.expect(token.LPAREN)
	var t *ctypes.Type
	if p.isDeclStart() {
		base := p.parseDeclSpec()
		t = base
		for p.accept(token.STAR) {
			t = ctypes.Ptr(t)
		}
		t = p.finishArraySuffix(t)
	} else {
		name := p.expect(token.IDENT).SVal
		v, ok := p.env.LookupVar(name)
		if !ok {
			p.fail("sizeof/_Alignof: undefined identifier %s", name)
		}
		t = v.Type
	}
	p.expect(token.RPAREN)
	if alignof {
		return int64(t.Align)
	}
	return int64(t.Size)
}

func (p *Parser) parseConstPrimary() int64 {
	switch p.cur().Type {
	case token.NUM:
		return p.advance().IVal
	case token.LPAREN:
		p.advance()
		v := p.parseConstExpr()
		p.expect(token.RPAREN)
		return v
	case token.IDENT:
		name := p.advance().SVal
		if v, ok := p.env.LookupEnumConst(name); ok {
			return v
		}
		p.fail("not a constant expression: %s", name)
	}
	p.fail("expected constant expression, got %s", p.cur().Type)
	return 0
}
