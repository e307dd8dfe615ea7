package parser

import (
	"mir9cc/pkg/ast"
	"mir9cc/pkg/ctypes"
	"mir9cc/pkg/token"
)

// parseExpression is the widest-scope entry point: a possibly-comma'd
// expression, used wherever the grammar allows a full expression (e.g.
// an expression statement, a for-loop clause).
func (p *Parser) parseExpression() ast.Node { return p.parseComma() }

func (p *Parser) parseComma() ast.Node {
	e := p.parseAssign()
	for p.accept(token.COMMA) {
		rhs := p.parseAssign()
		e = &ast.Comma{Lhs: e, Rhs: rhs}
	}
	return e
}

// compoundOps maps each compound-assignment token to the binary op it
// desugars through (spec.md §4.1: `x op= y` becomes `x = x op y`).
var compoundOps = map[token.Type]ast.BinOp{
	token.PLUSEQ: ast.OpAdd, token.MINUSEQ: ast.OpSub, token.STAREQ: ast.OpMul,
	token.SLASHEQ: ast.OpDiv, token.PERCENTEQ: ast.OpMod,
	token.ANDEQ: ast.OpAnd, token.OREQ: ast.OpOr, token.XOREQ: ast.OpXor,
	token.SHLEQ: ast.OpShl, token.SHREQ: ast.OpShr,
}

func (p *Parser) parseAssign() ast.Node {
	lhs := p.parseConditional()
	if p.accept(token.ASSIGN) {
		rhs := p.parseAssign()
		return &ast.Assign{Lhs: lhs, Rhs: rhs}
	}
	if op, ok := compoundOps[p.cur().Type]; ok {
		p.advance()
		rhs := p.parseAssign()
		// lhs is reused by value on both sides of the desugared
		// assignment; this is only sound because a compound
		// assignment's target is always a side-effect-free lvalue
		// (a name, a member, or a dereference), never something that
		// mutates state when evaluated (spec.md §9).
		return &ast.Assign{Lhs: lhs, Rhs: &ast.Binary{Op: op, Lhs: lhs, Rhs: rhs}}
	}
	return lhs
}

func (p *Parser) parseConditional() ast.Node {
	cond := p.parseLogOr()
	if p.accept(token.QUESTION) {
		then := p.parseExpression()
		p.expect(token.COLON)
		els := p.parseConditional()
		return &ast.Ternary{Cond: cond, Then: then, Else: els}
	}
	return cond
}

func (p *Parser) parseLogOr() ast.Node {
	e := p.parseLogAnd()
	for p.accept(token.LOR) {
		e = &ast.Binary{Op: ast.OpLor, Lhs: e, Rhs: p.parseLogAnd()}
	}
	return e
}

func (p *Parser) parseLogAnd() ast.Node {
	e := p.parseBitOr()
	for p.accept(token.LAND) {
		e = &ast.Binary{Op: ast.OpLand, Lhs: e, Rhs: p.parseBitOr()}
	}
	return e
}

func (p *Parser) parseBitOr() ast.Node {
	e := p.parseBitXor()
	for p.accept(token.PIPE) {
		e = &ast.Binary{Op: ast.OpOr, Lhs: e, Rhs: p.parseBitXor()}
	}
	return e
}

func (p *Parser) parseBitXor() ast.Node {
	e := p.parseBitAnd()
	for p.accept(token.CARET) {
		e = &ast.Binary{Op: ast.OpXor, Lhs: e, Rhs: p.parseBitAnd()}
	}
	return e
}

func (p *Parser) parseBitAnd() ast.Node {
	e := p.parseEquality()
	for p.accept(token.AMP) {
		e = &ast.Binary{Op: ast.OpAnd, Lhs: e, Rhs: p.parseEquality()}
	}
	return e
}

func (p *Parser) parseEquality() ast.Node {
	e := p.parseRelational()
	for {
		switch p.cur().Type {
		case token.EQ:
			p.advance()
			e = &ast.Binary{Op: ast.OpEq, Lhs: e, Rhs: p.parseRelational()}
		case token.NE:
			p.advance()
			e = &ast.Binary{Op: ast.OpNe, Lhs: e, Rhs: p.parseRelational()}
		default:
			return e
		}
	}
}

// parseRelational has no OpGt/OpGe counterpart in ast.BinOp; `a > b` and
// `a >= b` are rewritten as `b < a` and `b <= a` (spec.md §9).
func (p *Parser) parseRelational() ast.Node {
	e := p.parseShift()
	for {
		switch p.cur().Type {
		case token.LT:
			p.advance()
			e = &ast.Binary{Op: ast.OpLt, Lhs: e, Rhs: p.parseShift()}
		case token.LE:
			p.advance()
			e = &ast.Binary{Op: ast.OpLe, Lhs: e, Rhs: p.parseShift()}
		case token.GT:
			p.advance()
			rhs := p.parseShift()
			e = &ast.Binary{Op: ast.OpLt, Lhs: rhs, Rhs: e}
		case token.GE:
			p.advance()
			rhs := p.parseShift()
			e = &ast.Binary{Op: ast.OpLe, Lhs: rhs, Rhs: e}
		default:
			return e
		}
	}
}

func (p *Parser) parseShift() ast.Node {
	e := p.parseAdditive()
	for {
		switch p.cur().Type {
		case token.SHL:
			p.advance()
			e = &ast.Binary{Op: ast.OpShl, Lhs: e, Rhs: p.parseAdditive()}
		case token.SHR:
			p.advance()
			e = &ast.Binary{Op: ast.OpShr, Lhs: e, Rhs: p.parseAdditive()}
		default:
			return e
		}
	}
}

func (p *Parser) parseAdditive() ast.Node {
	e := p.parseMultiplicative()
	for {
		switch p.cur().Type {
		case token.PLUS:
			p.advance()
			e = &ast.Binary{Op: ast.OpAdd, Lhs: e, Rhs: p.parseMultiplicative()}
		case token.MINUS:
			p.advance()
			e = &ast.Binary{Op: ast.OpSub, Lhs: e, Rhs: p.parseMultiplicative()}
		default:
			return e
		}
	}
}

func (p *Parser) parseMultiplicative() ast.Node {
	e := p.parseUnary()
	for {
		switch p.cur().Type {
		case token.STAR:
			p.advance()
			e = &ast.Binary{Op: ast.OpMul, Lhs: e, Rhs: p.parseUnary()}
		case token.SLASH:
			p.advance()
			e = &ast.Binary{Op: ast.OpDiv, Lhs: e, Rhs: p.parseUnary()}
		case token.PERCENT:
			p.advance()
			e = &ast.Binary{Op: ast.OpMod, Lhs: e, Rhs: p.parseUnary()}
		default:
			return e
		}
	}
}

func (p *Parser) parseUnary() ast.Node {
	switch p.cur().Type {
	case token.INC:
		p.advance()
		e := p.parseUnary()
		// Pre-`++x` desugars to `x = x + 1`; the existing pointer-scaling
		// logic in irgen's binary-add lowering handles x of pointer type
		// the same way ordinary pointer arithmetic does (spec.md §4.1).
		return &ast.Assign{Lhs: e, Rhs: &ast.Binary{Op: ast.OpAdd, Lhs: e, Rhs: &ast.Num{Value: 1}}}
	case token.DEC:
		p.advance()
		e := p.parseUnary()
		return &ast.Assign{Lhs: e, Rhs: &ast.Binary{Op: ast.OpSub, Lhs: e, Rhs: &ast.Num{Value: 1}}}
	case token.MINUS:
		p.advance()
		return &ast.Unary{Op: ast.OpNeg, Expr: p.parseUnary()}
	case token.BANG:
		p.advance()
		return &ast.Unary{Op: ast.OpNot, Expr: p.parseUnary()}
	case token.TILDE:
		p.advance()
		return &ast.Unary{Op: ast.OpBNot, Expr: p.parseUnary()}
	case token.STAR:
		p.advance()
		return &ast.Unary{Op: ast.OpDeref, Expr: p.parseUnary()}
	case token.AMP:
		p.advance()
		return &ast.Unary{Op: ast.OpAddr, Expr: p.parseUnary()}
	case token.SIZEOF:
		p.advance()
		return p.parseSizeofOperand(false)
	case token.ALIGNOF:
		p.advance()
		return p.parseSizeofOperand(true)
	}
	return p.parsePostfix()
}

// parseSizeofOperand resolves the classic `sizeof(type)` vs `sizeof expr`
// ambiguity by checking whether a parenthesized operand starts with a
// type specifier (spec.md §4.2); the node itself carries either form and
// sema folds it to a constant later.
func (p *Parser) parseSizeofOperand(isAlignof bool) ast.Node {
	if p.at(token.LPAREN) && p.peekIsTypeStart(1) {
		p.advance()
		t := p.parseDeclSpec()
		for p.accept(token.STAR) {
			t = ctypes.Ptr(t)
		}
		t = p.finishArraySuffix(t)
		p.expect(token.RPAREN)
		return &ast.Sizeof{ArgType: t, IsAlignof: isAlignof}
	}
	e := p.parseUnary()
	return &ast.Sizeof{Expr: e, IsAlignof: isAlignof}
}

func (p *Parser) parsePostfix() ast.Node {
	e := p.parsePrimary()
	for {
		switch p.cur().Type {
		case token.INC:
			p.advance()
			e = &ast.IncDec{IsPost: true, Delta: 1, Expr: e}
		case token.DEC:
			p.advance()
			e = &ast.IncDec{IsPost: true, Delta: -1, Expr: e}
		case token.DOT:
			p.advance()
			name := p.expect(token.IDENT).SVal
			e = &ast.Member{Expr: e, Name: name}
		case token.ARROW:
			p.advance()
			name := p.expect(token.IDENT).SVal
			e = &ast.Member{Expr: &ast.Unary{Op: ast.OpDeref, Expr: e}, Name: name}
		case token.LBRACKET:
			p.advance()
			idx := p.parseExpression()
			p.expect(token.RBRACKET)
			e = p.indexExpr(e, idx)
		default:
			return e
		}
	}
}

// indexExpr desugars `a[i]` to `*(a + i)`, the same shape used by
// aggregate-initializer lowering in stmt.go, so both paths flow through
// sema's ordinary pointer-decay and lvalue rules with no special case.
func (p *Parser) indexExpr(arr, idx ast.Node) ast.Node {
	return &ast.Unary{Op: ast.OpDeref, Expr: &ast.Binary{Op: ast.OpAdd, Lhs: arr, Rhs: idx}}
}

func (p *Parser) parsePrimary() ast.Node {
	pos := p.cur().Pos
	switch p.cur().Type {
	case token.NUM:
		v := p.advance().IVal
		return &ast.Num{BaseNode: base(pos), Value: v}
	case token.STRING:
		s := p.advance().SVal
		v := p.internString(s)
		return &ast.StrLit{BaseNode: base(pos), Var: v}
	case token.IDENT:
		name := p.advance().SVal
		if p.at(token.LPAREN) {
			return p.parseCall(pos, name)
		}
		if v, ok := p.env.LookupVar(name); ok {
			return &ast.VarRef{BaseNode: base(pos), Var: v}
		}
		if val, ok := p.env.LookupEnumConst(name); ok {
			return &ast.Num{BaseNode: base(pos), Value: val}
		}
		p.fail("undefined identifier %s", name)
	case token.LPAREN:
		if p.peekType(1) == token.LBRACE {
			return p.parseStmtExpr(pos)
		}
		p.advance()
		e := p.parseExpression()
		p.expect(token.RPAREN)
		return e
	}
	p.fail("unexpected token %s in expression", p.cur().Type)
	return nil
}

func (p *Parser) parseCall(pos token.Pos, name string) ast.Node {
	p.advance() // '('
	var args []ast.Node
	if !p.at(token.RPAREN) {
		for {
			args = append(args, p.parseAssign())
			if !p.accept(token.COMMA) {
				break
			}
		}
	}
	p.expect(token.RPAREN)
	return &ast.Call{BaseNode: base(pos), Name: name, Args: args}
}

// parseStmtExpr parses a GNU statement expression `({ ...; expr; })`; its
// body gets its own nested scope, same as any other compound statement.
func (p *Parser) parseStmtExpr(pos token.Pos) ast.Node {
	p.advance() // '('
	p.env.Push()
	body := p.parseCompoundStmts()
	p.env.Pop()
	p.expect(token.RPAREN)
	return &ast.StmtExpr{BaseNode: base(pos), Body: body}
}
