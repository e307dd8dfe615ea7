package parser

import (
	"mir9cc/pkg/ast"
	"mir9cc/pkg/cenv"
	"mir9cc/pkg/ctypes"
	"mir9cc/pkg/token"
)

// parseBlock parses a `{ ... }` that opens its own nested scope — every
// compound statement except a function's immediate body, which reuses
// the scope already pushed for its parameters (spec.md §4.1).
func (p *Parser) parseBlock() *ast.Compound {
	p.env.Push()
	defer p.env.Pop()
	return p.parseCompoundStmts()
}

// parseCompoundStmts parses `{ stmt* }` in whatever scope is already
// current.
func (p *Parser) parseCompoundStmts() *ast.Compound {
	pos := p.cur().Pos
	p.expect(token.LBRACE)
	var stmts []ast.Node
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		stmts = append(stmts, p.parseStatement())
	}
	p.expect(token.RBRACE)
	return &ast.Compound{BaseNode: base(pos), Stmts: stmts}
}

func (p *Parser) pushLoop(breakLabel, continueLabel int) {
	p.breakStack = append(p.breakStack, breakLabel)
	p.continueStack = append(p.continueStack, continueLabel)
}

func (p *Parser) popLoop() {
	p.breakStack = p.breakStack[:len(p.breakStack)-1]
	p.continueStack = p.continueStack[:len(p.continueStack)-1]
}

func (p *Parser) parseStatement() ast.Node {
	pos := p.cur().Pos

	switch p.cur().Type {
	case token.SEMI:
		p.advance()
		return &ast.NullStmt{BaseNode: base(pos)}
	case token.LBRACE:
		return p.parseBlock()
	case token.RETURN:
		return p.parseReturn(pos)
	case token.IF:
		return p.parseIf(pos)
	case token.FOR:
		return p.parseFor(pos)
	case token.WHILE:
		return p.parseWhile(pos)
	case token.DO:
		return p.parseDoWhile(pos)
	case token.SWITCH:
		return p.parseSwitch(pos)
	case token.CASE:
		return p.parseCase(pos)
	case token.BREAK:
		p.advance()
		p.expect(token.SEMI)
		if len(p.breakStack) == 0 {
			p.fail("break statement not within a loop or switch")
		}
		return &ast.Break{BaseNode: base(pos), Label: p.breakStack[len(p.breakStack)-1]}
	case token.CONTINUE:
		p.advance()
		p.expect(token.SEMI)
		if len(p.continueStack) == 0 {
			p.fail("continue statement not within a loop")
		}
		return &ast.Continue{BaseNode: base(pos), Label: p.continueStack[len(p.continueStack)-1]}
	case token.EXTERN, token.TYPEDEF:
		p.fail("extern/typedef are only valid at file scope")
	}

	if p.isDeclStart() {
		return p.parseLocalDecl(pos)
	}

	e := p.parseExpression()
	p.expect(token.SEMI)
	return e
}

func (p *Parser) parseReturn(pos token.Pos) ast.Node {
	p.advance()
	if p.accept(token.SEMI) {
		return &ast.Return{BaseNode: base(pos)}
	}
	e := p.parseExpression()
	p.expect(token.SEMI)
	return &ast.Return{BaseNode: base(pos), Expr: e}
}

func (p *Parser) parseIf(pos token.Pos) ast.Node {
	p.advance()
	p.expect(token.LPAREN)
	cond := p.parseExpression()
	p.expect(token.RPAREN)
	then := p.parseStatement()
	var els ast.Node
	if p.accept(token.ELSE) {
		els = p.parseStatement()
	}
	return &ast.If{BaseNode: base(pos), Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseFor(pos token.Pos) ast.Node {
	p.advance()
	p.expect(token.LPAREN)
	p.env.Push()
	defer p.env.Pop()

	var init ast.Node
	if p.accept(token.SEMI) {
		// no init
	} else if p.isDeclStart() {
		init = p.parseLocalDecl(p.cur().Pos)
	} else {
		init = p.parseExpression()
		p.expect(token.SEMI)
	}

	var cond ast.Node
	if !p.at(token.SEMI) {
		cond = p.parseExpression()
	}
	p.expect(token.SEMI)

	var inc ast.Node
	if !p.at(token.RPAREN) {
		inc = p.parseExpression()
	}
	p.expect(token.RPAREN)

	breakL := p.ctx.NextLabel()
	contL := p.ctx.NextLabel()
	p.pushLoop(breakL, contL)
	body := p.parseStatement()
	p.popLoop()

	return &ast.For{BaseNode: base(pos), Init: init, Cond: cond, Inc: inc, Body: body, BreakLabel: breakL, ContinueLabel: contL}
}

func (p *Parser) parseWhile(pos token.Pos) ast.Node {
	p.advance()
	p.expect(token.LPAREN)
	cond := p.parseExpression()
	p.expect(token.RPAREN)

	breakL := p.ctx.NextLabel()
	contL := p.ctx.NextLabel()
	p.pushLoop(breakL, contL)
	body := p.parseStatement()
	p.popLoop()

	return &ast.While{BaseNode: base(pos), Cond: cond, Body: body, BreakLabel: breakL, ContinueLabel: contL}
}

func (p *Parser) parseDoWhile(pos token.Pos) ast.Node {
	p.advance()

	breakL := p.ctx.NextLabel()
	contL := p.ctx.NextLabel()
	p.pushLoop(breakL, contL)
	body := p.parseStatement()
	p.popLoop()

	p.expect(token.WHILE)
	p.expect(token.LPAREN)
	cond := p.parseExpression()
	p.expect(token.RPAREN)
	p.expect(token.SEMI)

	return &ast.DoWhile{BaseNode: base(pos), Body: body, Cond: cond, BreakLabel: breakL, ContinueLabel: contL}
}

// parseSwitch pushes its break label onto the same stack loops share
// (spec.md §9 open question #1: switch and loop break nest in one stack)
// but never touches the continue stack, since `continue` always targets
// the nearest enclosing loop even through a switch. Case values are
// collected on a side stack (caseStack) that parseCase appends to.
func (p *Parser) parseSwitch(pos token.Pos) ast.Node {
	p.advance()
	p.expect(token.LPAREN)
	e := p.parseExpression()
	p.expect(token.RPAREN)

	breakL := p.ctx.NextLabel()
	p.breakStack = append(p.breakStack, breakL)
	p.caseStack = append(p.caseStack, nil)

	body := p.parseStatement()

	cases := p.caseStack[len(p.caseStack)-1]
	p.caseStack = p.caseStack[:len(p.caseStack)-1]
	p.breakStack = p.breakStack[:len(p.breakStack)-1]

	return &ast.Switch{BaseNode: base(pos), Expr: e, Body: body, Cases: cases, BreakLabel: breakL}
}

func (p *Parser) parseCase(pos token.Pos) ast.Node {
	p.advance()
	val := p.parseConstExpr()
	p.expect(token.COLON)
	if len(p.caseStack) == 0 {
		p.fail("case label not within a switch statement")
	}
	label := p.ctx.NextLabel()
	top := len(p.caseStack) - 1
	p.caseStack[top] = append(p.caseStack[top], ast.CaseLabel{Value: val, Label: label})
	return &ast.Case{BaseNode: base(pos), Value: val, Label: label}
}

// parseLocalDecl parses one `decl_spec declarator (',' declarator)* ';'`
// local declaration, allocating each declared name a stack slot as soon
// as it's seen and lowering any initializer to a VarDecl (scalar) or an
// ArrayInit of per-element assignments (aggregate) that irgen later
// compiles in declaration order.
func (p *Parser) parseLocalDecl(pos token.Pos) ast.Node {
	declBase := p.parseDeclSpec()

	// A bare `struct Foo { ... };` or `enum { ... };` declares its tag or
	// constants as a side effect of parseDeclSpec and needs no declarator.
	if p.accept(token.SEMI) {
		return &ast.NullStmt{BaseNode: base(pos)}
	}

	var nodes []ast.Node
	for {
		t := declBase
		for p.accept(token.STAR) {
			t = ctypes.Ptr(t)
		}
		name := p.expect(token.IDENT).SVal
		t = p.finishArraySuffix(t)
		v := p.declareLocal(name, t)

		var init ast.Node
		if p.accept(token.ASSIGN) {
			if t.IsArray() {
				init = p.parseArrayInitExpr(v, t)
			} else {
				init = p.parseAssign()
			}
		}
		nodes = append(nodes, &ast.VarDecl{BaseNode: base(pos), Var: v, Init: init})
		if !p.accept(token.COMMA) {
			break
		}
	}
	p.expect(token.SEMI)
	if len(nodes) == 1 {
		return nodes[0]
	}
	return &ast.Compound{BaseNode: base(pos), Stmts: nodes}
}

// parseArrayInitExpr parses a braced initializer list `{e0, e1, ...}` for
// an array-typed local, desugaring each element directly to the same
// `*(base + index)` lvalue shape postfix `[]` indexing builds, so sema's
// ordinary Assign case resolves pointer decay and element typing with no
// special case for aggregate initializers (spec.md §4.1).
func (p *Parser) parseArrayInitExpr(v *cenv.Var, t *ctypes.Type) *ast.ArrayInit {
	p.expect(token.LBRACE)
	var assigns []ast.Node
	idx := 0
	for !p.at(token.RBRACE) {
		rhs := p.parseAssign()
		lhs := p.indexExpr(&ast.VarRef{Var: v}, &ast.Num{Value: int64(idx)})
		assigns = append(assigns, &ast.Assign{Lhs: lhs, Rhs: rhs})
		idx++
		if !p.accept(token.COMMA) {
			break
		}
	}
	p.expect(token.RBRACE)
	return &ast.ArrayInit{Assigns: assigns}
}
