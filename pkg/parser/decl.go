package parser

import (
	"fmt"

	"mir9cc/pkg/ast"
	"mir9cc/pkg/cenv"
	"mir9cc/pkg/ctypes"
	"mir9cc/pkg/token"
)

// parseFunctionRest parses the parameter list and, if present, the body
// of a function whose name/return type have already been consumed. A
// declaration with no body (`f(int x);`) is a prototype: it's recorded
// nowhere but the token stream it consumed, since this subset never
// checks call signatures against a forward declaration.
func (p *Parser) parseFunctionRest(pos token.Pos, name string, ret *ctypes.Type, isExtern bool) ast.Node {
	p.expect(token.LPAREN)
	p.env.Push()
	p.stackSize = 0
	var params []*cenv.Var
	if !p.at(token.RPAREN) {
		for {
			pt := p.parseDeclSpec()
			for p.accept(token.STAR) {
				pt = ctypes.Ptr(pt)
			}
			pname := p.expect(token.IDENT).SVal
			// A parameter declared as an array decays to a pointer to its
			// element type (spec.md §4.2); only the outermost dimension
			// decays, so a possibly-present size is just consumed.
			if p.accept(token.LBRACKET) {
				if !p.at(token.RBRACKET) {
					p.parseConstExpr()
				}
				p.expect(token.RBRACKET)
				pt = ctypes.Ptr(pt)
			}
			params = append(params, p.declareLocal(pname, pt))
			if !p.accept(token.COMMA) {
				break
			}
		}
	}
	p.expect(token.RPAREN)

	if isExtern {
		p.expect(token.SEMI)
		p.env.Pop()
		return nil
	}
	if p.accept(token.SEMI) {
		p.env.Pop()
		return nil
	}

	body := p.parseCompoundStmts()
	p.env.Pop()

	return &ast.FuncDef{
		BaseNode:  base(pos),
		Name:      name,
		RetType:   ret,
		Params:    params,
		Body:      body,
		StackSize: ctypes.Roundup(p.stackSize, 16),
	}
}

// parseGlobalRest parses the remainder of a global variable declaration
// (array suffix, optional initializer, further comma-separated
// declarators sharing base) and declares each one. extern declarations
// are added to the environment for lookup but never to p.globals, so the
// emitter never produces a storage directive for them (spec.md §4.5).
func (p *Parser) parseGlobalRest(pos token.Pos, declBase *ctypes.Type, name string, t *ctypes.Type, isExtern bool) ast.Node {
	var nodes []ast.Node
	declare := func(name string, t *ctypes.Type) {
		var init []string
		if p.accept(token.ASSIGN) {
			init = p.parseGlobalInitializer(t)
		}
		if isExtern {
			p.env.DeclareVar(&cenv.Var{Name: name, Type: t, Label: name})
			return
		}
		v := &cenv.Var{Name: name, Type: t, Label: name, IsGlobal: true, Init: init}
		p.env.DeclareVar(v)
		p.globals = append(p.globals, v)
		nodes = append(nodes, &ast.VarDecl{Var: v})
	}

	t = p.finishArraySuffix(t)
	declare(name, t)
	for p.accept(token.COMMA) {
		t2 := declBase
		for p.accept(token.STAR) {
			t2 = ctypes.Ptr(t2)
		}
		n2 := p.expect(token.IDENT).SVal
		t2 = p.finishArraySuffix(t2)
		declare(n2, t2)
	}
	p.expect(token.SEMI)

	switch len(nodes) {
	case 0:
		return nil
	case 1:
		return nodes[0]
	default:
		return &ast.Compound{Stmts: nodes}
	}
}

// parseGlobalInitializer parses the right-hand side of a global's `=`,
// producing the flat list of assembler directives the emitter will print
// verbatim for this global's storage (spec.md §4.5). Arrays recurse
// element by element through a braced list; scalars resolve to one
// directive sized by the target type.
func (p *Parser) parseGlobalInitializer(t *ctypes.Type) []string {
	if t.IsArray() {
		p.expect(token.LBRACE)
		var dirs []string
		for !p.at(token.RBRACE) {
			dirs = append(dirs, p.parseGlobalInitializer(t.Base())...)
			if !p.accept(token.COMMA) {
				break
			}
		}
		p.expect(token.RBRACE)
		return dirs
	}
	return p.parseGlobalScalarInit(t)
}

func (p *Parser) parseGlobalScalarInit(t *ctypes.Type) []string {
	if p.accept(token.AMP) {
		name := p.expect(token.IDENT).SVal
		return []string{".quad " + name}
	}
	if p.at(token.STRING) {
		s := p.advance().SVal
		v := p.internString(s)
		return []string{".quad " + v.Label}
	}
	return []string{fmt.Sprintf("%s %d", directiveFor(t), p.parseConstExpr())}
}

func directiveFor(t *ctypes.Type) string {
	switch t.Size {
	case 1:
		return ".byte"
	case 4:
		return ".long"
	default:
		return ".quad"
	}
}
