// Package parser implements the recursive-descent parser that turns a
// token.Token stream into a typed *ast.Program: declarations, statements,
// and expressions are desugared to mir9cc's small core node set as they
// are recognized (spec.md §4.1), and every name reference is resolved
// against the lexical environment as it is seen rather than in a later
// pass.
package parser

import (
	"fmt"

	"mir9cc/pkg/ast"
	"mir9cc/pkg/cenv"
	"mir9cc/pkg/compiler"
	"mir9cc/pkg/ctypes"
	"mir9cc/pkg/token"
)

// Parser consumes a fixed token slice and builds a Program against a
// shared cenv.Env and compiler.Context. Locals get their stack offsets
// here (not in sema or irgen): stackSize only ever grows, so a scope exit
// never reclaims the space its locals used (spec.md §4.1's declared
// non-goal of frame-slot reuse).
type Parser struct {
	ctx  *compiler.Context
	env  *cenv.Env
	toks []token.Token
	pos  int

	stackSize int
	globals   []*cenv.Var

	breakStack    []int
	continueStack []int
	caseStack     [][]ast.CaseLabel
}

// New returns a Parser over toks, sharing ctx's label counter and a fresh
// global-scope environment.
func New(ctx *compiler.Context, toks []token.Token) *Parser {
	return &Parser{ctx: ctx, env: cenv.New(), toks: toks}
}

// Parse consumes every token and returns the completed Program, or a
// recovered *compiler.Fatal wrapped as error.
func Parse(ctx *compiler.Context, toks []token.Token) (prog *ast.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			if f, ok := r.(*compiler.Fatal); ok {
				err = f
				return
			}
			panic(r)
		}
	}()
	p := New(ctx, toks)
	prog = p.parseProgram()
	return prog, nil
}

func (p *Parser) fail(format string, args ...any) {
	panic(compiler.Errf(compiler.Parse, p.cur().Pos.File, p.cur().Pos.Line, format, args...))
}

func (p *Parser) cur() token.Token { return p.toks[p.pos] }

func (p *Parser) peekType(n int) token.Type {
	if p.pos+n >= len(p.toks) {
		return token.EOF
	}
	return p.toks[p.pos+n].Type
}

func (p *Parser) at(t token.Type) bool { return p.cur().Type == t }

func (p *Parser) advance() token.Token {
	t := p.toks[p.pos]
	if t.Type != token.EOF {
		p.pos++
	}
	return t
}

func (p *Parser) accept(t token.Type) bool {
	if p.at(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(t token.Type) token.Token {
	if !p.at(t) {
		p.fail("expected %s, got %s", t, p.cur().Type)
	}
	return p.advance()
}

func base(pos token.Pos) ast.BaseNode { return ast.BaseNode{P: pos} }

// --- top level ---

func (p *Parser) parseProgram() *ast.Program {
	prog := &ast.Program{}
	for !p.at(token.EOF) {
		if n := p.parseTopLevel(); n != nil {
			prog.TopLevel = append(prog.TopLevel, n)
		}
	}
	prog.Globals = p.globals
	return prog
}

func (p *Parser) parseTopLevel() ast.Node {
	isExtern := p.accept(token.EXTERN)

	if p.accept(token.TYPEDEF) {
		declBase := p.parseDeclSpec()
		t, name := p.parseNamedDeclarator(declBase)
		p.env.DeclareTypedef(name, t)
		p.expect(token.SEMI)
		return nil
	}

	spec := p.parseDeclSpec()

	// A bare `struct Foo { ... };` or `enum { ... };` declares its tag or
	// constants as a side effect of parseDeclSpec and needs no declarator.
	if p.accept(token.SEMI) {
		return nil
	}

	t := spec
	for p.accept(token.STAR) {
		t = ctypes.Ptr(t)
	}
	pos := p.cur().Pos
	name := p.expect(token.IDENT).SVal

	if p.at(token.LPAREN) {
		return p.parseFunctionRest(pos, name, t, isExtern)
	}
	return p.parseGlobalRest(pos, spec, name, t, isExtern)
}

// isDeclStart reports whether the current token can begin a declaration
// (a type keyword or a name already bound as a typedef) — used both for
// top-level dispatch and the decl-vs-expression-statement rule inside
// function bodies (spec.md §4.1).
func (p *Parser) isDeclStart() bool {
	switch p.cur().Type {
	case token.INT, token.CHAR, token.VOID, token.BOOL, token.STRUCT, token.TYPEOF, token.ENUM:
		return true
	case token.IDENT:
		_, ok := p.env.LookupTypedef(p.cur().SVal)
		return ok
	}
	return false
}

func (p *Parser) peekIsTypeStart(n int) bool {
	switch p.peekType(n) {
	case token.INT, token.CHAR, token.VOID, token.BOOL, token.STRUCT, token.TYPEOF, token.ENUM:
		return true
	case token.IDENT:
		if p.pos+n < len(p.toks) {
			_, ok := p.env.LookupTypedef(p.toks[p.pos+n].SVal)
			return ok
		}
	}
	return false
}

// parseDeclSpec parses one base type specifier: a builtin keyword, a
// struct specifier (definition or tag reference), a typeof(expr), an enum
// specifier, or a typedef name.
func (p *Parser) parseDeclSpec() *ctypes.Type {
	switch p.cur().Type {
	case token.INT:
		p.advance()
		return ctypes.Int()
	case token.CHAR:
		p.advance()
		return ctypes.Char()
	case token.VOID:
		p.advance()
		return ctypes.Void()
	case token.BOOL:
		p.advance()
		return ctypes.Bool()
	case token.STRUCT:
		return p.parseStructSpec()
	case token.ENUM:
		return p.parseEnumSpec()
	case token.TYPEOF:
		return p.parseTypeofSpec()
	case token.IDENT:
		if t, ok := p.env.LookupTypedef(p.cur().SVal); ok {
			p.advance()
			return t
		}
	}
	p.fail("expected a type specifier, got %s", p.cur().Type)
	return nil
}

func (p *Parser) parseStructSpec() *ctypes.Type {
	p.advance() // 'struct'
	name := ""
	if p.at(token.IDENT) {
		name = p.advance().SVal
	}
	if !p.accept(token.LBRACE) {
		if name == "" {
			p.fail("expected struct tag or body")
		}
		t, ok := p.env.LookupTag(name)
		if !ok {
			p.fail("undefined struct %s", name)
		}
		return t
	}
	var fields []ctypes.Member
	for !p.at(token.RBRACE) {
		fieldBase := p.parseDeclSpec()
		for {
			t, fname := p.parseNamedDeclarator(fieldBase)
			fields = append(fields, ctypes.Member{Name: fname, Type: t})
			if !p.accept(token.COMMA) {
				break
			}
		}
		p.expect(token.SEMI)
	}
	p.expect(token.RBRACE)
	st := ctypes.NewStruct(name, fields)
	if name != "" {
		p.env.DeclareTag(name, st)
	}
	return st
}

// parseEnumSpec parses `enum { NAME [= const_expr] (, NAME [= const_expr])* }`,
// declaring each constant in the current scope as it's seen and defaulting
// each unspecified value to one more than its predecessor (starting at 0).
// Enum constants themselves always have type int (spec.md §4.2).
func (p *Parser) parseEnumSpec() *ctypes.Type {
	p.advance() // 'enum'
	p.expect(token.LBRACE)
	var next int64
	for {
		name := p.expect(token.IDENT).SVal
		if p.accept(token.ASSIGN) {
			next = p.parseConstExpr()
		}
		p.env.DeclareEnumConst(name, next)
		next++
		if !p.accept(token.COMMA) {
			break
		}
		if p.at(token.RBRACE) {
			break
		}
	}
	p.expect(token.RBRACE)
	return ctypes.Int()
}

// parseTypeofSpec parses `typeof(expr)`, recovering the operand's type by
// running the ordinary expression parser over it; since sema hasn't run
// yet, only expressions whose type is resolvable at parse time (variable
// references, mainly) are supported.
func (p *Parser) parseTypeofSpec() *ctypes.Type {
	p.advance() // 'typeof'
	p.expect(token.LPAREN)
	e := p.parseAssign()
	p.expect(token.RPAREN)
	t := p.constTypeOf(e)
	if t == nil {
		p.fail("typeof operand has no statically known type")
	}
	return t
}

// constTypeOf recovers the type of a handful of expression shapes the
// parser can resolve without a full sema pass.
func (p *Parser) constTypeOf(n ast.Node) *ctypes.Type {
	switch e := n.(type) {
	case *ast.VarRef:
		return e.Var.Type
	case *ast.Num:
		return ctypes.Int()
	case *ast.Unary:
		if e.Op == ast.OpDeref {
			bt := p.constTypeOf(e.Expr)
			if bt != nil {
				return bt.Base()
			}
		}
	}
	return nil
}

// parseNamedDeclarator parses one `*...name[N]...` declarator sharing
// declBase, returning the fully built type and the declared name.
func (p *Parser) parseNamedDeclarator(declBase *ctypes.Type) (*ctypes.Type, string) {
	t := declBase
	for p.accept(token.STAR) {
		t = ctypes.Ptr(t)
	}
	name := p.expect(token.IDENT).SVal
	t = p.finishArraySuffix(t)
	return t, name
}

// finishArraySuffix consumes zero or more `[const_expr]` suffixes,
// applying them outermost-last so `int a[2][3]` builds array-of-2
// array-of-3 int (spec.md §4.1's declarator grammar).
func (p *Parser) finishArraySuffix(t *ctypes.Type) *ctypes.Type {
	if !p.at(token.LBRACKET) {
		return t
	}
	var dims []int
	for p.accept(token.LBRACKET) {
		dims = append(dims, int(p.parseConstExpr()))
		p.expect(token.RBRACKET)
	}
	for i := len(dims) - 1; i >= 0; i-- {
		t = ctypes.Array(t, dims[i])
	}
	return t
}

func (p *Parser) declareLocal(name string, t *ctypes.Type) *cenv.Var {
	off := ctypes.Roundup(p.stackSize, t.Align) + t.Size
	p.stackSize = off
	v := &cenv.Var{Name: name, Type: t, IsLocal: true, Offset: off}
	p.env.DeclareVar(v)
	return v
}

func (p *Parser) internString(s string) *cenv.Var {
	label := p.freshStrLabel()
	data := append([]byte(s), 0)
	v := &cenv.Var{Name: label, Label: label, IsStr: true, StrData: data, Type: ctypes.Array(ctypes.Char(), len(data))}
	p.globals = append(p.globals, v)
	return v
}

// freshStrLabel mints an anonymous string-literal label sharing the same
// counter as every other generated label (spec.md §5).
func (p *Parser) freshStrLabel() string {
	return fmt.Sprintf(".L.str%d", p.ctx.NextLabel())
}
