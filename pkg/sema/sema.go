// Package sema completes the type of every expression node the parser
// produced and inserts implicit array-to-pointer decay (spec.md §4.2).
// It is a single depth-first walk threading an explicit decay flag:
// decay is true by default (rvalue contexts) and cleared for the operand
// of &, sizeof, _Alignof, and the lhs of assignment.
package sema

import (
	"mir9cc/pkg/ast"
	"mir9cc/pkg/compiler"
	"mir9cc/pkg/ctypes"
)

// Analyzer walks a Program's function bodies, completing types.
type Analyzer struct {
	ctx  *compiler.Context
	file string
}

func New(ctx *compiler.Context) *Analyzer {
	return &Analyzer{ctx: ctx, file: ctx.File}
}

// Run completes every function body in prog in place.
func (a *Analyzer) Run(prog *ast.Program) error {
	var err error
	for _, n := range prog.TopLevel {
		if fn, ok := n.(*ast.FuncDef); ok {
			func() {
				defer func() {
					if r := recover(); r != nil {
						if f, ok := r.(*compiler.Fatal); ok {
							err = f
							return
						}
						panic(r)
					}
				}()
				fn.Body = a.walk(fn.Body, true).(*ast.Compound)
			}()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *Analyzer) fail(n ast.Node, format string, args ...any) {
	panic(compiler.Errf(compiler.Sema, a.file, n.Pos().Line, format, args...))
}

// walk type-checks n, rewrites it if array decay applies in an rvalue
// (decay=true) context, and returns the (possibly rewritten) node.
func (a *Analyzer) walk(n ast.Node, decay bool) ast.Node {
	switch e := n.(type) {
	case *ast.Num:
		if e.Typ == nil {
			e.Typ = ctypes.Int()
		}
		return n
	case *ast.StrLit:
		e.Typ = ctypes.Array(ctypes.Char(), len(e.Var.StrData))
		return a.maybeDecay(n, e.Typ, decay)
	case *ast.VarRef:
		e.Typ = e.Var.Type
		return a.maybeDecay(n, e.Typ, decay)
	case *ast.Member:
		e.Expr = a.walk(e.Expr, true)
		bt := ast.TypeOf(e.Expr)
		if !bt.IsStruct() {
			a.fail(n, "member access on non-struct type %s", bt)
		}
		m, ok := bt.Member(e.Name)
		if !ok {
			a.fail(n, "no member named %s", e.Name)
		}
		e.Typ = m.Type
		return a.maybeDecay(n, e.Typ, decay)
	case *ast.Unary:
		return a.walkUnary(e, decay)
	case *ast.IncDec:
		e.Expr = a.walk(e.Expr, false)
		if !ast.IsLvalue(e.Expr) {
			a.fail(n, "increment/decrement of non-lvalue")
		}
		e.Typ = ast.TypeOf(e.Expr)
		return n
	case *ast.Binary:
		return a.walkBinary(e)
	case *ast.Assign:
		e.Lhs = a.walk(e.Lhs, false)
		if !ast.IsLvalue(e.Lhs) {
			a.fail(n, "assignment to non-lvalue")
		}
		e.Rhs = a.walk(e.Rhs, true)
		e.Typ = ast.TypeOf(e.Lhs)
		return n
	case *ast.Ternary:
		e.Cond = a.walk(e.Cond, true)
		e.Then = a.walk(e.Then, true)
		e.Else = a.walk(e.Else, true)
		e.Typ = ast.TypeOf(e.Then)
		return n
	case *ast.Comma:
		e.Lhs = a.walk(e.Lhs, true)
		e.Rhs = a.walk(e.Rhs, true)
		e.Typ = ast.TypeOf(e.Rhs)
		return n
	case *ast.Call:
		for i, arg := range e.Args {
			e.Args[i] = a.walk(arg, true)
		}
		if e.RetType == nil {
			e.RetType = ctypes.Int()
		}
		return n
	case *ast.StmtExpr:
		e.Body = a.walk(e.Body, true).(*ast.Compound)
		e.Typ = a.lastExprType(e.Body)
		return n
	case *ast.Addr:
		// Already decayed upstream; nothing to do.
		return n
	case *ast.Sizeof:
		return a.foldSizeof(e)

	// statements
	case *ast.Compound:
		for i, st := range e.Stmts {
			e.Stmts[i] = a.walk(st, true)
		}
		return n
	case *ast.If:
		e.Cond = a.walk(e.Cond, true)
		e.Then = a.walk(e.Then, true)
		if e.Else != nil {
			e.Else = a.walk(e.Else, true)
		}
		return n
	case *ast.For:
		if e.Init != nil {
			e.Init = a.walk(e.Init, true)
		}
		if e.Cond != nil {
			e.Cond = a.walk(e.Cond, true)
		}
		if e.Inc != nil {
			e.Inc = a.walk(e.Inc, true)
		}
		e.Body = a.walk(e.Body, true)
		return n
	case *ast.While:
		e.Cond = a.walk(e.Cond, true)
		e.Body = a.walk(e.Body, true)
		return n
	case *ast.DoWhile:
		e.Body = a.walk(e.Body, true)
		e.Cond = a.walk(e.Cond, true)
		return n
	case *ast.Switch:
		e.Expr = a.walk(e.Expr, true)
		e.Body = a.walk(e.Body, true)
		return n
	case *ast.Return:
		if e.Expr != nil {
			e.Expr = a.walk(e.Expr, true)
		}
		return n
	case *ast.VarDecl:
		if e.Init != nil {
			if ai, ok := e.Init.(*ast.ArrayInit); ok {
				for i, asn := range ai.Assigns {
					ai.Assigns[i] = a.walk(asn, true)
				}
			} else {
				e.Init = a.walk(e.Init, true)
			}
		}
		return n
	case *ast.Case, *ast.Break, *ast.Continue, *ast.NullStmt:
		return n
	}
	return n
}

// maybeDecay wraps n in an Addr node when t is an Array type and decay
// applies; the wrapped node's type becomes Ptr(t.Base()).
func (a *Analyzer) maybeDecay(n ast.Node, t *ctypes.Type, decay bool) ast.Node {
	if decay && t != nil && t.IsArray() {
		addr := &ast.Addr{Expr: n}
		ast.SetType(addr, ctypes.Ptr(t.Base()))
		return addr
	}
	return n
}

func (a *Analyzer) walkUnary(e *ast.Unary, decay bool) ast.Node {
	switch e.Op {
	case ast.OpAddr:
		e.Expr = a.walk(e.Expr, false)
		if !ast.IsLvalue(e.Expr) {
			a.fail(e, "address-of a non-lvalue")
		}
		e.Typ = ctypes.Ptr(ast.TypeOf(e.Expr))
		return e
	case ast.OpDeref:
		e.Expr = a.walk(e.Expr, true)
		bt := ast.TypeOf(e.Expr)
		if !bt.IsPtr() {
			a.fail(e, "dereference of non-pointer type %s", bt)
		}
		e.Typ = bt.Base()
		return a.maybeDecay(e, e.Typ, decay)
	case ast.OpNot:
		e.Expr = a.walk(e.Expr, true)
		e.Typ = ctypes.Int()
		return e
	case ast.OpNeg, ast.OpBNot:
		e.Expr = a.walk(e.Expr, true)
		e.Typ = ast.TypeOf(e.Expr)
		return e
	}
	return e
}

func (a *Analyzer) walkBinary(e *ast.Binary) ast.Node {
	e.Lhs = a.walk(e.Lhs, true)
	e.Rhs = a.walk(e.Rhs, true)
	lt, rt := ast.TypeOf(e.Lhs), ast.TypeOf(e.Rhs)

	switch e.Op {
	case ast.OpAdd:
		switch {
		case lt.IsPtr() && rt.IsPtr():
			a.fail(e, "pointer + pointer is not defined in this subset")
		case lt.IsPtr():
			e.Typ = lt
		case rt.IsPtr():
			e.Typ = rt
		default:
			e.Typ = ctypes.Int()
		}
	case ast.OpSub:
		switch {
		case lt.IsPtr() && rt.IsPtr():
			a.fail(e, "pointer - pointer is not defined in this subset")
		case lt.IsPtr():
			e.Typ = lt
		default:
			e.Typ = ctypes.Int()
		}
	case ast.OpLt, ast.OpLe, ast.OpEq, ast.OpNe, ast.OpLand, ast.OpLor:
		e.Typ = ctypes.Int()
	default:
		e.Typ = ctypes.Int()
	}
	return e
}

// foldSizeof resolves a sizeof/_Alignof node's operand type (with decay
// disabled) and replaces the node with an integer-literal Num, per
// spec.md §4.2's constant-folding rule.
func (a *Analyzer) foldSizeof(e *ast.Sizeof) ast.Node {
	t := e.ArgType
	if t == nil {
		walked := a.walk(e.Expr, false)
		t = ast.TypeOf(walked)
		if t == nil {
			a.fail(e, "sizeof/_Alignof applied to an untyped expression")
		}
	}
	var val int64
	if e.IsAlignof {
		val = int64(t.Align)
	} else {
		val = int64(t.Size)
	}
	num := &ast.Num{Value: val}
	ast.SetType(num, ctypes.Int())
	return num
}

// lastExprType returns the type of a statement-expression's final
// statement, which must be an expression statement for the `({...})`
// construct to have a value.
func (a *Analyzer) lastExprType(body *ast.Compound) *ctypes.Type {
	if len(body.Stmts) == 0 {
		return ctypes.Void()
	}
	last := body.Stmts[len(body.Stmts)-1]
	if t := ast.TypeOf(last); t != nil {
		return t
	}
	return ctypes.Void()
}
