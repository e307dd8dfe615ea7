package irgen

import (
	"fmt"

	"mir9cc/pkg/ast"
	"mir9cc/pkg/cenv"
	"mir9cc/pkg/ir"
)

// genLvalueVar returns a register holding the address of a variable
// binding: BpRel for a local, LabelAddr for a global/extern/string.
func (g *Generator) genLvalueVar(v *cenv.Var) ir.Reg {
	r := g.newReg()
	if v.IsLocal {
		g.emit(&ir.BpRel{Dst: r, Offset: v.Offset})
	} else {
		g.emit(&ir.LabelAddr{Dst: r, Sym: v.Label})
	}
	return r
}

// genLvalue returns a register holding the address of n: a variable
// reference, a struct-member access, or a pointer dereference (the three
// lvalue shapes sema accepts, spec.md §4.2), or a string literal — not
// itself an lvalue, but reached here the same way an array is, through
// the *ast.Addr sema's decay inserts.
func (g *Generator) genLvalue(n ast.Node) ir.Reg {
	switch e := n.(type) {
	case *ast.VarRef:
		return g.genLvalueVar(e.Var)
	case *ast.Member:
		ra := g.genLvalue(e.Expr)
		m, _ := ast.TypeOf(e.Expr).Member(e.Name)
		if m.Offset != 0 {
			g.emit(ir.NewAddImm(ra, int64(m.Offset)))
		}
		return ra
	case *ast.Unary:
		if e.Op == ast.OpDeref {
			return g.genRvalue(e.Expr)
		}
	case *ast.StrLit:
		// A string literal's "address" (what decay produces) is just its
		// label, the same LabelAddr genRvalue emits for an undecayed use.
		r := g.newReg()
		g.emit(&ir.LabelAddr{Dst: r, Sym: e.Var.Label})
		return r
	}
	panic(fmt.Sprintf("irgen: not an lvalue: %T", n))
}

// genRvalue returns a register holding the value of n, inserting loads
// as needed.
func (g *Generator) genRvalue(n ast.Node) ir.Reg {
	switch e := n.(type) {
	case *ast.Num:
		r := g.newReg()
		g.emit(&ir.Imm{Dst: r, Val: e.Value})
		return r
	case *ast.VarRef:
		r := g.genLvalue(n)
		g.emit(&ir.Load{Size: e.Typ.Size, Dst: r, Addr: r})
		return r
	case *ast.Member:
		r := g.genLvalue(n)
		g.emit(&ir.Load{Size: e.Typ.Size, Dst: r, Addr: r})
		return r
	case *ast.StrLit:
		r := g.newReg()
		g.emit(&ir.LabelAddr{Dst: r, Sym: e.Var.Label})
		return r
	case *ast.Addr:
		// decay: an array's value IS its address.
		return g.genLvalue(e.Expr)
	case *ast.Unary:
		return g.genUnary(e)
	case *ast.IncDec:
		return g.genIncDec(e)
	case *ast.Binary:
		return g.genBinary(e)
	case *ast.Assign:
		ra := g.genLvalue(e.Lhs)
		rb := g.genRvalue(e.Rhs)
		g.emit(&ir.Store{Size: ast.TypeOf(e.Lhs).Size, Addr: ra, Src: rb})
		g.kill(ra)
		return rb
	case *ast.Ternary:
		return g.genTernary(e)
	case *ast.Comma:
		ra := g.genRvalue(e.Lhs)
		g.kill(ra)
		return g.genRvalue(e.Rhs)
	case *ast.Call:
		return g.genCall(e)
	case *ast.StmtExpr:
		return g.genStmtExpr(e)
	}
	panic(fmt.Sprintf("irgen: unhandled expression node %T", n))
}

func (g *Generator) genUnary(e *ast.Unary) ir.Reg {
	switch e.Op {
	case ast.OpAddr:
		return g.genLvalue(e.Expr)
	case ast.OpDeref:
		r := g.genRvalue(e.Expr)
		g.emit(&ir.Load{Size: e.Typ.Size, Dst: r, Addr: r})
		return r
	case ast.OpNeg:
		r := g.genRvalue(e.Expr)
		g.emit(&ir.Neg{R: r})
		return r
	case ast.OpNot:
		r := g.genRvalue(e.Expr)
		r2 := g.newReg()
		g.emit(&ir.Imm{Dst: r2, Val: 0})
		g.emit(ir.NewEq(r, r2))
		g.kill(r2)
		return r
	case ast.OpBNot:
		r := g.genRvalue(e.Expr)
		r2 := g.newReg()
		g.emit(&ir.Imm{Dst: r2, Val: -1})
		g.emit(ir.NewXor(r, r2))
		g.kill(r2)
		return r
	}
	panic("irgen: unhandled unary op")
}

func (g *Generator) genIncDec(e *ast.IncDec) ir.Reg {
	ra := g.genLvalue(e.Expr)
	rb := g.newReg()
	size := ast.TypeOf(e.Expr).Size
	g.emit(&ir.Load{Size: size, Dst: rb, Addr: ra})

	scale := int64(1)
	if t := ast.TypeOf(e.Expr); t.IsPtr() {
		scale = int64(t.Base().Size)
	}
	amt := int64(e.Delta) * scale

	g.emit(ir.NewAddImm(rb, amt))
	g.emit(&ir.Store{Size: size, Addr: ra, Src: rb})
	if e.IsPost {
		g.emit(ir.NewSubImm(rb, amt))
	}
	g.kill(ra)
	return rb
}

// scaleOf returns the pointee size to scale pointer arithmetic by, per
// spec.md §4.2/§4.3: scaling is centralized here at IR generation time,
// not in sema (DESIGN.md open-question #2).
func scaleOf(n ast.Node) (int64, bool) {
	t := ast.TypeOf(n)
	if t != nil && t.IsPtr() {
		return int64(t.Base().Size), true
	}
	return 0, false
}

func (g *Generator) genBinary(e *ast.Binary) ir.Reg {
	switch e.Op {
	case ast.OpLand:
		return g.genLogicalAnd(e)
	case ast.OpLor:
		return g.genLogicalOr(e)
	}

	ra := g.genRvalue(e.Lhs)
	rb := g.genRvalue(e.Rhs)

	if e.Op == ast.OpAdd || e.Op == ast.OpSub {
		if scale, ok := scaleOf(e.Lhs); ok {
			if scale > 1 {
				g.emit(ir.NewMulImm(rb, scale))
			}
		} else if scale, ok := scaleOf(e.Rhs); ok && e.Op == ast.OpAdd {
			if scale > 1 {
				g.emit(ir.NewMulImm(ra, scale))
			}
			ra, rb = rb, ra
		}
	}

	switch e.Op {
	case ast.OpAdd:
		g.emit(ir.NewAdd(ra, rb))
	case ast.OpSub:
		g.emit(ir.NewSub(ra, rb))
	case ast.OpMul:
		g.emit(ir.NewMul(ra, rb))
	case ast.OpDiv:
		g.emit(ir.NewDiv(ra, rb))
	case ast.OpMod:
		g.emit(ir.NewMod(ra, rb))
	case ast.OpAnd:
		g.emit(ir.NewAnd(ra, rb))
	case ast.OpOr:
		g.emit(ir.NewOr(ra, rb))
	case ast.OpXor:
		g.emit(ir.NewXor(ra, rb))
	case ast.OpShl:
		g.emit(ir.NewShl(ra, rb))
	case ast.OpShr:
		g.emit(ir.NewShr(ra, rb))
	case ast.OpLt:
		g.emit(ir.NewLt(ra, rb))
	case ast.OpLe:
		g.emit(ir.NewLe(ra, rb))
	case ast.OpEq:
		g.emit(ir.NewEq(ra, rb))
	case ast.OpNe:
		g.emit(ir.NewNe(ra, rb))
	default:
		panic("irgen: unhandled binary op")
	}
	g.kill(rb)
	return ra
}

func (g *Generator) genLogicalAnd(e *ast.Binary) ir.Reg {
	ra := g.genRvalue(e.Lhs)
	nextL, falseL, thenL, endL := g.newLabel(), g.newLabel(), g.newLabel(), g.newLabel()
	g.emit(&ir.Br{Cond: ra, True: nextL, False: falseL})
	g.label(int(nextL))
	rb := g.genRvalue(e.Rhs)
	g.emit(&ir.Mov{Dst: ra, Src: rb})
	g.kill(rb)
	g.emit(&ir.Br{Cond: ra, True: thenL, False: falseL})
	g.label(int(thenL))
	g.emit(&ir.Imm{Dst: ra, Val: 1})
	g.emit(&ir.Jmp{To: endL})
	g.label(int(falseL))
	g.emit(&ir.Imm{Dst: ra, Val: 0})
	g.label(int(endL))
	return ra
}

func (g *Generator) genLogicalOr(e *ast.Binary) ir.Reg {
	ra := g.genRvalue(e.Lhs)
	nextL, trueL, falseL, endL := g.newLabel(), g.newLabel(), g.newLabel(), g.newLabel()
	g.emit(&ir.Br{Cond: ra, True: trueL, False: nextL})
	g.label(int(nextL))
	rb := g.genRvalue(e.Rhs)
	g.emit(&ir.Mov{Dst: ra, Src: rb})
	g.kill(rb)
	g.emit(&ir.Br{Cond: ra, True: trueL, False: falseL})
	g.label(int(falseL))
	g.emit(&ir.Imm{Dst: ra, Val: 0})
	g.emit(&ir.Jmp{To: endL})
	g.label(int(trueL))
	g.emit(&ir.Imm{Dst: ra, Val: 1})
	g.label(int(endL))
	return ra
}

func (g *Generator) genTernary(e *ast.Ternary) ir.Reg {
	falseL, endL := g.newLabel(), g.newLabel()
	thenL := g.newLabel()
	r := g.newReg()
	cond := g.genRvalue(e.Cond)
	g.emit(&ir.Br{Cond: cond, True: thenL, False: falseL})
	g.kill(cond)
	g.label(int(thenL))
	rt := g.genRvalue(e.Then)
	g.emit(&ir.Mov{Dst: r, Src: rt})
	g.kill(rt)
	g.emit(&ir.Jmp{To: endL})
	g.label(int(falseL))
	re := g.genRvalue(e.Else)
	g.emit(&ir.Mov{Dst: r, Src: re})
	g.kill(re)
	g.label(int(endL))
	return r
}

func (g *Generator) genCall(e *ast.Call) ir.Reg {
	args := make([]ir.Reg, len(e.Args))
	for i, a := range e.Args {
		args[i] = g.genRvalue(a)
	}
	dst := g.newReg()
	g.emit(&ir.Call{Dst: dst, Name: e.Name, Args: append([]ir.Reg(nil), args...)})
	for _, a := range args {
		g.kill(a)
	}
	return dst
}

func (g *Generator) genStmtExpr(e *ast.StmtExpr) ir.Reg {
	rr := g.newReg()
	rl := g.newLabel()
	g.returnRegStack = append(g.returnRegStack, rr)
	g.returnLabelStack = append(g.returnLabelStack, rl)

	// The final expression statement, if any, is the construct's value.
	stmts := e.Body.Stmts
	for i, st := range stmts {
		if i == len(stmts)-1 && ast.TypeOf(st) != nil {
			r := g.genRvalue(st)
			g.emit(&ir.Mov{Dst: rr, Src: r})
			g.kill(r)
			continue
		}
		g.genStmt(st)
	}

	g.returnRegStack = g.returnRegStack[:len(g.returnRegStack)-1]
	g.returnLabelStack = g.returnLabelStack[:len(g.returnLabelStack)-1]
	g.label(int(rl))
	return rr
}
