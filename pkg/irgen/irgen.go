// Package irgen lowers a typed AST to the flat, register-unlimited IR
// pkg/ir defines. One Generator runs per Program but resets its virtual
// register counter at each function boundary (spec.md §5, §9).
package irgen

import (
	"mir9cc/pkg/ast"
	"mir9cc/pkg/compiler"
	"mir9cc/pkg/ctypes"
	"mir9cc/pkg/ir"
)

// Generator lowers one Program's functions to IR, one at a time. The
// single innermost-break/continue-label stack spec.md §9's open question
// #1 calls for is resolved at parse time: Break/Continue nodes already
// carry the resolved label, so genStmt just emits a Jmp to it.
type Generator struct {
	ctx    *compiler.Context
	instrs []ir.Instr

	// returnRegStack/returnLabelStack are non-empty while lowering the body of a
	// GNU statement expression, so that `return` inside it writes to the
	// saved register and jumps to the saved label instead of emitting Ret.
	returnRegStack   []ir.Reg
	returnLabelStack []ir.Label
}

// New returns a Generator sharing ctx's label/vreg counters with the rest
// of the pipeline.
func New(ctx *compiler.Context) *Generator {
	return &Generator{ctx: ctx}
}

// Gen lowers every top-level function definition in prog to IR.
func (g *Generator) Gen(prog *ast.Program) []*ir.Function {
	var fns []*ir.Function
	for _, n := range prog.TopLevel {
		if fn, ok := n.(*ast.FuncDef); ok {
			fns = append(fns, g.genFunc(fn))
		}
	}
	return fns
}

func (g *Generator) genFunc(fn *ast.FuncDef) *ir.Function {
	g.ctx.ResetVRegs()
	g.instrs = nil

	for i, p := range fn.Params {
		if i >= 6 {
			break // System V passes only 6 integer/pointer args in registers
		}
		g.emit(&ir.StoreArg{Size: argSize(p.Type), Offset: p.Offset, ArgIndex: i})
	}
	g.genStmt(fn.Body)

	return &ir.Function{Name: fn.Name, Instrs: g.instrs, StackSize: fn.StackSize}
}

func argSize(t *ctypes.Type) int {
	if t.Size == 8 || t.Size == 4 || t.Size == 1 {
		return t.Size
	}
	return 8
}

func (g *Generator) emit(i ir.Instr) { g.instrs = append(g.instrs, i) }

func (g *Generator) newReg() ir.Reg { return ir.Reg(g.ctx.NextVReg()) }

func (g *Generator) kill(r ir.Reg) { g.emit(&ir.Kill{R: r}) }

func (g *Generator) label(l int) { g.emit(&ir.LabelMark{L: ir.Label(l)}) }

func (g *Generator) newLabel() ir.Label { return ir.Label(g.ctx.NextLabel()) }

// --- statements ---

func (g *Generator) genStmt(n ast.Node) {
	switch s := n.(type) {
	case *ast.Compound:
		for _, st := range s.Stmts {
			g.genStmt(st)
		}
	case *ast.NullStmt:
		// no-op
	case *ast.VarDecl:
		g.genVarDecl(s)
	case *ast.If:
		g.genIf(s)
	case *ast.For:
		g.genFor(s)
	case *ast.While:
		g.genWhile(s)
	case *ast.DoWhile:
		g.genDoWhile(s)
	case *ast.Switch:
		g.genSwitch(s)
	case *ast.Case:
		g.label(s.Label)
	case *ast.Break:
		g.emit(&ir.Jmp{To: ir.Label(s.Label)})
	case *ast.Continue:
		g.emit(&ir.Jmp{To: ir.Label(s.Label)})
	case *ast.Return:
		g.genReturn(s)
	default:
		// expression statement
		r := g.genRvalue(n)
		g.kill(r)
	}
}

func (g *Generator) genVarDecl(s *ast.VarDecl) {
	if s.Init == nil || !s.Var.IsLocal {
		return
	}
	if ai, ok := s.Init.(*ast.ArrayInit); ok {
		for _, a := range ai.Assigns {
			r := g.genRvalue(a)
			g.kill(r)
		}
		return
	}
	ra := g.genLvalueVar(s.Var)
	rb := g.genRvalue(s.Init)
	g.emit(&ir.Store{Size: s.Var.Type.Size, Addr: ra, Src: rb})
	g.kill(ra)
	g.kill(rb)
}

func (g *Generator) genReturn(s *ast.Return) {
	var r ir.Reg
	if s.Expr != nil {
		r = g.genRvalue(s.Expr)
	} else {
		r = g.newReg()
		g.emit(&ir.Imm{Dst: r, Val: 0})
	}
	if len(g.returnLabelStack) > 0 {
		rr := g.returnRegStack[len(g.returnRegStack)-1]
		rl := g.returnLabelStack[len(g.returnLabelStack)-1]
		g.emit(&ir.Mov{Dst: rr, Src: r})
		g.kill(r)
		g.emit(&ir.Jmp{To: rl})
		return
	}
	g.emit(&ir.Ret{R: r})
	g.kill(r)
}

func (g *Generator) genIf(s *ast.If) {
	thenL := g.newLabel()
	if s.Else == nil {
		endL := g.newLabel()
		cond := g.genRvalue(s.Cond)
		g.emit(&ir.Br{Cond: cond, True: thenL, False: endL})
		g.kill(cond)
		g.label(int(thenL))
		g.genStmt(s.Then)
		g.label(int(endL))
		return
	}
	falseL := g.newLabel()
	endL := g.newLabel()
	cond := g.genRvalue(s.Cond)
	g.emit(&ir.Br{Cond: cond, True: thenL, False: falseL})
	g.kill(cond)
	g.label(int(thenL))
	g.genStmt(s.Then)
	g.emit(&ir.Jmp{To: endL})
	g.label(int(falseL))
	g.genStmt(s.Else)
	g.label(int(endL))
}

func (g *Generator) genFor(s *ast.For) {
	if s.Init != nil {
		g.genStmt(s.Init)
	}
	topL := g.newLabel()
	bodyL := g.newLabel()
	g.label(int(topL))
	if s.Cond != nil {
		cond := g.genRvalue(s.Cond)
		g.emit(&ir.Br{Cond: cond, True: bodyL, False: ir.Label(s.BreakLabel)})
		g.kill(cond)
		g.label(int(bodyL))
	}
	g.genStmt(s.Body)
	g.label(s.ContinueLabel)
	if s.Inc != nil {
		r := g.genRvalue(s.Inc)
		g.kill(r)
	}
	g.emit(&ir.Jmp{To: topL})
	g.label(s.BreakLabel)
}

func (g *Generator) genWhile(s *ast.While) {
	topL := ir.Label(s.ContinueLabel)
	bodyL := g.newLabel()
	g.label(int(topL))
	cond := g.genRvalue(s.Cond)
	g.emit(&ir.Br{Cond: cond, True: bodyL, False: ir.Label(s.BreakLabel)})
	g.kill(cond)
	g.label(int(bodyL))
	g.genStmt(s.Body)
	g.emit(&ir.Jmp{To: topL})
	g.label(s.BreakLabel)
}

func (g *Generator) genDoWhile(s *ast.DoWhile) {
	topL := g.newLabel()
	g.label(int(topL))
	g.genStmt(s.Body)
	g.label(s.ContinueLabel)
	cond := g.genRvalue(s.Cond)
	g.emit(&ir.Br{Cond: cond, True: topL, False: ir.Label(s.BreakLabel)})
	g.kill(cond)
	g.label(s.BreakLabel)
}

// genSwitch compiles to a linear chain of equality checks against e, one
// per case, each falling through to the next check on mismatch; no match
// jumps straight to break (this subset has no `default`). The body is
// emitted once after the dispatch chain and is entered only via the Br
// targets above — each Case statement inside it is just a LabelMark.
func (g *Generator) genSwitch(s *ast.Switch) {
	re := g.genRvalue(s.Expr)
	for _, c := range s.Cases {
		nextL := g.newLabel()
		rc := g.newReg()
		g.emit(&ir.Mov{Dst: rc, Src: re})
		rv := g.newReg()
		g.emit(&ir.Imm{Dst: rv, Val: c.Value})
		g.emit(ir.NewEq(rc, rv))
		g.kill(rv)
		g.emit(&ir.Br{Cond: rc, True: ir.Label(c.Label), False: nextL})
		g.kill(rc)
		g.label(int(nextL))
	}
	g.kill(re)
	g.emit(&ir.Jmp{To: ir.Label(s.BreakLabel)})

	g.genStmt(s.Body)
	g.label(s.BreakLabel)
}
