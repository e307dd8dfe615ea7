package parser

import (
	"testing"

	"mir9cc/pkg/ast"
	"mir9cc/pkg/compiler"
	"mir9cc/pkg/ctypes"
	"mir9cc/pkg/lexer"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	toks, err := lexer.Tokenize("test.c", src)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	prog, err := Parse(compiler.New("test.c"), toks)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return prog
}

func mustFail(t *testing.T, src string) {
	t.Helper()
	toks, err := lexer.Tokenize("test.c", src)
	if err != nil {
		return
	}
	if _, err := Parse(compiler.New("test.c"), toks); err == nil {
		t.Fatalf("expected a parse error for %q", src)
	}
}

func firstFunc(t *testing.T, prog *ast.Program) *ast.FuncDef {
	t.Helper()
	for _, n := range prog.TopLevel {
		if fn, ok := n.(*ast.FuncDef); ok {
			return fn
		}
	}
	t.Fatal("no function definition found")
	return nil
}

func TestParseEmptyFunction(t *testing.T) {
	prog := mustParse(t, `int main() { return 0; }`)
	fn := firstFunc(t, prog)
	if fn.Name != "main" {
		t.Errorf("Name = %q, want main", fn.Name)
	}
	if len(fn.Body.Stmts) != 1 {
		t.Fatalf("Body.Stmts = %d statements, want 1", len(fn.Body.Stmts))
	}
	ret, ok := fn.Body.Stmts[0].(*ast.Return)
	if !ok {
		t.Fatalf("Stmts[0] = %T, want *ast.Return", fn.Body.Stmts[0])
	}
	num, ok := ret.Expr.(*ast.Num)
	if !ok || num.Value != 0 {
		t.Errorf("Return.Expr = %#v, want Num{0}", ret.Expr)
	}
}

func TestParseParams(t *testing.T) {
	prog := mustParse(t, `int add(int a, int b) { return a + b; }`)
	fn := firstFunc(t, prog)
	if len(fn.Params) != 2 {
		t.Fatalf("Params = %d, want 2", len(fn.Params))
	}
	if fn.Params[0].Name != "a" || fn.Params[1].Name != "b" {
		t.Errorf("Params = %+v", fn.Params)
	}
	if fn.Params[0].Offset == fn.Params[1].Offset {
		t.Errorf("distinct locals must get distinct stack offsets, got %d and %d",
			fn.Params[0].Offset, fn.Params[1].Offset)
	}
}

func TestArithmeticPrecedence(t *testing.T) {
	prog := mustParse(t, `int main() { return 1 + 2 * 3; }`)
	fn := firstFunc(t, prog)
	ret := fn.Body.Stmts[0].(*ast.Return)
	bin, ok := ret.Expr.(*ast.Binary)
	if !ok || bin.Op != ast.OpAdd {
		t.Fatalf("top operator = %#v, want Add", ret.Expr)
	}
	rhs, ok := bin.Rhs.(*ast.Binary)
	if !ok || rhs.Op != ast.OpMul {
		t.Fatalf("rhs = %#v, want Mul(2,3)", bin.Rhs)
	}
}

func TestRelationalSwapsGreaterThan(t *testing.T) {
	prog := mustParse(t, `int main() { return 1 > 2; }`)
	fn := firstFunc(t, prog)
	ret := fn.Body.Stmts[0].(*ast.Return)
	bin, ok := ret.Expr.(*ast.Binary)
	if !ok || bin.Op != ast.OpLt {
		t.Fatalf("`a > b` must lower to OpLt(b,a), got %#v", ret.Expr)
	}
	lhs, ok := bin.Lhs.(*ast.Num)
	if !ok || lhs.Value != 2 {
		t.Errorf("swapped lhs = %#v, want Num{2}", bin.Lhs)
	}
}

func TestCompoundAssignDesugars(t *testing.T) {
	prog := mustParse(t, `int main() { int x; x += 3; return x; }`)
	fn := firstFunc(t, prog)
	assign, ok := fn.Body.Stmts[1].(*ast.Assign)
	if !ok {
		t.Fatalf("Stmts[1] = %T, want *ast.Assign", fn.Body.Stmts[1])
	}
	bin, ok := assign.Rhs.(*ast.Binary)
	if !ok || bin.Op != ast.OpAdd {
		t.Fatalf("x += 3 must desugar to Assign{x, Add(x,3)}, got %#v", assign.Rhs)
	}
}

func TestPostIncIsIncDec(t *testing.T) {
	prog := mustParse(t, `int main() { int x; x++; return x; }`)
	fn := firstFunc(t, prog)
	if _, ok := fn.Body.Stmts[1].(*ast.IncDec); !ok {
		t.Fatalf("Stmts[1] = %T, want *ast.IncDec", fn.Body.Stmts[1])
	}
}

func TestPreIncIsAssign(t *testing.T) {
	prog := mustParse(t, `int main() { int x; ++x; return x; }`)
	fn := firstFunc(t, prog)
	assign, ok := fn.Body.Stmts[1].(*ast.Assign)
	if !ok {
		t.Fatalf("Stmts[1] = %T, want *ast.Assign (++x lowers to x = x + 1)", fn.Body.Stmts[1])
	}
	if _, ok := assign.Rhs.(*ast.Binary); !ok {
		t.Errorf("Assign.Rhs = %#v, want *ast.Binary", assign.Rhs)
	}
}

func TestArrowDesugarsToDerefMember(t *testing.T) {
	src := `
	struct Point { int x; int y; };
	int main() {
		struct Point p;
		struct Point *q;
		q = &p;
		return q->x;
	}`
	prog := mustParse(t, src)
	fn := firstFunc(t, prog)
	ret := fn.Body.Stmts[len(fn.Body.Stmts)-1].(*ast.Return)
	mem, ok := ret.Expr.(*ast.Member)
	if !ok || mem.Name != "x" {
		t.Fatalf("q->x = %#v, want Member{x}", ret.Expr)
	}
	deref, ok := mem.Expr.(*ast.Unary)
	if !ok || deref.Op != ast.OpDeref {
		t.Fatalf("q->x's base = %#v, want Deref(q)", mem.Expr)
	}
}

func TestIndexDesugarsToDerefAdd(t *testing.T) {
	prog := mustParse(t, `int main() { int a[3]; return a[1]; }`)
	fn := firstFunc(t, prog)
	ret := fn.Body.Stmts[1].(*ast.Return)
	deref, ok := ret.Expr.(*ast.Unary)
	if !ok || deref.Op != ast.OpDeref {
		t.Fatalf("a[1] = %#v, want Deref(Add(a,1))", ret.Expr)
	}
	add, ok := deref.Expr.(*ast.Binary)
	if !ok || add.Op != ast.OpAdd {
		t.Fatalf("a[1]'s base = %#v, want Add", deref.Expr)
	}
}

func TestBreakAndContinueShareLoopLabels(t *testing.T) {
	prog := mustParse(t, `
	int main() {
		int i;
		for (i = 0; i < 10; i = i + 1) {
			if (i == 5) break;
			if (i == 1) continue;
		}
		return i;
	}`)
	fn := firstFunc(t, prog)
	forStmt, ok := fn.Body.Stmts[1].(*ast.For)
	if !ok {
		t.Fatalf("Stmts[1] = %T, want *ast.For", fn.Body.Stmts[1])
	}
	body := forStmt.Body.(*ast.Compound)
	ifBreak := body.Stmts[0].(*ast.If)
	brk := ifBreak.Then.(*ast.Break)
	if brk.Label != forStmt.BreakLabel {
		t.Errorf("break label %d != for's break label %d", brk.Label, forStmt.BreakLabel)
	}
	ifCont := body.Stmts[1].(*ast.If)
	cont := ifCont.Then.(*ast.Continue)
	if cont.Label != forStmt.ContinueLabel {
		t.Errorf("continue label %d != for's continue label %d", cont.Label, forStmt.ContinueLabel)
	}
}

func TestWhileContinueTargetsConditionRecheck(t *testing.T) {
	prog := mustParse(t, `
	int main() {
		int i;
		while (i < 10) {
			continue;
		}
		return i;
	}`)
	fn := firstFunc(t, prog)
	w := fn.Body.Stmts[1].(*ast.While)
	body := w.Body.(*ast.Compound)
	cont := body.Stmts[0].(*ast.Continue)
	if cont.Label != w.ContinueLabel {
		t.Errorf("continue inside while must target While.ContinueLabel; got %d, want %d",
			cont.Label, w.ContinueLabel)
	}
}

func TestSwitchCollectsCaseValues(t *testing.T) {
	prog := mustParse(t, `
	int main() {
		int x;
		switch (x) {
		case 1:
			break;
		case 2:
			break;
		}
		return x;
	}`)
	fn := firstFunc(t, prog)
	sw := fn.Body.Stmts[1].(*ast.Switch)
	if len(sw.Cases) != 2 {
		t.Fatalf("Cases = %d, want 2", len(sw.Cases))
	}
	if sw.Cases[0].Value != 1 || sw.Cases[1].Value != 2 {
		t.Errorf("Cases = %+v", sw.Cases)
	}
}

func TestSwitchBreakSharesStackWithEnclosingLoop(t *testing.T) {
	prog := mustParse(t, `
	int main() {
		int i;
		for (i = 0; i < 3; i = i + 1) {
			switch (i) {
			case 0:
				break;
			}
		}
		return i;
	}`)
	fn := firstFunc(t, prog)
	forStmt := fn.Body.Stmts[1].(*ast.For)
	sw := forStmt.Body.(*ast.Compound).Stmts[0].(*ast.Switch)
	body := sw.Body.(*ast.Compound)
	brk := body.Stmts[0].(*ast.Break)
	if brk.Label != sw.BreakLabel {
		t.Errorf("break inside switch must target the switch's own break label, got %d want %d",
			brk.Label, sw.BreakLabel)
	}
	if brk.Label == forStmt.BreakLabel {
		t.Errorf("switch break label must not equal the enclosing for's break label")
	}
}

func TestBreakOutsideLoopIsFatal(t *testing.T) {
	mustFail(t, `int main() { break; return 0; }`)
}

func TestContinueOutsideLoopIsFatal(t *testing.T) {
	mustFail(t, `int main() { continue; return 0; }`)
}

func TestGlobalPointerWithStringInitializer(t *testing.T) {
	prog := mustParse(t, `char *msg = "hi";`)
	if len(prog.Globals) != 2 {
		t.Fatalf("Globals = %d, want 2 (msg + anonymous string)", len(prog.Globals))
	}
	// The anonymous string literal is interned while parsing msg's
	// initializer, so it lands in Globals before msg itself does.
	strVar := prog.Globals[0]
	if !strVar.IsStr || string(strVar.StrData) != "hi\x00" {
		t.Errorf("anonymous string global = %+v", strVar)
	}
	msg := prog.Globals[1]
	if msg.Name != "msg" || len(msg.Init) != 1 {
		t.Fatalf("msg = %+v", msg)
	}
}

func TestExternDeclarationProducesNoGlobal(t *testing.T) {
	prog := mustParse(t, `
	extern int counter;
	int main() { return counter; }`)
	for _, g := range prog.Globals {
		if g.Name == "counter" {
			t.Fatalf("extern variable must not be added to Globals, found %+v", g)
		}
	}
}

func TestStructMemberOffsets(t *testing.T) {
	prog := mustParse(t, `
	struct Point { int x; char c; int y; };
	int main() { struct Point p; return p.y; }`)
	fn := firstFunc(t, prog)
	ret := fn.Body.Stmts[1].(*ast.Return)
	mem := ret.Expr.(*ast.Member)
	if mem.Name != "y" {
		t.Fatalf("member = %q, want y", mem.Name)
	}
	// x at 0, c at 4, y rounded up from 5 to its 4-byte alignment.
	m, ok := mem.Expr.(*ast.VarRef).Var.Type.Member("y")
	if !ok || m.Offset != 8 {
		t.Errorf("y offset = %d (found %v), want 8", m.Offset, ok)
	}
}

func TestTypedefResolvesToUnderlyingType(t *testing.T) {
	prog := mustParse(t, `
	typedef int myint;
	int main() { myint x; return x; }`)
	fn := firstFunc(t, prog)
	decl := fn.Body.Stmts[0].(*ast.VarDecl)
	if decl.Var.Type.Kind != ctypes.KInt {
		t.Errorf("typedef'd local type = %s, want int", decl.Var.Type)
	}
}

func TestEnumConstantsAreSequential(t *testing.T) {
	prog := mustParse(t, `
	enum { RED, GREEN, BLUE = 10, YELLOW };
	int main() { return BLUE; }`)
	fn := firstFunc(t, prog)
	ret := fn.Body.Stmts[0].(*ast.Return)
	num, ok := ret.Expr.(*ast.Num)
	if !ok || num.Value != 10 {
		t.Fatalf("BLUE = %#v, want Num{10}", ret.Expr)
	}
}

func TestSizeofTypeIsNotFoldedByParser(t *testing.T) {
	prog := mustParse(t, `int main() { return sizeof(int); }`)
	fn := firstFunc(t, prog)
	ret := fn.Body.Stmts[0].(*ast.Return)
	sz, ok := ret.Expr.(*ast.Sizeof)
	if !ok || sz.ArgType == nil || sz.ArgType.Kind != ctypes.KInt {
		t.Fatalf("sizeof(int) = %#v, want Sizeof{ArgType: int}", ret.Expr)
	}
}

func TestArrayDimensionAcceptsConstantExpression(t *testing.T) {
	prog := mustParse(t, `int main() { int a[2 + 3]; return 0; }`)
	fn := firstFunc(t, prog)
	decl := fn.Body.Stmts[0].(*ast.VarDecl)
	if decl.Var.Type.Len != 5 {
		t.Fatalf("array length = %d, want 5", decl.Var.Type.Len)
	}
}

func TestLocalOffsetsNeverOverlapAcrossScopes(t *testing.T) {
	prog := mustParse(t, `
	int main() {
		int a;
		{
			int b;
		}
		int c;
		return 0;
	}`)
	fn := firstFunc(t, prog)
	a := fn.Body.Stmts[0].(*ast.VarDecl).Var
	block := fn.Body.Stmts[1].(*ast.Compound)
	b := block.Stmts[0].(*ast.VarDecl).Var
	c := fn.Body.Stmts[2].(*ast.VarDecl).Var
	if a.Offset == b.Offset || b.Offset == c.Offset || a.Offset == c.Offset {
		t.Errorf("stack slots must never be reused across scopes: a=%d b=%d c=%d", a.Offset, b.Offset, c.Offset)
	}
}

func TestStatementExpression(t *testing.T) {
	prog := mustParse(t, `int main() { return ({ int x; x = 5; x; }); }`)
	fn := firstFunc(t, prog)
	ret := fn.Body.Stmts[0].(*ast.Return)
	if _, ok := ret.Expr.(*ast.StmtExpr); !ok {
		t.Fatalf("return expr = %T, want *ast.StmtExpr", ret.Expr)
	}
}

func TestUndefinedIdentifierIsFatal(t *testing.T) {
	mustFail(t, `int main() { return nosuch; }`)
}
