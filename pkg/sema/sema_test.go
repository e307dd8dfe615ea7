package sema

import (
	"testing"

	"mir9cc/pkg/ast"
	"mir9cc/pkg/compiler"
	"mir9cc/pkg/ctypes"
	"mir9cc/pkg/lexer"
	"mir9cc/pkg/parser"
)

// analyze parses src, runs Sema over it, and returns the completed program.
func analyze(t *testing.T, src string) *ast.Program {
	t.Helper()
	toks, err := lexer.Tokenize("test.c", src)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	ctx := compiler.New("test.c")
	prog, err := parser.Parse(ctx, toks)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := New(ctx).Run(prog); err != nil {
		t.Fatalf("Sema: %v", err)
	}
	return prog
}

// mustFail parses and runs Sema over src, expecting a *compiler.Fatal.
func mustFail(t *testing.T, src string) {
	t.Helper()
	toks, err := lexer.Tokenize("test.c", src)
	if err != nil {
		return
	}
	ctx := compiler.New("test.c")
	prog, err := parser.Parse(ctx, toks)
	if err != nil {
		return
	}
	if err := New(ctx).Run(prog); err == nil {
		t.Fatalf("expected a semantic error for %q", src)
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

func lastReturnExpr(t *testing.T, fn *ast.FuncDef) ast.Node {
	t.Helper()
	for i := len(fn.Body.Stmts) - 1; i >= 0; i-- {
		if ret, ok := fn.Body.Stmts[i].(*ast.Return); ok {
			return ret.Expr
		}
	}
	t.Fatal("no return statement found")
	return nil
}

func TestArrayDecayInReturnPosition(t *testing.T) {
	prog := analyze(t, `int main(){ int a[3]; return a[0]; }`)
	fn := firstFunc(t, prog)
	decl := fn.Body.Stmts[0].(*ast.VarDecl)
	if !decl.Var.Type.IsArray() {
		t.Fatalf("a's declared type = %s, want array", decl.Var.Type)
	}
	deref, ok := lastReturnExpr(t, fn).(*ast.Unary)
	if !ok || deref.Op != ast.OpDeref {
		t.Fatalf("a[0] = %#v, want Deref(Add(a,0))", lastReturnExpr(t, fn))
	}
	add, ok := deref.Expr.(*ast.Binary)
	if !ok {
		t.Fatalf("a[0]'s base = %T, want *ast.Binary", deref.Expr)
	}
	if _, ok := add.Lhs.(*ast.Addr); !ok {
		t.Errorf("a in a[0] = %T, want *ast.Addr (decayed array)", add.Lhs)
	}
}

func TestArrayUsedAsPointerDecays(t *testing.T) {
	// `int *p = a;` forces `a` (an array) to be used in an rvalue/pointer
	// context, where spec.md §4.2 says it must decay to Ptr(int).
	prog := analyze(t, `int main(){ int a[3]; int *p = a; return 0; }`)
	fn := firstFunc(t, prog)
	decl := fn.Body.Stmts[1].(*ast.VarDecl)
	addr, ok := decl.Init.(*ast.Addr)
	if !ok {
		t.Fatalf("initializer = %T, want *ast.Addr (decayed array)", decl.Init)
	}
	typ := ast.TypeOf(addr)
	if !typ.IsPtr() || !ast.TypeOf(addr.Expr).IsArray() {
		t.Fatalf("decayed type = %s, want Ptr(int) wrapping an array expr", typ)
	}
}

func TestSizeofOperandDoesNotDecay(t *testing.T) {
	// sizeof(a) on an array must report the array's own size, not a
	// decayed pointer's size — the decay flag must be false for sizeof's
	// operand (spec.md §4.2).
	prog := analyze(t, `int main(){ int a[3]; return sizeof(a); }`)
	fn := firstFunc(t, prog)
	ret := lastReturnExpr(t, fn).(*ast.Num)
	if ret.Value != 12 {
		t.Errorf("sizeof(int[3]) = %d, want 12", ret.Value)
	}
}

func TestSizeofStringLiteralYieldsArraySize(t *testing.T) {
	// A string literal is Array(Char, len(bytes)); sizeof("abc") must fold
	// to the byte count of "abc\0" (4), not fail as "untyped".
	prog := analyze(t, `int main(){ return sizeof("abc"); }`)
	fn := firstFunc(t, prog)
	ret := lastReturnExpr(t, fn).(*ast.Num)
	if ret.Value != 4 {
		t.Errorf("sizeof(\"abc\") = %d, want 4", ret.Value)
	}
}

func TestStringLiteralIndexingDoesNotPanic(t *testing.T) {
	// "abc"[1] desugars to *(StrLit + 1); StrLit must carry a type or this
	// panics with a nil-pointer dereference in walkBinary's lt.IsPtr().
	prog := analyze(t, `int main(){ return "abc"[1]; }`)
	fn := firstFunc(t, prog)
	ret := lastReturnExpr(t, fn)
	deref, ok := ret.(*ast.Unary)
	if !ok || deref.Op != ast.OpDeref {
		t.Fatalf("return expr = %T, want *ast.Unary(OpDeref)", ret)
	}
	if !ast.TypeOf(deref).IsInteger() {
		t.Errorf("(\"abc\")[1] type = %s, want char", ast.TypeOf(deref))
	}
}

func TestStringLiteralTypeIsCharArray(t *testing.T) {
	// A local `char *p = "hi";` initializer runs through the same sema
	// walk as any other expression (unlike a global's initializer, which
	// the parser resolves directly to assembler directives).
	prog := analyze(t, `int main(){ char *p = "hi"; return 0; }`)
	fn := firstFunc(t, prog)
	decl := fn.Body.Stmts[0].(*ast.VarDecl)
	addr, ok := decl.Init.(*ast.Addr)
	if !ok {
		t.Fatalf("initializer = %T, want *ast.Addr (decayed string)", decl.Init)
	}
	str, ok := addr.Expr.(*ast.StrLit)
	if !ok {
		t.Fatalf("decayed expr = %T, want *ast.StrLit", addr.Expr)
	}
	strType := ast.TypeOf(str)
	if !strType.IsArray() || strType.Len != 3 {
		t.Fatalf("StrLit type = %s (len %d), want array of length 3", strType, strType.Len)
	}
}

func TestPointerPlusIntKeepsPointerType(t *testing.T) {
	prog := analyze(t, `int main(){ int a[3]; int *p = a; return *(p+1); }`)
	fn := firstFunc(t, prog)
	ret := lastReturnExpr(t, fn).(*ast.Unary)
	if ret.Op != ast.OpDeref {
		t.Fatalf("return expr = %+v, want deref", ret)
	}
	add := ret.Expr.(*ast.Binary)
	if !ast.TypeOf(add).IsPtr() {
		t.Errorf("(p+1) type = %s, want ptr", ast.TypeOf(add))
	}
}

func TestPointerPlusPointerIsRejected(t *testing.T) {
	mustFail(t, `int main(){ int a[3]; int b[3]; int *p = a; int *q = b; return *(p+q); }`)
}

func TestPointerMinusPointerIsRejected(t *testing.T) {
	mustFail(t, `int main(){ int a[3]; int b[3]; int *p = a; int *q = b; return p-q; }`)
}

func TestAddressOfNonLvalueIsRejected(t *testing.T) {
	mustFail(t, `int main(){ return &1; }`)
}

func TestAssignToNonLvalueIsRejected(t *testing.T) {
	mustFail(t, `int main(){ 1 = 2; return 0; }`)
}

func TestStructMemberAccessGetsMemberType(t *testing.T) {
	prog := analyze(t, `struct P{ int x; char y; }; int main(){ struct P p; return p.y; }`)
	fn := firstFunc(t, prog)
	ret := lastReturnExpr(t, fn)
	member, ok := ret.(*ast.Member)
	if !ok {
		t.Fatalf("return expr = %T, want *ast.Member", ret)
	}
	typ := ast.TypeOf(member)
	if typ.Kind != ctypes.KChar {
		t.Errorf("p.y type = %s, want char", typ)
	}
}

func TestMemberAccessOnNonStructIsRejected(t *testing.T) {
	mustFail(t, `int main(){ int a; return a.x; }`)
}
