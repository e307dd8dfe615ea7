// Package emit renders a compiled program's IR and globals as x86-64
// assembly text (Intel syntax, System V AMD64 ABI), per spec.md §4.5.
package emit

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/asmfmt"

	"mir9cc/pkg/cenv"
	"mir9cc/pkg/ir"
)

// Physical-register name tables, indexed by the allocator's slot number.
// Grounded byte-for-byte on the original implementation's register order:
// r10, r11, rbx, r12, r13, r14, r15 (spec.md §4.4, §9's register order).
var (
	reg8  = [7]string{"r10b", "r11b", "bl", "r12b", "r13b", "r14b", "r15b"}
	reg32 = [7]string{"r10d", "r11d", "ebx", "r12d", "r13d", "r14d", "r15d"}
	reg64 = [7]string{"r10", "r11", "rbx", "r12", "r13", "r14", "r15"}

	argReg8  = [6]string{"dil", "sil", "dl", "cl", "r8b", "r9b"}
	argReg32 = [6]string{"edi", "esi", "edx", "ecx", "r8d", "r9d"}
	argReg64 = [6]string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}
)

func regOfSize(size int, r ir.Reg) string {
	switch size {
	case 1:
		return reg8[r]
	case 4:
		return reg32[r]
	default:
		return reg64[r]
	}
}

func argRegOfSize(size, idx int) string {
	switch size {
	case 1:
		return argReg8[idx]
	case 4:
		return argReg32[idx]
	default:
		return argReg64[idx]
	}
}

// escape renders one raw byte payload as a GAS .ascii string body, per
// spec.md §4.5's byte-escaping rule: the six named characters get
// backslash forms, other printable ASCII (including space) passes
// through, everything else becomes \ooo octal; a trailing \000 is always
// appended even if the payload already ends in a NUL.
func escape(data []byte) string {
	var b strings.Builder
	for _, c := range data {
		switch c {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '"':
			b.WriteString(`\"`)
		default:
			if c >= 0x20 && c < 0x7f {
				b.WriteByte(c)
			} else {
				fmt.Fprintf(&b, `\%03o`, c)
			}
		}
	}
	b.WriteString(`\000`)
	return b.String()
}

// emitter accumulates assembly text before it is run through asmfmt as a
// final cosmetic pass (SPEC_FULL.md §3: asmfmt failures are not fatal,
// the raw buffer is used as a fallback).
type emitter struct {
	buf strings.Builder
}

func (e *emitter) printf(format string, args ...any) {
	fmt.Fprintf(&e.buf, format, args...)
}

// Program produces the complete assembly text for globals and fns, writing
// it to w. asmfmt.Format is applied as a cosmetic pass; its failure falls
// back to the raw, still-correct buffer rather than aborting emission.
func Program(w io.Writer, globals []*cenv.Var, fns []*ir.Function) error {
	e := &emitter{}
	e.printf(".intel_syntax noprefix\n")
	for _, g := range globals {
		e.global(g)
	}
	for idx, fn := range fns {
		e.function(fn, idx)
	}

	out := e.buf.String()
	if formatted, err := asmfmt.Format(strings.NewReader(out)); err == nil {
		out = string(formatted)
	}
	_, err := io.WriteString(w, out)
	return err
}

func (e *emitter) global(g *cenv.Var) {
	if g.IsStr {
		e.printf(".data\n")
		e.printf("%s:\n", g.Label)
		e.printf("\t.ascii \"%s\"\n", escape(g.StrData))
		return
	}
	if len(g.Init) > 0 {
		e.printf(".data\n")
		e.printf("%s:\n", g.Label)
		for _, dir := range g.Init {
			e.printf("\t%s\n", dir)
		}
		return
	}
	e.printf(".bss\n")
	e.printf("%s:\n", g.Label)
	e.printf("\t.zero %d\n", g.Type.Size)
}

// function emits one function's label, prologue, body, and epilogue. idx
// is this function's position among all emitted functions, used to build
// its unique `.Lend<idx>` epilogue label (spec.md §4.5).
func (e *emitter) function(fn *ir.Function, idx int) {
	e.printf(".text\n")
	e.printf(".global %s\n", fn.Name)
	e.printf("%s:\n", fn.Name)

	e.printf("\tpush rbp\n")
	e.printf("\tmov rbp, rsp\n")
	e.printf("\tsub rsp, %d\n", roundup(fn.StackSize, 16))
	e.printf("\tpush r12\n")
	e.printf("\tpush r13\n")
	e.printf("\tpush r14\n")
	e.printf("\tpush r15\n")

	endLabel := fmt.Sprintf(".Lend%d", idx)
	for _, in := range fn.Instrs {
		e.instr(in, endLabel)
	}

	e.printf("%s:\n", endLabel)
	e.printf("\tpop r15\n")
	e.printf("\tpop r14\n")
	e.printf("\tpop r13\n")
	e.printf("\tpop r12\n")
	e.printf("\tmov rsp, rbp\n")
	e.printf("\tpop rbp\n")
	e.printf("\tret\n")
}

func roundup(n, align int) int {
	return (n + align - 1) / align * align
}

func (e *emitter) setcc(mnemonic string, dst ir.Reg) {
	e.printf("\t%s %s\n", mnemonic, reg8[dst])
	e.printf("\tmovzb %s, %s\n", reg64[dst], reg8[dst])
}

// instr emits the x86-64 mnemonic for one IR instruction, per the mapping
// table in spec.md §4.5 and §6.
func (e *emitter) instr(in ir.Instr, endLabel string) {
	switch i := in.(type) {
	case *ir.Nop:
		// omitted entirely

	case *ir.LabelMark:
		e.printf("%s:\n", i.L.String())

	case *ir.Imm:
		e.printf("\tmov %s, %d\n", reg64[i.Dst], i.Val)

	case *ir.Mov:
		e.printf("\tmov %s, %s\n", reg64[i.Dst], reg64[i.Src])

	case *ir.BpRel:
		e.printf("\tlea %s, [rbp-%d]\n", reg64[i.Dst], i.Offset)

	case *ir.LabelAddr:
		e.printf("\tlea %s, %s\n", reg64[i.Dst], i.Sym)

	case *ir.Add:
		e.binOpcode("add", i)
	case *ir.Sub:
		e.binOpcode("sub", i)

	case *ir.Mul:
		if i.IsImm {
			e.printf("\tmov rax, %s\n", reg64[i.Lhs])
			e.printf("\timul rax, %d\n", i.Imm)
			e.printf("\tmov %s, rax\n", reg64[i.Lhs])
			return
		}
		e.printf("\tmov rax, %s\n", reg64[i.Lhs])
		e.printf("\timul %s\n", reg64[i.Rhs])
		e.printf("\tmov %s, rax\n", reg64[i.Lhs])

	case *ir.Div:
		e.printf("\tmov rax, %s\n", reg64[i.Lhs])
		e.printf("\tcqo\n")
		e.printf("\tidiv %s\n", reg64[i.Rhs])
		e.printf("\tmov %s, rax\n", reg64[i.Lhs])

	case *ir.Mod:
		e.printf("\tmov rax, %s\n", reg64[i.Lhs])
		e.printf("\tcqo\n")
		e.printf("\tidiv %s\n", reg64[i.Rhs])
		e.printf("\tmov %s, rdx\n", reg64[i.Lhs])

	case *ir.Or:
		e.printf("\tor %s, %s\n", reg64[i.Lhs], reg64[i.Rhs])
	case *ir.And:
		e.printf("\tand %s, %s\n", reg64[i.Lhs], reg64[i.Rhs])
	case *ir.Xor:
		e.printf("\txor %s, %s\n", reg64[i.Lhs], reg64[i.Rhs])

	case *ir.Shl:
		e.printf("\tmov cl, %s\n", reg8[i.Rhs])
		e.printf("\tshl %s, cl\n", reg64[i.Lhs])
	case *ir.Shr:
		e.printf("\tmov cl, %s\n", reg8[i.Rhs])
		e.printf("\tshr %s, cl\n", reg64[i.Lhs])

	case *ir.Neg:
		e.printf("\tneg %s\n", reg64[i.R])

	case *ir.Lt:
		e.printf("\tcmp %s, %s\n", reg64[i.Lhs], reg64[i.Rhs])
		e.setcc("setl", i.Lhs)
	case *ir.Le:
		e.printf("\tcmp %s, %s\n", reg64[i.Lhs], reg64[i.Rhs])
		e.setcc("setle", i.Lhs)
	case *ir.Eq:
		e.printf("\tcmp %s, %s\n", reg64[i.Lhs], reg64[i.Rhs])
		e.setcc("sete", i.Lhs)
	case *ir.Ne:
		e.printf("\tcmp %s, %s\n", reg64[i.Lhs], reg64[i.Rhs])
		e.setcc("setne", i.Lhs)

	case *ir.Load:
		e.printf("\tmov %s, [%s]\n", regOfSize(i.Size, i.Dst), reg64[i.Addr])
		if i.Size == 1 {
			e.printf("\tmovzb %s, %s\n", reg64[i.Dst], reg8[i.Dst])
		}

	case *ir.Store:
		e.printf("\tmov [%s], %s\n", reg64[i.Addr], regOfSize(i.Size, i.Src))

	case *ir.StoreArg:
		e.printf("\tmov [rbp-%d], %s\n", i.Offset, argRegOfSize(i.Size, i.ArgIndex))

	case *ir.Jmp:
		e.printf("\tjmp %s\n", i.To.String())

	case *ir.Br:
		e.printf("\tcmp %s, 0\n", reg64[i.Cond])
		e.printf("\tjne %s\n", i.True.String())
		e.printf("\tjmp %s\n", i.False.String())

	case *ir.Ret:
		e.printf("\tmov rax, %s\n", reg64[i.R])
		e.printf("\tjmp %s\n", endLabel)

	case *ir.Call:
		for idx, arg := range i.Args {
			e.printf("\tmov %s, %s\n", argReg64[idx], reg64[arg])
		}
		e.printf("\tpush r10\n")
		e.printf("\tpush r11\n")
		e.printf("\tmov rax, 0\n")
		e.printf("\tcall %s\n", i.Name)
		e.printf("\tpop r11\n")
		e.printf("\tpop r10\n")
		e.printf("\tmov %s, rax\n", reg64[i.Dst])

	case *ir.Kill:
		// regalloc always rewrites Kill to Nop before emit runs.

	default:
		panic(fmt.Sprintf("emit: unhandled IR instruction %T", in))
	}
}

func (e *emitter) binOpcode(mnemonic string, in ir.Instr) {
	switch v := in.(type) {
	case *ir.Add:
		if v.IsImm {
			e.printf("\t%s %s, %d\n", mnemonic, reg64[v.Lhs], v.Imm)
			return
		}
		e.printf("\t%s %s, %s\n", mnemonic, reg64[v.Lhs], reg64[v.Rhs])
	case *ir.Sub:
		if v.IsImm {
			e.printf("\t%s %s, %d\n", mnemonic, reg64[v.Lhs], v.Imm)
			return
		}
		e.printf("\t%s %s, %s\n", mnemonic, reg64[v.Lhs], reg64[v.Rhs])
	}
}
