// Package ir defines the register-unlimited linear intermediate
// representation irgen produces, regalloc rewrites in place, and emit
// consumes. Each opcode is its own Go type — a tagged variant, not a
// struct-plus-opcode-byte — so each variant formats itself and carries
// exactly the operand shape it needs (spec.md §9, "IR as a tagged
// variant").
package ir

import (
	"fmt"
	"strings"
)

// Reg is a register id: a virtual register (>=1) before regalloc runs,
// or a physical register index in [0,6] after it does.
type Reg int

// Instr is one IR instruction. Regs returns pointers to every register
// operand slot in source order, letting regalloc rewrite them in place
// without a per-opcode special case; Kill instructions are replaced by
// Nop by the allocator rather than deleted, so instruction indices never
// shift.
type Instr interface {
	instr()
	Regs() []*Reg
	String() string
}

// Label is a fresh, process-wide-unique jump-target id.
type Label int

func (l Label) asm() string { return fmt.Sprintf(".L%d", int(l)) }

// String renders a Label the way the emitter references it as a jump
// target or mark.
func (l Label) String() string { return l.asm() }

// --- data move ---

type Imm struct {
	Dst Reg
	Val int64
}

func (*Imm) instr()          {}
func (i *Imm) Regs() []*Reg  { return []*Reg{&i.Dst} }
func (i *Imm) String() string { return fmt.Sprintf("MOV r%d, %d", i.Dst, i.Val) }

type Mov struct {
	Dst, Src Reg
}

func (*Mov) instr()          {}
func (i *Mov) Regs() []*Reg  { return []*Reg{&i.Dst, &i.Src} }
func (i *Mov) String() string { return fmt.Sprintf("MOV r%d, r%d", i.Dst, i.Src) }

// BpRel computes rbp-Offset into Dst.
type BpRel struct {
	Dst    Reg
	Offset int
}

func (*BpRel) instr()          {}
func (i *BpRel) Regs() []*Reg  { return []*Reg{&i.Dst} }
func (i *BpRel) String() string { return fmt.Sprintf("BPREL r%d, %d", i.Dst, i.Offset) }

// LabelAddr loads the address of a global symbol into Dst.
type LabelAddr struct {
	Dst Reg
	Sym string
}

func (*LabelAddr) instr()          {}
func (i *LabelAddr) Regs() []*Reg  { return []*Reg{&i.Dst} }
func (i *LabelAddr) String() string { return fmt.Sprintf("LABELADDR r%d, %s", i.Dst, i.Sym) }

// --- arithmetic ---

// binOpcode is the shared shape of Add/Sub/Mul/Div/Mod/Or/And/Xor/Shl/Shr:
// in-place "Lhs op= Rhs", with Add/Sub/Mul additionally supporting an
// immediate second operand (IsImm true, Imm valid, Rhs unused).
type binOpcode struct {
	name  string
	Lhs   Reg
	Rhs   Reg
	IsImm bool
	Imm   int64
}

func (b *binOpcode) Regs() []*Reg {
	if b.IsImm {
		return []*Reg{&b.Lhs}
	}
	return []*Reg{&b.Lhs, &b.Rhs}
}

func (b *binOpcode) String() string {
	if b.IsImm {
		return fmt.Sprintf("%s r%d, %d", b.name, b.Lhs, b.Imm)
	}
	return fmt.Sprintf("%s r%d, r%d", b.name, b.Lhs, b.Rhs)
}

type Add struct{ binOpcode }
type Sub struct{ binOpcode }
type Mul struct{ binOpcode }

func (*Add) instr() {}
func (*Sub) instr() {}
func (*Mul) instr() {}

func NewAdd(lhs, rhs Reg) *Add { return &Add{binOpcode{name: "ADD", Lhs: lhs, Rhs: rhs}} }
func NewSub(lhs, rhs Reg) *Sub { return &Sub{binOpcode{name: "SUB", Lhs: lhs, Rhs: rhs}} }
func NewMul(lhs, rhs Reg) *Mul { return &Mul{binOpcode{name: "MUL", Lhs: lhs, Rhs: rhs}} }

func NewAddImm(lhs Reg, v int64) *Add { return &Add{binOpcode{name: "ADD", Lhs: lhs, IsImm: true, Imm: v}} }
func NewSubImm(lhs Reg, v int64) *Sub { return &Sub{binOpcode{name: "SUB", Lhs: lhs, IsImm: true, Imm: v}} }
func NewMulImm(lhs Reg, v int64) *Mul { return &Mul{binOpcode{name: "MUL", Lhs: lhs, IsImm: true, Imm: v}} }

// simpleBin is the shape of a plain two-register arithmetic/bitwise/
// comparison op with no immediate form.
type simpleBin struct {
	name string
	Lhs  Reg
	Rhs  Reg
}

func (b *simpleBin) Regs() []*Reg   { return []*Reg{&b.Lhs, &b.Rhs} }
func (b *simpleBin) String() string { return fmt.Sprintf("%s r%d, r%d", b.name, b.Lhs, b.Rhs) }

type Div struct{ simpleBin }
type Mod struct{ simpleBin }
type Or struct{ simpleBin }
type And struct{ simpleBin }
type Xor struct{ simpleBin }
type Shl struct{ simpleBin }
type Shr struct{ simpleBin }
type Lt struct{ simpleBin }
type Le struct{ simpleBin }
type Eq struct{ simpleBin }
type Ne struct{ simpleBin }

func (*Div) instr() {}
func (*Mod) instr() {}
func (*Or) instr()  {}
func (*And) instr() {}
func (*Xor) instr() {}
func (*Shl) instr() {}
func (*Shr) instr() {}
func (*Lt) instr()  {}
func (*Le) instr()  {}
func (*Eq) instr()  {}
func (*Ne) instr()  {}

func NewDiv(l, r Reg) *Div { return &Div{simpleBin{"DIV", l, r}} }
func NewMod(l, r Reg) *Mod { return &Mod{simpleBin{"MOD", l, r}} }
func NewOr(l, r Reg) *Or   { return &Or{simpleBin{"OR", l, r}} }
func NewAnd(l, r Reg) *And { return &And{simpleBin{"AND", l, r}} }
func NewXor(l, r Reg) *Xor { return &Xor{simpleBin{"XOR", l, r}} }
func NewShl(l, r Reg) *Shl { return &Shl{simpleBin{"SHL", l, r}} }
func NewShr(l, r Reg) *Shr { return &Shr{simpleBin{"SHR", l, r}} }
func NewLt(l, r Reg) *Lt   { return &Lt{simpleBin{"LT", l, r}} }
func NewLe(l, r Reg) *Le   { return &Le{simpleBin{"LE", l, r}} }
func NewEq(l, r Reg) *Eq   { return &Eq{simpleBin{"EQ", l, r}} }
func NewNe(l, r Reg) *Ne   { return &Ne{simpleBin{"NE", l, r}} }

// Neg negates R in place.
type Neg struct {
	R Reg
}

func (*Neg) instr()          {}
func (i *Neg) Regs() []*Reg  { return []*Reg{&i.R} }
func (i *Neg) String() string { return fmt.Sprintf("NEG r%d", i.R) }

// --- memory ---

// Load reads Size bytes through Addr into Dst. Size is 1, 4, or 8.
type Load struct {
	Size int
	Dst  Reg
	Addr Reg
}

func (*Load) instr()          {}
func (i *Load) Regs() []*Reg  { return []*Reg{&i.Dst, &i.Addr} }
func (i *Load) String() string { return fmt.Sprintf("LOAD%d r%d, r%d", i.Size, i.Dst, i.Addr) }

// Store writes Size bytes of Src through Addr.
type Store struct {
	Size int
	Addr Reg
	Src  Reg
}

func (*Store) instr()          {}
func (i *Store) Regs() []*Reg  { return []*Reg{&i.Addr, &i.Src} }
func (i *Store) String() string { return fmt.Sprintf("STORE%d r%d, r%d", i.Size, i.Addr, i.Src) }

// StoreArg spills System V argument register ArgIndex into [rbp-Offset].
type StoreArg struct {
	Size     int
	Offset   int
	ArgIndex int
}

func (*StoreArg) instr()         {}
func (i *StoreArg) Regs() []*Reg { return nil }
func (i *StoreArg) String() string {
	return fmt.Sprintf("STOREARG%d %d, %d", i.Size, i.Offset, i.ArgIndex)
}

// --- control ---

type Jmp struct {
	To Label
}

func (*Jmp) instr()          {}
func (i *Jmp) Regs() []*Reg  { return nil }
func (i *Jmp) String() string { return fmt.Sprintf("JMP %s", i.To.asm()) }

// Br jumps to True if Cond is nonzero, else to False.
type Br struct {
	Cond        Reg
	True, False Label
}

func (*Br) instr()          {}
func (i *Br) Regs() []*Reg  { return []*Reg{&i.Cond} }
func (i *Br) String() string {
	return fmt.Sprintf("BR r%d, %s, %s", i.Cond, i.True.asm(), i.False.asm())
}

// LabelMark places a jump target at this position in the instruction
// stream. Not one of spec.md §3's enumerated opcodes, but needed to give
// Jmp/Br somewhere to land in a flat instruction list; grounded in
// original_source's IrLabel.
type LabelMark struct {
	L Label
}

func (*LabelMark) instr()          {}
func (i *LabelMark) Regs() []*Reg  { return nil }
func (i *LabelMark) String() string { return fmt.Sprintf("%s:", i.L.asm()) }

type Ret struct {
	R Reg
}

func (*Ret) instr()          {}
func (i *Ret) Regs() []*Reg  { return []*Reg{&i.R} }
func (i *Ret) String() string { return fmt.Sprintf("RET r%d", i.R) }

// --- call ---

type Call struct {
	Dst  Reg
	Name string
	Args []Reg
}

func (*Call) instr() {}
func (i *Call) Regs() []*Reg {
	regs := make([]*Reg, 0, 1+len(i.Args))
	regs = append(regs, &i.Dst)
	for idx := range i.Args {
		regs = append(regs, &i.Args[idx])
	}
	return regs
}
func (i *Call) String() string {
	args := make([]string, len(i.Args))
	for idx, a := range i.Args {
		args[idx] = fmt.Sprintf("r%d", a)
	}
	return fmt.Sprintf("CALL r%d, %s(%s)", i.Dst, i.Name, strings.Join(args, ", "))
}

// --- allocator pseudo-ops ---

// Kill marks R dead at this point; regalloc frees R's physical slot after
// this instruction and then rewrites the instruction itself to Nop.
type Kill struct {
	R Reg
}

func (*Kill) instr()          {}
func (i *Kill) Regs() []*Reg  { return []*Reg{&i.R} }
func (i *Kill) String() string { return fmt.Sprintf("KILL r%d", i.R) }

// Nop is emitted in place of a deleted Kill; emit skips it entirely.
type Nop struct{}

func (*Nop) instr()          {}
func (i *Nop) Regs() []*Reg  { return nil }
func (i *Nop) String() string { return "NOP" }

// Function is one compiled function's IR: its name, its flat instruction
// list, and its stack frame size (sum of local sizes, rounded up to 16).
type Function struct {
	Name      string
	Instrs    []Instr
	StackSize int
}

// Dump renders a Function in the textual shape spec.md §8's dump-ir1
// scenario pins: "name():" followed by one instruction per line.
func (f *Function) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s():\n", f.Name)
	for _, in := range f.Instrs {
		fmt.Fprintf(&b, "  %s\n", in.String())
	}
	return b.String()
}
