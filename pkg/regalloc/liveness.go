// Package regalloc implements the two-pass linear-scan allocator that
// rewrites a function's virtual registers to one of seven physical slots
// (spec.md §4.4), failing if more than seven are simultaneously live.
package regalloc

import "mir9cc/pkg/ir"

// Physical register count and the real x86-64 registers each slot names,
// in slot order. pkg/emit keeps its own copy of these names, together
// with their 32-bit and 8-bit views.
const NumPhysRegs = 7

var PhysRegNames = [NumPhysRegs]string{"r10", "r11", "rbx", "r12", "r13", "r14", "r15"}

// liveRange records the first instruction index a virtual register is
// defined or referenced at, and the last index it's referenced at —
// including the index of a Kill targeting it; a later reference to the
// same number extends the range past that Kill.
type liveRange struct {
	firstDef int
	lastUse  int
}

// computeLiveRanges is the allocator's first pass: one scan over the
// instruction list recording, per virtual register, its first appearance
// and its last reference (spec.md §4.4's "first pass").
func computeLiveRanges(instrs []ir.Instr) map[ir.Reg]*liveRange {
	ranges := make(map[ir.Reg]*liveRange)
	touch := func(r ir.Reg, idx int) {
		lr, ok := ranges[r]
		if !ok {
			lr = &liveRange{firstDef: idx}
			ranges[r] = lr
		}
		lr.lastUse = idx
	}
	for idx, in := range instrs {
		for _, rp := range in.Regs() {
			touch(*rp, idx)
		}
		if k, ok := in.(*ir.Kill); ok {
			ranges[k.R].lastUse = idx
		}
	}
	return ranges
}
