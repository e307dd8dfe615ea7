package regalloc

import (
	"mir9cc/pkg/compiler"
	"mir9cc/pkg/ir"
)

// Allocate runs the second pass over fn's instructions: a free-list of
// NumPhysRegs slots, walked in order, assigning each virtual register's
// first appearance a slot and returning it to the pool once its last use
// has passed (spec.md §4.4). Kill instructions are rewritten to Nop once
// their register's death has been accounted for. Exhausting the free list
// is fatal — this allocator never spills.
func Allocate(ctx *compiler.Context, fn *ir.Function) error {
	ranges := computeLiveRanges(fn.Instrs)

	free := make([]int, NumPhysRegs)
	for i := range free {
		free[i] = NumPhysRegs - 1 - i
	}
	assigned := make(map[ir.Reg]ir.Reg)

	for idx, in := range fn.Instrs {
		for vreg, phys := range assigned {
			if ranges[vreg].lastUse < idx {
				free = append(free, int(phys))
				delete(assigned, vreg)
			}
		}

		for _, rp := range in.Regs() {
			vreg := *rp
			if phys, ok := assigned[vreg]; ok {
				*rp = phys
				continue
			}
			if len(free) == 0 {
				return compiler.Errf(compiler.RegAlloc, ctx.File, 0,
					"%s: more than %d registers live at once, no spilling supported",
					fn.Name, NumPhysRegs)
			}
			slot := free[len(free)-1]
			free = free[:len(free)-1]
			phys := ir.Reg(slot)
			assigned[vreg] = phys
			*rp = phys
		}

		if _, ok := in.(*ir.Kill); ok {
			fn.Instrs[idx] = &ir.Nop{}
		}
	}
	return nil
}
