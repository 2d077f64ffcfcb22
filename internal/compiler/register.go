package compiler

// RegisterAllocator hands out scratch registers above the fixed range
// reserved for a subroutine's named locals, with the stack discipline
// of a linear-scan allocator: the next free register is reused on
// Alloc, freed registers are pushed onto a small free list, and
// Lock/Unlock pin a register so a nested sub-expression can't clobber
// it while still live.
type RegisterAllocator struct {
	reserved int
	next     int
	max      int
	freeList []int
	locked   map[int]bool
}

// NewRegisterAllocator returns an allocator whose first Alloc() yields
// reserved (registers [0,reserved) are the subroutine's pinned locals
// and are never handed out here).
func NewRegisterAllocator(reserved int) *RegisterAllocator {
	return &RegisterAllocator{
		reserved: reserved,
		next:     reserved,
		max:      reserved,
		locked:   make(map[int]bool),
	}
}

func (ra *RegisterAllocator) Alloc() int {
	if n := len(ra.freeList); n > 0 {
		reg := ra.freeList[n-1]
		ra.freeList = ra.freeList[:n-1]
		return reg
	}
	reg := ra.next
	ra.next++
	if ra.next > ra.max {
		ra.max = ra.next
	}
	return reg
}

// Free returns a scratch register to the free list. Pinned locals
// (below the reserved range) and locked registers are never recycled —
// a caller may Free the register any expression handed back without
// checking whether it was a local's fixed slot.
func (ra *RegisterAllocator) Free(reg int) {
	if reg < ra.reserved || ra.locked[reg] {
		return
	}
	ra.freeList = append(ra.freeList, reg)
}

func (ra *RegisterAllocator) Lock(reg int)   { ra.locked[reg] = true }
func (ra *RegisterAllocator) Unlock(reg int) { delete(ra.locked, reg) }

// FindConsecutive returns n consecutive unlocked registers starting at
// or above the next free slot, reserving them (advancing next past
// them) — used for call argument runs, which must be contiguous.
func (ra *RegisterAllocator) FindConsecutive(n int) int {
	start := ra.next
	for {
		ok := true
		for i := 0; i < n; i++ {
			if ra.locked[start+i] {
				start += i + 1
				ok = false
				break
			}
		}
		if ok {
			if start+n > ra.next {
				ra.next = start + n
				if ra.next > ra.max {
					ra.max = ra.next
				}
			}
			return start
		}
	}
}

// MaxRegister returns one past the highest register index this
// allocator has ever handed out (the frame's required register count).
func (ra *RegisterAllocator) MaxRegister() int { return ra.max }
