package interpreter

import "perlrt/internal/scalar"

// frame is one subroutine activation: a register file sized to the
// program's declared register count (shared across every subroutine, so
// a tail-call trampoline never needs to grow or shrink it), the program
// counter, and the name of the subroutine currently executing in it —
// tracked separately from the entry point because a tail-call
// trampoline reuses this struct across subroutine boundaries.
type frame struct {
	regs []*scalar.Scalar
	pc   int
	sub  string
}

// newFrame allocates a fresh register file — every slot its own
// Scalar, never a pooled singleton, since registers are mutated in
// place by the *Assign superinstructions — and copies args into the
// leading registers per the call ABI: arguments arrive as a contiguous
// slice of the caller's register file and the callee sees them as
// arg[0..n).
func newFrame(registerCount int, entry int, subName string, args []*scalar.Scalar) *frame {
	regs := make([]*scalar.Scalar, registerCount)
	for i := range regs {
		regs[i] = scalar.NewUndef()
	}
	for i, a := range args {
		if i >= len(regs) {
			break
		}
		regs[i].Assign(a)
	}
	return &frame{regs: regs, pc: entry, sub: subName}
}

// reset clears every register to undef and reloads args into the
// leading registers, then repositions pc at entry and relabels the
// frame's owning subroutine — the tail-call trampoline's frame-reuse
// step: the named subroutine begins execution in the same frame.
func (f *frame) reset(entry int, subName string, args []*scalar.Scalar) {
	// Args may alias f.regs (a tail call's arguments live in the same
	// frame being reset), so snapshot their values before clearing.
	saved := make([]*scalar.Scalar, len(args))
	for i, a := range args {
		v := scalar.NewUndef()
		v.Assign(a)
		saved[i] = v
	}
	for _, r := range f.regs {
		r.SetUndef()
	}
	for i, v := range saved {
		if i >= len(f.regs) {
			break
		}
		f.regs[i].Assign(v)
	}
	f.pc = entry
	f.sub = subName
}

// liveCount reports how many of the frame's registers hold something
// other than undef — a cheap occupancy figure for external
// introspection (internal/debugsrv); never consulted on the hot path.
func (f *frame) liveCount() int {
	n := 0
	for _, r := range f.regs {
		if r.Kind() != scalar.KindUndef {
			n++
		}
	}
	return n
}
