package main

import "perlrt/internal/ir"

// hotLoopProgram builds the IR for the canonical hot loop:
//
//	my $s=0; for (my $i=0; $i<100; $i++) { $s += $i }
//
// Slot 0 is $s, slot 1 is $i. Compiling this and running main must yield
// 4950 in the result register, and the compiler's mandatory fusion pass
// must collapse the loop body's ADD+MOVE into ADD_ASSIGN and the
// increment's ADD_INT+MOVE into ADD_ASSIGN_INT.
func hotLoopProgram() *ir.Program {
	const sSlot, iSlot = 0, 1
	body := []ir.Stmt{
		&ir.Assign{
			Slot: sSlot,
			X: &ir.Binary{
				Op:    "+",
				Left:  &ir.LocalRef{Slot: sSlot},
				Right: &ir.LocalRef{Slot: iSlot},
			},
		},
	}
	loop := &ir.ForLoop{
		Label: "",
		Init:  &ir.Literal{Value: int64(0)},
		Limit: &ir.Literal{Value: int64(100)},
		Step: &ir.Binary{
			Op:    "+",
			Left:  &ir.LocalRef{Slot: iSlot},
			Right: &ir.Literal{Value: int64(1)},
		},
		Slot: iSlot,
		Body: body,
	}
	main := &ir.SubDef{
		Name:     "main",
		NumLocal: 2,
		Body: []ir.Stmt{
			&ir.Assign{Slot: sSlot, X: &ir.Literal{Value: int64(0)}},
			loop,
			&ir.Return{X: &ir.LocalRef{Slot: sSlot}},
		},
	}
	return &ir.Program{Subs: []*ir.SubDef{main}}
}

// tailCallProgram builds the IR for a deep tail-call chain: a subroutine
//
//	sub f($n,$acc) { return $acc if $n==0; goto &f }
//
// invoked as f(N, 0). $n is decremented by one on each tail call so the
// chain actually terminates; $acc is carried through unchanged, giving
// a final result of 0 regardless of chain depth. The trampoline in
// internal/interpreter reuses one native frame for the whole chain, so
// depth N costs O(1) Go stack regardless of how large N is.
func tailCallProgram() *ir.Program {
	const nSlot, accSlot = 0, 1
	f := &ir.SubDef{
		Name:     "f",
		NumLocal: 2,
		Body: []ir.Stmt{
			&ir.If{
				Cond: &ir.Binary{
					Op:    "==",
					Left:  &ir.LocalRef{Slot: nSlot},
					Right: &ir.Literal{Value: int64(0)},
				},
				Then: []ir.Stmt{
					&ir.Return{X: &ir.LocalRef{Slot: accSlot}},
				},
			},
			&ir.MarkerReturn{
				Kind: "tailcall",
				Sub:  "f",
				Args: []ir.Expr{
					&ir.Binary{
						Op:    "-",
						Left:  &ir.LocalRef{Slot: nSlot},
						Right: &ir.Literal{Value: int64(1)},
					},
					&ir.LocalRef{Slot: accSlot},
				},
			},
		},
	}
	return &ir.Program{Subs: []*ir.SubDef{f}}
}
