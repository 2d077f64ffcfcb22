package compiler

import "perlrt/internal/bytecode"

// fuse runs the mandatory peephole pass that collapses two-instruction
// patterns the compiler's straightforward emission produces into single
// superinstructions. This runs once per subroutine body, immediately
// after emission and before splitting, so splitting operates on the
// already-fused (shorter) stream. Every branch-family instruction's
// offset is rewritten in place so it still lands on an opcode start in
// the shortened stream.
func fuse(code []bytecode.Instruction) []bytecode.Instruction {
	out, _ := fuseWithMap(code)
	return out
}

// fuseWithMap is fuse's internal form, additionally returning oldToNew
// (pre-fusion index -> post-fusion index, with one trailing entry for
// len(code) itself, the "jump past the end" sentinel) so a caller that
// tracks pre-fusion positions of its own — the compiler's loop-target
// bookkeeping — can remap them the same way branch offsets are remapped
// below.
func fuseWithMap(code []bytecode.Instruction) (out []bytecode.Instruction, oldToNew []int) {
	out = make([]bytecode.Instruction, 0, len(code))
	oldToNew = make([]int, len(code)+1)
	newToOld := make([]int, 0, len(code))
	i := 0
	for i < len(code) {
		oldToNew[i] = len(out)
		if i+1 < len(code) {
			cur := code[i]
			next := code[i+1]
			if fused, ok := tryFuse(cur, next); ok {
				out = append(out, fused)
				newToOld = append(newToOld, i)
				oldToNew[i+1] = len(out) - 1 // interior of a fused pair; never a real jump target
				i += 2
				continue
			}
		}
		out = append(out, code[i])
		newToOld = append(newToOld, i)
		i++
	}
	oldToNew[len(code)] = len(out)

	for pc, instr := range out {
		switch instr.OpCode() {
		case bytecode.GOTO, bytecode.GOTO_IF_TRUE, bytecode.GOTO_IF_FALSE:
			oldPC := newToOld[pc]
			oldTarget := oldPC + 1 + int(instr.SBx())
			newTarget := oldToNew[oldTarget]
			out[pc] = bytecode.CreateAsBx(instr.OpCode(), instr.A(), int32(newTarget-pc-1))
		}
	}
	return out, oldToNew
}

// tryFuse recognizes the three mandatory fusion patterns:
//
//   ADD     rd, rs, rt ; MOVE rs, rd  ->  ADD_ASSIGN     rs, rt
//   ADD_INT rd, rs, K  ; MOVE rs, rd  ->  ADD_ASSIGN_INT rs, K
//   LOAD_INT rd, K     ; MOVE rs, rd  ->  LOAD_INT       rs, K
//
// and their SUB/MUL/DIV/MOD siblings. A MOVE only fuses with the
// instruction immediately preceding it that produced exactly the
// register the MOVE reads — and, for the arithmetic patterns, only when
// the MOVE writes back into the operation's own left operand (rs): a
// MOVE into any other register is an ordinary copy (`rx = rs + rt`),
// not an in-place update, and must stay two instructions.
func tryFuse(cur, next bytecode.Instruction) (bytecode.Instruction, bool) {
	if next.OpCode() != bytecode.MOVE {
		return cur, false
	}
	moveDst, moveSrc := next.A(), next.B()
	if moveSrc != cur.A() {
		return cur, false
	}

	if cur.OpCode() == bytecode.LOAD_INT {
		return bytecode.CreateAsBx(bytecode.LOAD_INT, moveDst, cur.SBx()), true
	}
	if moveDst != cur.B() {
		return cur, false
	}

	switch cur.OpCode() {
	case bytecode.ADD:
		return bytecode.CreateABC(bytecode.ADD_ASSIGN, moveDst, cur.C(), 0), true
	case bytecode.SUB:
		return bytecode.CreateABC(bytecode.SUB_ASSIGN, moveDst, cur.C(), 0), true
	case bytecode.MUL:
		return bytecode.CreateABC(bytecode.MUL_ASSIGN, moveDst, cur.C(), 0), true
	case bytecode.DIV:
		return bytecode.CreateABC(bytecode.DIV_ASSIGN, moveDst, cur.C(), 0), true
	case bytecode.MOD:
		return bytecode.CreateABC(bytecode.MOD_ASSIGN, moveDst, cur.C(), 0), true

	case bytecode.ADD_INT:
		return bytecode.CreateABC(bytecode.ADD_ASSIGN_INT, moveDst, cur.C(), 0), true
	case bytecode.SUB_INT:
		return bytecode.CreateABC(bytecode.SUB_ASSIGN_INT, moveDst, cur.C(), 0), true
	case bytecode.MUL_INT:
		return bytecode.CreateABC(bytecode.MUL_ASSIGN_INT, moveDst, cur.C(), 0), true
	case bytecode.DIV_INT:
		return bytecode.CreateABC(bytecode.DIV_ASSIGN_INT, moveDst, cur.C(), 0), true
	case bytecode.MOD_INT:
		return bytecode.CreateABC(bytecode.MOD_ASSIGN_INT, moveDst, cur.C(), 0), true
	}
	return cur, false
}
