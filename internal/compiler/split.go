package compiler

import "perlrt/internal/bytecode"

// splitOversize breaks a subroutine body exceeding MaxMethodInstructions
// into chunks chained by TAIL_CHAIN, so no single subroutine entry in
// prog.SubTable ever points at a body longer than the threshold. Each
// chunk after the first becomes its own synthetic subroutine, registered
// under a name derived from the original so disassembly output stays
// traceable. TAIL_CHAIN reuses the entire register file (unlike
// TAIL_CALL's argument-copy-then-clear), so locals stay live across the
// cut and "semantics unchanged after split" holds.
//
// Cut positions are chosen so that no branch crosses them — every
// GOTO/GOTO_IF_* stays inside its own chunk, which keeps every relative
// offset valid without a remapping pass. A loop's back-edge spans its
// whole body, so this rule also guarantees a cut never lands inside a
// loop.
//
// The returned map has len(code)+1 entries translating pre-split
// positions to post-split positions, so the caller's loop-target
// bookkeeping survives the inserted chain instructions. A body that
// doesn't exceed the threshold is returned unchanged with an identity
// map.
func splitOversize(code []bytecode.Instruction, name string, prog *bytecode.Program, subIndex map[string]int) ([]bytecode.Instruction, []int) {
	oldToNew := make([]int, len(code)+1)
	if len(code) <= MaxMethodInstructions {
		for i := range oldToNew {
			oldToNew[i] = i
		}
		return code, oldToNew
	}

	unsafe := crossingBoundaries(code)

	// base is where out[0] will land once the caller appends it to
	// prog.Code, so each synthetic part's real entry offset can be
	// computed and registered up front instead of patched later.
	base := len(prog.Code)

	var out []bytecode.Instruction
	chunkStart := 0
	part := 0
	pendingChain := -1
	for chunkStart < len(code) {
		if part > 0 {
			partName := syntheticName(name, part)
			partIdx := len(prog.SubTable)
			entry := base + len(out)
			subIndex[partName] = partIdx
			prog.SubTable = append(prog.SubTable, entry)
			prog.Subroutines[partName] = entry
			out[pendingChain] = bytecode.CreateABx(bytecode.TAIL_CHAIN, 0, uint16(partIdx))
		}

		end := len(code)
		if end-chunkStart > MaxMethodInstructions-1 {
			end = safeCut(unsafe, chunkStart, chunkStart+MaxMethodInstructions-1)
		}
		for i := chunkStart; i < end; i++ {
			oldToNew[i] = len(out)
			out = append(out, code[i])
		}

		if end < len(code) {
			// The Bx operand (subtable index of the next part) is patched
			// at the top of the next iteration, once that part's entry
			// offset is known.
			pendingChain = len(out)
			out = append(out, bytecode.CreateABx(bytecode.TAIL_CHAIN, 0, 0))
		}
		chunkStart = end
		part++
	}
	oldToNew[len(code)] = len(out)
	return out, oldToNew
}

// crossingBoundaries returns, for every instruction boundary p (a cut
// between code[p-1] and code[p]), how many branches jump across it. A
// boundary with a zero count is a safe split point.
func crossingBoundaries(code []bytecode.Instruction) []int {
	diff := make([]int, len(code)+2)
	for i, instr := range code {
		switch instr.OpCode() {
		case bytecode.GOTO, bytecode.GOTO_IF_TRUE, bytecode.GOTO_IF_FALSE:
			target := i + 1 + int(instr.SBx())
			lo, hi := i, target
			if lo > hi {
				lo, hi = hi, lo
			}
			// Boundaries in (lo, hi] separate this branch from its target.
			diff[lo+1]++
			if hi+1 < len(diff) {
				diff[hi+1]--
			}
		}
	}
	unsafe := make([]int, len(code)+1)
	running := 0
	for p := 0; p <= len(code); p++ {
		running += diff[p]
		unsafe[p] = running
	}
	return unsafe
}

// safeCut picks the largest boundary in (from, limit] no branch crosses.
// A straight-line stretch always exists well inside MaxMethodInstructions
// for compiler-emitted code; if every candidate is crossed the limit is
// used as-is — the least-wrong fallback.
func safeCut(unsafe []int, from, limit int) int {
	for p := limit; p > from; p-- {
		if unsafe[p] == 0 {
			return p
		}
	}
	return limit
}

func syntheticName(name string, part int) string {
	return name + "$part" + itoa(part)
}

// itoa avoids pulling in strconv for a single small non-negative int.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
