// Package interpreter executes a compiled bytecode.Program: register
// frames, the threaded dispatch loop, control-flow marker propagation,
// and the tail-call trampoline.
package interpreter

import (
	"perlrt/internal/bytecode"
	"perlrt/internal/ioerr"
	"perlrt/internal/scalar"
)

// DefaultMaxCallDepth bounds native (non-tail) recursion so a runaway
// non-tail-recursive program fails with a reported error instead of
// crashing the host Go stack — tail-call form is the supported way to
// recurse deeper than this.
const DefaultMaxCallDepth = 2000

// Hook observes call-boundary steps for external read-only introspection
// (internal/debugsrv). Implementations must not block or mutate
// interpreter state; a nil Hook (the default) costs a single nil check
// per CALL/CALL_REF/TAIL_CALL/MARK_TAIL/RETURN.
type Hook interface {
	OnStep(sub string, pc int, depth int, liveRegisters int)
}

// Interpreter executes one bytecode.Program. It is single-threaded per
// invocation: a single Interpreter value must not be driven by more
// than one goroutine concurrently, though independent Interpreters over
// the same (read-only, shared-by-reference) Program may run on separate
// threads freely.
type Interpreter struct {
	prog *bytecode.Program

	// subIdxToName resolves a CALL/TAIL_CALL/MARK_TAIL's subtable index
	// back to the subroutine's name, so a frame reused by the tail-call
	// trampoline always knows which subroutine's LoopTargets apply.
	subIdxToName []string

	maxCallDepth int
	depth        int

	// Hook, when non-nil, is notified at call/return boundaries. Left
	// nil by New; set directly by a caller that wants introspection.
	Hook Hook
}

// New constructs an Interpreter for prog. prog is treated as immutable
// and may be shared across many Interpreter instances.
func New(prog *bytecode.Program) *Interpreter {
	entryToName := make(map[int]string, len(prog.Subroutines))
	for name, entry := range prog.Subroutines {
		entryToName[entry] = name
	}
	subIdxToName := make([]string, len(prog.SubTable))
	for i, entry := range prog.SubTable {
		subIdxToName[i] = entryToName[entry]
	}
	return &Interpreter{
		prog:         prog,
		subIdxToName: subIdxToName,
		maxCallDepth: DefaultMaxCallDepth,
	}
}

// Run invokes the named subroutine with args and returns its result.
// A control-flow marker that unwinds all the way out of the outermost
// frame is a fatal "outside of loop" error.
func (vm *Interpreter) Run(sub string, args []*scalar.Scalar) (*scalar.Scalar, error) {
	entry, ok := vm.prog.Subroutines[sub]
	if !ok {
		return nil, ioerr.NewInvariant("interpreter: unknown subroutine %q", sub)
	}
	f := newFrame(vm.prog.RegisterCount, entry, sub, args)
	result, err := vm.executeFrame(f)
	if err != nil {
		return nil, err
	}
	if m, ok := asMarker(result); ok {
		return nil, ioerr.NewException("%s outside of loop", m.kind)
	}
	return result, nil
}

// executeFrame runs f's dispatch loop to completion: either an ordinary
// RETURN (yielding a ordinary scalar or an escaping marker the caller
// must itself re-propagate), or an error from a primitive/invariant
// failure. The tail-call trampoline (TAIL_CALL, MARK_TAIL) reuses f in
// place, so this function's own Go call stack never grows with tail
// recursion depth — only non-tail CALL recurses natively, via vm.call.
func (vm *Interpreter) executeFrame(f *frame) (*scalar.Scalar, error) {
	code := vm.prog.Code
	consts := vm.prog.Constants

	for {
		if f.pc < 0 || f.pc >= len(code) {
			return nil, ioerr.NewInvariant("interpreter: pc %d out of range in %q", f.pc, f.sub)
		}
		instr := code[f.pc]
		switch instr.OpCode() {

		case bytecode.LOAD_INT:
			f.regs[instr.A()].SetInt(int64(instr.SBx()))
			f.pc++

		case bytecode.LOAD_CONST:
			f.regs[instr.A()].Assign(consts[instr.Bx()])
			f.pc++

		case bytecode.MOVE:
			f.regs[instr.A()].Assign(f.regs[instr.B()])
			f.pc++

		case bytecode.ADD, bytecode.SUB, bytecode.MUL, bytecode.DIV, bytecode.MOD:
			r, err := binaryArith(instr.OpCode(), f.regs[instr.B()], f.regs[instr.C()])
			if err != nil {
				return nil, err
			}
			f.regs[instr.A()].Assign(r)
			f.pc++

		case bytecode.NEG:
			f.regs[instr.A()].Assign(scalar.Negate(f.regs[instr.B()]))
			f.pc++

		case bytecode.ADD_INT, bytecode.SUB_INT, bytecode.MUL_INT, bytecode.DIV_INT, bytecode.MOD_INT:
			r, err := binaryArith(intToRegOp(instr.OpCode()), f.regs[instr.B()], scalar.Int(int64(instr.SC())))
			if err != nil {
				return nil, err
			}
			f.regs[instr.A()].Assign(r)
			f.pc++

		case bytecode.ADD_ASSIGN:
			if err := scalar.AddAssign(f.regs[instr.A()], f.regs[instr.B()]); err != nil {
				return nil, err
			}
			f.pc++
		case bytecode.SUB_ASSIGN:
			if err := scalar.SubtractAssign(f.regs[instr.A()], f.regs[instr.B()]); err != nil {
				return nil, err
			}
			f.pc++
		case bytecode.MUL_ASSIGN:
			if err := scalar.MultiplyAssign(f.regs[instr.A()], f.regs[instr.B()]); err != nil {
				return nil, err
			}
			f.pc++
		case bytecode.DIV_ASSIGN:
			if err := scalar.DivideAssign(f.regs[instr.A()], f.regs[instr.B()]); err != nil {
				return nil, err
			}
			f.pc++
		case bytecode.MOD_ASSIGN:
			if err := scalar.ModulusAssign(f.regs[instr.A()], f.regs[instr.B()]); err != nil {
				return nil, err
			}
			f.pc++

		case bytecode.ADD_ASSIGN_INT:
			if err := scalar.AddAssign(f.regs[instr.A()], scalar.Int(int64(instr.SB()))); err != nil {
				return nil, err
			}
			f.pc++
		case bytecode.SUB_ASSIGN_INT:
			if err := scalar.SubtractAssign(f.regs[instr.A()], scalar.Int(int64(instr.SB()))); err != nil {
				return nil, err
			}
			f.pc++
		case bytecode.MUL_ASSIGN_INT:
			if err := scalar.MultiplyAssign(f.regs[instr.A()], scalar.Int(int64(instr.SB()))); err != nil {
				return nil, err
			}
			f.pc++
		case bytecode.DIV_ASSIGN_INT:
			if err := scalar.DivideAssign(f.regs[instr.A()], scalar.Int(int64(instr.SB()))); err != nil {
				return nil, err
			}
			f.pc++
		case bytecode.MOD_ASSIGN_INT:
			if err := scalar.ModulusAssign(f.regs[instr.A()], scalar.Int(int64(instr.SB()))); err != nil {
				return nil, err
			}
			f.pc++

		case bytecode.LT_NUM, bytecode.LE_NUM, bytecode.GT_NUM, bytecode.GE_NUM,
			bytecode.EQ_NUM, bytecode.NE_NUM, bytecode.CMP_NUM,
			bytecode.LT_STR, bytecode.LE_STR, bytecode.GT_STR, bytecode.GE_STR,
			bytecode.EQ_STR, bytecode.NE_STR, bytecode.CMP_STR:
			r, err := binaryCompare(instr.OpCode(), f.regs[instr.B()], f.regs[instr.C()])
			if err != nil {
				return nil, err
			}
			f.regs[instr.A()].Assign(r)
			f.pc++

		case bytecode.TO_BOOL:
			f.regs[instr.A()].Assign(scalar.Bool(f.regs[instr.B()].ToBoolean()))
			f.pc++
		case bytecode.TO_INT:
			f.regs[instr.A()].Assign(scalar.Int(f.regs[instr.B()].ToInt()))
			f.pc++
		case bytecode.TO_DOUBLE:
			f.regs[instr.A()].Assign(scalar.NewDouble(f.regs[instr.B()].ToDouble()))
			f.pc++
		case bytecode.TO_STRING:
			f.regs[instr.A()].Assign(scalar.NewString(f.regs[instr.B()].ToString()))
			f.pc++

		case bytecode.CONCAT:
			r, err := scalar.Concat(f.regs[instr.B()], f.regs[instr.C()])
			if err != nil {
				return nil, err
			}
			f.regs[instr.A()].Assign(r)
			f.pc++
		case bytecode.CONCAT_ASSIGN:
			if err := scalar.ConcatAssign(f.regs[instr.A()], f.regs[instr.B()]); err != nil {
				return nil, err
			}
			f.pc++
		case bytecode.STR_LEN:
			f.regs[instr.A()].Assign(scalar.Length(f.regs[instr.B()]))
			f.pc++
		case bytecode.STR_REPEAT:
			f.regs[instr.A()].Assign(scalar.Repeat(f.regs[instr.B()], f.regs[instr.C()]))
			f.pc++

		case bytecode.GOTO:
			f.pc += 1 + int(instr.SBx())

		case bytecode.GOTO_IF_TRUE:
			if f.regs[instr.A()].ToBoolean() {
				f.pc += 1 + int(instr.SBx())
			} else {
				f.pc++
			}
		case bytecode.GOTO_IF_FALSE:
			if !f.regs[instr.A()].ToBoolean() {
				f.pc += 1 + int(instr.SBx())
			} else {
				f.pc++
			}

		case bytecode.RETURN:
			if vm.Hook != nil {
				vm.Hook.OnStep(f.sub, f.pc, vm.depth, f.liveCount())
			}
			return f.regs[instr.A()], nil

		case bytecode.CALL:
			if vm.Hook != nil {
				vm.Hook.OnStep(f.sub, f.pc, vm.depth, f.liveCount())
			}
			result, err := vm.call(int(instr.B()), int(instr.A())+1, int(instr.C()), f)
			if err != nil {
				return nil, err
			}
			if m, ok := asMarker(result); ok {
				target, handled := vm.resolveMarker(f.pc, m)
				if !handled {
					return result, nil
				}
				f.pc = target
				continue
			}
			f.regs[instr.A()].Assign(result)
			f.pc++

		case bytecode.CALL_REF:
			if vm.Hook != nil {
				vm.Hook.OnStep(f.sub, f.pc, vm.depth, f.liveCount())
			}
			result, err := vm.callRef(f.regs[instr.B()], int(instr.A())+1, int(instr.C()), f)
			if err != nil {
				return nil, err
			}
			if m, ok := asMarker(result); ok {
				target, handled := vm.resolveMarker(f.pc, m)
				if !handled {
					return result, nil
				}
				f.pc = target
				continue
			}
			f.regs[instr.A()].Assign(result)
			f.pc++

		case bytecode.TAIL_CALL:
			if vm.Hook != nil {
				vm.Hook.OnStep(f.sub, f.pc, vm.depth, f.liveCount())
			}
			subIdx := int(instr.B())
			if subIdx < 0 || subIdx >= len(vm.prog.SubTable) {
				return nil, ioerr.NewInvariant("interpreter: subroutine index %d out of range", subIdx)
			}
			argBase := int(instr.A()) + 1
			argCount := int(instr.C())
			vm.trampoline(f, subIdx, argBase, argCount)
			continue

		case bytecode.MARK_TAIL:
			if vm.Hook != nil {
				vm.Hook.OnStep(f.sub, f.pc, vm.depth, f.liveCount())
			}
			subIdx := int(instr.B())
			if subIdx < 0 || subIdx >= len(vm.prog.SubTable) {
				return nil, ioerr.NewInvariant("interpreter: subroutine index %d out of range", subIdx)
			}
			argBase := int(instr.A()) + 1
			argCount := int(instr.C())
			vm.trampoline(f, subIdx, argBase, argCount)
			continue

		case bytecode.TAIL_CHAIN:
			// Oversize-split continuation: jump into the synthetic part
			// reusing the whole register file — locals stay live across
			// the cut, unlike TAIL_CALL's copy-args-then-clear reset.
			subIdx := int(instr.Bx())
			if subIdx >= len(vm.prog.SubTable) {
				return nil, ioerr.NewInvariant("interpreter: subroutine index %d out of range", subIdx)
			}
			f.pc = vm.prog.SubTable[subIdx]
			f.sub = vm.subIdxToName[subIdx]

		case bytecode.MARK_LAST:
			f.regs[instr.A()].Assign(newMarkerScalar(&marker{kind: markerLast, label: consts[instr.Bx()].ToString()}))
			f.pc++
		case bytecode.MARK_NEXT:
			f.regs[instr.A()].Assign(newMarkerScalar(&marker{kind: markerNext, label: consts[instr.Bx()].ToString()}))
			f.pc++
		case bytecode.MARK_REDO:
			f.regs[instr.A()].Assign(newMarkerScalar(&marker{kind: markerRedo, label: consts[instr.Bx()].ToString()}))
			f.pc++

		case bytecode.NOP:
			f.pc++

		default:
			return nil, ioerr.NewInvariant("interpreter: invalid opcode %v at pc %d", instr.OpCode(), f.pc)
		}
	}
}

// call performs a non-tail CALL/CALL_REF: pushes a new frame, recurses
// into executeFrame (native Go recursion — bounded by maxCallDepth), and
// returns whatever that frame returned, marker or ordinary scalar alike,
// for the caller-check logic at the CALL site to interpret.
func (vm *Interpreter) call(subIdx, argBase, argCount int, caller *frame) (*scalar.Scalar, error) {
	if subIdx < 0 || subIdx >= len(vm.prog.SubTable) {
		return nil, ioerr.NewInvariant("interpreter: subroutine index %d out of range", subIdx)
	}
	entry := vm.prog.SubTable[subIdx]
	name := vm.subIdxToName[subIdx]
	return vm.invoke(entry, name, caller.regs[argBase:argBase+argCount])
}

func (vm *Interpreter) callRef(callee *scalar.Scalar, argBase, argCount int, caller *frame) (*scalar.Scalar, error) {
	if callee.Kind() != scalar.KindCodeRef {
		return nil, ioerr.NewException("not a CODE reference")
	}
	name, ok := callee.RefTarget().(string)
	if !ok {
		return nil, ioerr.NewException("not a CODE reference")
	}
	entry, ok := vm.prog.Subroutines[name]
	if !ok {
		return nil, ioerr.NewInvariant("interpreter: undefined subroutine %q", name)
	}
	return vm.invoke(entry, name, caller.regs[argBase:argBase+argCount])
}

func (vm *Interpreter) invoke(entry int, name string, args []*scalar.Scalar) (*scalar.Scalar, error) {
	vm.depth++
	defer func() { vm.depth-- }()
	if vm.depth > vm.maxCallDepth {
		return nil, ioerr.NewException("deep recursion on subroutine %q (stack overflow; use a tail call)", name)
	}
	callee := newFrame(vm.prog.RegisterCount, entry, name, args)
	return vm.executeFrame(callee)
}

// trampoline performs the frame-reuse step shared by TAIL_CALL and
// MARK_TAIL: the current frame is repurposed for the target subroutine
// instead of recursing, so native stack growth stays O(1) no matter
// how deep the tail-call chain runs.
func (vm *Interpreter) trampoline(f *frame, subIdx, argBase, argCount int) {
	entry := vm.prog.SubTable[subIdx]
	name := vm.subIdxToName[subIdx]
	f.reset(entry, name, f.regs[argBase:argBase+argCount])
}

// resolveMarker implements the caller check: does the currently
// executing frame own a loop enclosing callSitePC whose label matches m
// (or, for an unlabelled marker, any enclosing loop)? Ties among nested
// matches favor the innermost (largest StartPC). Matching is by flat pc
// range alone — offsets into Code are globally unique across
// subroutines, and an oversize-split continuation part must still match
// loop targets recorded under the original subroutine's name.
func (vm *Interpreter) resolveMarker(callSitePC int, m *marker) (int, bool) {
	var best *bytecode.LoopTarget
	for i := range vm.prog.LoopTargets {
		lt := &vm.prog.LoopTargets[i]
		if callSitePC < lt.StartPC || callSitePC >= lt.EndPC {
			continue
		}
		if m.label != "" && lt.Label != m.label {
			continue
		}
		if best == nil || lt.StartPC > best.StartPC {
			best = lt
		}
	}
	if best == nil {
		return 0, false
	}
	switch m.kind {
	case markerLast:
		return best.BreakPC, true
	case markerNext:
		return best.ContinuePC, true
	case markerRedo:
		return best.RedoPC, true
	default:
		return 0, false
	}
}

func binaryArith(op bytecode.OpCode, a, b *scalar.Scalar) (*scalar.Scalar, error) {
	switch op {
	case bytecode.ADD:
		return scalar.Add(a, b)
	case bytecode.SUB:
		return scalar.Subtract(a, b)
	case bytecode.MUL:
		return scalar.Multiply(a, b)
	case bytecode.DIV:
		return scalar.Divide(a, b)
	case bytecode.MOD:
		return scalar.Modulus(a, b)
	default:
		return nil, ioerr.NewInvariant("interpreter: %v is not a binary arithmetic opcode", op)
	}
}

func binaryCompare(op bytecode.OpCode, a, b *scalar.Scalar) (*scalar.Scalar, error) {
	switch op {
	case bytecode.LT_NUM:
		return scalar.Lt(a, b)
	case bytecode.LE_NUM:
		return scalar.Le(a, b)
	case bytecode.GT_NUM:
		return scalar.Gt(a, b)
	case bytecode.GE_NUM:
		return scalar.Ge(a, b)
	case bytecode.EQ_NUM:
		return scalar.Eq(a, b)
	case bytecode.NE_NUM:
		return scalar.Ne(a, b)
	case bytecode.CMP_NUM:
		return scalar.Cmp(a, b)
	case bytecode.LT_STR:
		return scalar.Slt(a, b)
	case bytecode.LE_STR:
		return scalar.Sle(a, b)
	case bytecode.GT_STR:
		return scalar.Sgt(a, b)
	case bytecode.GE_STR:
		return scalar.Sge(a, b)
	case bytecode.EQ_STR:
		return scalar.Seq(a, b)
	case bytecode.NE_STR:
		return scalar.Sne(a, b)
	case bytecode.CMP_STR:
		return scalar.Scmp(a, b)
	default:
		return nil, ioerr.NewInvariant("interpreter: %v is not a comparison opcode", op)
	}
}

// intToRegOp maps an _INT immediate opcode to the register/register
// opcode binaryArith knows how to evaluate (the immediate has already
// been boxed into a scalar by the caller).
func intToRegOp(op bytecode.OpCode) bytecode.OpCode {
	switch op {
	case bytecode.ADD_INT:
		return bytecode.ADD
	case bytecode.SUB_INT:
		return bytecode.SUB
	case bytecode.MUL_INT:
		return bytecode.MUL
	case bytecode.DIV_INT:
		return bytecode.DIV
	case bytecode.MOD_INT:
		return bytecode.MOD
	default:
		return op
	}
}
