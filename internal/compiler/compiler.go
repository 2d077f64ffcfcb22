// Package compiler translates the ir package's tagged tree into a
// bytecode.Program: register allocation, instruction emission,
// mandatory superinstruction fusion, and oversize-method splitting.
package compiler

import (
	"perlrt/internal/bytecode"
	"perlrt/internal/ioerr"
	"perlrt/internal/ir"
	"perlrt/internal/scalar"
)

// MaxMethodInstructions is the per-subroutine bytecode size threshold.
// A subroutine whose emitted body exceeds it is split automatically
// into chained helper subroutines.
const MaxMethodInstructions = 50000

type loopFrame struct {
	label      string
	continuePC []int // patch sites for "next"/continue
	breakPC    []int // patch sites for "last"/break
	redoTarget int    // pc to jump back to for "redo"
	startPC    int    // local pc where the loop body begins
}

// Compiler holds state for one compilation pass over an ir.Program.
type Compiler struct {
	prog *bytecode.Program

	// subIndex maps a subroutine name to its slot in prog.SubTable,
	// assigned before any body is compiled so forward calls resolve.
	subIndex map[string]int

	code      []bytecode.Instruction
	constants []*scalar.Scalar
	alloc     *RegisterAllocator
	loops     []loopFrame
	err       error

	// pendingLoopTargets accumulates one entry per closed loop/labelled
	// block, in pre-fusion local pc coordinates, for Compile to remap
	// through fuseWithMap's oldToNew table and rebase into
	// prog.LoopTargets once this subroutine's entry offset is known.
	pendingLoopTargets []bytecode.LoopTarget
}

// Compile compiles every subroutine in p into a single bytecode.Program.
func Compile(p *ir.Program) (*bytecode.Program, error) {
	prog := bytecode.NewProgram()
	subIndex := make(map[string]int, len(p.Subs))
	for i, s := range p.Subs {
		subIndex[s.Name] = i
		prog.SubTable = append(prog.SubTable, 0) // patched below
	}

	for _, s := range p.Subs {
		c := &Compiler{
			prog:     prog,
			subIndex: subIndex,
			alloc:    NewRegisterAllocator(s.NumLocal),
		}
		entry := len(prog.Code)
		prog.SubTable[subIndex[s.Name]] = entry
		prog.Subroutines[s.Name] = entry

		for _, stmt := range s.Body {
			c.compileStmt(stmt)
			if c.err != nil {
				return nil, c.err
			}
		}
		// Implicit `return undef` if control falls off the end.
		c.emitReturn(c.loadUndef())

		fused, oldToNew := fuseWithMap(c.code)
		split, splitMap := splitOversize(fused, s.Name, prog, subIndex)

		// Rebase this subroutine's pending loop targets: remap each
		// local pc through fusion's oldToNew table and the splitter's
		// position map, then shift by this subroutine's entry offset
		// (computed earlier as `entry`) to land in prog.Code's flat
		// address space. splitOversize only cuts where no branch
		// crosses, so a loop's own pcs land in one chunk and stay
		// internally consistent after both remaps.
		for _, lt := range c.pendingLoopTargets {
			lt.Sub = s.Name
			lt.ContinuePC = entry + splitMap[oldToNew[lt.ContinuePC]]
			lt.BreakPC = entry + splitMap[oldToNew[lt.BreakPC]]
			lt.RedoPC = entry + splitMap[oldToNew[lt.RedoPC]]
			lt.StartPC = entry + splitMap[oldToNew[lt.StartPC]]
			lt.EndPC = entry + splitMap[oldToNew[lt.EndPC]]
			prog.LoopTargets = append(prog.LoopTargets, lt)
		}

		// Each sub compiled its own constants starting at index 0;
		// rebase every constant-pool-carrying instruction (LOAD_CONST
		// and the marker opcodes' label index) before folding them into
		// the shared pool.
		constOffset := uint16(len(prog.Constants))
		for i, instr := range split {
			switch instr.OpCode() {
			case bytecode.LOAD_CONST, bytecode.MARK_LAST, bytecode.MARK_NEXT, bytecode.MARK_REDO:
				split[i] = bytecode.CreateABx(instr.OpCode(), instr.A(), instr.Bx()+constOffset)
			}
		}
		prog.Code = append(prog.Code, split...)
		prog.Constants = append(prog.Constants, c.constants...)

		if c.alloc.MaxRegister() > prog.RegisterCount {
			prog.RegisterCount = c.alloc.MaxRegister()
		}
	}

	if err := prog.Verify(); err != nil {
		return nil, err
	}
	return prog, nil
}

func (c *Compiler) fail(format string, args ...interface{}) {
	if c.err == nil {
		c.err = ioerr.NewInvariant(format, args...)
	}
}

func (c *Compiler) emit(instr bytecode.Instruction) int {
	pos := len(c.code)
	c.code = append(c.code, instr)
	return pos
}

func (c *Compiler) emitReturn(reg int) {
	c.emit(bytecode.CreateABC(bytecode.RETURN, uint8(reg), 0, 0))
}

// addConstant interns src's scalar by value-equal string form (cheap
// dedup; exact numeric identity isn't required for a constant pool).
func (c *Compiler) addConstant(s *scalar.Scalar) uint16 {
	for i, existing := range c.constants {
		if existing.Kind() == s.Kind() && existing.ToString() == s.ToString() {
			return uint16(i)
		}
	}
	idx := len(c.constants)
	c.constants = append(c.constants, s)
	return uint16(idx)
}

func (c *Compiler) loadUndef() int {
	reg := c.alloc.Alloc()
	idx := c.addConstant(scalar.Undef())
	c.emit(bytecode.CreateABx(bytecode.LOAD_CONST, uint8(reg), idx))
	return reg
}

// ---------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------

func (c *Compiler) compileStmt(stmt ir.Stmt) {
	switch s := stmt.(type) {
	case *ir.ExprStmt:
		reg := c.compileExpr(s.X)
		c.alloc.Free(reg)
	case *ir.Assign:
		valReg := c.compileExpr(s.X)
		if valReg != s.Slot {
			c.emit(bytecode.CreateABC(bytecode.MOVE, uint8(s.Slot), uint8(valReg), 0))
			c.alloc.Free(valReg)
		}
	case *ir.Return:
		if s.X == nil {
			c.emitReturn(c.loadUndef())
			return
		}
		reg := c.compileExpr(s.X)
		c.emitReturn(reg)
	case *ir.If:
		c.compileIf(s)
	case *ir.ForLoop:
		c.compileForLoop(s)
	case *ir.LabelledBlock:
		c.compileLabelledBlock(s)
	case *ir.LoopControl:
		c.compileLoopControl(s)
	case *ir.MarkerReturn:
		c.compileMarkerReturn(s)
	default:
		c.fail("compiler: unknown statement type %T", stmt)
	}
}

func (c *Compiler) compileIf(s *ir.If) {
	condReg := c.compileExpr(s.Cond)
	jumpToElse := c.emit(bytecode.CreateAsBx(bytecode.GOTO_IF_FALSE, uint8(condReg), 0))
	c.alloc.Free(condReg)

	for _, stmt := range s.Then {
		c.compileStmt(stmt)
	}

	if len(s.Else) == 0 {
		c.patchHere(jumpToElse)
		return
	}

	jumpToEnd := c.emit(bytecode.CreateAsBx(bytecode.GOTO, 0, 0))
	c.patchHere(jumpToElse)
	for _, stmt := range s.Else {
		c.compileStmt(stmt)
	}
	c.patchHere(jumpToEnd)
}

// patchHere rewrites the branch instruction at pc to target the current
// end-of-code position.
func (c *Compiler) patchHere(pc int) {
	instr := c.code[pc]
	offset := len(c.code) - pc - 1
	c.code[pc] = bytecode.CreateAsBx(instr.OpCode(), instr.A(), int32(offset))
}

func (c *Compiler) patchTo(pc, target int) {
	instr := c.code[pc]
	offset := target - pc - 1
	c.code[pc] = bytecode.CreateAsBx(instr.OpCode(), instr.A(), int32(offset))
}

// compileForLoop lowers a C-style numeric for into the same
// comparison/branch/increment shape a hand-written while-loop would
// produce — deliberately not a dedicated FOR_PREP/FOR_LOOP pair, since
// emitting the increment as an ordinary ADD(_INT) immediately followed
// by a MOVE back into the loop variable's slot is what lets the
// mandatory fusion peephole collapse it to ADD_ASSIGN(_INT) — the
// shape hot loops depend on.
func (c *Compiler) compileForLoop(s *ir.ForLoop) {
	initReg := c.compileExpr(s.Init)
	if initReg != s.Slot {
		c.emit(bytecode.CreateABC(bytecode.MOVE, uint8(s.Slot), uint8(initReg), 0))
		c.alloc.Free(initReg)
	}

	headPC := len(c.code)
	limitReg := c.compileExpr(s.Limit)
	condReg := c.alloc.Alloc()
	c.emit(bytecode.CreateABC(bytecode.LT_NUM, uint8(condReg), uint8(s.Slot), uint8(limitReg)))
	c.alloc.Free(limitReg)
	exitPC := c.emit(bytecode.CreateAsBx(bytecode.GOTO_IF_FALSE, uint8(condReg), 0))
	c.alloc.Free(condReg)

	bodyStart := len(c.code)
	c.loops = append(c.loops, loopFrame{label: s.Label, redoTarget: bodyStart, startPC: bodyStart})
	for _, stmt := range s.Body {
		c.compileStmt(stmt)
	}
	frame := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]

	// NEXT resumes here: the increment step.
	continueTarget := len(c.code)
	stepReg := c.compileExpr(s.Step)
	if stepReg != s.Slot {
		c.emit(bytecode.CreateABC(bytecode.MOVE, uint8(s.Slot), uint8(stepReg), 0))
		c.alloc.Free(stepReg)
	}
	backPC := c.emit(bytecode.CreateAsBx(bytecode.GOTO, 0, 0))
	c.patchTo(backPC, headPC)
	c.patchHere(exitPC)

	for _, pc := range frame.continuePC {
		c.patchTo(pc, continueTarget)
	}
	for _, pc := range frame.breakPC {
		c.patchHere(pc)
	}
	endPC := len(c.code)
	c.recordLoopTarget(frame, continueTarget, endPC, endPC)
}

// recordLoopTarget appends one loop's resolved local-pc bookkeeping to
// pendingLoopTargets, so a marker that propagates back up to THIS
// subroutine from a nested CALL can be matched against the call site
// that issued it and resumed at the right point. Every loop is
// recorded, labelled or not: a labelled marker only matches a loop with
// the same label, while an unlabelled marker matches any enclosing loop.
func (c *Compiler) recordLoopTarget(frame loopFrame, continuePC, breakPC, endPC int) {
	c.pendingLoopTargets = append(c.pendingLoopTargets, bytecode.LoopTarget{
		Label:      frame.label,
		ContinuePC: continuePC,
		BreakPC:    breakPC,
		RedoPC:     frame.redoTarget,
		StartPC:    frame.startPC,
		EndPC:      endPC,
	})
}

func (c *Compiler) compileLabelledBlock(s *ir.LabelledBlock) {
	start := len(c.code)
	c.loops = append(c.loops, loopFrame{label: s.Label, redoTarget: start, startPC: start})
	for _, stmt := range s.Body {
		c.compileStmt(stmt)
	}
	frame := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]
	for _, pc := range frame.continuePC {
		c.patchHere(pc)
	}
	for _, pc := range frame.breakPC {
		c.patchHere(pc)
	}
	end := len(c.code)
	// A labelled block has no "continue" step distinct from falling off
	// its end; NEXT and LAST both resume after the block.
	c.recordLoopTarget(frame, end, end, end)
}

// findLoop returns the innermost loop frame index matching label (""
// matches the innermost loop regardless of label).
func (c *Compiler) findLoop(label string) int {
	for i := len(c.loops) - 1; i >= 0; i-- {
		if label == "" || c.loops[i].label == label {
			return i
		}
	}
	return -1
}

// compileLoopControl handles same-frame last/next/redo: plain jumps, no
// control-flow marker involved (markers are only for cross-frame flow).
func (c *Compiler) compileLoopControl(s *ir.LoopControl) {
	idx := c.findLoop(s.Label)
	if idx < 0 {
		c.fail("compiler: %s outside of loop", s.Kind)
		return
	}
	switch s.Kind {
	case "redo":
		target := c.loops[idx].redoTarget
		pc := c.emit(bytecode.CreateAsBx(bytecode.GOTO, 0, 0))
		c.patchTo(pc, target)
	case "next":
		pc := c.emit(bytecode.CreateAsBx(bytecode.GOTO, 0, 0))
		c.loops[idx].continuePC = append(c.loops[idx].continuePC, pc)
	case "last":
		pc := c.emit(bytecode.CreateAsBx(bytecode.GOTO, 0, 0))
		c.loops[idx].breakPC = append(c.loops[idx].breakPC, pc)
	default:
		c.fail("compiler: unknown loop control kind %q", s.Kind)
	}
}

// compileMarkerReturn emits one of MARK_LAST/MARK_NEXT/MARK_REDO,
// immediately followed by a RETURN of the marker register — the only
// way a marker enters the cross-frame return channel. A "tailcall"
// emits MARK_TAIL (then a RETURN of its argument base), which reuses
// the frame and produces no marker.
func (c *Compiler) compileMarkerReturn(s *ir.MarkerReturn) {
	reg := c.alloc.Alloc()
	labelIdx := c.addConstant(scalar.NewString(s.Label))

	switch s.Kind {
	case "last":
		c.emit(bytecode.CreateABx(bytecode.MARK_LAST, uint8(reg), labelIdx))
	case "next":
		c.emit(bytecode.CreateABx(bytecode.MARK_NEXT, uint8(reg), labelIdx))
	case "redo":
		c.emit(bytecode.CreateABx(bytecode.MARK_REDO, uint8(reg), labelIdx))
	case "tailcall":
		subIdx, ok := c.subIndex[s.Sub]
		if !ok {
			c.fail("compiler: unknown subroutine %q in tail call", s.Sub)
			return
		}
		base := c.compileArgRun(s.Args)
		c.emit(bytecode.CreateABC(bytecode.MARK_TAIL, uint8(base), uint8(subIdx), uint8(len(s.Args))))
		c.emitReturn(base)
		return
	default:
		c.fail("compiler: unknown marker kind %q", s.Kind)
		return
	}
	c.emitReturn(reg)
}

// ---------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------

func (c *Compiler) compileExpr(expr ir.Expr) int {
	switch e := expr.(type) {
	case *ir.Literal:
		return c.compileLiteral(e)
	case *ir.LocalRef:
		return e.Slot
	case *ir.Binary:
		return c.compileBinary(e)
	case *ir.Unary:
		return c.compileUnary(e)
	case *ir.Call:
		return c.compileCall(e)
	case *ir.CallRef:
		return c.compileCallRef(e)
	case *ir.GotoSub:
		return c.compileGotoSub(e)
	default:
		c.fail("compiler: unknown expression type %T", expr)
		return c.alloc.Alloc()
	}
}

func (c *Compiler) compileLiteral(e *ir.Literal) int {
	reg := c.alloc.Alloc()
	switch v := e.Value.(type) {
	case int64:
		if v > -(1<<15) && v < (1<<15) {
			c.emit(bytecode.CreateAsBx(bytecode.LOAD_INT, uint8(reg), int32(v)))
			return reg
		}
		idx := c.addConstant(scalar.NewInt(v))
		c.emit(bytecode.CreateABx(bytecode.LOAD_CONST, uint8(reg), idx))
	case float64:
		idx := c.addConstant(scalar.NewDouble(v))
		c.emit(bytecode.CreateABx(bytecode.LOAD_CONST, uint8(reg), idx))
	case string:
		idx := c.addConstant(scalar.NewString(v))
		c.emit(bytecode.CreateABx(bytecode.LOAD_CONST, uint8(reg), idx))
	case bool:
		idx := c.addConstant(scalar.Bool(v))
		c.emit(bytecode.CreateABx(bytecode.LOAD_CONST, uint8(reg), idx))
	default:
		c.fail("compiler: unsupported literal type %T", v)
	}
	return reg
}

var binaryOps = map[string]bytecode.OpCode{
	"+": bytecode.ADD, "-": bytecode.SUB, "*": bytecode.MUL, "/": bytecode.DIV, "%": bytecode.MOD,
	"lt": bytecode.LT_NUM, "le": bytecode.LE_NUM, "gt": bytecode.GT_NUM, "ge": bytecode.GE_NUM,
	"==": bytecode.EQ_NUM, "!=": bytecode.NE_NUM, "<=>": bytecode.CMP_NUM,
	"slt": bytecode.LT_STR, "sle": bytecode.LE_STR, "sgt": bytecode.GT_STR, "sge": bytecode.GE_STR,
	"seq": bytecode.EQ_STR, "sne": bytecode.NE_STR, "cmp": bytecode.CMP_STR,
	".": bytecode.CONCAT, "x": bytecode.STR_REPEAT,
}

// binaryIntOps maps an arithmetic operator to its register/immediate
// opcode form, used when the right operand is a small constant — this
// is what feeds the fusion peephole's ADD_INT+MOVE -> ADD_ASSIGN_INT
// pattern in hot loops.
var binaryIntOps = map[string]bytecode.OpCode{
	"+": bytecode.ADD_INT, "-": bytecode.SUB_INT, "*": bytecode.MUL_INT,
	"/": bytecode.DIV_INT, "%": bytecode.MOD_INT,
}

func (c *Compiler) compileBinary(e *ir.Binary) int {
	if intOp, ok := binaryIntOps[e.Op]; ok {
		if lit, isLit := e.Right.(*ir.Literal); isLit {
			if v, isInt := lit.Value.(int64); isInt && v >= -128 && v <= 127 {
				leftReg := c.compileExpr(e.Left)
				resultReg := c.alloc.Alloc()
				c.emit(bytecode.CreateABC(intOp, uint8(resultReg), uint8(leftReg), uint8(int8(v))))
				if _, isLocal := e.Left.(*ir.LocalRef); !isLocal {
					c.alloc.Free(leftReg)
				}
				return resultReg
			}
		}
	}

	op, ok := binaryOps[e.Op]
	if !ok {
		c.fail("compiler: unknown binary operator %q", e.Op)
		return c.alloc.Alloc()
	}
	leftReg := c.compileExpr(e.Left)
	leftWasLocked := false
	if _, isLocal := e.Left.(*ir.LocalRef); !isLocal {
		c.alloc.Lock(leftReg)
	} else {
		leftWasLocked = true
	}
	rightReg := c.compileExpr(e.Right)
	resultReg := c.alloc.Alloc()
	c.emit(bytecode.CreateABC(op, uint8(resultReg), uint8(leftReg), uint8(rightReg)))
	if !leftWasLocked {
		c.alloc.Unlock(leftReg)
		c.alloc.Free(leftReg)
	}
	c.alloc.Free(rightReg)
	return resultReg
}

func (c *Compiler) compileUnary(e *ir.Unary) int {
	operandReg := c.compileExpr(e.Operand)
	resultReg := c.alloc.Alloc()
	switch e.Op {
	case "-":
		c.emit(bytecode.CreateABC(bytecode.NEG, uint8(resultReg), uint8(operandReg), 0))
	case "!":
		c.emit(bytecode.CreateABC(bytecode.TO_BOOL, uint8(resultReg), uint8(operandReg), 0))
	default:
		c.fail("compiler: unknown unary operator %q", e.Op)
	}
	c.alloc.Free(operandReg)
	return resultReg
}

// compileArgRun evaluates args into a contiguous register run and
// returns its base register, per the call ABI's "contiguous slice".
func (c *Compiler) compileArgRun(args []ir.Expr) int {
	tmp := make([]int, len(args))
	for i, a := range args {
		tmp[i] = c.compileExpr(a)
		c.alloc.Lock(tmp[i])
	}
	base := c.alloc.FindConsecutive(len(args) + 1)
	for i, reg := range tmp {
		target := base + 1 + i
		c.alloc.Unlock(reg)
		if reg != target {
			c.emit(bytecode.CreateABC(bytecode.MOVE, uint8(target), uint8(reg), 0))
			c.alloc.Free(reg)
		}
	}
	return base
}

func (c *Compiler) compileCall(e *ir.Call) int {
	subIdx, ok := c.subIndex[e.Sub]
	if !ok {
		c.fail("compiler: unknown subroutine %q", e.Sub)
		return c.alloc.Alloc()
	}
	base := c.compileArgRun(e.Args)
	c.emit(bytecode.CreateABC(bytecode.CALL, uint8(base), uint8(subIdx), uint8(len(e.Args))))
	return base
}

func (c *Compiler) compileCallRef(e *ir.CallRef) int {
	fnReg := c.compileExpr(e.Target)
	c.alloc.Lock(fnReg)
	base := c.compileArgRun(e.Args)
	c.alloc.Unlock(fnReg)
	c.emit(bytecode.CreateABC(bytecode.CALL_REF, uint8(base), uint8(fnReg), uint8(len(e.Args))))
	return base
}

func (c *Compiler) compileGotoSub(e *ir.GotoSub) int {
	subIdx, ok := c.subIndex[e.Sub]
	if !ok {
		c.fail("compiler: unknown subroutine %q in goto &NAME", e.Sub)
		return c.alloc.Alloc()
	}
	base := c.compileArgRun(e.Args)
	c.emit(bytecode.CreateABC(bytecode.MARK_TAIL, uint8(base), uint8(subIdx), uint8(len(e.Args))))
	return base
}
