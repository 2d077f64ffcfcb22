package bytecode

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"perlrt/internal/ioerr"
	"perlrt/internal/scalar"
)

// Program is a compiled unit: the opcode stream, its constant pool, the
// register count the interpreter must allocate per frame, and the
// per-subroutine entry-offset map used by CALL/TAIL_CALL and `goto &NAME`.
type Program struct {
	Code         []Instruction
	Constants    []*scalar.Scalar
	RegisterCount int

	// Subroutines maps a subroutine name to its entry offset in Code.
	Subroutines map[string]int

	// SubTable is the ordered list CALL/TAIL_CALL/MARK_TAIL's B operand
	// indexes into (a register-sized index beats re-deriving a name from
	// the constant pool on every call).
	SubTable []int

	// LoopTargets lets the interpreter resolve a cross-frame LAST/NEXT/
	// REDO marker once it propagates up the call chain to the frame
	// whose loop it names: Sub is the owning subroutine, Label the loop
	// label, and {Continue,Break,Redo}PC are absolute indices into Code
	// to resume at for each marker kind.
	LoopTargets []LoopTarget
}

// LoopTarget is one named loop's resumption points, recorded by the
// compiler for every labelled or implicitly-labelled loop so a marker
// arriving from a deeper call can be resolved without re-walking the
// source.
type LoopTarget struct {
	Sub        string
	Label      string
	ContinuePC int
	BreakPC    int
	RedoPC     int

	// StartPC/EndPC bound the loop's body (inclusive/exclusive), as
	// absolute indices into Code. The interpreter uses this to find which
	// of a subroutine's (possibly several, possibly nested) loops
	// lexically encloses a given CALL site before matching a propagated
	// marker's label against it.
	StartPC int
	EndPC   int
}

// NewProgram returns an empty program ready for the compiler to append to.
func NewProgram() *Program {
	return &Program{Subroutines: make(map[string]int)}
}

// Verify enforces the structural invariants the compiler must
// guarantee: every branch lands on an instruction start, every
// constant-pool reference is in range, and every register operand fits
// within RegisterCount. verifyOperands's checkBranch closure is the sole
// branch-range check — it re-derives each GOTO/GOTO_IF_* target from the
// instruction's own operand rather than trusting a separately maintained
// table.
func (p *Program) Verify() error {
	for pc, instr := range p.Code {
		op := instr.OpCode()
		if err := p.verifyOperands(pc, op, instr); err != nil {
			return err
		}
	}
	return nil
}

func (p *Program) verifyOperands(pc int, op OpCode, instr Instruction) error {
	checkReg := func(r uint8) error {
		if int(r) >= p.RegisterCount {
			return ioerr.NewInvariant("pc %d: register %d out of range [0,%d)", pc, r, p.RegisterCount)
		}
		return nil
	}
	checkConst := func(idx uint16) error {
		if int(idx) >= len(p.Constants) {
			return ioerr.NewInvariant("pc %d: constant index %d out of range [0,%d)", pc, idx, len(p.Constants))
		}
		return nil
	}
	checkBranch := func(offset int32) error {
		target := pc + 1 + int(offset)
		if target < 0 || target > len(p.Code) {
			return ioerr.NewInvariant("pc %d: branch target %d out of range", pc, target)
		}
		return nil
	}

	switch op {
	case LOAD_INT:
		return checkReg(instr.A())
	case LOAD_CONST:
		if err := checkReg(instr.A()); err != nil {
			return err
		}
		return checkConst(instr.Bx())
	case MARK_LAST, MARK_NEXT, MARK_REDO:
		if err := checkReg(instr.A()); err != nil {
			return err
		}
		return checkConst(instr.Bx())
	case MOVE, NEG, TO_BOOL, TO_INT, TO_DOUBLE, TO_STRING, STR_LEN,
		ADD_ASSIGN, SUB_ASSIGN, MUL_ASSIGN, DIV_ASSIGN, MOD_ASSIGN,
		CONCAT_ASSIGN,
		ADD_INT, SUB_INT, MUL_INT, DIV_INT, MOD_INT:
		if err := checkReg(instr.A()); err != nil {
			return err
		}
		return checkReg(instr.B())
	case ADD_ASSIGN_INT, SUB_ASSIGN_INT, MUL_ASSIGN_INT, DIV_ASSIGN_INT, MOD_ASSIGN_INT:
		return checkReg(instr.A())
	case ADD, SUB, MUL, DIV, MOD, LT_NUM, LE_NUM, GT_NUM, GE_NUM, EQ_NUM, NE_NUM,
		CMP_NUM, LT_STR, LE_STR, GT_STR, GE_STR, EQ_STR, NE_STR, CMP_STR,
		CONCAT, STR_REPEAT:
		if err := checkReg(instr.A()); err != nil {
			return err
		}
		if err := checkReg(instr.B()); err != nil {
			return err
		}
		return checkReg(instr.C())
	case GOTO:
		return checkBranch(instr.SBx())
	case GOTO_IF_TRUE, GOTO_IF_FALSE:
		if err := checkReg(instr.A()); err != nil {
			return err
		}
		return checkBranch(instr.SBx())
	case RETURN:
		return checkReg(instr.A())
	case CALL, CALL_REF, MARK_TAIL:
		if err := checkReg(instr.A()); err != nil {
			return err
		}
		if op == CALL_REF {
			return checkReg(instr.B())
		}
		if int(instr.B()) >= len(p.SubTable) {
			return ioerr.NewInvariant("pc %d: subroutine index %d out of range [0,%d)", pc, instr.B(), len(p.SubTable))
		}
	case TAIL_CALL:
		if err := checkReg(instr.A()); err != nil {
			return err
		}
		if int(instr.B()) >= len(p.SubTable) {
			return ioerr.NewInvariant("pc %d: subroutine index %d out of range [0,%d)", pc, instr.B(), len(p.SubTable))
		}
	case TAIL_CHAIN:
		if int(instr.Bx()) >= len(p.SubTable) {
			return ioerr.NewInvariant("pc %d: subroutine index %d out of range [0,%d)", pc, instr.Bx(), len(p.SubTable))
		}
	}
	return nil
}

// Disassemble renders a human-readable listing of the program, annotated
// with constant-pool contents and a byte-size summary.
func Disassemble(p *Program) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "program: %d instructions (%s), %d constants, %d registers\n",
		len(p.Code), humanize.Bytes(uint64(len(p.Code)*4)), len(p.Constants), p.RegisterCount)

	if len(p.Subroutines) > 0 {
		sb.WriteString("subroutines:\n")
		for name, offset := range p.Subroutines {
			fmt.Fprintf(&sb, "  %s -> %d\n", name, offset)
		}
	}

	for pc, instr := range p.Code {
		op := instr.OpCode()
		fmt.Fprintf(&sb, "%6d  %-16s", pc, op)
		switch op {
		case LOAD_CONST:
			fmt.Fprintf(&sb, "A=%d Bx=%d", instr.A(), instr.Bx())
			if int(instr.Bx()) < len(p.Constants) {
				fmt.Fprintf(&sb, "  ; %s", p.Constants[instr.Bx()].ToString())
			}
		case GOTO:
			fmt.Fprintf(&sb, "sBx=%d  ; -> %d", instr.SBx(), pc+1+int(instr.SBx()))
		case GOTO_IF_TRUE, GOTO_IF_FALSE:
			fmt.Fprintf(&sb, "A=%d sBx=%d  ; -> %d", instr.A(), instr.SBx(), pc+1+int(instr.SBx()))
		case CALL, TAIL_CALL, MARK_TAIL:
			fmt.Fprintf(&sb, "A=%d subtable[%d] nargs=%d", instr.A(), instr.B(), instr.C())
		case TAIL_CHAIN:
			fmt.Fprintf(&sb, "subtable[%d]", instr.Bx())
		case CALL_REF:
			fmt.Fprintf(&sb, "A=%d R(%d) nargs=%d", instr.A(), instr.B(), instr.C())
		default:
			fmt.Fprintf(&sb, "A=%d B=%d C=%d", instr.A(), instr.B(), instr.C())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
