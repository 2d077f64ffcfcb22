package bytecode

import (
	"strings"
	"testing"

	"perlrt/internal/scalar"
)

func simpleProgram() *Program {
	p := NewProgram()
	p.RegisterCount = 3
	p.Constants = []*scalar.Scalar{scalar.NewInt(41)}
	p.Code = []Instruction{
		CreateABx(LOAD_CONST, 0, 0),  // R0 = K[0] (41)
		CreateABC(ADD_INT, 0, 0, 1), // R0 = R0 + 1
		CreateABC(RETURN, 0, 0, 0),
	}
	return p
}

func TestVerifyAcceptsWellFormedProgram(t *testing.T) {
	p := simpleProgram()
	if err := p.Verify(); err != nil {
		t.Fatalf("unexpected verify error: %v", err)
	}
}

func TestVerifyRejectsOutOfRangeRegister(t *testing.T) {
	p := simpleProgram()
	p.Code[1] = CreateABC(ADD_INT, 0, 99, 1)
	if err := p.Verify(); err == nil {
		t.Fatal("expected verify to reject an out-of-range register")
	}
}

func TestVerifyRejectsOutOfRangeConstant(t *testing.T) {
	p := simpleProgram()
	p.Code[0] = CreateABx(LOAD_CONST, 0, 7)
	if err := p.Verify(); err == nil {
		t.Fatal("expected verify to reject an out-of-range constant index")
	}
}

func TestVerifyRejectsBranchOffOfEnd(t *testing.T) {
	p := simpleProgram()
	p.Code = append(p.Code, CreateAsBx(GOTO, 0, 1000))
	if err := p.Verify(); err == nil {
		t.Fatal("expected verify to reject a branch that lands past the end of the program")
	}
}

func TestVerifyRejectsOutOfRangeSubIndex(t *testing.T) {
	p := simpleProgram()
	p.Code[2] = CreateABC(CALL, 0, 5, 0)
	if err := p.Verify(); err == nil {
		t.Fatal("expected verify to reject an out-of-range subroutine index")
	}
}

func TestDisassembleIncludesConstantsAndOpcodeNames(t *testing.T) {
	p := simpleProgram()
	out := Disassemble(p)
	if !strings.Contains(out, "LOAD_CONST") {
		t.Error("expected disassembly to name LOAD_CONST")
	}
	if !strings.Contains(out, "41") {
		t.Error("expected disassembly to show the constant pool value 41")
	}
}
