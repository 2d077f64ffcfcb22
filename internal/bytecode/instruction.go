package bytecode

// Instruction is a single 32-bit bytecode word. Four encodings share the
// same op-code byte, distinguished by how the remaining 24 bits are
// sliced: iABC (three 8-bit register operands), iABx (8-bit + unsigned
// 16-bit), iAsBx (8-bit + signed 16-bit, used for branch offsets), and
// iAx (unsigned 24-bit, used for oversize operands).
type Instruction uint32

const (
	posOp = 0
	posA  = 8
	posB  = 16
	posC  = 24

	sizeOp = 8
	sizeA  = 8
	sizeB  = 8
	sizeC  = 8
	sizeBx = 16
	sizeAx = 24

	maskOp = (1 << sizeOp) - 1
	maskA  = (1 << sizeA) - 1
	maskB  = (1 << sizeB) - 1
	maskC  = (1 << sizeC) - 1
	maskBx = (1 << sizeBx) - 1
	maskAx = (1 << sizeAx) - 1

	// MaxArgBx is the largest unsigned Bx operand an instruction can carry.
	MaxArgBx = maskBx
	// MaxArgAx is the largest unsigned Ax operand an instruction can carry.
	MaxArgAx = maskAx
	// maxArgSBx is the bias added to a signed Bx/branch offset before storage.
	maxArgSBx = MaxArgBx >> 1
)

// CreateABC encodes a three-register instruction.
func CreateABC(op OpCode, a, b, c uint8) Instruction {
	return Instruction(op) |
		Instruction(a)<<posA |
		Instruction(b)<<posB |
		Instruction(c)<<posC
}

// CreateABx encodes an instruction with one register and one unsigned
// 16-bit operand (constant-pool index, subroutine index).
func CreateABx(op OpCode, a uint8, bx uint16) Instruction {
	return Instruction(op) |
		Instruction(a)<<posA |
		Instruction(bx)<<posB
}

// CreateAsBx encodes an instruction with one register and a signed
// 16-bit operand, used for branch offsets.
func CreateAsBx(op OpCode, a uint8, sbx int32) Instruction {
	return CreateABx(op, a, uint16(sbx+maxArgSBx))
}

// CreateAx encodes an instruction with a single unsigned 24-bit operand.
func CreateAx(op OpCode, ax uint32) Instruction {
	return Instruction(op) | Instruction(ax&maskAx)<<posA
}

func (i Instruction) OpCode() OpCode { return OpCode(i & maskOp) }
func (i Instruction) A() uint8       { return uint8((i >> posA) & maskA) }
func (i Instruction) B() uint8       { return uint8((i >> posB) & maskB) }
func (i Instruction) C() uint8       { return uint8((i >> posC) & maskC) }
func (i Instruction) Bx() uint16     { return uint16((i >> posB) & maskBx) }
func (i Instruction) sBx() int32     { return int32(i.Bx()) - maxArgSBx }

// SC is the signed 8-bit immediate an _INT family opcode (ADD_INT,
// SUB_INT, ...) carries in its C operand.
func (i Instruction) SC() int8 { return int8(i.C()) }

// SB is the signed 8-bit immediate an in-place _ASSIGN_INT
// superinstruction (ADD_ASSIGN_INT, SUB_ASSIGN_INT, ...) carries in its
// B operand (the fusion peephole relocates the _INT opcode's C operand
// there when it collapses `OP_INT rd=rs,K; MOVE rs=rd`).
func (i Instruction) SB() int8 { return int8(i.B()) }

// SBx is the signed branch-offset/immediate operand for iAsBx encodings.
func (i Instruction) SBx() int32 { return i.sBx() }

// Ax is the unsigned 24-bit operand for iAx encodings.
func (i Instruction) Ax() uint32 { return uint32((i >> posA) & maskAx) }
