// package isa contains the instruction set of the PLC virtual machine.
package isa

// OpBits is the number of bits needed to encode an Op
const OpBits = 8

// Op is an instruction opcode. It is always the first byte of an encoded instruction.
type Op uint8

const (
	// NOP does nothing.
	NOP Op = 0x00
)

// Literal pushes share their byte value with the TypeTag of the literal.
// The literal follows the opcode immediately, without a TypeTag byte.
const (
	// PUSH_BOOL: () -> Bool
	PUSH_BOOL = Op(BOOL)
	// PUSH_U8: () -> U8
	PUSH_U8 = Op(U8)
	// PUSH_U16: () -> U16
	PUSH_U16 = Op(U16)
	// PUSH_U32: () -> U32
	PUSH_U32 = Op(U32)
	// PUSH_U64: () -> U64
	PUSH_U64 = Op(U64)
	// PUSH_S8: () -> S8
	PUSH_S8 = Op(S8)
	// PUSH_S16: () -> S16
	PUSH_S16 = Op(S16)
	// PUSH_S32: () -> S32
	PUSH_S32 = Op(S32)
	// PUSH_S64: () -> S64
	PUSH_S64 = Op(S64)
	// PUSH_F32: () -> F32
	PUSH_F32 = Op(F32)
	// PUSH_F64: () -> F64
	PUSH_F64 = Op(F64)
)

const (
	// COPY: (x T) -> (x T, x T)
	COPY Op = 1*section + iota
	// DROP: (x T) -> ()
	DROP
	// SWAP: (a T, b T) -> (b T, a T)
	SWAP
	_
	// GET reads a T from the memory region at a 16 bit address.
	// GET: () -> T
	GET
	// PUT writes a T to the memory region at a 16 bit address.
	// PUT: (x T) -> ()
	PUT
)

const (
	// ADD: (a T, b T) -> T
	ADD Op = 2*section + iota
	// SUB: (a T, b T) -> T
	SUB
	// MUL: (a T, b T) -> T
	MUL
	// DIV: (a T, b T) -> T
	DIV
	// NEG: (a T) -> T
	NEG
)

// Bitwise operations carry their width in the opcode, they have no TypeTag.
const (
	BW_AND_X8 Op = 3*section + iota
	BW_AND_X16
	BW_AND_X32
	BW_AND_X64
	BW_OR_X8
	BW_OR_X16
	BW_OR_X32
	BW_OR_X64
	BW_XOR_X8
	BW_XOR_X16
	BW_XOR_X32
	BW_XOR_X64
	BW_NOT_X8
	BW_NOT_X16
	BW_NOT_X32
	BW_NOT_X64
)

const (
	// LOGIC_AND: (Bool Bool) -> Bool
	LOGIC_AND Op = 4*section + iota
	// LOGIC_OR: (Bool Bool) -> Bool
	LOGIC_OR
	// LOGIC_XOR: (Bool Bool) -> Bool
	LOGIC_XOR
	// LOGIC_NOT: (Bool) -> Bool
	LOGIC_NOT
)

const (
	// CMP_EQ: (a T, b T) -> Bool
	CMP_EQ Op = 5*section + iota
	// CMP_NEQ: (a T, b T) -> Bool
	CMP_NEQ
	// CMP_GT: (a T, b T) -> Bool
	CMP_GT
	// CMP_GTE: (a T, b T) -> Bool
	CMP_GTE
	// CMP_LT: (a T, b T) -> Bool
	CMP_LT
	// CMP_LTE: (a T, b T) -> Bool
	CMP_LTE
)

// Jumps carry an absolute 16 bit target.
const (
	// JMP: () -> ()
	JMP Op = 6*section + iota
	// JMP_IF jumps when the popped Bool is true.
	// JMP_IF: (Bool) -> ()
	JMP_IF
	// JMP_IF_NOT jumps when the popped Bool is false.
	// JMP_IF_NOT: (Bool) -> ()
	JMP_IF_NOT
)

const (
	// EXIT halts the program.
	EXIT Op = 0xff
)

const section = 1 << 4

// IsPush returns true if the op pushes an inline literal.
func (o Op) IsPush() bool {
	return o >= PUSH_BOOL && o <= PUSH_F64
}

// IsJump returns true if the op carries a jump target.
func (o Op) IsJump() bool {
	return o >= JMP && o <= JMP_IF_NOT
}

// IsBitwise returns true for the fixed width bitwise ops.
func (o Op) IsBitwise() bool {
	return o >= BW_AND_X8 && o <= BW_NOT_X64
}

// BitwiseWidth returns the operand width in bytes of a bitwise op.
func (o Op) BitwiseWidth() int {
	return 1 << ((o - BW_AND_X8) % 4)
}
