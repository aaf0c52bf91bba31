package isa

// TypeTag selects the width, signedness and float-ness of the operands of a type-generic Op.
type TypeTag uint8

const (
	BOOL TypeTag = 0x01 + iota
	U8
	U16
	U32
	U64
	S8
	S16
	S32
	S64
	F32
	F64
)

var typeNames = [...]string{
	BOOL: "BOOL",
	U8:   "U8",
	U16:  "U16",
	U32:  "U32",
	U64:  "U64",
	S8:   "S8",
	S16:  "S16",
	S32:  "S32",
	S64:  "S64",
	F32:  "F32",
	F64:  "F64",
}

// AllTypes returns every valid TypeTag in encoding order.
func AllTypes() []TypeTag {
	return []TypeTag{BOOL, U8, U16, U32, U64, S8, S16, S32, S64, F32, F64}
}

func (t TypeTag) Valid() bool {
	return t >= BOOL && t <= F64
}

func (t TypeTag) String() string {
	if !t.Valid() {
		return "TYPE(" + hexByte(uint8(t)) + ")"
	}
	return typeNames[t]
}

// Size returns the number of bytes a value of this type occupies on the stack, in memory,
// and as a literal in the program.
// It returns 0 for invalid tags.
func (t TypeTag) Size() int {
	switch t {
	case BOOL, U8, S8:
		return 1
	case U16, S16:
		return 2
	case U32, S32, F32:
		return 4
	case U64, S64, F64:
		return 8
	default:
		return 0
	}
}

func (t TypeTag) IsUnsigned() bool {
	return t >= U8 && t <= U64
}

func (t TypeTag) IsSigned() bool {
	return t >= S8 && t <= S64
}

func (t TypeTag) IsFloat() bool {
	return t == F32 || t == F64
}

// IsNumeric is true for every tag except BOOL.
func (t TypeTag) IsNumeric() bool {
	return t.Valid() && t != BOOL
}

func hexByte(x uint8) string {
	const digits = "0123456789ABCDEF"
	return "0x" + string([]byte{digits[x>>4], digits[x&0xf]})
}
