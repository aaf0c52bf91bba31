package isa

import "fmt"

// TypeClass describes which TypeTags an Op accepts.
type TypeClass uint8

const (
	// Untyped ops are not followed by a TypeTag byte.
	Untyped TypeClass = iota
	// AnyType accepts every valid TypeTag.
	AnyType
	// NumericType accepts every valid TypeTag except BOOL.
	NumericType
)

// Info is information about Operations
type Info struct {
	Name string `json:"name"`
	// Types is the TypeTag class of the op.
	Types TypeClass `json:"types"`
	// ImmBytes is the size of the immediate that follows the opcode (and TypeTag, if any).
	ImmBytes int `json:"immBytes"`

	known bool
}

func (o Op) Info() Info {
	return infos[o]
}

// Known returns true if the op is part of the instruction set.
func (o Op) Known() bool {
	return infos[o].known
}

// Tagged returns true if the op is followed by a TypeTag.
func (o Op) Tagged() bool {
	return infos[o].Types != Untyped
}

// Len returns the encoded length of an instruction with this op in bytes.
// The length only depends on the op. It returns 0 for unknown ops.
func (o Op) Len() int {
	info := infos[o]
	if !info.known {
		return 0
	}
	n := 1 + info.ImmBytes
	if info.Types != Untyped {
		n++
	}
	return n
}

// Accepts returns true if t is a legal TypeTag for the op.
// Untyped ops accept no tags.
func (o Op) Accepts(t TypeTag) bool {
	switch infos[o].Types {
	case AnyType:
		return t.Valid()
	case NumericType:
		return t.IsNumeric()
	default:
		return false
	}
}

func (o Op) String() string {
	if info := infos[o]; info.known {
		return info.Name
	}
	return fmt.Sprintf("Op(0x%02X)", uint8(o))
}

// All returns all the known ops in encoding order.
func All() (ret []Op) {
	for i := 0; i < (1 << OpBits); i++ {
		if o := Op(i); o.Known() {
			ret = append(ret, o)
		}
	}
	return ret
}

// Lookup finds an op by its name.
func Lookup(name string) (Op, bool) {
	for _, o := range All() {
		if o.String() == name {
			return o, true
		}
	}
	return 0, false
}

var infos = func() (ret [1 << OpBits]Info) {
	m := map[Op]Info{
		NOP:  {Name: "NOP"},
		EXIT: {Name: "EXIT"},

		// Stack and memory
		COPY: {Name: "COPY", Types: AnyType},
		DROP: {Name: "DROP", Types: AnyType},
		SWAP: {Name: "SWAP", Types: AnyType},
		GET:  {Name: "GET", Types: AnyType, ImmBytes: 2},
		PUT:  {Name: "PUT", Types: AnyType, ImmBytes: 2},

		// Arithmetic
		ADD: {Name: "ADD", Types: NumericType},
		SUB: {Name: "SUB", Types: NumericType},
		MUL: {Name: "MUL", Types: NumericType},
		DIV: {Name: "DIV", Types: NumericType},
		NEG: {Name: "NEG", Types: NumericType},

		// Logic
		LOGIC_AND: {Name: "LOGIC_AND"},
		LOGIC_OR:  {Name: "LOGIC_OR"},
		LOGIC_XOR: {Name: "LOGIC_XOR"},
		LOGIC_NOT: {Name: "LOGIC_NOT"},

		// Comparison
		CMP_EQ:  {Name: "CMP_EQ", Types: AnyType},
		CMP_NEQ: {Name: "CMP_NEQ", Types: AnyType},
		CMP_GT:  {Name: "CMP_GT", Types: NumericType},
		CMP_GTE: {Name: "CMP_GTE", Types: NumericType},
		CMP_LT:  {Name: "CMP_LT", Types: NumericType},
		CMP_LTE: {Name: "CMP_LTE", Types: NumericType},

		// Control flow
		JMP:        {Name: "JMP", ImmBytes: 2},
		JMP_IF:     {Name: "JMP_IF", ImmBytes: 2},
		JMP_IF_NOT: {Name: "JMP_IF_NOT", ImmBytes: 2},
	}
	for _, t := range AllTypes() {
		m[Op(t)] = Info{Name: t.String(), ImmBytes: t.Size()}
	}
	bwNames := [...]string{"BW_AND", "BW_OR", "BW_XOR", "BW_NOT"}
	for i := 0; i < 16; i++ {
		o := BW_AND_X8 + Op(i)
		m[o] = Info{Name: fmt.Sprintf("%s_X%d", bwNames[i/4], o.BitwiseWidth()*8)}
	}
	for k, v := range m {
		v.known = true
		ret[k] = v
	}
	return ret
}()
