package pvm1

import (
	"fmt"

	"plcvm.org/plcvm/internal/bytebuf"
	"plcvm.org/plcvm/isa"
)

// Program is a fixed capacity bytecode buffer and the cursor of the next instruction.
//
// Instructions are appended with the Push methods, which do not check that the
// instruction is valid; anything malformed is reported by the VM when it is executed.
type Program struct {
	buf bytebuf.Buf
	// starts[i] is true if an instruction begins at offset i
	starts []bool
	n      int
	cursor int
}

// NewProgram allocates a Program which can hold capacity bytes of code.
// It panics if capacity is negative.
func NewProgram(capacity int) *Program {
	if capacity < 0 {
		panic(fmt.Sprintf("pvm1: negative program capacity %d", capacity))
	}
	return &Program{
		buf:    bytebuf.New(capacity),
		starts: make([]bool, capacity),
	}
}

// Erase empties the program and rewinds the cursor.
func (p *Program) Erase() {
	p.buf.Zero(0, p.n)
	clear(p.starts[:p.n])
	p.n = 0
	p.cursor = 0
}

// Load replaces the contents of the program with code.
func (p *Program) Load(code []byte) error {
	if len(code) > p.buf.Len() {
		return fmt.Errorf("loading %d bytes into program of capacity %d: %w", len(code), p.buf.Len(), ErrProgramFull)
	}
	p.Erase()
	copy(p.buf.Bytes(), code)
	p.n = len(code)
	// an unknown opcode is counted as a single byte, it faults when it is decoded
	for i := 0; i < p.n; {
		p.starts[i] = true
		i += max(isa.Op(code[i]).Len(), 1)
	}
	return nil
}

// Cursor returns the offset of the next instruction to execute.
func (p *Program) Cursor() int {
	return p.cursor
}

// Rewind moves the cursor to the start of the program.
func (p *Program) Rewind() {
	p.cursor = 0
}

// Finished returns true once the cursor has consumed the whole program.
func (p *Program) Finished() bool {
	return p.cursor >= p.n
}

// Len returns the number of bytes of code.
func (p *Program) Len() int {
	return p.n
}

// Cap returns the capacity of the program in bytes.
func (p *Program) Cap() int {
	return p.buf.Len()
}

// Bytes returns a copy of the code.
func (p *Program) Bytes() []byte {
	ret := make([]byte, p.n)
	copy(ret, p.code())
	return ret
}

func (p *Program) code() []byte {
	return p.buf.Bytes()[:p.n]
}

// isJumpTarget returns true if the cursor may be moved to off:
// the start of an instruction, or the end of the program.
func (p *Program) isJumpTarget(off int) bool {
	if off == p.n {
		return true
	}
	return off >= 0 && off < p.n && p.starts[off]
}

// alloc reserves n bytes at the end of the program and returns their offset.
func (p *Program) alloc(n int) (int, error) {
	if p.n+n > p.buf.Len() {
		return 0, ErrProgramFull
	}
	at := p.n
	p.n += n
	p.starts[at] = true
	return at, nil
}

// Push appends a bare opcode.
func (p *Program) Push(op isa.Op) error {
	at, err := p.alloc(1)
	if err != nil {
		return err
	}
	p.buf.Put8(at, uint8(op))
	return nil
}

// PushTyped appends an opcode followed by a TypeTag.
func (p *Program) PushTyped(op isa.Op, t isa.TypeTag) error {
	at, err := p.alloc(2)
	if err != nil {
		return err
	}
	p.buf.Put8(at, uint8(op))
	p.buf.Put8(at+1, uint8(t))
	return nil
}

// PushLiteral appends the literal push instruction for x.
func PushLiteral[T Scalar](p *Program, x T) error {
	at, err := p.alloc(1 + SizeOf[T]())
	if err != nil {
		return err
	}
	p.buf.Put8(at, uint8(TagOf[T]()))
	putScalar(p.buf, at+1, x)
	return nil
}

func (p *Program) PushBool(x bool) error  { return PushLiteral(p, x) }
func (p *Program) PushU8(x uint8) error    { return PushLiteral(p, x) }
func (p *Program) PushU16(x uint16) error  { return PushLiteral(p, x) }
func (p *Program) PushU32(x uint32) error  { return PushLiteral(p, x) }
func (p *Program) PushU64(x uint64) error  { return PushLiteral(p, x) }
func (p *Program) PushS8(x int8) error     { return PushLiteral(p, x) }
func (p *Program) PushS16(x int16) error   { return PushLiteral(p, x) }
func (p *Program) PushS32(x int32) error   { return PushLiteral(p, x) }
func (p *Program) PushS64(x int64) error   { return PushLiteral(p, x) }
func (p *Program) PushF32(x float32) error { return PushLiteral(p, x) }
func (p *Program) PushF64(x float64) error { return PushLiteral(p, x) }

func (p *Program) pushAddr(op isa.Op, addr uint16) error {
	at, err := p.alloc(3)
	if err != nil {
		return err
	}
	p.buf.Put8(at, uint8(op))
	p.buf.Put16(at+1, addr)
	return nil
}

// PushJump appends an unconditional jump to the absolute offset target.
// The target is not checked until the jump is executed.
func (p *Program) PushJump(target uint16) error {
	return p.pushAddr(isa.JMP, target)
}

// PushJumpIf appends a jump which is taken when the popped Bool is true.
func (p *Program) PushJumpIf(target uint16) error {
	return p.pushAddr(isa.JMP_IF, target)
}

// PushJumpIfNot appends a jump which is taken when the popped Bool is false.
func (p *Program) PushJumpIfNot(target uint16) error {
	return p.pushAddr(isa.JMP_IF_NOT, target)
}

func (p *Program) pushMem(op isa.Op, t isa.TypeTag, addr uint16) error {
	at, err := p.alloc(4)
	if err != nil {
		return err
	}
	p.buf.Put8(at, uint8(op))
	p.buf.Put8(at+1, uint8(t))
	p.buf.Put16(at+2, addr)
	return nil
}

// PushGet appends an instruction which pushes the T stored at addr in the memory region.
func (p *Program) PushGet(t isa.TypeTag, addr uint16) error {
	return p.pushMem(isa.GET, t, addr)
}

// PushPut appends an instruction which pops a T and stores it at addr in the memory region.
func (p *Program) PushPut(t isa.TypeTag, addr uint16) error {
	return p.pushMem(isa.PUT, t, addr)
}

func (p *Program) PushExit() error {
	return p.Push(isa.EXIT)
}
