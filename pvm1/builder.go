package pvm1

import (
	"fmt"
	"math"

	"plcvm.org/plcvm/isa"
)

// Builder appends instructions to a Program and remembers the first error,
// so a long sequence can be written without checking every call.
type Builder struct {
	p   *Program
	err error
}

func NewBuilder(p *Program) *Builder {
	return &Builder{p: p}
}

// Err returns the first error encountered while building.
func (b *Builder) Err() error {
	return b.err
}

// Program returns the Program being built.
func (b *Builder) Program() *Program {
	return b.p
}

// Here returns the offset the next instruction will be written at.
// Past the last 16 bit offset it records ErrAddressRange, and the result must not be used.
func (b *Builder) Here() uint16 {
	n := b.p.Len()
	if n > math.MaxUint16 && b.err == nil {
		b.err = fmt.Errorf("offset %d: %w", n, ErrAddressRange)
	}
	return uint16(n)
}

func (b *Builder) do(fn func() error) *Builder {
	if b.err == nil {
		b.err = fn()
	}
	return b
}

func (b *Builder) Op(op isa.Op) *Builder {
	return b.do(func() error { return b.p.Push(op) })
}

func (b *Builder) Typed(op isa.Op, t isa.TypeTag) *Builder {
	return b.do(func() error { return b.p.PushTyped(op, t) })
}

func (b *Builder) Bool(x bool) *Builder   { return b.do(func() error { return b.p.PushBool(x) }) }
func (b *Builder) U8(x uint8) *Builder     { return b.do(func() error { return b.p.PushU8(x) }) }
func (b *Builder) U16(x uint16) *Builder   { return b.do(func() error { return b.p.PushU16(x) }) }
func (b *Builder) U32(x uint32) *Builder   { return b.do(func() error { return b.p.PushU32(x) }) }
func (b *Builder) U64(x uint64) *Builder   { return b.do(func() error { return b.p.PushU64(x) }) }
func (b *Builder) S8(x int8) *Builder      { return b.do(func() error { return b.p.PushS8(x) }) }
func (b *Builder) S16(x int16) *Builder    { return b.do(func() error { return b.p.PushS16(x) }) }
func (b *Builder) S32(x int32) *Builder    { return b.do(func() error { return b.p.PushS32(x) }) }
func (b *Builder) S64(x int64) *Builder    { return b.do(func() error { return b.p.PushS64(x) }) }
func (b *Builder) F32(x float32) *Builder  { return b.do(func() error { return b.p.PushF32(x) }) }
func (b *Builder) F64(x float64) *Builder  { return b.do(func() error { return b.p.PushF64(x) }) }
func (b *Builder) Jump(to uint16) *Builder { return b.do(func() error { return b.p.PushJump(to) }) }
func (b *Builder) JumpIf(to uint16) *Builder {
	return b.do(func() error { return b.p.PushJumpIf(to) })
}

func (b *Builder) JumpIfNot(to uint16) *Builder {
	return b.do(func() error { return b.p.PushJumpIfNot(to) })
}

func (b *Builder) Get(t isa.TypeTag, addr uint16) *Builder {
	return b.do(func() error { return b.p.PushGet(t, addr) })
}

func (b *Builder) Put(t isa.TypeTag, addr uint16) *Builder {
	return b.do(func() error { return b.p.PushPut(t, addr) })
}

func (b *Builder) Exit() *Builder {
	return b.do(b.p.PushExit)
}

// Fixup is the location of a jump whose target is not known yet.
type Fixup struct {
	at int
}

// Forward appends the jump op with a placeholder target.
// The target is filled in by Bind.
func (b *Builder) Forward(op isa.Op) Fixup {
	at := b.p.Len()
	b.do(func() error { return b.p.pushAddr(op, 0) })
	return Fixup{at: at}
}

// Bind points the jump at f to the next instruction to be written.
func (b *Builder) Bind(f Fixup) *Builder {
	to := b.Here()
	if b.err == nil {
		b.p.buf.Put16(f.at+1, to)
	}
	return b
}
