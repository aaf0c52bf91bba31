package pvm1

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"plcvm.org/plcvm/isa"
)

func TestProgramFull(t *testing.T) {
	p := NewProgram(4)
	require.NoError(t, p.PushU8(1))
	err := p.PushU16(2)
	require.ErrorIs(t, err, ErrProgramFull)
	require.ErrorIs(t, err, ProgramSizeExceeded)
	require.Equal(t, 2, p.Len())
	require.NoError(t, p.PushTyped(isa.ADD, isa.U8))
	require.Equal(t, 4, p.Len())
	require.ErrorIs(t, p.PushExit(), ErrProgramFull)

	require.ErrorIs(t, p.Load(make([]byte, 5)), ErrProgramFull)
	require.Equal(t, 4, p.Len())
}

func TestBuilderSticky(t *testing.T) {
	p := NewProgram(5)
	b := NewBuilder(p)
	b.U8(1).U32(2).U8(3)
	require.ErrorIs(t, b.Err(), ErrProgramFull)
	// the U8 after the failure is not written
	require.Equal(t, []byte{byte(isa.PUSH_U8), 1}, p.Bytes())
}

func TestBuilderAddressRange(t *testing.T) {
	p := NewProgram(1 << 17)
	b := NewBuilder(p)
	for i := 0; i < math.MaxUint16; i++ {
		b.Op(isa.NOP)
	}
	require.Equal(t, uint16(math.MaxUint16), b.Here())
	require.NoError(t, b.Err())

	b.Op(isa.NOP)
	b.Jump(b.Here())
	require.ErrorIs(t, b.Err(), ErrAddressRange)
	require.ErrorIs(t, b.Err(), ProgramSizeExceeded)
	// the jump is not written
	require.Equal(t, math.MaxUint16+1, p.Len())

	p.Erase()
	b = NewBuilder(p)
	for i := 0; i < math.MaxUint16; i++ {
		b.Op(isa.NOP)
	}
	f := b.Forward(isa.JMP)
	b.Bind(f)
	require.ErrorIs(t, b.Err(), ErrAddressRange)
	require.Equal(t, []byte{byte(isa.JMP), 0, 0}, p.Bytes()[f.at:])
}

func TestNegativeCapacity(t *testing.T) {
	require.Panics(t, func() { NewProgram(-1) })
	require.Panics(t, func() { NewStack(-1) })
	require.Panics(t, func() { New(-1, nil) })
	require.NotPanics(t, func() { NewProgram(0) })
}

func TestLoadErase(t *testing.T) {
	p := NewProgram(8)
	code := []byte{byte(isa.PUSH_U8), 1, byte(isa.EXIT)}
	require.NoError(t, p.Load(code))
	require.Equal(t, code, p.Bytes())
	require.False(t, p.Finished())

	p.Erase()
	require.Equal(t, 0, p.Len())
	require.Equal(t, 0, p.Cursor())
	require.True(t, p.Finished())
	require.Equal(t, 8, p.Cap())
}

func TestEncoding(t *testing.T) {
	p := NewProgram(64)
	b := NewBuilder(p)
	b.U16(0x0102).S8(-1).F32(1).Jump(0x0304).Get(isa.U8, 5).Typed(isa.CMP_EQ, isa.F64)
	require.NoError(t, b.Err())
	require.Equal(t, []byte{
		0x03, 0x01, 0x02,
		0x06, 0xff,
		0x0a, 0x3f, 0x80, 0x00, 0x00,
		0x60, 0x03, 0x04,
		0x14, 0x02, 0x00, 0x05,
		0x50, 0x0b,
	}, p.Bytes())
}

func TestDisassemble(t *testing.T) {
	p := NewProgram(64)
	b := NewBuilder(p)
	b.U8(1).Jump(13).U8(1).Typed(isa.ADD, isa.U8).U8(3).Typed(isa.MUL, isa.U8).Exit()
	b.Put(isa.S16, 4).Op(isa.BW_AND_X32).Op(0xfe)
	require.NoError(t, b.Err())

	text, next := p.DisassembleAt(0)
	require.Equal(t, "U8 1", text)
	require.Equal(t, 2, next)
	text, next = p.DisassembleAt(2)
	require.Equal(t, "JMP 13", text)
	require.Equal(t, 5, next)
	text, _ = p.DisassembleAt(7)
	require.Equal(t, "ADD U8", text)
	text, _ = p.DisassembleAt(13)
	require.Equal(t, "EXIT", text)
	text, _ = p.DisassembleAt(14)
	require.Equal(t, "PUT S16 @4", text)
	text, _ = p.DisassembleAt(18)
	require.Equal(t, "BW_AND_X32", text)
	text, next = p.DisassembleAt(19)
	require.Equal(t, "0xFE  ; UNKNOWN_INSTRUCTION", text)
	require.Equal(t, 20, next)
	text, _ = p.DisassembleAt(20)
	require.Equal(t, "<end>", text)
	// disassembly does not move the cursor
	require.Equal(t, 0, p.Cursor())

	var sb strings.Builder
	require.NoError(t, p.Disassemble(&sb))
	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Len(t, lines, 10)
	require.Equal(t, "> 0000  U8 1", lines[0])
	require.Equal(t, "  0002  JMP 13", lines[1])
}

func TestRuntimeErrorNames(t *testing.T) {
	for _, rte := range AllRuntimeErrors() {
		rte2, err := ParseRuntimeError(rte.String())
		require.NoError(t, err)
		require.Equal(t, rte, rte2)
	}
	require.Equal(t, "STACK_OVERFLOW", StackOverflow.String())
	require.Equal(t, "MEMORY_ACCESS_OUT_OF_BOUNDS", MemoryOutOfBounds.String())
	require.False(t, Success.IsFault())
	require.False(t, ProgramExited.IsFault())
	require.NoError(t, ProgramExited.Err())
	require.True(t, InvalidJumpAddress.IsFault())

	err := error(FaultError{Code: StackUnderflow, Cursor: 4, Instr: "ADD U8"})
	require.Equal(t, "STACK_UNDERFLOW at program pointer 4 (ADD U8)", err.Error())
	require.True(t, errors.Is(err, StackUnderflow))
	code, ok := AsFault(err)
	require.True(t, ok)
	require.Equal(t, StackUnderflow, code)
}
