package pvm1

import (
	"fmt"
	"io"

	"plcvm.org/plcvm/internal/bytebuf"
	"plcvm.org/plcvm/isa"
)

// Instr is a decoded instruction.
type Instr struct {
	Op   isa.Op
	Type isa.TypeTag
	// Imm is the immediate, still encoded. It aliases the program.
	Imm []byte
}

func (in Instr) Len() int {
	return in.Op.Len()
}

// Addr returns the 16 bit immediate of a jump or memory instruction.
func (in Instr) Addr() uint16 {
	return bytebuf.FromBytes(in.Imm).Get16(0)
}

func (in Instr) String() string {
	switch {
	case in.Op.IsPush():
		return fmt.Sprintf("%v %s", in.Op, FormatScalar(isa.TypeTag(in.Op), in.Imm))
	case in.Op.IsJump():
		return fmt.Sprintf("%v %d", in.Op, in.Addr())
	case in.Op == isa.GET || in.Op == isa.PUT:
		return fmt.Sprintf("%v %v @%d", in.Op, in.Type, in.Addr())
	case in.Op.Tagged():
		return fmt.Sprintf("%v %v", in.Op, in.Type)
	default:
		return in.Op.String()
	}
}

// decode reads the instruction at offset at.
// at must be inside code.
func decode(code []byte, at int) (Instr, RuntimeError) {
	op := isa.Op(code[at])
	if !op.Known() {
		return Instr{Op: op}, UnknownInstruction
	}
	end := at + op.Len()
	if end > len(code) {
		return Instr{Op: op}, TruncatedInstruction
	}
	in := Instr{Op: op}
	immStart := at + 1
	if op.Tagged() {
		in.Type = isa.TypeTag(code[at+1])
		if !op.Accepts(in.Type) {
			return in, InvalidType
		}
		immStart++
	}
	in.Imm = code[immStart:end:end]
	return in, Success
}

// Decode returns the instruction at offset without executing it.
func (p *Program) Decode(offset int) (Instr, RuntimeError) {
	if offset < 0 || offset >= p.n {
		return Instr{}, TruncatedInstruction
	}
	return decode(p.code(), offset)
}

// DisassembleAt renders the instruction at offset and returns the offset of the next one.
// Bytes which do not decode are rendered with the fault they would cause, and next skips a single byte.
func (p *Program) DisassembleAt(offset int) (text string, next int) {
	if offset < 0 || offset >= p.n {
		return "<end>", p.n
	}
	in, rte := p.Decode(offset)
	if rte != Success {
		return fmt.Sprintf("0x%02X  ; %v", p.buf.Get8(offset), rte), offset + 1
	}
	return in.String(), offset + in.Len()
}

// Disassemble writes a listing of the whole program to w, one instruction per line.
func (p *Program) Disassemble(w io.Writer) error {
	for offset := 0; offset < p.n; {
		text, next := p.DisassembleAt(offset)
		marker := "  "
		if offset == p.cursor {
			marker = "> "
		}
		if _, err := fmt.Fprintf(w, "%s%04d  %s\n", marker, offset, text); err != nil {
			return err
		}
		offset = next
	}
	return nil
}

// String renders the program as hex bytes.
func (p *Program) String() string {
	return fmt.Sprintf("Program[%d/%d] % X", p.n, p.buf.Len(), p.code())
}
