package plctests

import (
	"math"

	"plcvm.org/plcvm/isa"
	"plcvm.org/plcvm/pvm1"
)

type B = pvm1.Builder

// Vecs returns every test vector, in the order they are reported.
func Vecs() (out []Vec) {
	for _, addVecs := range []func([]Vec) []Vec{
		arithVecs,
		bitwiseVecs,
		logicVecs,
		compareVecs,
		jumpVecs,
		stackVecs,
		memoryVecs,
	} {
		out = addVecs(out)
	}
	return out
}

func arithVecs(out []Vec) []Vec {
	return append(out, []Vec{
		{
			Name: "add_U8 => (1 + 2) * 3", Want: uint8(9), Result: result[uint8](),
			Build: func(b *B) { b.U8(1).U8(2).Typed(isa.ADD, isa.U8).U8(3).Typed(isa.MUL, isa.U8) },
		},
		{
			Name: "add_U16 => (1 + 2) * 3", Want: uint16(9), Result: result[uint16](),
			Build: func(b *B) { b.U16(1).U16(2).Typed(isa.ADD, isa.U16).U16(3).Typed(isa.MUL, isa.U16) },
		},
		{
			Name: "add_U32 => (1 + 2) * 3", Want: uint32(9), Result: result[uint32](),
			Build: func(b *B) { b.U32(1).U32(2).Typed(isa.ADD, isa.U32).U32(3).Typed(isa.MUL, isa.U32) },
		},
		{
			Name: "add_U64 => (1 + 2) * 3", Want: uint64(9), Result: result[uint64](),
			Build: func(b *B) { b.U64(1).U64(2).Typed(isa.ADD, isa.U64).U64(3).Typed(isa.MUL, isa.U64) },
		},
		{
			Name: "sub_S8 => (1 - 2) * 3", Want: int8(-3), Result: result[int8](),
			Build: func(b *B) { b.S8(1).S8(2).Typed(isa.SUB, isa.S8).S8(3).Typed(isa.MUL, isa.S8) },
		},
		{
			Name: "sub_S16 => (1 - 2) * 3", Want: int16(-3), Result: result[int16](),
			Build: func(b *B) { b.S16(1).S16(2).Typed(isa.SUB, isa.S16).S16(3).Typed(isa.MUL, isa.S16) },
		},
		{
			Name: "sub_S32 => (1 - 2) * 3", Want: int32(-3), Result: result[int32](),
			Build: func(b *B) { b.S32(1).S32(2).Typed(isa.SUB, isa.S32).S32(3).Typed(isa.MUL, isa.S32) },
		},
		{
			Name: "sub_S64 => (1 - 2) * 3", Want: int64(-3), Result: result[int64](),
			Build: func(b *B) { b.S64(1).S64(2).Typed(isa.SUB, isa.S64).S64(3).Typed(isa.MUL, isa.S64) },
		},
		{
			Name: "sub_F32 => (0.1 + 0.2) * -1", Want: float32(-0.3), Result: result[float32](), Delta: 1e-6,
			Build: func(b *B) { b.F32(0.1).F32(0.2).Typed(isa.ADD, isa.F32).F32(-1).Typed(isa.MUL, isa.F32) },
		},
		{
			Name: "sub_F64 => (0.1 + 0.2) * -1", Want: float64(-0.3), Result: result[float64](), Delta: 1e-9,
			Build: func(b *B) { b.F64(0.1).F64(0.2).Typed(isa.ADD, isa.F64).F64(-1).Typed(isa.MUL, isa.F64) },
		},
		{
			Name: "add_U8 => 255 + 1 wraps", Want: uint8(0), Result: result[uint8](),
			Build: func(b *B) { b.U8(255).U8(1).Typed(isa.ADD, isa.U8) },
		},
		{
			Name: "add_S16 => 32767 + 1 wraps", Want: int16(math.MinInt16), Result: result[int16](),
			Build: func(b *B) { b.S16(math.MaxInt16).S16(1).Typed(isa.ADD, isa.S16) },
		},
		{
			Name: "div_S32 => -7 / 2", Want: int32(-3), Result: result[int32](),
			Build: func(b *B) { b.S32(-7).S32(2).Typed(isa.DIV, isa.S32) },
		},
		{
			Name: "div_F64 => 1 / 0", Want: math.Inf(1), Result: result[float64](),
			Build: func(b *B) { b.F64(1).F64(0).Typed(isa.DIV, isa.F64) },
		},
		{
			Name: "neg_S64 => -(5)", Want: int64(-5), Result: result[int64](),
			Build: func(b *B) { b.S64(5).Typed(isa.NEG, isa.S64) },
		},
		{
			Name: "neg_U8 => -(1) wraps", Want: uint8(255), Result: result[uint8](),
			Build: func(b *B) { b.U8(1).Typed(isa.NEG, isa.U8) },
		},
	}...)
}

func bitwiseVecs(out []Vec) []Vec {
	return append(out, []Vec{
		{
			Name: "bitwise_and_X8", Want: uint8(0b00000101), Result: result[uint8](),
			Build: func(b *B) { b.U8(0b00001111).U8(0b01010101).Op(isa.BW_AND_X8) },
		},
		{
			Name: "bitwise_and_X16", Want: uint16(0x000F), Result: result[uint16](),
			Build: func(b *B) { b.U16(0x00FF).U16(0xF00F).Op(isa.BW_AND_X16) },
		},
		{
			Name: "bitwise_and_X32", Want: uint32(0x0F0F0000), Result: result[uint32](),
			Build: func(b *B) { b.U32(0x0F0F0F0F).U32(0xFFFF0000).Op(isa.BW_AND_X32) },
		},
		{
			Name: "bitwise_and_X64", Want: uint64(0b00000101), Result: result[uint64](),
			Build: func(b *B) { b.U64(0b00001111).U64(0b01010101).Op(isa.BW_AND_X64) },
		},
		{
			Name: "bitwise_or_X16", Want: uint16(0xF0FF), Result: result[uint16](),
			Build: func(b *B) { b.U16(0x00FF).U16(0xF00F).Op(isa.BW_OR_X16) },
		},
		{
			Name: "bitwise_xor_X32", Want: uint32(0xF0F00F0F), Result: result[uint32](),
			Build: func(b *B) { b.U32(0x0F0F0F0F).U32(0xFFFF0000).Op(isa.BW_XOR_X32) },
		},
		{
			Name: "bitwise_not_X8", Want: uint8(0b11110000), Result: result[uint8](),
			Build: func(b *B) { b.U8(0b00001111).Op(isa.BW_NOT_X8) },
		},
	}...)
}

func logicVecs(out []Vec) []Vec {
	return append(out, []Vec{
		{
			Name: "logic_and => true && false", Want: false, Result: result[bool](),
			Build: func(b *B) { b.Bool(true).Bool(false).Op(isa.LOGIC_AND) },
		},
		{
			Name: "logic_and => true && true", Want: true, Result: result[bool](),
			Build: func(b *B) { b.Bool(true).Bool(true).Op(isa.LOGIC_AND) },
		},
		{
			Name: "logic_or => true || false", Want: true, Result: result[bool](),
			Build: func(b *B) { b.Bool(true).Bool(false).Op(isa.LOGIC_OR) },
		},
		{
			Name: "logic_or => false || false", Want: false, Result: result[bool](),
			Build: func(b *B) { b.Bool(false).Bool(false).Op(isa.LOGIC_OR) },
		},
		{
			Name: "logic_xor => true ^ true", Want: false, Result: result[bool](),
			Build: func(b *B) { b.Bool(true).Bool(true).Op(isa.LOGIC_XOR) },
		},
		{
			Name: "logic_not => !false", Want: true, Result: result[bool](),
			Build: func(b *B) { b.Bool(false).Op(isa.LOGIC_NOT) },
		},
	}...)
}

func compareVecs(out []Vec) []Vec {
	return append(out, []Vec{
		{
			Name: "cmp_eq => 1 == 1", Want: true, Result: result[bool](),
			Build: func(b *B) { b.Bool(true).Bool(true).Typed(isa.CMP_EQ, isa.BOOL) },
		},
		{
			Name: "cmp_eq => 0.3 == 0.3", Want: true, Result: result[bool](),
			Build: func(b *B) { b.F32(0.3).F32(0.3).Typed(isa.CMP_EQ, isa.F32) },
		},
		{
			Name: "cmp_eq => 0.29 == 0.31", Want: false, Result: result[bool](),
			Build: func(b *B) { b.F32(0.29).F32(0.31).Typed(isa.CMP_EQ, isa.F32) },
		},
		{
			Name: "cmp_lt => -1 < 1", Want: true, Result: result[bool](),
			Build: func(b *B) { b.S16(-1).S16(1).Typed(isa.CMP_LT, isa.S16) },
		},
		{
			Name: "cmp_gte => 200 >= 201", Want: false, Result: result[bool](),
			Build: func(b *B) { b.U8(200).U8(201).Typed(isa.CMP_GTE, isa.U8) },
		},
		{
			Name: "cmp_neq => 7 != 8", Want: true, Result: result[bool](),
			Build: func(b *B) { b.U64(7).U64(8).Typed(isa.CMP_NEQ, isa.U64) },
		},
	}...)
}

func jumpVecs(out []Vec) []Vec {
	return append(out, []Vec{
		{
			Name: "jump => 1", Expect: pvm1.ProgramExited, Want: uint8(1), Result: result[uint8](),
			Build: func(b *B) {
				b.U8(1)                  // 0 [+2]
				b.Jump(13)               // 2 [+3]
				b.U8(1)                  // 5 [+2]
				b.Typed(isa.ADD, isa.U8) // 7 [+2]
				b.U8(3)                  // 9 [+2]
				b.Typed(isa.MUL, isa.U8) // 11 [+2]
				b.Exit()                 // 13 [+1]
			},
		},
		{
			Name: "jump_if => 3 > 2 ? 10 : 20", Expect: pvm1.ProgramExited, Want: uint8(10), Result: result[uint8](),
			Build: func(b *B) {
				b.U8(3).U8(2).Typed(isa.CMP_GT, isa.U8)
				els := b.Forward(isa.JMP_IF_NOT)
				b.U8(10).Exit()
				b.Bind(els)
				b.U8(20).Exit()
			},
		},
		{
			Name: "jump_loop => sum 1..4", Expect: pvm1.Success, Want: uint16(10), Result: result[uint16](),
			Build: func(b *B) {
				// acc, i
				b.U16(0).U16(4)
				top := b.Here()
				// acc += i
				b.Typed(isa.COPY, isa.U16).Put(isa.U16, 0)
				b.Typed(isa.SWAP, isa.U16).Get(isa.U16, 0).Typed(isa.ADD, isa.U16)
				// i--
				b.Typed(isa.SWAP, isa.U16).U16(1).Typed(isa.SUB, isa.U16)
				b.Typed(isa.COPY, isa.U16).U16(0).Typed(isa.CMP_NEQ, isa.U16).JumpIf(top)
				b.Typed(isa.DROP, isa.U16)
			},
		},
	}...)
}

func stackVecs(out []Vec) []Vec {
	return append(out, []Vec{
		{
			Name: "swap => 1 2 -> 2 1", Want: uint32(1), Result: result[uint32](),
			Build: func(b *B) { b.U32(1).U32(2).Typed(isa.SWAP, isa.U32) },
		},
		{
			Name: "copy => 3 * 3", Want: int32(9), Result: result[int32](),
			Build: func(b *B) { b.S32(3).Typed(isa.COPY, isa.S32).Typed(isa.MUL, isa.S32) },
		},
		{
			Name: "drop => 1 2 -> 1", Want: uint8(1), Result: result[uint8](),
			Build: func(b *B) { b.U8(1).U8(2).Typed(isa.DROP, isa.U8) },
		},
		{
			Name: "nop => 4", Want: uint8(4), Result: result[uint8](),
			Build: func(b *B) { b.Op(isa.NOP).U8(4).Op(isa.NOP) },
		},
	}...)
}

func memoryVecs(out []Vec) []Vec {
	return append(out, []Vec{
		{
			Name: "memory => put 0x1234, get low byte", Want: uint8(0x34), Result: result[uint8](),
			Build: func(b *B) { b.U16(0x1234).Put(isa.U16, 8).Get(isa.U8, 9) },
		},
		{
			Name: "memory => put F64 2.5, get", Want: float64(2.5), Result: result[float64](),
			Build: func(b *B) { b.F64(2.5).Put(isa.F64, 0).Get(isa.F64, 0) },
		},
	}...)
}
