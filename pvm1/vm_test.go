package pvm1

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"plcvm.org/plcvm/isa"
)

const (
	testMemSize   = 16
	testStackSize = 32
	testProgSize  = 64
)

func newTestVM(t testing.TB) (*VM, *Program) {
	mem := make([]byte, testMemSize)
	return New(testStackSize, mem), NewProgram(testProgSize)
}

func build(t testing.TB, p *Program, fn func(b *Builder)) {
	p.Erase()
	b := NewBuilder(p)
	fn(b)
	require.NoError(t, b.Err())
}

func TestStepScenarios(t *testing.T) {
	vm, p := newTestVM(t)

	t.Run("U8", func(t *testing.T) {
		build(t, p, func(b *Builder) {
			b.U8(1).U8(2).Typed(isa.ADD, isa.U8).U8(3).Typed(isa.MUL, isa.U8)
		})
		vm.Clear(p)
		for i := 0; i < 5; i++ {
			require.Equal(t, Success, vm.Step(p), "step %d", i)
		}
		require.True(t, p.Finished())
		require.Equal(t, ProgramExited, vm.Step(p))
		x, rte := Read[uint8](vm)
		require.Equal(t, Success, rte)
		require.Equal(t, uint8(9), x)
		require.Equal(t, 1, vm.Stack().Len())
	})
	t.Run("S8", func(t *testing.T) {
		build(t, p, func(b *Builder) {
			b.S8(1).S8(2).Typed(isa.SUB, isa.S8).S8(3).Typed(isa.MUL, isa.S8)
		})
		require.Equal(t, ProgramExited, vm.CleanRun(p))
		x, rte := Read[int8](vm)
		require.Equal(t, Success, rte)
		require.Equal(t, int8(-3), x)
	})
	t.Run("F32", func(t *testing.T) {
		build(t, p, func(b *Builder) {
			b.F32(0.1).F32(0.2).Typed(isa.ADD, isa.F32).F32(-1).Typed(isa.MUL, isa.F32)
		})
		require.Equal(t, ProgramExited, vm.CleanRun(p))
		x, rte := Read[float32](vm)
		require.Equal(t, Success, rte)
		require.InDelta(t, -0.3, float64(x), 1e-6)
	})
	t.Run("Jump", func(t *testing.T) {
		build(t, p, func(b *Builder) {
			b.U8(1)                  // 0
			b.Jump(13)               // 2
			b.U8(1)                  // 5
			b.Typed(isa.ADD, isa.U8) // 7
			b.U8(3)                  // 9
			b.Typed(isa.MUL, isa.U8) // 11
			b.Exit()                 // 13
		})
		require.Equal(t, 14, p.Len())
		vm.Clear(p)
		require.Equal(t, Success, vm.Step(p))
		require.Equal(t, Success, vm.Step(p))
		require.Equal(t, 13, p.Cursor())
		require.Equal(t, 1, vm.Stack().Len())
		require.Equal(t, ProgramExited, vm.Step(p))
		x, rte := Read[uint8](vm)
		require.Equal(t, Success, rte)
		require.Equal(t, uint8(1), x)
	})
}

func TestFaults(t *testing.T) {
	tcs := []struct {
		Name  string
		Code  []byte
		Stack []byte
		Err   RuntimeError
		// Cursor is where the fault is reported
		Cursor int
	}{
		{Name: "unknown", Code: []byte{0xfe}, Err: UnknownInstruction},
		{Name: "unknown-after-push", Code: []byte{byte(isa.PUSH_U8), 7, 0x70}, Err: UnknownInstruction, Cursor: 2, Stack: []byte{7}},
		{Name: "add-bool", Code: []byte{byte(isa.ADD), byte(isa.BOOL)}, Err: InvalidType},
		{Name: "add-bad-tag", Code: []byte{byte(isa.ADD), 0x20}, Err: InvalidType},
		{Name: "lt-bool", Code: []byte{byte(isa.CMP_LT), byte(isa.BOOL)}, Err: InvalidType},
		{Name: "truncated-push", Code: []byte{byte(isa.PUSH_U16), 0x00}, Err: TruncatedInstruction},
		{Name: "truncated-tag", Code: []byte{byte(isa.ADD)}, Err: TruncatedInstruction},
		{Name: "truncated-jump", Code: []byte{byte(isa.JMP), 0x00}, Err: TruncatedInstruction},
		{Name: "underflow-empty", Code: []byte{byte(isa.ADD), byte(isa.U8)}, Err: StackUnderflow},
		{Name: "underflow-narrow", Code: []byte{byte(isa.PUSH_U8), 1, byte(isa.ADD), byte(isa.U16)}, Err: StackUnderflow, Cursor: 2, Stack: []byte{1}},
		{Name: "underflow-logic", Code: []byte{byte(isa.PUSH_BOOL), 1, byte(isa.LOGIC_AND)}, Err: StackUnderflow, Cursor: 2, Stack: []byte{1}},
		{Name: "underflow-bitwise", Code: []byte{byte(isa.PUSH_U8), 1, byte(isa.BW_AND_X16)}, Err: StackUnderflow, Cursor: 2, Stack: []byte{1}},
		{Name: "jump-out", Code: []byte{byte(isa.JMP), 0x00, 0x64}, Err: InvalidJumpAddress},
		{Name: "jump-if-out", Code: []byte{byte(isa.PUSH_BOOL), 1, byte(isa.JMP_IF), 0x00, 0x64}, Err: InvalidJumpAddress, Cursor: 2, Stack: []byte{1}},
		{Name: "jump-mid-instruction", Code: []byte{byte(isa.JMP), 0x00, 0x04, byte(isa.PUSH_U16), 0x02, 0x07, byte(isa.EXIT)}, Err: InvalidJumpAddress},
		{Name: "jump-if-mid-instruction", Code: []byte{byte(isa.PUSH_BOOL), 1, byte(isa.JMP_IF), 0x00, 0x01, byte(isa.EXIT)}, Err: InvalidJumpAddress, Cursor: 2, Stack: []byte{1}},
		{Name: "jump-if-empty", Code: []byte{byte(isa.JMP_IF), 0x00, 0x00}, Err: StackUnderflow},
		{Name: "get-out", Code: []byte{byte(isa.GET), byte(isa.U32), 0x00, 14}, Err: MemoryOutOfBounds},
		{Name: "put-out", Code: []byte{byte(isa.PUSH_U8), 9, byte(isa.PUT), byte(isa.U8), 0x00, 16}, Err: MemoryOutOfBounds, Cursor: 2, Stack: []byte{9}},
		{Name: "div-zero", Code: []byte{byte(isa.PUSH_U8), 9, byte(isa.PUSH_U8), 0, byte(isa.DIV), byte(isa.U8)}, Err: DivisionByZero, Cursor: 4, Stack: []byte{9, 0}},
	}
	for i, tc := range tcs {
		t.Run(fmt.Sprintf("%d/%s", i, tc.Name), func(t *testing.T) {
			vm, p := newTestVM(t)
			require.NoError(t, p.Load(tc.Code))
			rte := vm.CleanRun(p)
			require.Equal(t, tc.Err, rte)
			require.True(t, rte.IsFault())
			require.Equal(t, tc.Cursor, p.Cursor())
			if tc.Stack == nil {
				tc.Stack = []byte{}
			}
			require.Equal(t, tc.Stack, vm.Stack().Bytes())
			// stepping again reports the same fault
			require.Equal(t, tc.Err, vm.Step(p))
		})
	}
}

func TestStackOverflow(t *testing.T) {
	vm := New(3, nil)
	p := NewProgram(testProgSize)
	build(t, p, func(b *Builder) {
		b.U16(0xffff).U16(1)
	})
	require.Equal(t, StackOverflow, vm.CleanRun(p))
	require.Equal(t, 3, p.Cursor())
	require.Equal(t, []byte{0xff, 0xff}, vm.Stack().Bytes())

	build(t, p, func(b *Builder) {
		b.U16(0xffff).Typed(isa.COPY, isa.U16)
	})
	require.Equal(t, StackOverflow, vm.CleanRun(p))
}

func TestJumpToEnd(t *testing.T) {
	vm, p := newTestVM(t)
	build(t, p, func(b *Builder) {
		b.U8(5).Jump(7).U8(6)
	})
	require.Equal(t, ProgramExited, vm.CleanRun(p))
	require.Equal(t, []byte{5}, vm.Stack().Bytes())
}

func TestJumpTargets(t *testing.T) {
	vm, p := newTestVM(t)
	// built programs record where each instruction starts
	build(t, p, func(b *Builder) {
		b.Jump(4).U16(0x0207).Exit()
	})
	require.Equal(t, InvalidJumpAddress, vm.CleanRun(p))
	require.Equal(t, 0, p.Cursor())

	build(t, p, func(b *Builder) {
		b.Jump(6).U16(0x0207).Exit()
	})
	require.Equal(t, ProgramExited, vm.CleanRun(p))
	require.Equal(t, 0, vm.Stack().Len())

	// an unknown byte does not hide the instructions after it
	require.NoError(t, p.Load([]byte{byte(isa.JMP), 0x00, 0x04, 0xfe, byte(isa.PUSH_U8), 9}))
	require.Equal(t, ProgramExited, vm.CleanRun(p))
	require.Equal(t, []byte{9}, vm.Stack().Bytes())

	// starts from a previous program do not survive a Load
	require.NoError(t, p.Load([]byte{byte(isa.PUSH_U16), 0x00, 0x00, byte(isa.JMP), 0x00, 0x04}))
	require.Equal(t, InvalidJumpAddress, vm.CleanRun(p))
	require.Equal(t, 3, p.Cursor())
}

func TestExitHalts(t *testing.T) {
	vm, p := newTestVM(t)
	build(t, p, func(b *Builder) {
		b.U8(1).Exit().U8(2)
	})
	require.NoError(t, p.Push(0xfe))
	require.Equal(t, ProgramExited, vm.CleanRun(p))
	require.Equal(t, 2, p.Cursor())
	require.Equal(t, ProgramExited, vm.Step(p))
	require.Equal(t, 2, p.Cursor())
	require.Equal(t, []byte{1}, vm.Stack().Bytes())
}

func TestConditional(t *testing.T) {
	// if x > 10 { 1 } else { 2 }
	run := func(x uint8) uint8 {
		vm, p := newTestVM(t)
		b := NewBuilder(p)
		b.U8(x).U8(10).Typed(isa.CMP_GT, isa.U8)
		elseJmp := b.Forward(isa.JMP_IF_NOT)
		b.U8(1)
		endJmp := b.Forward(isa.JMP)
		b.Bind(elseJmp)
		b.U8(2)
		b.Bind(endJmp)
		b.Exit()
		require.NoError(t, b.Err())
		require.Equal(t, ProgramExited, vm.CleanRun(p))
		y, rte := Read[uint8](vm)
		require.Equal(t, Success, rte)
		require.Equal(t, 1, vm.Stack().Len())
		return y
	}
	require.Equal(t, uint8(1), run(11))
	require.Equal(t, uint8(2), run(10))
	require.Equal(t, uint8(2), run(0))
}

func TestLoop(t *testing.T) {
	// count memory[0] up to 5
	vm, p := newTestVM(t)
	b := NewBuilder(p)
	top := b.Here()
	b.Get(isa.U8, 0).U8(1).Typed(isa.ADD, isa.U8).Typed(isa.COPY, isa.U8).Put(isa.U8, 0)
	b.U8(5).Typed(isa.CMP_LT, isa.U8).JumpIf(top)
	require.NoError(t, b.Err())
	require.Equal(t, ProgramExited, vm.CleanRun(p))
	require.Equal(t, uint8(5), vm.Memory().Bytes()[0])
	require.Equal(t, 0, vm.Stack().Len())
}

func TestRunSteps(t *testing.T) {
	vm, p := newTestVM(t)
	build(t, p, func(b *Builder) {
		b.Jump(0)
	})
	require.Equal(t, StepLimitExceeded, vm.RunSteps(p, 100))

	build(t, p, func(b *Builder) {
		b.U8(1).U8(2).Typed(isa.ADD, isa.U8)
	})
	require.Equal(t, StepLimitExceeded, vm.RunSteps(p, 3))
	require.Equal(t, ProgramExited, vm.RunSteps(p, 4))
}

func TestClear(t *testing.T) {
	vm, p := newTestVM(t)
	build(t, p, func(b *Builder) {
		b.Get(isa.U16, 2).U16(3).Typed(isa.ADD, isa.U16).Typed(isa.COPY, isa.U16).Put(isa.U16, 2)
	})
	// the stack does not leak between runs
	require.Equal(t, ProgramExited, vm.CleanRun(p))
	first := vm.Stack().Bytes()
	require.Equal(t, ProgramExited, vm.CleanRun(p))
	require.Equal(t, 2, vm.Stack().Len())
	// but the memory region is retained
	x, rte := Read[uint16](vm)
	require.Equal(t, Success, rte)
	require.Equal(t, uint16(6), x)
	require.NotEqual(t, first, vm.Stack().Bytes())

	vm.ClearMemory()
	require.Equal(t, ProgramExited, vm.CleanRun(p))
	require.Equal(t, first, vm.Stack().Bytes())
}

func TestRead(t *testing.T) {
	vm, p := newTestVM(t)
	_, rte := Read[uint8](vm)
	require.Equal(t, StackUnderflow, rte)

	build(t, p, func(b *Builder) { b.U16(0x1234) })
	require.Equal(t, ProgramExited, vm.CleanRun(p))
	_, rte = Read[uint32](vm)
	require.Equal(t, StackUnderflow, rte)
	x, rte := Read[uint16](vm)
	require.Equal(t, Success, rte)
	require.Equal(t, uint16(0x1234), x)
	// Read does not mutate
	require.Equal(t, 2, vm.Stack().Len())
}

func TestStackOps(t *testing.T) {
	vm, p := newTestVM(t)
	build(t, p, func(b *Builder) {
		b.U32(1).U32(2).Typed(isa.SWAP, isa.U32)
		b.Typed(isa.COPY, isa.U32)
		b.U8(0xaa).Typed(isa.DROP, isa.U8)
	})
	require.Equal(t, ProgramExited, vm.CleanRun(p))
	require.Equal(t, []byte{0, 0, 0, 2, 0, 0, 0, 1, 0, 0, 0, 1}, vm.Stack().Bytes())
}

func TestMemory(t *testing.T) {
	mem := make([]byte, 4)
	vm := New(8, mem)
	p := NewProgram(testProgSize)
	build(t, p, func(b *Builder) {
		b.S16(-2).Put(isa.S16, 2).Get(isa.U8, 3)
	})
	require.Equal(t, ProgramExited, vm.CleanRun(p))
	require.Equal(t, []byte{0, 0, 0xff, 0xfe}, mem)
	x, rte := Read[uint8](vm)
	require.Equal(t, Success, rte)
	require.Equal(t, uint8(0xfe), x)

	y, rte := Load[int16](vm.Memory(), 2)
	require.Equal(t, Success, rte)
	require.Equal(t, int16(-2), y)
	require.Equal(t, MemoryOutOfBounds, Store(vm.Memory(), 3, uint16(1)))
}

func TestArithmetic(t *testing.T) {
	testArith(t, uint8(200), uint8(100))
	testArith(t, uint16(1), uint16(0xffff))
	testArith(t, uint32(7), uint32(3))
	testArith(t, uint64(math.MaxUint64), uint64(2))
	testArith(t, int8(127), int8(1))
	testArith(t, int8(-128), int8(-1))
	testArith(t, int16(-300), int16(7))
	testArith(t, int32(math.MinInt32), int32(3))
	testArith(t, int64(-5), int64(2))
	testArith(t, float32(1.5), float32(-0.25))
	testArith(t, float64(1e300), float64(1e10))
	testArith(t, float64(1), float64(0))
}

func testArith[T number](t *testing.T, a, b T) {
	ty := TagOf[T]()
	t.Run(fmt.Sprintf("%v(%v,%v)", ty, a, b), func(t *testing.T) {
		vm, p := newTestVM(t)
		expected := map[isa.Op]T{
			isa.ADD: a + b,
			isa.SUB: a - b,
			isa.MUL: a * b,
		}
		if b != 0 || isFloat[T]() {
			expected[isa.DIV] = a / b
		}
		for op, want := range expected {
			build(t, p, func(bl *Builder) {
				require.NoError(t, PushLiteral(bl.Program(), a))
				require.NoError(t, PushLiteral(bl.Program(), b))
				bl.Typed(op, ty)
			})
			require.Equal(t, ProgramExited, vm.CleanRun(p), "%v", op)
			require.Equal(t, SizeOf[T](), vm.Stack().Len())
			got, rte := Read[T](vm)
			require.Equal(t, Success, rte)
			require.Equal(t, want, got, "%v", op)
		}

		build(t, p, func(bl *Builder) {
			require.NoError(t, PushLiteral(bl.Program(), a))
			bl.Typed(isa.NEG, ty)
		})
		require.Equal(t, ProgramExited, vm.CleanRun(p))
		got, _ := Read[T](vm)
		require.Equal(t, -a, got)
	})
}

func TestBitwise(t *testing.T) {
	tcs := []struct {
		Name string
		Code func(b *Builder)
		Want []byte
	}{
		{"and8", func(b *Builder) { b.U8(0b00001111).U8(0b01010101).Op(isa.BW_AND_X8) }, []byte{0b00000101}},
		{"and16", func(b *Builder) { b.U16(0x00ff).U16(0xf00f).Op(isa.BW_AND_X16) }, []byte{0x00, 0x0f}},
		{"and32", func(b *Builder) { b.U32(0x0f0f0f0f).U32(0xffff0000).Op(isa.BW_AND_X32) }, []byte{0x0f, 0x0f, 0, 0}},
		{"and64", func(b *Builder) { b.U64(0b00001111).U64(0b01010101).Op(isa.BW_AND_X64) }, []byte{0, 0, 0, 0, 0, 0, 0, 0b00000101}},
		{"or8", func(b *Builder) { b.U8(0xf0).U8(0x0f).Op(isa.BW_OR_X8) }, []byte{0xff}},
		{"xor16", func(b *Builder) { b.U16(0xffff).U16(0x0ff0).Op(isa.BW_XOR_X16) }, []byte{0xf0, 0x0f}},
		{"not16", func(b *Builder) { b.U16(0x00ff).Op(isa.BW_NOT_X16) }, []byte{0xff, 0x00}},
		// no sign extension, even for signed literals
		{"and8-signed", func(b *Builder) { b.S8(-1).S8(0x0f).Op(isa.BW_AND_X8) }, []byte{0x0f}},
		{"not32", func(b *Builder) { b.S32(0).Op(isa.BW_NOT_X32) }, []byte{0xff, 0xff, 0xff, 0xff}},
	}
	for i, tc := range tcs {
		t.Run(fmt.Sprintf("%d/%s", i, tc.Name), func(t *testing.T) {
			vm, p := newTestVM(t)
			build(t, p, tc.Code)
			require.Equal(t, ProgramExited, vm.CleanRun(p))
			require.Equal(t, tc.Want, vm.Stack().Bytes())
		})
	}
}

func TestLogic(t *testing.T) {
	tcs := []struct {
		Op   isa.Op
		A, B bool
		Want bool
	}{
		{isa.LOGIC_AND, true, false, false},
		{isa.LOGIC_AND, true, true, true},
		{isa.LOGIC_AND, false, false, false},
		{isa.LOGIC_OR, true, false, true},
		{isa.LOGIC_OR, false, false, false},
		{isa.LOGIC_OR, false, true, true},
		{isa.LOGIC_XOR, true, true, false},
		{isa.LOGIC_XOR, false, true, true},
	}
	for i, tc := range tcs {
		t.Run(fmt.Sprintf("%d/%v(%v,%v)", i, tc.Op, tc.A, tc.B), func(t *testing.T) {
			vm, p := newTestVM(t)
			build(t, p, func(b *Builder) { b.Bool(tc.A).Bool(tc.B).Op(tc.Op) })
			require.Equal(t, ProgramExited, vm.CleanRun(p))
			got, rte := Read[bool](vm)
			require.Equal(t, Success, rte)
			require.Equal(t, tc.Want, got)
			require.Equal(t, 1, vm.Stack().Len())
		})
	}

	vm, p := newTestVM(t)
	build(t, p, func(b *Builder) { b.Bool(false).Op(isa.LOGIC_NOT) })
	require.Equal(t, ProgramExited, vm.CleanRun(p))
	got, _ := Read[bool](vm)
	require.True(t, got)
}

func TestCompare(t *testing.T) {
	tcs := []struct {
		Name string
		Code func(b *Builder)
		Want bool
	}{
		{"bool-eq", func(b *Builder) { b.Bool(true).Bool(true).Typed(isa.CMP_EQ, isa.BOOL) }, true},
		{"f32-eq", func(b *Builder) { b.F32(0.3).F32(0.3).Typed(isa.CMP_EQ, isa.F32) }, true},
		{"f32-ne", func(b *Builder) { b.F32(0.29).F32(0.31).Typed(isa.CMP_EQ, isa.F32) }, false},
		{"f64-sum", func(b *Builder) { b.F64(0.1).F64(0.2).Typed(isa.ADD, isa.F64).F64(0.3).Typed(isa.CMP_EQ, isa.F64) }, false},
		{"u8-gt", func(b *Builder) { b.U8(255).U8(1).Typed(isa.CMP_GT, isa.U8) }, true},
		{"s8-lt", func(b *Builder) { b.S8(-1).S8(1).Typed(isa.CMP_LT, isa.S8) }, true},
		{"s64-gte", func(b *Builder) { b.S64(4).S64(4).Typed(isa.CMP_GTE, isa.S64) }, true},
		{"u16-lte", func(b *Builder) { b.U16(5).U16(4).Typed(isa.CMP_LTE, isa.U16) }, false},
		{"u32-neq", func(b *Builder) { b.U32(5).U32(4).Typed(isa.CMP_NEQ, isa.U32) }, true},
	}
	for i, tc := range tcs {
		t.Run(fmt.Sprintf("%d/%s", i, tc.Name), func(t *testing.T) {
			vm, p := newTestVM(t)
			build(t, p, tc.Code)
			require.Equal(t, ProgramExited, vm.CleanRun(p))
			got, rte := Read[bool](vm)
			require.Equal(t, Success, rte)
			require.Equal(t, tc.Want, got)
			require.Equal(t, 1, vm.Stack().Len())
		})
	}
}

func TestSteps(t *testing.T) {
	vm, p := newTestVM(t)
	build(t, p, func(b *Builder) { b.U8(1).U8(2).Typed(isa.ADD, isa.U8) })
	require.Equal(t, ProgramExited, vm.CleanRun(p))
	require.Equal(t, uint64(3), vm.Steps())
	require.Equal(t, ProgramExited, vm.CleanRun(p))
	require.Equal(t, uint64(6), vm.Steps())
}
