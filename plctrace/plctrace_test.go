package plctrace

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"plcvm.org/plcvm/isa"
	"plcvm.org/plcvm/plctests"
	"plcvm.org/plcvm/pvm1"
)

func TestDebug(t *testing.T) {
	vm, p := plctests.NewVM()
	b := pvm1.NewBuilder(p)
	b.U8(1).U8(2).Typed(isa.ADD, isa.U8)
	require.NoError(t, b.Err())

	var buf bytes.Buffer
	tr := &Tracer{Out: &buf}
	require.Equal(t, pvm1.Success, tr.Debug(vm, p))

	out := buf.String()
	require.Contains(t, out, "Stack trace @Program [0]: Stack(1) [01]   <= U8 1")
	require.Contains(t, out, "Stack trace @Program [4]: Stack(1) [03]   <= ADD U8")
	require.Contains(t, out, "Leftover Stack(1) [03]")
	require.Contains(t, out, "Time to execute program:")
	require.NotContains(t, out, "\033[")
}

func TestDebugFault(t *testing.T) {
	vm, p := plctests.NewVM()
	b := pvm1.NewBuilder(p)
	b.U8(1).Typed(isa.ADD, isa.U8)
	require.NoError(t, b.Err())

	var buf bytes.Buffer
	tr := &Tracer{Out: &buf}
	require.Equal(t, pvm1.StackUnderflow, tr.Debug(vm, p))
	require.Contains(t, buf.String(), "Error at program pointer 2: STACK_UNDERFLOW")
	require.NotContains(t, buf.String(), "Leftover")
}

func TestDebugTail(t *testing.T) {
	vm, p := plctests.NewVM()
	b := pvm1.NewBuilder(p)
	for i := 0; i < 5; i++ {
		b.U8(uint8(i))
	}
	require.NoError(t, b.Err())

	var buf bytes.Buffer
	tr := &Tracer{Out: &buf, Tail: 2}
	tr.Debug(vm, p)
	require.Equal(t, 2, strings.Count(buf.String(), "Stack trace"))
	require.Contains(t, buf.String(), "[6]")
	require.Contains(t, buf.String(), "[8]")
}

func TestDebugStepLimit(t *testing.T) {
	vm, p := plctests.NewVM()
	require.NoError(t, p.PushJump(0))
	var buf bytes.Buffer
	tr := &Tracer{Out: &buf, MaxSteps: 10, Tail: 1}
	require.Equal(t, pvm1.StepLimitExceeded, tr.Debug(vm, p))
	require.Contains(t, buf.String(), "Stopped after 10 steps")
}

func TestTrace(t *testing.T) {
	vm, p := plctests.NewVM()
	require.NoError(t, plctests.Vecs()[0].Program(p))
	var recs []Record
	rte, err := Trace(vm, p, 100, func(r Record) error {
		recs = append(recs, r)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, pvm1.Success, rte)
	require.Len(t, recs, 5)
	require.Equal(t, "MUL U8", recs[4].Instr)
	require.Equal(t, "SUCCESS", recs[4].Outcome)

	stop := errors.New("stop")
	_, err = Trace(vm, p, 100, func(r Record) error { return stop })
	require.ErrorIs(t, err, stop)
}

func TestSuite(t *testing.T) {
	vm, p := plctests.NewVM()
	var buf bytes.Buffer
	tr := &Tracer{Out: &buf}
	vecs := plctests.Vecs()
	require.Equal(t, 0, tr.Suite(vm, p, vecs))
	out := buf.String()
	require.Equal(t, len(vecs), strings.Count(out, "Passed"))
	require.Equal(t, len(vecs), strings.Count(out, "Test passed: YES"))
	require.Contains(t, out, `Test "add_U8 => (1 + 2) * 3"            Passed`)
}

func TestReviewFailure(t *testing.T) {
	vm, p := plctests.NewVM()
	v := plctests.Vecs()[0]
	v.Want = uint8(0)
	var buf bytes.Buffer
	tr := &Tracer{Out: &buf, Color: true}
	require.False(t, tr.ReviewVec(vm, p, v))
	require.Contains(t, buf.String(), "\033[31mFAILED !!!\033[39m")

	buf.Reset()
	require.False(t, tr.RunVec(vm, p, v))
	require.Contains(t, buf.String(), "NO - TEST DID NOT PASS !!!")
}

func TestProduction(t *testing.T) {
	vm, p := plctests.NewVM()
	require.NoError(t, plctests.Vecs()[0].Program(p))
	var buf bytes.Buffer
	tr := &Tracer{Out: &buf}
	require.Equal(t, pvm1.ProgramExited, tr.Production(vm, p))
	require.Contains(t, buf.String(), "Full program debugging is disabled.")
	x, _ := pvm1.Read[uint8](vm)
	require.Equal(t, uint8(9), x)
}
