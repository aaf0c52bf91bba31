// package plctests contains test vectors for the PLC virtual machine.
//
// The vectors are data, so they can be run by the unit tests, by the trace harness,
// and by the selftest command against a live build.
package plctests

import (
	"fmt"
	"math"

	"plcvm.org/plcvm/pvm1"
)

const (
	MemorySize  = 16
	StackSize   = 32
	ProgramSize = 64
)

// Vec is a test vector: a program and the result it should leave on the stack.
type Vec struct {
	Name string
	// Expect is the outcome of the last step, when the program is stepped until it exits,
	// faults, or runs off the end of the code.
	Expect pvm1.RuntimeError
	Build  func(b *pvm1.Builder)
	// Result reads the result of the program from the VM.
	Result func(vm *pvm1.VM) (any, pvm1.RuntimeError)
	Want   any
	// Delta is the tolerance for floating point results.
	Delta float64
}

// Program builds the vector into p.
func (v Vec) Program(p *pvm1.Program) error {
	p.Erase()
	b := pvm1.NewBuilder(p)
	v.Build(b)
	if err := b.Err(); err != nil {
		return fmt.Errorf("building %q: %w", v.Name, err)
	}
	return nil
}

// Matches returns nil if x is the result wanted by the vector.
func (v Vec) Matches(x any) error {
	if v.Delta > 0 {
		got, ok1 := asFloat(x)
		want, ok2 := asFloat(v.Want)
		if ok1 && ok2 && math.Abs(got-want) <= v.Delta {
			return nil
		}
	} else if x == v.Want {
		return nil
	}
	return fmt.Errorf("result %v (%T) does not match %v (%T)", x, x, v.Want, v.Want)
}

// Exec clears the stack, then steps p until it exits, faults, or the cursor reaches the end.
// It returns the outcome of the last step.
func Exec(vm *pvm1.VM, p *pvm1.Program) pvm1.RuntimeError {
	vm.Clear(p)
	for {
		rte := vm.Step(p)
		if rte != pvm1.Success {
			return rte
		}
		if p.Finished() {
			return rte
		}
	}
}

// Check builds and runs v, and returns an error describing any mismatch.
func Check(vm *pvm1.VM, p *pvm1.Program, v Vec) error {
	if err := v.Program(p); err != nil {
		return err
	}
	if rte := Exec(vm, p); rte != v.Expect {
		return fmt.Errorf("%s: outcome %v, expected %v", v.Name, rte, v.Expect)
	}
	x, rte := v.Result(vm)
	if rte != pvm1.Success {
		return fmt.Errorf("%s: reading result: %w", v.Name, rte)
	}
	if err := v.Matches(x); err != nil {
		return fmt.Errorf("%s: %w", v.Name, err)
	}
	// the production path must agree with the stepped one
	if rte := vm.CleanRun(p); rte.IsFault() {
		return fmt.Errorf("%s: clean run: %w", v.Name, rte)
	}
	x2, _ := v.Result(vm)
	if x2 != x {
		return fmt.Errorf("%s: clean run left %v, stepping left %v", v.Name, x2, x)
	}
	return nil
}

// NewVM returns a VM and Program with the capacities used by the vectors.
func NewVM() (*pvm1.VM, *pvm1.Program) {
	return pvm1.New(StackSize, make([]byte, MemorySize)), pvm1.NewProgram(ProgramSize)
}

func asFloat(x any) (float64, bool) {
	switch x := x.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func result[T pvm1.Scalar]() func(vm *pvm1.VM) (any, pvm1.RuntimeError) {
	return func(vm *pvm1.VM) (any, pvm1.RuntimeError) {
		return pvm1.Read[T](vm)
	}
}
