// package pvm1 contains the PLC virtual machine.
//
// A VM owns an operand Stack and a Memory region and executes a Program one
// instruction at a time. All outcomes, including faults, are returned as
// RuntimeError values. The VM never writes output.
package pvm1

import "fmt"

// VM is a stack machine which executes Programs.
// A VM must not be used from more than one goroutine at a time.
type VM struct {
	stack *Stack
	mem   Memory
	steps uint64
}

// New creates a VM with a stack of stackSize bytes.
// memory is used as the memory region; the caller keeps ownership of it.
func New(stackSize int, memory []byte) *VM {
	return &VM{
		stack: NewStack(stackSize),
		mem:   NewMemory(memory),
	}
}

// Clear empties the stack and rewinds the cursor of p.
// The memory region is left as it is, see ClearMemory.
func (vm *VM) Clear(p *Program) {
	vm.stack.Clear()
	p.Rewind()
}

// ClearMemory zeros the memory region.
func (vm *VM) ClearMemory() {
	vm.mem.Clear()
}

// Step executes the instruction at the cursor of p.
//
// On Success the cursor has moved to the next instruction, or to the target of a taken jump.
// PROGRAM_EXITED is returned by EXIT, and when the cursor is at the end of the program.
// On a fault the cursor, the stack and the memory region are left unchanged.
func (vm *VM) Step(p *Program) RuntimeError {
	if p.Finished() {
		return ProgramExited
	}
	in, rte := decode(p.code(), p.cursor)
	if rte != Success {
		return rte
	}
	next, rte := vm.exec(in, p.cursor+in.Len(), p)
	if rte != Success {
		return rte
	}
	vm.steps++
	p.cursor = next
	return Success
}

// CleanRun clears the stack and runs p from the start until it exits or faults.
// PROGRAM_EXITED is returned when p runs to completion, otherwise the first fault is returned.
func (vm *VM) CleanRun(p *Program) RuntimeError {
	vm.Clear(p)
	for {
		if rte := vm.Step(p); rte != Success {
			return rte
		}
	}
}

// RunSteps is CleanRun with a budget of maxSteps calls to Step.
// The call which returns PROGRAM_EXITED counts against the budget, so a program of
// n instructions needs a budget of n+1 if it runs off the end.
// If the budget runs out first, STEP_LIMIT_EXCEEDED is returned.
func (vm *VM) RunSteps(p *Program, maxSteps uint64) RuntimeError {
	vm.Clear(p)
	for i := uint64(0); i < maxSteps; i++ {
		if rte := vm.Step(p); rte != Success {
			return rte
		}
	}
	return StepLimitExceeded
}

// Read returns the top of the stack as a T, without removing it.
func Read[T Scalar](vm *VM) (T, RuntimeError) {
	return Peek[T](vm.stack)
}

// Stack returns the operand stack.
func (vm *VM) Stack() *Stack {
	return vm.stack
}

// StackString renders the operand stack for diagnostics.
func (vm *VM) StackString() string {
	return fmt.Sprintf("Stack(%d) %v", vm.stack.Len(), vm.stack)
}

// DumpStack appends the bytes on the stack to out.
func (vm *VM) DumpStack(out []byte) []byte {
	return append(out, vm.stack.buf.Bytes()[:vm.stack.sp]...)
}

// Memory returns the memory region.
func (vm *VM) Memory() Memory {
	return vm.mem
}

// Steps returns the number of instructions executed successfully since the VM was created.
func (vm *VM) Steps() uint64 {
	return vm.steps
}
