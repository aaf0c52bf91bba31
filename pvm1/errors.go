package pvm1

import (
	"errors"
	"fmt"
)

// RuntimeError is the outcome of an operation on the VM or a Program.
// Only the values below are ever produced.
type RuntimeError uint8

const (
	// Success means the step completed and execution can continue.
	Success RuntimeError = iota
	// ProgramExited is the normal terminal state.
	ProgramExited
	// ProgramSizeExceeded is returned to builders when an instruction does not fit.
	// The VM never produces it.
	ProgramSizeExceeded

	UnknownInstruction
	InvalidType
	TruncatedInstruction

	StackOverflow
	StackUnderflow

	InvalidJumpAddress
	MemoryOutOfBounds
	DivisionByZero

	// StepLimitExceeded is produced by RunSteps when the step budget runs out.
	StepLimitExceeded
)

var errorNames = [...]string{
	Success:              "SUCCESS",
	ProgramExited:        "PROGRAM_EXITED",
	ProgramSizeExceeded:  "PROGRAM_SIZE_EXCEEDED",
	UnknownInstruction:   "UNKNOWN_INSTRUCTION",
	InvalidType:          "INVALID_TYPE",
	TruncatedInstruction: "TRUNCATED_INSTRUCTION",
	StackOverflow:        "STACK_OVERFLOW",
	StackUnderflow:       "STACK_UNDERFLOW",
	InvalidJumpAddress:   "INVALID_JUMP_ADDRESS",
	MemoryOutOfBounds:    "MEMORY_ACCESS_OUT_OF_BOUNDS",
	DivisionByZero:       "DIVISION_BY_ZERO",
	StepLimitExceeded:    "STEP_LIMIT_EXCEEDED",
}

// AllRuntimeErrors returns every RuntimeError in order.
func AllRuntimeErrors() []RuntimeError {
	ret := make([]RuntimeError, len(errorNames))
	for i := range ret {
		ret[i] = RuntimeError(i)
	}
	return ret
}

// String returns the stable diagnostic name of the outcome.
func (e RuntimeError) String() string {
	if int(e) < len(errorNames) {
		return errorNames[e]
	}
	return fmt.Sprintf("RuntimeError(%d)", uint8(e))
}

func (e RuntimeError) Error() string {
	return e.String()
}

// IsFault returns true for every outcome other than Success and ProgramExited.
func (e RuntimeError) IsFault() bool {
	return e != Success && e != ProgramExited
}

// Err returns nil if e is not a fault, and e otherwise.
func (e RuntimeError) Err() error {
	if !e.IsFault() {
		return nil
	}
	return e
}

// ParseRuntimeError looks up a RuntimeError by its diagnostic name.
func ParseRuntimeError(name string) (RuntimeError, error) {
	for i, n := range errorNames {
		if n == name {
			return RuntimeError(i), nil
		}
	}
	return 0, fmt.Errorf("unknown runtime error %q", name)
}

// ErrProgramFull is returned by the Program builders when an instruction does not fit.
var ErrProgramFull = fmt.Errorf("program is full: %w", ProgramSizeExceeded)

// ErrAddressRange is returned by a Builder asked for an offset which a jump cannot encode.
var ErrAddressRange = fmt.Errorf("offset does not fit in a jump address: %w", ProgramSizeExceeded)

// FaultError is a fault along with where it happened.
type FaultError struct {
	Code   RuntimeError
	Cursor int
	// Instr is the disassembly of the faulting instruction, if it could be decoded.
	Instr string
}

func (e FaultError) Error() string {
	if e.Instr == "" {
		return fmt.Sprintf("%v at program pointer %d", e.Code, e.Cursor)
	}
	return fmt.Sprintf("%v at program pointer %d (%s)", e.Code, e.Cursor, e.Instr)
}

func (e FaultError) Unwrap() error {
	return e.Code
}

// AsFault extracts the RuntimeError from err, if there is one.
func AsFault(err error) (RuntimeError, bool) {
	var rte RuntimeError
	if errors.As(err, &rte) {
		return rte, true
	}
	return 0, false
}
