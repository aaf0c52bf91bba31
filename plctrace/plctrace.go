// package plctrace drives a VM one step at a time and renders what happens.
//
// It only uses the introspection surface of pvm1: Step, the cursor, the stack dump and disassembly.
package plctrace

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"plcvm.org/plcvm/internal/ringbuf"
	"plcvm.org/plcvm/pvm1"
)

// Record describes a single step.
type Record struct {
	Cursor  int           `json:"cursor"`
	Instr   string        `json:"instr"`
	Outcome string        `json:"outcome"`
	Stack   string        `json:"stack"`
	Elapsed time.Duration `json:"elapsed"`

	rte pvm1.RuntimeError
}

func (r Record) RuntimeError() pvm1.RuntimeError {
	return r.rte
}

// Step executes a single instruction and records it.
func Step(vm *pvm1.VM, p *pvm1.Program) Record {
	cursor := p.Cursor()
	instr, _ := p.DisassembleAt(cursor)
	start := time.Now()
	rte := vm.Step(p)
	elapsed := time.Since(start)
	return Record{
		Cursor:  cursor,
		Instr:   instr,
		Outcome: rte.String(),
		Stack:   vm.StackString(),
		Elapsed: elapsed,
		rte:     rte,
	}
}

// Trace clears the VM and steps p until it exits, faults, runs off the end, or maxSteps have been taken.
// fn is called with every step; if it returns an error, tracing stops and the error is returned.
func Trace(vm *pvm1.VM, p *pvm1.Program, maxSteps uint64, fn func(Record) error) (pvm1.RuntimeError, error) {
	vm.Clear(p)
	for i := uint64(0); i < maxSteps; i++ {
		rec := Step(vm, p)
		if err := fn(rec); err != nil {
			return rec.rte, err
		}
		if rec.rte != pvm1.Success || p.Finished() {
			return rec.rte, nil
		}
	}
	return pvm1.StepLimitExceeded, nil
}

// Tracer writes human readable traces.
type Tracer struct {
	Out io.Writer
	// Color enables ANSI colors.
	Color bool
	// Tail, if positive, limits the step lines written by Debug to the last Tail steps.
	Tail int
	// MaxSteps bounds Debug. Zero means DefaultMaxSteps.
	MaxSteps uint64
}

const DefaultMaxSteps = 1 << 20

// New returns a Tracer writing to f, with colors if f is a terminal.
func New(f *os.File) *Tracer {
	return &Tracer{
		Out:   f,
		Color: IsTerminal(f),
	}
}

// IsTerminal returns true if f is connected to a terminal, and NO_COLOR is not set.
func IsTerminal(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (t *Tracer) printf(format string, args ...any) {
	fmt.Fprintf(t.Out, format, args...)
}

func (t *Tracer) colored(code int, s string) string {
	if !t.Color {
		return s
	}
	return fmt.Sprintf("\033[%dm%s\033[39m", code, s)
}

func (t *Tracer) red(s string) string   { return t.colored(31, s) }
func (t *Tracer) green(s string) string { return t.colored(32, s) }

func (t *Tracer) maxSteps() uint64 {
	if t.MaxSteps == 0 {
		return DefaultMaxSteps
	}
	return t.MaxSteps
}

// Debug prints the program, then steps it printing the stack after every instruction.
// If a step faults, the fault and its location are printed and the fault is returned.
// Otherwise the program is run again with CleanRun, and the leftover stack and the time it took are printed.
// The outcome of the last step is returned.
func (t *Tracer) Debug(vm *pvm1.VM, p *pvm1.Program) pvm1.RuntimeError {
	t.printf("%v\n", p)
	var tail ringbuf.RingBuf[Record]
	if t.Tail > 0 {
		tail = ringbuf.New[Record](t.Tail)
	}
	flush := func() {
		for tail.MaxLen() > 0 && tail.Len() > 0 {
			t.stepLine(tail.PopFront())
		}
	}
	var last Record
	status, _ := Trace(vm, p, t.maxSteps(), func(rec Record) error {
		last = rec
		if rec.rte.IsFault() {
			return nil
		}
		if tail.MaxLen() > 0 {
			tail.PushBack(rec)
		} else {
			t.stepLine(rec)
		}
		return nil
	})
	flush()
	if status.IsFault() {
		if status == pvm1.StepLimitExceeded {
			t.printf("%s\n", t.red(fmt.Sprintf("Stopped after %d steps: %v", t.maxSteps(), status)))
		} else {
			t.printf("%s\n", t.red(fmt.Sprintf("Error at program pointer %d: %v", last.Cursor, status)))
		}
		return status
	}

	start := time.Now()
	vm.CleanRun(p)
	elapsed := time.Since(start)
	t.printf("Leftover %s\n", vm.StackString())
	t.printf("Time to execute program: %s ms\n", millis(elapsed))
	if status != pvm1.Success {
		t.printf("Debug finished with: %v\n", status)
	}
	return status
}

func (t *Tracer) stepLine(rec Record) {
	t.printf("Stack trace @Program [%d]: %s   <= %s  (executed in %s ms)\n", rec.Cursor, rec.Stack, rec.Instr, millis(rec.Elapsed))
}

// Production prints the program and runs it without any tracing.
func (t *Tracer) Production(vm *pvm1.VM, p *pvm1.Program) pvm1.RuntimeError {
	t.printf("%v\n", p)
	t.printf("Runtime working in production mode. Full program debugging is disabled.\n")
	return vm.CleanRun(p)
}

func millis(d time.Duration) string {
	return fmt.Sprintf("%.3f", float64(d)/float64(time.Millisecond))
}
