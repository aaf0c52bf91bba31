package plctrace

import (
	"strings"

	"plcvm.org/plcvm/plctests"
	"plcvm.org/plcvm/pvm1"
)

const ruler = "--------------------------------------------------"

// RunVec debugs a single vector and prints whether it passed.
func (t *Tracer) RunVec(vm *pvm1.VM, p *pvm1.Program, v plctests.Vec) bool {
	t.printf("%s\n", ruler)
	if err := v.Program(p); err != nil {
		t.printf("%s\n", t.red(err.Error()))
		return false
	}
	t.printf("Running test: %s\n", v.Name)
	status := t.Debug(vm, p)
	output, rte := v.Result(vm)
	passed := status == v.Expect && rte == pvm1.Success && v.Matches(output) == nil
	if rte == pvm1.Success {
		t.printf("Program result: %v\n", output)
	} else {
		t.printf("Program result: %v\n", rte)
	}
	t.printf("Expected result: %v\n", v.Want)
	if passed {
		t.printf("Test passed: %s\n", t.green("YES"))
	} else {
		t.printf("Test passed: %s\n", t.red("NO - TEST DID NOT PASS !!!"))
	}
	return passed
}

// ReviewVec prints one line for v: its name, padded to a column, and the verdict.
func (t *Tracer) ReviewVec(vm *pvm1.VM, p *pvm1.Program, v plctests.Vec) bool {
	line := `Test "` + v.Name + `"`
	if n := 40 - len(line); n > 0 {
		line += strings.Repeat(" ", n)
	}
	err := plctests.Check(vm, p, v)
	if err == nil {
		t.printf("%s%s\n", line, t.green("Passed"))
	} else {
		t.printf("%s%s\n", line, t.red("FAILED !!!"))
	}
	return err == nil
}

// Suite runs every vector with RunVec, then prints a report made with ReviewVec.
// It returns the number of vectors which failed the review.
func (t *Tracer) Suite(vm *pvm1.VM, p *pvm1.Program, vecs []plctests.Vec) (failed int) {
	t.printf("%s\n", ruler)
	t.printf("Executing Runtime Unit Tests...\n")
	for _, v := range vecs {
		t.RunVec(vm, p, v)
	}
	t.printf("Runtime Unit Tests Completed.\n")
	t.printf("%s\n", ruler)
	t.printf("Report:\n")
	t.printf("%s\n", ruler)
	for _, v := range vecs {
		if !t.ReviewVec(vm, p, v) {
			failed++
		}
	}
	t.printf("%s\n", ruler)
	return failed
}
