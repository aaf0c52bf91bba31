package plccmd

import (
	"fmt"
	"os"
	"strconv"

	"go.brendoncarroll.net/star"

	"plcvm.org/plcvm/plcimg"
	"plcvm.org/plcvm/plctests"
	"plcvm.org/plcvm/plctrace"
	"plcvm.org/plcvm/pvm1"
)

var runCmd = star.Command{
	Metadata: star.Metadata{
		Short: "run a program image to completion, without tracing",
	},
	Pos: []star.IParam{imageParam},
	F: func(c star.Context) error {
		img := imageParam.Load(c)
		vm, p, err := loadImage(img)
		if err != nil {
			return err
		}
		rte := newTracer(c, 0).Production(vm, p)
		c.Printf("Outcome: %v\n", rte)
		c.Printf("Leftover %s\n", vm.StackString())
		if rte.IsFault() {
			return pvm1.FaultError{Code: rte, Cursor: p.Cursor()}
		}
		return nil
	},
}

var traceCmd = star.Command{
	Metadata: star.Metadata{
		Short: "step through a program image, printing the stack after every instruction",
	},
	Flags: []star.IParam{tailParam, stepLimitParam},
	Pos:   []star.IParam{imageParam},
	F: func(c star.Context) error {
		img := imageParam.Load(c)
		vm, p, err := loadImage(img)
		if err != nil {
			return err
		}
		t := newTracer(c, tailParam.Load(c))
		t.MaxSteps = stepLimitParam.Load(c)
		if rte := t.Debug(vm, p); rte.IsFault() {
			instr, _ := p.DisassembleAt(p.Cursor())
			return pvm1.FaultError{Code: rte, Cursor: p.Cursor(), Instr: instr}
		}
		return nil
	},
}

var disasmCmd = star.Command{
	Metadata: star.Metadata{
		Short: "print the instructions in a program image",
	},
	Pos: []star.IParam{imageParam},
	F: func(c star.Context) error {
		img := imageParam.Load(c)
		p, err := img.Program()
		if err != nil {
			return err
		}
		id, err := plcimg.IDOf(img)
		if err != nil {
			return err
		}
		c.Printf("NAME:   %s\n", img.Name)
		c.Printf("ID:     %v\n", id)
		c.Printf("STACK:  %d bytes\n", img.StackSize)
		c.Printf("MEMORY: %d bytes (%d initialized)\n", img.MemorySize, len(img.Init))
		c.Printf("CODE:   %d bytes\n", len(img.Code))
		return p.Disassemble(c.StdOut)
	},
}

var selftestCmd = star.Command{
	Metadata: star.Metadata{
		Short: "run the built in test vectors, and report which passed",
	},
	Flags: []star.IParam{reviewParam},
	F: func(c star.Context) error {
		vm, p := plctests.NewVM()
		t := newTracer(c, 0)
		vecs := plctests.Vecs()
		var failed int
		if reviewParam.Load(c) {
			for _, v := range vecs {
				if !t.ReviewVec(vm, p, v) {
					failed++
				}
			}
		} else {
			failed = t.Suite(vm, p, vecs)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d vectors failed", failed, len(vecs))
		}
		return nil
	},
}

var buildVectorCmd = star.Command{
	Metadata: star.Metadata{
		Short: "write one of the built in test vectors to an image file",
	},
	Flags: []star.IParam{outParam},
	Pos:   []star.IParam{vectorParam},
	F: func(c star.Context) error {
		v := vectorParam.Load(c)
		img, err := plcimg.FromVec(v)
		if err != nil {
			return err
		}
		out := outParam.Load(c)
		if err := plcimg.WriteFile(out, img); err != nil {
			return err
		}
		id, err := plcimg.IDOf(img)
		if err != nil {
			return err
		}
		c.Printf("wrote %q to %s %v\n", v.Name, out, id)
		return nil
	},
}

var tailParam = star.Param[int]{
	Name:    "tail",
	Default: star.Ptr("0"),
	Parse:   strconv.Atoi,
}

var reviewParam = star.Param[bool]{
	Name:    "review",
	Default: star.Ptr("false"),
	Parse:   strconv.ParseBool,
}

var outParam = star.Param[string]{
	Name:    "o",
	Default: star.Ptr("out" + plcimg.Ext),
	Parse:   star.ParseString,
}

var vectorParam = star.Param[plctests.Vec]{
	Name:  "vector",
	Parse: findVec,
}

func findVec(name string) (plctests.Vec, error) {
	for _, v := range plctests.Vecs() {
		if v.Name == name {
			return v, nil
		}
	}
	return plctests.Vec{}, fmt.Errorf("no test vector named %q", name)
}

func loadImage(img *plcimg.Image) (*pvm1.VM, *pvm1.Program, error) {
	p, err := img.Program()
	if err != nil {
		return nil, nil, err
	}
	vm, _ := img.NewVM()
	return vm, p, nil
}

func newTracer(c star.Context, tail int) *plctrace.Tracer {
	return &plctrace.Tracer{
		Out:   c.StdOut,
		Color: plctrace.IsTerminal(os.Stdout),
		Tail:  tail,
	}
}
