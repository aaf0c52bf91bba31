package plccmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"go.brendoncarroll.net/star"
	"golang.org/x/sync/errgroup"

	"plcvm.org/plcvm/plcss"
	"plcvm.org/plcvm/plcss/plchui"
)

var create = star.Command{
	Metadata: star.Metadata{
		Short: "create a unit running a program image",
		Tags:  []string{"unit"},
	},
	Flags: []star.IParam{DBParam, policyParam, periodParam, stepLimitParam},
	Pos:   []star.IParam{unitNameParam, imageParam},
	F: func(c star.Context) error {
		ctx := withLogger(c)
		db := DBParam.Load(c)
		defer db.Close()
		sys := plcss.NewSystem(db)
		cfg := plcss.UnitConfig{
			Policy:    policyParam.Load(c),
			Period:    periodParam.Load(c),
			StepLimit: stepLimitParam.Load(c),
		}
		u, err := sys.Create(ctx, unitNameParam.Load(c), imageParam.Load(c), cfg)
		if err != nil {
			return err
		}
		c.Printf("created unit %d\n", u.ID())
		return nil
	},
}

var list = star.Command{
	Metadata: star.Metadata{
		Short: "list the units in a system",
		Tags:  []string{"unit"},
	},
	Flags: []star.IParam{DBParam},
	F: func(c star.Context) error {
		ctx := withLogger(c)
		db := DBParam.Load(c)
		defer db.Close()
		sys := plcss.NewSystem(db)
		units, err := sys.List(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(c.StdOut, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "ID\tNAME\tIMAGE\tPOLICY\tHALTED\tCYCLES\n")
		for _, u := range units {
			st := u.Status()
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%v\t%d\n", u.ID(), u.Name(), u.Image().Name, u.Config().Policy, st.Halted, st.Cycles)
		}
		return tw.Flush()
	},
}

var drop = star.Command{
	Metadata: star.Metadata{
		Short: "remove a unit and its data from the system",
		Tags:  []string{"unit"},
	},
	Flags: []star.IParam{DBParam},
	Pos:   []star.IParam{UnitIDParam},
	F: func(c star.Context) error {
		ctx := withLogger(c)
		db := DBParam.Load(c)
		defer db.Close()
		sys := plcss.NewSystem(db)
		return sys.Drop(ctx, UnitIDParam.Load(c))
	},
}

var reset = star.Command{
	Metadata: star.Metadata{
		Short: "clear a unit's halted state and memory",
		Tags:  []string{"unit"},
	},
	Flags: []star.IParam{DBParam},
	Pos:   []star.IParam{UnitIDParam},
	F: func(c star.Context) error {
		ctx := withLogger(c)
		db := DBParam.Load(c)
		defer db.Close()
		sys := plcss.NewSystem(db)
		u, err := sys.Get(ctx, UnitIDParam.Load(c))
		if err != nil {
			return err
		}
		return u.Reset(ctx)
	},
}

var apply = star.Command{
	Metadata: star.Metadata{
		Short: "make the units in a system match a manifest",
		Tags:  []string{"unit"},
	},
	Flags: []star.IParam{DBParam},
	Pos:   []star.IParam{manifestParam},
	F: func(c star.Context) error {
		ctx := withLogger(c)
		db := DBParam.Load(c)
		defer db.Close()
		sys := plcss.NewSystem(db)
		return sys.Apply(ctx, manifestParam.Load(c))
	},
}

var faults = star.Command{
	Metadata: star.Metadata{
		Short: "show the most recent faults of a unit",
		Tags:  []string{"unit"},
	},
	Flags: []star.IParam{DBParam, limitParam},
	Pos:   []star.IParam{UnitIDParam},
	F: func(c star.Context) error {
		ctx := withLogger(c)
		db := DBParam.Load(c)
		defer db.Close()
		sys := plcss.NewSystem(db)
		u, err := sys.Get(ctx, UnitIDParam.Load(c))
		if err != nil {
			return err
		}
		fs, err := u.Faults(ctx, limitParam.Load(c))
		if err != nil {
			return err
		}
		for _, f := range fs {
			c.Printf("%s %v %s %v\n", f.Timestamp(), f.RunID, f.Policy, f.Err())
		}
		return nil
	},
}

var serve = star.Command{
	Metadata: star.Metadata{
		Short: "run all the units in this system, and serve the HTTP UI",
	},
	Flags: []star.IParam{DBParam, ListenerParam},
	F: func(c star.Context) error {
		ctx := withLogger(c)
		// setup system
		db := DBParam.Load(c)
		defer db.Close()
		sys := plcss.NewSystem(db)
		// setup listener
		lis := ListenerParam.Load(c)

		eg, ctx := errgroup.WithContext(ctx)
		eg.Go(func() error { return sys.Run(ctx) })
		eg.Go(func() error { return plchui.Serve(ctx, lis, sys) })
		return eg.Wait()
	},
}

var UnitIDParam = star.Param[plcss.UnitID]{Name: "unit", Parse: plcss.ParseUnitID}

var unitNameParam = star.Param[string]{
	Name:  "name",
	Parse: star.ParseString,
}

var manifestParam = star.Param[*plcss.Manifest]{
	Name:  "manifest",
	Parse: plcss.LoadManifest,
}

var limitParam = star.Param[int]{
	Name:    "limit",
	Default: star.Ptr("20"),
	Parse:   strconv.Atoi,
}
