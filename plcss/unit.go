package plcss

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"plcvm.org/plcvm/internal/cadata"
	"plcvm.org/plcvm/plcimg"
	"plcvm.org/plcvm/plcss/internal/dbutil"
	"plcvm.org/plcvm/plcss/internal/sqlstores"
	"plcvm.org/plcvm/plctrace"
	"plcvm.org/plcvm/pvm1"
)

type UnitID int64

func ParseUnitID(x string) (UnitID, error) {
	id, err := strconv.ParseInt(x, 10, 64)
	if err != nil {
		return 0, err
	}
	return UnitID(id), nil
}

// A Unit is a program image and the VM it runs in.
// The memory region is retained between scan cycles, and across restarts of the System.
type Unit struct {
	id        UnitID
	name      string
	db        *sqlx.DB
	storeID   sqlstores.StoreID
	createdAt time.Time

	mu      sync.Mutex
	cfg     UnitConfig
	imageID cadata.ID
	img     *plcimg.Image
	vm      *pvm1.VM
	prog    *pvm1.Program
	mem     []byte
	halted  bool
	cycles  uint64
	last    pvm1.RuntimeError

	stopOnce sync.Once
	done     chan struct{}
}

// openUnit loads a Unit from the database.
// it does not take a lock.
func (s *System) openUnit(ctx context.Context, uid UnitID) (*Unit, error) {
	var row struct {
		Name      string    `db:"name"`
		StoreID   uint64    `db:"store_id"`
		ImageID   []byte    `db:"image_id"`
		Config    []byte    `db:"config"`
		Memory    []byte    `db:"memory"`
		Halted    bool      `db:"halted"`
		Cycles    uint64    `db:"cycles"`
		CreatedAt time.Time `db:"created_at"`
	}
	if err := s.db.GetContext(ctx, &row, `SELECT name, store_id, image_id, config, memory, halted, cycles, created_at
		FROM units
		WHERE id = ?`, uid); err != nil {
		return nil, err
	}
	var cfg UnitConfig
	if err := json.Unmarshal(row.Config, &cfg); err != nil {
		return nil, err
	}
	imgID := cadata.IDFromBytes(row.ImageID)
	img, err := s.loadImage(ctx, sqlstores.NewStore(s.db, plcimg.Hash, plcimg.MaxSize, row.StoreID), imgID)
	if err != nil {
		return nil, fmt.Errorf("loading image for unit %d: %w", uid, err)
	}
	u := &Unit{
		id:        uid,
		name:      row.Name,
		db:        s.db,
		storeID:   row.StoreID,
		createdAt: row.CreatedAt,

		halted: row.Halted,
		cycles: row.Cycles,

		done: make(chan struct{}),
	}
	if err := u.setImage(imgID, img, cfg, row.Memory); err != nil {
		return nil, err
	}
	return u, nil
}

// setImage replaces the VM and program.
// mem is used as the memory region if it is the right size, otherwise memory is initialized from the image.
func (u *Unit) setImage(id cadata.ID, img *plcimg.Image, cfg UnitConfig, mem []byte) error {
	stackSize, memSize, err := cfg.sizes(img)
	if err != nil {
		return err
	}
	prog, err := img.Program()
	if err != nil {
		return err
	}
	if len(mem) != memSize {
		mem = make([]byte, memSize)
		copy(mem, img.Init)
	}
	u.cfg = cfg
	u.imageID = id
	u.img = img
	u.prog = prog
	u.mem = mem
	u.vm = pvm1.New(stackSize, mem)
	return nil
}

func (u *Unit) ID() UnitID {
	return u.id
}

func (u *Unit) Name() string {
	return u.name
}

func (u *Unit) CreatedAt() time.Time {
	return u.createdAt
}

func (u *Unit) Config() UnitConfig {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cfg
}

func (u *Unit) ImageID() cadata.ID {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.imageID
}

// Image returns the image the unit is running. It must not be modified.
func (u *Unit) Image() *plcimg.Image {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.img
}

func (u *Unit) Halted() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.halted
}

// Status is a snapshot of a unit's execution state.
type Status struct {
	Halted bool
	Cycles uint64
	// Last is the outcome of the most recent scan cycle since the unit was opened.
	Last   pvm1.RuntimeError
	Cursor int
	Stack  []byte
	Memory []byte
}

func (u *Unit) Status() Status {
	u.mu.Lock()
	defer u.mu.Unlock()
	return Status{
		Halted: u.halted,
		Cycles: u.cycles,
		Last:   u.last,
		Cursor: u.prog.Cursor(),
		Stack:  u.vm.Stack().Bytes(),
		Memory: bytes.Clone(u.mem),
	}
}

// Disassemble writes the unit's program to w.
func (u *Unit) Disassemble(w io.Writer) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.prog.Disassemble(w)
}

// RunOnce runs a single scan cycle.
// The returned RuntimeError is the outcome of the cycle, which has already been handled according to the FaultPolicy.
// The error is non-nil if the cycle could not be run or recorded.
func (u *Unit) RunOnce(ctx context.Context) (pvm1.RuntimeError, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.checkRunnable(); err != nil {
		return pvm1.Success, err
	}
	rte := u.vm.RunSteps(u.prog, u.cfg.StepLimit)
	return rte, u.finish(ctx, rte)
}

// Trace runs a single scan cycle like RunOnce, calling fn after every step.
// If fn returns an error the cycle is abandoned, and nothing is recorded.
// fn is called with the unit locked, so it must not block.
func (u *Unit) Trace(ctx context.Context, fn func(plctrace.Record) error) (pvm1.RuntimeError, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.checkRunnable(); err != nil {
		return pvm1.Success, err
	}
	rte, err := plctrace.Trace(u.vm, u.prog, u.cfg.StepLimit, fn)
	if err != nil {
		return rte, err
	}
	return rte, u.finish(ctx, rte)
}

func (u *Unit) checkRunnable() error {
	select {
	case <-u.done:
		return ErrUnitNotFound{u.id}
	default:
	}
	if u.halted {
		return ErrUnitHalted{u.id}
	}
	return nil
}

// finish records the outcome of a scan cycle and persists the memory region.
// it must be called with u.mu held.
func (u *Unit) finish(ctx context.Context, rte pvm1.RuntimeError) error {
	u.cycles++
	u.last = rte
	var f *Fault
	if rte.IsFault() {
		f = u.newFault(rte)
		switch u.cfg.Policy {
		case PolicyRestart:
			u.initMemory()
		default:
			u.halted = true
		}
		logctx.Warn(ctx, "unit faulted",
			zap.Int64("unit", int64(u.id)),
			zap.String("name", u.name),
			zap.Stringer("fault", rte),
			zap.Int("cursor", f.Cursor),
			zap.String("instr", f.Instr),
			zap.String("policy", string(u.cfg.Policy)),
		)
	}
	return dbutil.DoTx(ctx, u.db, func(tx *sqlx.Tx) error {
		if f != nil {
			if err := insertFault(ctx, tx, f); err != nil {
				return err
			}
		}
		return u.save(ctx, tx)
	})
}

// Reset clears the halted state, the stack and the memory region.
func (u *Unit) Reset(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.halted = false
	u.vm.Clear(u.prog)
	u.initMemory()
	if err := dbutil.DoTx(ctx, u.db, func(tx *sqlx.Tx) error {
		return u.save(ctx, tx)
	}); err != nil {
		return err
	}
	logctx.Info(ctx, "reset unit", zap.Int64("unit", int64(u.id)), zap.String("name", u.name))
	return nil
}

// replace switches the unit to a new image and config, then resets it.
// img must already be in the unit's store or built in.
func (u *Unit) replace(ctx context.Context, id cadata.ID, img *plcimg.Image, cfg UnitConfig) error {
	cfgData, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.setImage(id, img, cfg, nil); err != nil {
		return err
	}
	u.halted = false
	return dbutil.DoTx(ctx, u.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE units SET image_id = ?, config = ? WHERE id = ?`,
			id[:], cfgData, u.id); err != nil {
			return err
		}
		return u.save(ctx, tx)
	})
}

// initMemory sets the memory region to the image's initial contents.
func (u *Unit) initMemory() {
	clear(u.mem)
	copy(u.mem, u.img.Init)
}

func (u *Unit) save(ctx context.Context, tx *sqlx.Tx) error {
	_, err := tx.ExecContext(ctx, `UPDATE units SET memory = ?, halted = ?, cycles = ? WHERE id = ?`,
		u.mem, u.halted, u.cycles, u.id)
	return err
}

// run runs a scan cycle every period until ctx is cancelled or the unit is stopped.
func (u *Unit) run(ctx context.Context) error {
	period := u.Config().Period
	tick := time.NewTicker(period)
	defer tick.Stop()
	logctx.Debug(ctx, "unit started", zap.Int64("unit", int64(u.id)), zap.Duration("period", period))
	for {
		if _, err := u.RunOnce(ctx); err != nil {
			switch err.(type) {
			case ErrUnitHalted:
			case ErrUnitNotFound:
				return nil
			default:
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
		if p := u.Config().Period; p != period {
			period = p
			tick.Reset(period)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-u.done:
			return nil
		case <-tick.C:
		}
	}
}

// stop signals the run loop to exit.
// it is safe to call stop multiple times from multiple goroutines.
func (u *Unit) stop() {
	u.stopOnce.Do(func() {
		close(u.done)
	})
}
