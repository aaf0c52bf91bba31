package plcss

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.brendoncarroll.net/tai64"

	"plcvm.org/plcvm/pvm1"
)

// Fault is the record of a scan cycle which did not complete.
type Fault struct {
	ID     int64     `db:"id" json:"id"`
	UnitID UnitID    `db:"unit_id" json:"unit_id"`
	RunID  uuid.UUID `db:"run_id" json:"run_id"`
	// Code is the name of the RuntimeError.
	Code   string      `db:"code" json:"code"`
	Cursor int         `db:"cursor" json:"cursor"`
	Instr  string      `db:"instr" json:"instr"`
	Policy FaultPolicy `db:"policy" json:"policy"`

	TAISeconds int64 `db:"tai_sec" json:"-"`
	TAINanos   int64 `db:"tai_nsec" json:"-"`
}

func (f Fault) RuntimeError() pvm1.RuntimeError {
	rte, _ := pvm1.ParseRuntimeError(f.Code)
	return rte
}

// Timestamp is the time of the fault as an external TAI64N label.
func (f Fault) Timestamp() string {
	return fmt.Sprintf("@%016x%08x", uint64(f.TAISeconds), uint32(f.TAINanos))
}

func (f Fault) Err() error {
	return pvm1.FaultError{Code: f.RuntimeError(), Cursor: f.Cursor, Instr: f.Instr}
}

// newFault describes a fault at the current cursor.
// it must be called with u.mu held.
func (u *Unit) newFault(rte pvm1.RuntimeError) *Fault {
	now := tai64.Now()
	cursor := u.prog.Cursor()
	instr, _ := u.prog.DisassembleAt(cursor)
	return &Fault{
		UnitID:     u.id,
		RunID:      uuid.New(),
		Code:       rte.String(),
		Cursor:     cursor,
		Instr:      instr,
		Policy:     u.cfg.Policy,
		TAISeconds: int64(now.Seconds),
		TAINanos:   int64(now.Nanoseconds),
	}
}

func insertFault(ctx context.Context, tx *sqlx.Tx, f *Fault) error {
	return tx.GetContext(ctx, &f.ID, `INSERT INTO faults (unit_id, run_id, code, cursor, instr, policy, tai_sec, tai_nsec)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		f.UnitID, f.RunID, f.Code, f.Cursor, f.Instr, f.Policy, f.TAISeconds, f.TAINanos)
}

// Faults returns up to limit of the unit's most recent faults, newest first.
func (u *Unit) Faults(ctx context.Context, limit int) ([]Fault, error) {
	var ret []Fault
	if err := u.db.SelectContext(ctx, &ret, `SELECT id, unit_id, run_id, code, cursor, instr, policy, tai_sec, tai_nsec
		FROM faults
		WHERE unit_id = ?
		ORDER BY id DESC
		LIMIT ?`, u.id, limit); err != nil {
		return nil, err
	}
	return ret, nil
}
