// package migrations evolves a sqlite schema by appending statements.
//
// A State is the list of statements which produce a schema.
// The number of statements already applied to a database is kept in its user_version.
package migrations

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"plcvm.org/plcvm/plcss/internal/dbutil"
)

type State struct {
	stmts []string
}

func InitialState() *State {
	return &State{}
}

// ApplyStmt returns a new State with stmt applied after the statements in x.
// x is not modified.
func (x *State) ApplyStmt(stmt string) *State {
	stmts := make([]string, len(x.stmts), len(x.stmts)+1)
	copy(stmts, x.stmts)
	return &State{stmts: append(stmts, stmt)}
}

// Version is the number of statements in the State.
func (x *State) Version() int {
	return len(x.stmts)
}

// Migrate applies the statements in target which have not been applied to db.
// It is an error for db to be ahead of target.
func Migrate(ctx context.Context, db *sqlx.DB, target *State) error {
	return dbutil.DoTx(ctx, db, func(tx *sqlx.Tx) error {
		var current int
		if err := tx.GetContext(ctx, &current, `PRAGMA user_version`); err != nil {
			return err
		}
		if current > target.Version() {
			return fmt.Errorf("migrations: database is at version %d, ahead of %d", current, target.Version())
		}
		for i := current; i < target.Version(); i++ {
			if _, err := tx.ExecContext(ctx, target.stmts[i]); err != nil {
				return fmt.Errorf("migrations: applying statement %d: %w", i, err)
			}
		}
		if current == target.Version() {
			return nil
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, target.Version())); err != nil {
			return err
		}
		logctx.Info(ctx, "migrated database", zap.Int("from", current), zap.Int("to", target.Version()))
		return nil
	})
}
