// package dbutil opens sqlite databases and runs transactions against them.
package dbutil

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Reader is implemented by *sqlx.DB and *sqlx.Tx
type Reader interface {
	Get(dst any, q string, args ...any) error
	Select(dst any, q string, args ...any) error
}

var (
	_ Reader = &sqlx.DB{}
	_ Reader = &sqlx.Tx{}
)

// Open opens the sqlite database at p.
// The special path ":memory:" opens a database which is never written to disk.
func Open(p string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer, and an in-memory database is private to its connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA busy_timeout = 5000`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbutil: %s: %w", pragma, err)
		}
	}
	return db, nil
}

// DoTx runs fn in a transaction, which is committed if fn returns nil and rolled back otherwise.
func DoTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if err2 := tx.Rollback(); err2 != nil {
			return errors.Join(err, err2)
		}
		return err
	}
	return tx.Commit()
}

// DoTx1 is DoTx for functions which return a value.
func DoTx1[T any](ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) (T, error)) (T, error) {
	var ret T
	err := DoTx(ctx, db, func(tx *sqlx.Tx) error {
		var err error
		ret, err = fn(tx)
		return err
	})
	return ret, err
}

// NewTestDB returns an empty in-memory database which is closed when the test completes.
func NewTestDB(t testing.TB) *sqlx.DB {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
