package plcss

import (
	"context"

	"github.com/jmoiron/sqlx"

	"plcvm.org/plcvm/plcss/internal/dbutil"
	"plcvm.org/plcvm/plcss/internal/migrations"
	"plcvm.org/plcvm/plcss/internal/sqlstores"
)

func OpenDB(p string) (*sqlx.DB, error) {
	return dbutil.Open(p)
}

func SetupDB(ctx context.Context, db *sqlx.DB) error {
	return migrations.Migrate(ctx, db, currentSchema)
}

var currentSchema = func() *migrations.State {
	x := migrations.InitialState()
	x = sqlstores.Migration(x)
	x = x.ApplyStmt(`CREATE TABLE units (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		store_id INTEGER NOT NULL,
		image_id BLOB NOT NULL,
		config TEXT NOT NULL,
		memory BLOB NOT NULL,
		halted INTEGER NOT NULL DEFAULT 0,
		cycles INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,

		FOREIGN KEY(store_id) REFERENCES stores(id)
	)`)
	x = x.ApplyStmt(`CREATE TABLE faults (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		unit_id INTEGER NOT NULL,
		run_id TEXT NOT NULL,
		code TEXT NOT NULL,
		cursor INTEGER NOT NULL,
		instr TEXT NOT NULL,
		policy TEXT NOT NULL,
		tai_sec INTEGER NOT NULL,
		tai_nsec INTEGER NOT NULL,

		FOREIGN KEY(unit_id) REFERENCES units(id)
	)`)
	x = x.ApplyStmt(`CREATE INDEX faults_by_unit ON faults (unit_id, id)`)
	return x
}()
