package migrations

import (
	"testing"

	"github.com/stretchr/testify/require"

	"plcvm.org/plcvm/internal/testutil"
	"plcvm.org/plcvm/plcss/internal/dbutil"
)

func TestMigrate(t *testing.T) {
	ctx := testutil.Context(t)
	db := dbutil.NewTestDB(t)

	v1 := InitialState().ApplyStmt(`CREATE TABLE a (x INTEGER)`)
	v2 := v1.ApplyStmt(`CREATE TABLE b (y INTEGER)`)
	require.Equal(t, 1, v1.Version())
	require.Equal(t, 2, v2.Version())

	require.NoError(t, Migrate(ctx, db, v1))
	require.NoError(t, Migrate(ctx, db, v1))
	require.NoError(t, Migrate(ctx, db, v2))
	_, err := db.Exec(`INSERT INTO b (y) VALUES (1)`)
	require.NoError(t, err)

	var version int
	require.NoError(t, db.Get(&version, `PRAGMA user_version`))
	require.Equal(t, 2, version)

	require.Error(t, Migrate(ctx, db, v1))
}
