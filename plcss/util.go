package plcss

import (
	"testing"

	"github.com/stretchr/testify/require"

	"plcvm.org/plcvm/internal/testutil"
	"plcvm.org/plcvm/plcss/internal/dbutil"
)

// NewTestSys returns a System backed by an in-memory database.
func NewTestSys(t testing.TB) *System {
	ctx := testutil.Context(t)
	db := dbutil.NewTestDB(t)
	require.NoError(t, SetupDB(ctx, db))
	return NewSystem(db)
}
