package plcss

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"plcvm.org/plcvm/internal/testutil"
	"plcvm.org/plcvm/plcimg"
)

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(`
prune = true

[[unit]]
name = "counter"
image = "counter.plcimg"
policy = "restart"
period = "250ms"
memory_size = 8

[[unit]]
name = "jump"
vector = "jump => 1"
`), "/etc/plc")
	require.NoError(t, err)
	require.True(t, m.Prune)
	require.Len(t, m.Units, 2)
	require.Equal(t, "/etc/plc", m.Dir)

	cfg, err := m.Units[0].Config()
	require.NoError(t, err)
	require.Equal(t, UnitConfig{
		MemorySize: 8,
		Policy:     PolicyRestart,
		Period:     250 * time.Millisecond,
		StepLimit:  DefaultStepLimit,
	}, cfg)
	cfg, err = m.Units[1].Config()
	require.NoError(t, err)
	require.Equal(t, DefaultUnitConfig(), cfg)
}

func TestManifestInvalid(t *testing.T) {
	for i, src := range []string{
		`[[unit]]
		image = "a.hex"`,
		`[[unit]]
		name = "a"`,
		`[[unit]]
		name = "a"
		image = "a.hex"
		vector = "jump => 1"`,
		`[[unit]]
		name = "a"
		image = "a.hex"
		[[unit]]
		name = "a"
		image = "b.hex"`,
		`[[unit]]
		name = "a"
		image = "a.hex"
		policy = "explode"`,
		`[[unit]]
		name = "a"
		image = "a.hex"
		period = "soon"`,
	} {
		_, err := ParseManifest([]byte(src), "")
		require.Error(t, err, "case %d", i)
	}
}

func TestApply(t *testing.T) {
	ctx := testutil.Context(t)
	sys := NewTestSys(t)
	dir := t.TempDir()
	require.NoError(t, plcimg.WriteFile(filepath.Join(dir, "counter.plcimg"), counterImage(t)))
	path := filepath.Join(dir, "plc.toml")
	write := func(src string) *Manifest {
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
		m, err := LoadManifest(path)
		require.NoError(t, err)
		return m
	}

	m := write(`
[[unit]]
name = "counter"
image = "counter.plcimg"

[[unit]]
name = "jump"
vector = "jump => 1"
`)
	require.NoError(t, sys.Apply(ctx, m))
	units, err := sys.List(ctx)
	require.NoError(t, err)
	require.Len(t, units, 2)
	counter := units[0]
	require.Equal(t, "counter", counter.Name())
	_, err = counter.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, byte(1), counter.Status().Memory[0])

	// applying again leaves the units alone
	require.NoError(t, sys.Apply(ctx, m))
	require.Equal(t, byte(1), counter.Status().Memory[0])

	// a config change resets the unit
	m = write(`
prune = true

[[unit]]
name = "counter"
image = "counter.plcimg"
policy = "restart"
`)
	require.NoError(t, sys.Apply(ctx, m))
	require.Equal(t, PolicyRestart, counter.Config().Policy)
	require.Equal(t, byte(0), counter.Status().Memory[0])
	units, err = sys.List(ctx)
	require.NoError(t, err)
	require.Len(t, units, 1)

	// an image change
	m.Units[0].Image = ""
	m.Units[0].Vector = "jump => 1"
	require.NoError(t, sys.Apply(ctx, m))
	img, err := sys.Builtins().Image(ctx, "jump => 1")
	require.NoError(t, err)
	id, err := plcimg.IDOf(img)
	require.NoError(t, err)
	require.Equal(t, id, counter.ImageID())
}
