package plcss

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"plcvm.org/plcvm/plcimg"
	"plcvm.org/plcvm/plcss/internal/sqlstores"
)

// Manifest is the desired set of units, usually read from a TOML file.
//
//	prune = true
//
//	[[unit]]
//	name = "counter"
//	image = "counter.plcimg"
//	policy = "restart"
//	period = "250ms"
type Manifest struct {
	// Prune drops units which are not in the manifest.
	Prune bool       `toml:"prune"`
	Units []UnitSpec `toml:"unit"`

	// Dir is the directory image paths are relative to.
	Dir string `toml:"-"`
}

type UnitSpec struct {
	Name string `toml:"name"`
	// Image is the path to an image file, see plcimg.ReadFile.
	Image string `toml:"image"`
	// Vector names a builtin image. Exactly one of Image and Vector must be set.
	Vector string `toml:"vector"`

	StackSize  uint32   `toml:"stack_size"`
	MemorySize uint32   `toml:"memory_size"`
	Policy     string   `toml:"policy"`
	Period     Duration `toml:"period"`
	StepLimit  uint64   `toml:"step_limit"`
}

// Config returns the UnitConfig for the unit, with defaults filled in.
func (us *UnitSpec) Config() (UnitConfig, error) {
	cfg := UnitConfig{
		StackSize:  us.StackSize,
		MemorySize: us.MemorySize,
		Policy:     FaultPolicy(us.Policy),
		Period:     time.Duration(us.Period),
		StepLimit:  us.StepLimit,
	}
	cfg.fill()
	if err := cfg.Validate(); err != nil {
		return UnitConfig{}, fmt.Errorf("unit %q: %w", us.Name, err)
	}
	return cfg, nil
}

// Duration is a time.Duration written as a string like "100ms".
type Duration time.Duration

func (d *Duration) UnmarshalText(data []byte) error {
	x, err := time.ParseDuration(string(data))
	if err != nil {
		return err
	}
	*d = Duration(x)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// LoadManifest reads a manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	m, err := ParseManifest(data, dir)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return m, nil
}

func ParseManifest(data []byte, dir string) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m.Dir = dir
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) Validate() error {
	names := make(map[string]struct{}, len(m.Units))
	for i := range m.Units {
		us := &m.Units[i]
		if us.Name == "" {
			return fmt.Errorf("unit %d has no name", i)
		}
		if _, exists := names[us.Name]; exists {
			return fmt.Errorf("duplicate unit %q", us.Name)
		}
		names[us.Name] = struct{}{}
		if (us.Image == "") == (us.Vector == "") {
			return fmt.Errorf("unit %q must set exactly one of image and vector", us.Name)
		}
		if _, err := us.Config(); err != nil {
			return err
		}
	}
	return nil
}

// Apply creates, updates and (if the manifest prunes) drops units until the System matches m.
// Units which already match are left running undisturbed.
func (s *System) Apply(ctx context.Context, m *Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	keep := make(map[string]struct{}, len(m.Units))
	for _, us := range m.Units {
		keep[us.Name] = struct{}{}
		img, err := s.specImage(ctx, m, &us)
		if err != nil {
			return err
		}
		cfg, err := us.Config()
		if err != nil {
			return err
		}
		u, err := s.GetByName(ctx, us.Name)
		if errors.As(err, &ErrUnitNameNotFound{}) {
			if _, err := s.Create(ctx, us.Name, img, cfg); err != nil {
				return err
			}
			continue
		} else if err != nil {
			return err
		}
		if err := s.update(ctx, u, img, cfg); err != nil {
			return err
		}
	}
	if !m.Prune {
		return nil
	}
	units, err := s.List(ctx)
	if err != nil {
		return err
	}
	for _, u := range units {
		if _, ok := keep[u.Name()]; ok {
			continue
		}
		if err := s.Drop(ctx, u.ID()); err != nil {
			return err
		}
	}
	return nil
}

func (s *System) specImage(ctx context.Context, m *Manifest, us *UnitSpec) (*plcimg.Image, error) {
	if us.Vector != "" {
		return s.builtins.Image(ctx, us.Vector)
	}
	p := us.Image
	if !filepath.IsAbs(p) {
		p = filepath.Join(m.Dir, p)
	}
	return plcimg.ReadFile(p)
}

// update switches u to img and cfg, if either differs from what it is running.
func (s *System) update(ctx context.Context, u *Unit, img *plcimg.Image, cfg UnitConfig) error {
	data, err := plcimg.Marshal(img)
	if err != nil {
		return err
	}
	id := plcimg.Hash(data)
	prev := u.ImageID()
	if id == prev && cfg == u.Config() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	store := sqlstores.NewStore(s.db, plcimg.Hash, plcimg.MaxSize, u.storeID)
	if _, err := s.postImage(ctx, store, data); err != nil {
		return err
	}
	s.images.Add(id, img)
	if err := u.replace(ctx, id, img, cfg); err != nil {
		return err
	}
	if id != prev {
		if err := store.Delete(ctx, &prev); err != nil {
			return err
		}
	}
	logctx.Info(ctx, "updated unit", zap.Int64("unit", int64(u.ID())), zap.String("name", u.Name()), zap.String("image", id.String()))
	return nil
}
