// package plcss is the PLC supervisor system.
//
// A System is a single database holding units.
// A unit is a program image paired with its own VM, which runs one scan cycle per period.
// Faults are recorded and handled per unit, without affecting the other units.
package plcss

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/jmoiron/sqlx"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"

	"plcvm.org/plcvm/internal/cadata"
	"plcvm.org/plcvm/internal/stores"
	"plcvm.org/plcvm/plcimg"
	"plcvm.org/plcvm/plcss/internal/dbutil"
	"plcvm.org/plcvm/plcss/internal/sqlstores"
)

const imageCacheSize = 64

type System struct {
	db       *sqlx.DB
	builtins *Builtins

	mu     sync.Mutex
	stale  bool
	units  map[UnitID]*Unit
	images *simplelru.LRU[cadata.ID, *plcimg.Image]

	// set while Run is active
	eg    *errgroup.Group
	egCtx context.Context
}

func NewSystem(db *sqlx.DB) *System {
	images, err := simplelru.NewLRU[cadata.ID, *plcimg.Image](imageCacheSize, nil)
	if err != nil {
		panic(err)
	}
	return &System{
		db:       db,
		builtins: NewBuiltins(),

		stale:  true,
		units:  make(map[UnitID]*Unit),
		images: images,
	}
}

// Builtins returns the images built into the system.
func (s *System) Builtins() *Builtins {
	return s.builtins
}

// Create adds a new unit running img.
func (s *System) Create(ctx context.Context, name string, img *plcimg.Image, cfg UnitConfig) (*Unit, error) {
	cfg.fill()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	_, memSize, err := cfg.sizes(img)
	if err != nil {
		return nil, err
	}
	cfgData, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	imgData, err := plcimg.Marshal(img)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale = true
	uid, err := dbutil.DoTx1(ctx, s.db, func(tx *sqlx.Tx) (UnitID, error) {
		sid, err := sqlstores.CreateStore(tx)
		if err != nil {
			return 0, err
		}
		imgID, err := s.postImage(ctx, sqlstores.NewTxStore(tx, plcimg.Hash, plcimg.MaxSize, sid), imgData)
		if err != nil {
			return 0, err
		}
		mem := make([]byte, memSize)
		copy(mem, img.Init)
		var uid UnitID
		if err := tx.GetContext(ctx, &uid, `INSERT INTO units (name, store_id, image_id, config, memory)
			VALUES (?, ?, ?, ?, ?) RETURNING id`,
			name, sid, imgID[:], cfgData, mem); err != nil {
			return 0, err
		}
		return uid, nil
	})
	if err != nil {
		return nil, err
	}
	u, err := s.openUnit(ctx, uid)
	if err != nil {
		return nil, err
	}
	s.units[uid] = u
	s.startUnit(u)
	logctx.Info(ctx, "created unit", zap.Int64("unit", int64(uid)), zap.String("name", name), zap.String("image", u.ImageID().String()))
	return u, nil
}

// postImage adds the image to dst, unless it is built in.
func (s *System) postImage(ctx context.Context, dst cadata.Store, data []byte) (cadata.ID, error) {
	return s.imageStore(dst).Post(ctx, data)
}

// imageStore layers a unit's store over the builtin images.
func (s *System) imageStore(unitStore cadata.Store) stores.CoW {
	return stores.CoW{Hash: plcimg.Hash, Write: unitStore, Read: s.builtins.Store()}
}

// Drop stops the unit and deletes it, its faults and its images.
func (s *System) Drop(ctx context.Context, uid UnitID) error {
	// make change in database, then stop the unit.
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(ctx, uid)
	if err != nil {
		return err
	}
	if u == nil {
		return nil
	}
	s.stale = true
	if err := dbutil.DoTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM faults WHERE unit_id = ?`, uid); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM units WHERE id = ?`, uid); err != nil {
			return err
		}
		return sqlstores.DropStore(tx, u.storeID)
	}); err != nil {
		return err
	}
	u.stop()
	delete(s.units, uid)
	logctx.Info(ctx, "dropped unit", zap.Int64("unit", int64(uid)), zap.String("name", u.Name()))
	return nil
}

// Get returns the unit at uid, or ErrUnitNotFound.
func (s *System) Get(ctx context.Context, uid UnitID) (*Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUnitNotFound{uid}
	}
	return u, nil
}

// GetByName returns the unit called name, or ErrUnitNameNotFound.
func (s *System) GetByName(ctx context.Context, name string) (*Unit, error) {
	units, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range units {
		if u.Name() == name {
			return u, nil
		}
	}
	return nil, ErrUnitNameNotFound{name}
}

func (s *System) get(ctx context.Context, uid UnitID) (*Unit, error) {
	if s.stale {
		if err := s.reload(ctx); err != nil {
			return nil, err
		}
	}
	return s.units[uid], nil
}

// List returns every unit, ordered by ID.
func (s *System) List(ctx context.Context) ([]*Unit, error) {
	s.mu.Lock()
	if s.stale {
		if err := s.reload(ctx); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	units := maps.Clone(s.units)
	s.mu.Unlock()

	ret := make([]*Unit, 0, len(units))
	for _, u := range units {
		ret = append(ret, u)
	}
	slices.SortFunc(ret, func(a, b *Unit) int {
		return cmp.Compare(a.ID(), b.ID())
	})
	return ret, nil
}

// Run runs every unit, including those created while Run is active, until ctx is cancelled.
func (s *System) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	s.mu.Lock()
	if s.stale {
		if err := s.reload(ctx); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.eg, s.egCtx = eg, ctx
	for _, u := range s.units {
		s.startUnit(u)
	}
	count := len(s.units)
	s.mu.Unlock()

	logctx.Info(ctx, "running units", zap.Int("count", count))
	eg.Go(func() error {
		<-ctx.Done()
		return nil
	})
	err := eg.Wait()

	s.mu.Lock()
	s.eg, s.egCtx = nil, nil
	s.mu.Unlock()
	return err
}

// startUnit runs u if the system is running.
// it does not take a lock.
func (s *System) startUnit(u *Unit) {
	if s.eg == nil {
		return
	}
	ctx := s.egCtx
	s.eg.Go(func() error {
		return u.run(ctx)
	})
}

// reload clears s.units and replaces it with the units from the database.
// it does not take a lock.
// it sets s.stale = false, if err == nil
func (s *System) reload(ctx context.Context) error {
	var rows []int64
	if err := s.db.SelectContext(ctx, &rows, `SELECT id FROM units ORDER BY id`); err != nil {
		return err
	}
	// open new units if necessary
	for _, row := range rows {
		uid := UnitID(row)
		if _, exists := s.units[uid]; exists {
			continue
		}
		u, err := s.openUnit(ctx, uid)
		if err != nil {
			return err
		}
		s.units[uid] = u
		s.startUnit(u)
	}
	// stop units if necessary
	for uid, u := range s.units {
		if _, found := slices.BinarySearch(rows, int64(uid)); found {
			continue
		}
		u.stop()
		delete(s.units, uid)
	}
	s.stale = false
	return nil
}

// loadImage returns the image with the ID, from the cache, src or the builtins.
// it does not take a lock.
func (s *System) loadImage(ctx context.Context, src cadata.Store, id cadata.ID) (*plcimg.Image, error) {
	if img, ok := s.images.Get(id); ok {
		return img, nil
	}
	buf := make([]byte, plcimg.MaxSize)
	n, err := s.imageStore(src).Get(ctx, &id, buf)
	if err != nil {
		return nil, err
	}
	data := buf[:n]
	if err := cadata.Check(plcimg.Hash, &id, data); err != nil {
		return nil, err
	}
	img, err := plcimg.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	s.images.Add(id, img)
	return img, nil
}
