package stores

import (
	"context"

	"plcvm.org/plcvm/internal/cadata"
)

// Union reads from each of its stores in turn, and returns the first blob found.
type Union []cadata.Getter

func (s Union) Get(ctx context.Context, id *cadata.ID, buf []byte) (int, error) {
	for _, s2 := range s {
		n, err := s2.Get(ctx, id, buf)
		if cadata.IsNotFound(err) {
			continue
		}
		return n, err
	}
	return 0, cadata.ErrNotFound{Key: id}
}
