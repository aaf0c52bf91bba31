package stores

import (
	"context"

	"plcvm.org/plcvm/internal/cadata"
)

var _ cadata.Store = CoW{}

// CoW is a Store layered over a read only Store.
// Blobs already in Read are not copied into Write, and nothing is ever removed from Read.
type CoW struct {
	Hash  cadata.HashFunc
	Write cadata.Store
	Read  cadata.Store
}

func (s CoW) Post(ctx context.Context, data []byte) (cadata.ID, error) {
	id := s.Hash(data)
	if yes, err := s.Read.Exists(ctx, &id); err != nil {
		return cadata.ID{}, err
	} else if yes {
		return id, nil
	}
	return s.Write.Post(ctx, data)
}

func (s CoW) Get(ctx context.Context, id *cadata.ID, buf []byte) (int, error) {
	return Union{s.Write, s.Read}.Get(ctx, id, buf)
}

func (s CoW) Exists(ctx context.Context, id *cadata.ID) (bool, error) {
	for _, s2 := range []cadata.Exister{s.Write, s.Read} {
		if yes, err := s2.Exists(ctx, id); err != nil || yes {
			return yes, err
		}
	}
	return false, nil
}

func (s CoW) Delete(ctx context.Context, id *cadata.ID) error {
	return s.Write.Delete(ctx, id)
}

// List only lists the blobs in Write.
func (s CoW) List(ctx context.Context, span cadata.Span, ids []cadata.ID) (int, error) {
	return s.Write.List(ctx, span, ids)
}

func (s CoW) MaxSize() int {
	return s.Write.MaxSize()
}
