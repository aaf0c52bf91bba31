package plcss

import (
	"context"
	"fmt"
	"slices"

	"plcvm.org/plcvm/internal/cadata"
	"plcvm.org/plcvm/internal/stores"
	"plcvm.org/plcvm/plcimg"
	"plcvm.org/plcvm/plctests"
)

// Builtins holds an image for each conformance vector.
// Units created from a builtin image share it instead of storing a copy.
type Builtins struct {
	store *stores.Mem
	names map[string]cadata.ID
}

func NewBuiltins() *Builtins {
	b := &Builtins{
		store: stores.NewMem(plcimg.Hash, plcimg.MaxSize),
		names: make(map[string]cadata.ID),
	}
	ctx := context.Background()
	for _, v := range plctests.Vecs() {
		img, err := plcimg.FromVec(v)
		if err != nil {
			panic(fmt.Sprintf("building vector %q: %v", v.Name, err))
		}
		data, err := plcimg.Marshal(img)
		if err != nil {
			panic(err)
		}
		id, err := b.store.Post(ctx, data)
		if err != nil {
			panic(err)
		}
		b.names[v.Name] = id
	}
	return b
}

func (b *Builtins) Store() cadata.Store {
	return b.store
}

// Names returns the names of the builtin images, sorted.
func (b *Builtins) Names() []string {
	ret := make([]string, 0, len(b.names))
	for name := range b.names {
		ret = append(ret, name)
	}
	slices.Sort(ret)
	return ret
}

// Image returns the builtin image called name.
func (b *Builtins) Image(ctx context.Context, name string) (*plcimg.Image, error) {
	id, ok := b.names[name]
	if !ok {
		return nil, fmt.Errorf("no builtin image named %q", name)
	}
	data, err := cadata.GetBytes(ctx, b.store, &id)
	if err != nil {
		return nil, err
	}
	return plcimg.Unmarshal(data)
}
