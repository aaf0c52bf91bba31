// package cadata is content addressed storage for program images.
//
// Blobs are identified by a 32 byte hash of their contents.
// Stores hold blobs up to a fixed maximum size.
package cadata

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"go.brendoncarroll.net/state"
)

const IDSize = 32

// ID is the hash of a blob. It is written as lowercase hex.
type ID [IDSize]byte

func IDFromBytes(x []byte) ID {
	var id ID
	copy(id[:], x)
	return id
}

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(data []byte) error {
	if hex.DecodedLen(len(data)) != IDSize {
		return fmt.Errorf("cadata: wrong length for ID: %q", data)
	}
	_, err := hex.Decode(id[:], data)
	return err
}

func (a ID) Compare(b ID) int {
	return bytes.Compare(a[:], b[:])
}

// Successor returns the ID immediately after this ID
func (id ID) Successor() ID {
	for i := len(id) - 1; i >= 0; i-- {
		id[i]++
		if id[i] != 0 {
			break
		}
	}
	return id
}

type HashFunc = func(x []byte) ID

type Poster interface {
	Post(ctx context.Context, data []byte) (ID, error)
}

type Getter interface {
	// Get copies the blob for k into buf, and returns the number of bytes copied.
	Get(ctx context.Context, k *ID, buf []byte) (int, error)
}

type Exister interface {
	Exists(ctx context.Context, k *ID) (bool, error)
}

type Deleter interface {
	Delete(ctx context.Context, k *ID) error
}

type Span = state.Span[ID]

type Lister interface {
	// List writes the IDs in span to ids in ascending order, and returns how many were written.
	List(ctx context.Context, span Span, ids []ID) (int, error)
}

type Store interface {
	Poster
	Getter
	Exister
	Deleter
	Lister
	MaxSize() int
}

// GetBytes reads the whole blob for k from s.
func GetBytes(ctx context.Context, s Store, k *ID) ([]byte, error) {
	buf := make([]byte, s.MaxSize())
	n, err := s.Get(ctx, k, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

var ErrTooLarge = errors.New("cadata: blob is too large for store")

type ErrNotFound struct {
	Key *ID
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("cadata: no blob %v", e.Key)
}

func IsNotFound(err error) bool {
	return errors.As(err, &ErrNotFound{})
}

// ErrBadData is returned when a blob does not hash to the ID it was stored under.
type ErrBadData struct {
	Have ID
	Want ID
}

func (e ErrBadData) Error() string {
	return fmt.Sprintf("cadata: corrupt blob. HAVE: %v WANT: %v", e.Have, e.Want)
}

func Check(hf HashFunc, expectedID *ID, data []byte) error {
	actualID := hf(data)
	if subtle.ConstantTimeCompare(actualID[:], expectedID[:]) != 1 {
		return ErrBadData{Have: actualID, Want: *expectedID}
	}
	return nil
}

// BeginFromSpan returns the first ID which could be in x.
func BeginFromSpan(x Span) ID {
	lb, ok := x.LowerBound()
	if !ok {
		return ID{}
	}
	if !x.IncludesLower() {
		lb = lb.Successor()
	}
	return lb
}
