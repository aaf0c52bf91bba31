// package sqlstores keeps content-addressed blobs in sqlite.
//
// Blobs are shared between stores, and deleted once no store refers to them.
package sqlstores

import (
	"context"
	"database/sql"
	"errors"
	"io"

	"github.com/jmoiron/sqlx"

	"plcvm.org/plcvm/internal/cadata"
	"plcvm.org/plcvm/plcss/internal/dbutil"
	"plcvm.org/plcvm/plcss/internal/migrations"
)

type StoreID = uint64

func Migration(x *migrations.State) *migrations.State {
	return x.
		ApplyStmt(`CREATE TABLE blobs (
		id BLOB NOT NULL,
		data BLOB NOT NULL,

		PRIMARY KEY(id)
	) WITHOUT ROWID, STRICT;`).
		ApplyStmt(`CREATE TABLE stores (
		id INTEGER PRIMARY KEY AUTOINCREMENT
	);`).
		ApplyStmt(`CREATE TABLE store_blobs (
		store_id INTEGER,
		blob_id BLOB,
		FOREIGN KEY(store_id) REFERENCES stores(id),
		FOREIGN KEY(blob_id) REFERENCES blobs(id),
		PRIMARY KEY(store_id, blob_id)
	) WITHOUT ROWID, STRICT;`)
}

// CreateStore allocates a new store ID which wil not be reused
func CreateStore(tx *sqlx.Tx) (ret StoreID, err error) {
	err = tx.Get(&ret, `INSERT INTO stores VALUES (NULL) RETURNING id`)
	return ret, err
}

// DropStore deletes a store and any blobs not included in another store.
func DropStore(tx *sqlx.Tx, storeID StoreID) error {
	if _, err := tx.Exec(`DELETE FROM store_blobs WHERE store_id = ?`, storeID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM stores WHERE id = ?`, storeID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM blobs WHERE id NOT IN (
		SELECT blob_id FROM store_blobs
	)`); err != nil {
		return err
	}
	return nil
}

var _ cadata.Store = &TxStore{}

// TxStore is a store which operates within a transaction.
type TxStore struct {
	tx      *sqlx.Tx
	intID   StoreID
	hf      cadata.HashFunc
	maxSize int
}

func NewTxStore(tx *sqlx.Tx, hf cadata.HashFunc, maxSize int, intID StoreID) *TxStore {
	return &TxStore{
		tx:      tx,
		hf:      hf,
		intID:   intID,
		maxSize: maxSize,
	}
}

func (s *TxStore) Post(ctx context.Context, data []byte) (cadata.ID, error) {
	if len(data) > s.MaxSize() {
		return cadata.ID{}, cadata.ErrTooLarge
	}
	id := s.hf(data)
	if _, err := s.tx.ExecContext(ctx, `INSERT INTO blobs (id, data)
		VALUES (?, ?) ON CONFLICT DO NOTHING`, id[:], data); err != nil {
		return cadata.ID{}, err
	}
	if err := s.add(ctx, id); err != nil {
		return cadata.ID{}, err
	}
	return id, nil
}

func (s *TxStore) Get(ctx context.Context, id *cadata.ID, buf []byte) (int, error) {
	var data []byte
	if err := s.tx.GetContext(ctx, &data, `SELECT blobs.data FROM store_blobs JOIN blobs ON blob_id = blobs.id
		WHERE store_id = ? AND blob_id = ?
	`, s.intID, id[:]); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = cadata.ErrNotFound{Key: id}
		}
		return 0, err
	}
	if len(data) > len(buf) {
		return 0, io.ErrShortBuffer
	}
	return copy(buf, data), nil
}

// Add includes a blob which is already in another store.
func (s *TxStore) Add(ctx context.Context, id *cadata.ID) error {
	var exists bool
	if err := s.tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM blobs WHERE id = ?)`, id[:]); err != nil {
		return err
	}
	if !exists {
		return cadata.ErrNotFound{Key: id}
	}
	return s.add(ctx, *id)
}

func (s *TxStore) add(ctx context.Context, id cadata.ID) error {
	_, err := s.tx.ExecContext(ctx, `INSERT INTO store_blobs (store_id, blob_id)
		VALUES (?, ?) ON CONFLICT DO NOTHING`, s.intID, id[:])
	return err
}

func (s *TxStore) Delete(ctx context.Context, id *cadata.ID) error {
	if _, err := s.tx.ExecContext(ctx, `DELETE FROM store_blobs WHERE store_id = ? AND blob_id = ?`, s.intID, id[:]); err != nil {
		return err
	}
	if count, err := s.count(ctx, id); err != nil {
		return err
	} else if count < 1 {
		if _, err := s.tx.ExecContext(ctx, `DELETE FROM blobs WHERE id = ?`, id[:]); err != nil {
			return err
		}
	}
	return nil
}

func (s *TxStore) Exists(ctx context.Context, id *cadata.ID) (bool, error) {
	var exists bool
	if err := s.tx.GetContext(ctx, &exists, `SELECT EXISTS(
		SELECT 1 FROM store_blobs WHERE store_id = ? AND blob_id = ?
	)`, s.intID, id[:]); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *TxStore) List(ctx context.Context, span cadata.Span, ids []cadata.ID) (int, error) {
	begin := cadata.BeginFromSpan(span)
	rows, err := s.tx.QueryContext(ctx, `SELECT blob_id FROM store_blobs
		WHERE store_id = ? AND blob_id >= ?
		ORDER BY blob_id
		LIMIT ?
	`, s.intID, begin[:], len(ids))
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var n int
	for rows.Next() && n < len(ids) {
		var buf []byte
		if err := rows.Scan(&buf); err != nil {
			return 0, err
		}
		ids[n] = cadata.IDFromBytes(buf)
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *TxStore) MaxSize() int {
	return s.maxSize
}

func (s *TxStore) count(ctx context.Context, id *cadata.ID) (count int, err error) {
	err = s.tx.GetContext(ctx, &count, `SELECT count(distinct store_id) FROM store_blobs WHERE blob_id = ?`, id[:])
	return count, err
}

var _ cadata.Store = &Store{}

// Store runs each operation in its own transaction.
type Store struct {
	db      *sqlx.DB
	hf      cadata.HashFunc
	maxSize int
	intID   StoreID
}

func NewStore(db *sqlx.DB, hf cadata.HashFunc, maxSize int, intID StoreID) *Store {
	return &Store{db: db, hf: hf, maxSize: maxSize, intID: intID}
}

func (s *Store) Post(ctx context.Context, data []byte) (cadata.ID, error) {
	return dbutil.DoTx1(ctx, s.db, func(tx *sqlx.Tx) (cadata.ID, error) {
		return s.txStore(tx).Post(ctx, data)
	})
}

func (s *Store) Get(ctx context.Context, id *cadata.ID, buf []byte) (int, error) {
	return dbutil.DoTx1(ctx, s.db, func(tx *sqlx.Tx) (int, error) {
		return s.txStore(tx).Get(ctx, id, buf)
	})
}

func (s *Store) Add(ctx context.Context, id *cadata.ID) error {
	return dbutil.DoTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return s.txStore(tx).Add(ctx, id)
	})
}

func (s *Store) Exists(ctx context.Context, id *cadata.ID) (bool, error) {
	return dbutil.DoTx1(ctx, s.db, func(tx *sqlx.Tx) (bool, error) {
		return s.txStore(tx).Exists(ctx, id)
	})
}

func (s *Store) Delete(ctx context.Context, id *cadata.ID) error {
	return dbutil.DoTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return s.txStore(tx).Delete(ctx, id)
	})
}

func (s *Store) List(ctx context.Context, span cadata.Span, ids []cadata.ID) (int, error) {
	return dbutil.DoTx1(ctx, s.db, func(tx *sqlx.Tx) (int, error) {
		return s.txStore(tx).List(ctx, span, ids)
	})
}

func (s *Store) MaxSize() int {
	return s.maxSize
}

func (s *Store) txStore(tx *sqlx.Tx) *TxStore {
	return NewTxStore(tx, s.hf, s.maxSize, s.intID)
}

// Counts the number of blobs in a store
func CountBlobs(tx *sqlx.Tx, sid StoreID) (int64, error) {
	var ret int64
	err := tx.Get(&ret, `SELECT count(*) FROM store_blobs WHERE store_id = ?`, sid)
	return ret, err
}
