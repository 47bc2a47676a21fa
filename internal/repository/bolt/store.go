// Package bolt provides a bbolt-backed ledger store for single-node
// deployments. bbolt allows one writer at a time, so Update is serialized.
package bolt

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirinyoku/tix-ledger/internal/repository"
	"go.etcd.io/bbolt"
)

const ledgerBucket = "ledger"

type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the bbolt file at path.
func Open(path string) (*Store, error) {
	const op = "bolt.Open"

	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%s: storage path is required", op)
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(ledgerBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: create bucket: %w", op, err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(btx *bbolt.Tx) error {
		b := btx.Bucket([]byte(ledgerBucket))
		if b == nil {
			return fmt.Errorf("bolt: %s bucket is missing", ledgerBucket)
		}
		if err := fn(ctx, &tx{b: b}); err != nil {
			return err
		}
		return ctx.Err()
	})
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.View(func(btx *bbolt.Tx) error {
		b := btx.Bucket([]byte(ledgerBucket))
		if b == nil {
			return fmt.Errorf("bolt: %s bucket is missing", ledgerBucket)
		}
		return fn(ctx, &tx{b: b, readOnly: true})
	})
}

type tx struct {
	b        *bbolt.Bucket
	readOnly bool
}

func (t *tx) Get(_ context.Context, key repository.Key) ([]byte, bool, error) {
	v := t.b.Get([]byte(key))
	if v == nil {
		return nil, false, nil
	}
	// bbolt values are only valid for the life of the transaction.
	return append([]byte(nil), v...), true, nil
}

func (t *tx) Has(_ context.Context, key repository.Key) (bool, error) {
	return t.b.Get([]byte(key)) != nil, nil
}

func (t *tx) Set(_ context.Context, key repository.Key, value []byte) error {
	if t.readOnly {
		return repository.ErrReadOnly
	}
	return t.b.Put([]byte(key), value)
}
