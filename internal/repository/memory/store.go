// Package memory provides an in-process ledger store. A single mutex
// serializes Update calls, which makes every transaction linearizable.
package memory

import (
	"context"
	"sync"

	"github.com/kirinyoku/tix-ledger/internal/repository"
)

type Store struct {
	mu   sync.RWMutex
	data map[repository.Key][]byte
}

func New() *Store {
	return &Store{data: make(map[repository.Key][]byte)}
}

func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &tx{base: s.data, writes: make(map[repository.Key][]byte)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	// commit point
	if err := ctx.Err(); err != nil {
		return err
	}

	for k, v := range tx.writes {
		s.data[k] = v
	}

	return nil
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	return fn(ctx, &tx{base: s.data, readOnly: true})
}

func (s *Store) Close() error { return nil }

// Len reports the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

type tx struct {
	base     map[repository.Key][]byte
	writes   map[repository.Key][]byte
	readOnly bool
}

func (t *tx) Get(_ context.Context, key repository.Key) ([]byte, bool, error) {
	if v, ok := t.writes[key]; ok {
		return clone(v), true, nil
	}
	v, ok := t.base[key]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (t *tx) Has(ctx context.Context, key repository.Key) (bool, error) {
	_, ok, err := t.Get(ctx, key)
	return ok, err
}

func (t *tx) Set(_ context.Context, key repository.Key, value []byte) error {
	if t.readOnly {
		return repository.ErrReadOnly
	}
	t.writes[key] = clone(value)
	return nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
