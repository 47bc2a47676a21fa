// Package repotest holds a behavioral test suite every repository.Store
// implementation must pass.
package repotest

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/kirinyoku/tix-ledger/internal/domain"
	"github.com/kirinyoku/tix-ledger/internal/repository"
)

// Run exercises store. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) repository.Store) {
	t.Helper()

	t.Run("get missing key", func(t *testing.T) {
		s := newStore(t)
		err := s.View(context.Background(), func(ctx context.Context, tx repository.Tx) error {
			_, ok, err := tx.Get(ctx, repository.KeyEvent(1))
			if err != nil {
				return err
			}
			if ok {
				t.Fatalf("expected missing key")
			}
			has, err := tx.Has(ctx, repository.KeyEvent(1))
			if err != nil {
				return err
			}
			if has {
				t.Fatalf("expected Has to report false")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("view: %v", err)
		}
	})

	t.Run("commit makes writes visible", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		err := s.Update(ctx, func(ctx context.Context, tx repository.Tx) error {
			if err := tx.Set(ctx, repository.KeyEvent(1), []byte("v1")); err != nil {
				return err
			}
			// read your own writes
			b, ok, err := tx.Get(ctx, repository.KeyEvent(1))
			if err != nil {
				return err
			}
			if !ok || string(b) != "v1" {
				t.Fatalf("expected uncommitted write to be visible in tx, got %q", b)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}

		assertValue(t, s, repository.KeyEvent(1), "v1")
	})

	t.Run("error rolls back", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		boom := errors.New("boom")

		err := s.Update(ctx, func(ctx context.Context, tx repository.Tx) error {
			if err := tx.Set(ctx, repository.KeyEvent(2), []byte("x")); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}

		assertMissing(t, s, repository.KeyEvent(2))
	})

	t.Run("view rejects writes", func(t *testing.T) {
		s := newStore(t)
		err := s.View(context.Background(), func(ctx context.Context, tx repository.Tx) error {
			return tx.Set(ctx, repository.KeyEvent(3), []byte("x"))
		})
		if !errors.Is(err, repository.ErrReadOnly) {
			t.Fatalf("expected ErrReadOnly, got %v", err)
		}
	})

	t.Run("typed values", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		price, _ := domain.ParseAmount("-170141183460469231731687303715884105728")

		err := s.Update(ctx, func(ctx context.Context, tx repository.Tx) error {
			e := &domain.Event{ID: 4, Name: "gig", Description: []byte{0, 1, 2}, MaxTickets: 9, Sold: 2, Price: price}
			if err := repository.Events(tx).Put(ctx, e); err != nil {
				return err
			}
			return repository.Tickets(tx).Put(ctx, "alice", 1, &domain.Ticket{Used: true, EventID: 4})
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}

		err = s.View(ctx, func(ctx context.Context, tx repository.Tx) error {
			e, err := repository.Events(tx).Get(ctx, 4)
			if err != nil {
				return err
			}
			if e.Name != "gig" || e.Sold != 2 || e.Price.Cmp(price) != 0 || !slices.Equal(e.Description, []byte{0, 1, 2}) {
				t.Fatalf("unexpected event %+v", e)
			}

			tk, err := repository.Tickets(tx).Get(ctx, "alice", 1)
			if err != nil {
				return err
			}
			if !tk.Used || tk.EventID != 4 {
				t.Fatalf("unexpected ticket %+v", tk)
			}

			if _, err := repository.Tickets(tx).Get(ctx, "alice", 2); !errors.Is(err, repository.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("view: %v", err)
		}
	})

	t.Run("concurrent increments are serialized", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		key := repository.KeyEventIndex()

		const workers = 8
		const perWorker = 5

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					err := s.Update(ctx, func(ctx context.Context, tx repository.Tx) error {
						return repository.Events(tx).AppendIndex(ctx, uint32(w*perWorker+i))
					})
					if err != nil {
						t.Errorf("append: %v", err)
						return
					}
				}
			}(w)
		}
		wg.Wait()

		var ids []uint32
		err := s.View(ctx, func(ctx context.Context, tx repository.Tx) error {
			var err error
			ids, _, err = repository.GetValue[[]uint32](ctx, tx, key)
			return err
		})
		if err != nil {
			t.Fatalf("view: %v", err)
		}
		if len(ids) != workers*perWorker {
			t.Fatalf("lost update: expected %d ids, got %d", workers*perWorker, len(ids))
		}
	})
}

func assertValue(t *testing.T, s repository.Store, key repository.Key, want string) {
	t.Helper()

	err := s.View(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		b, ok, err := tx.Get(ctx, key)
		if err != nil {
			return err
		}
		if !ok || string(b) != want {
			t.Fatalf("%s: expected %q, got %q (present=%v)", key, want, b, ok)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func assertMissing(t *testing.T, s repository.Store, key repository.Key) {
	t.Helper()

	err := s.View(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		ok, err := tx.Has(ctx, key)
		if err != nil {
			return err
		}
		if ok {
			t.Fatalf("%s: expected key to be absent", key)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
