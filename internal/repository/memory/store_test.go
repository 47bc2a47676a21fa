package memory

import (
	"context"
	"testing"

	"github.com/kirinyoku/tix-ledger/internal/repository"
	"github.com/kirinyoku/tix-ledger/internal/repository/repotest"
)

func TestStoreContract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.Store {
		return New()
	})
}

func TestStoreUpdateCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Update(ctx, func(ctx context.Context, tx repository.Tx) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatalf("expected context error")
	}
	if called {
		t.Fatalf("expected fn not to run")
	}
}

func TestStoreValuesAreCopied(t *testing.T) {
	s := New()
	ctx := context.Background()
	buf := []byte("abc")

	err := s.Update(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.Set(ctx, "k", buf)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	buf[0] = 'z'

	err = s.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		b, _, err := tx.Get(ctx, "k")
		if string(b) != "abc" {
			t.Fatalf("expected stored copy, got %q", b)
		}
		return err
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
