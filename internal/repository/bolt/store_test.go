package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kirinyoku/tix-ledger/internal/repository"
	"github.com/kirinyoku/tix-ledger/internal/repository/repotest"
)

func TestStoreContract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.Store {
		s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	err = s.Update(ctx, func(ctx context.Context, tx repository.Tx) error {
		return repository.Events(tx).AppendIndex(ctx, 7)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	err = s.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		ids, err := repository.Events(tx).Index(ctx)
		if err != nil {
			return err
		}
		if len(ids) != 1 || ids[0] != 7 {
			t.Fatalf("expected [7], got %v", ids)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
