package events

import (
	"context"
	"errors"
	"testing"

	"github.com/kirinyoku/tix-ledger/internal/domain"
	"github.com/kirinyoku/tix-ledger/internal/repository"
	"github.com/kirinyoku/tix-ledger/internal/repository/memory"
)

func TestService_CreateEvent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("stores event with nothing sold", func(t *testing.T) {
		svc := New(memory.New(), nil, nil, nil, Config{})

		in := newInput(1, "concert", 2, 100)
		in.Description = []byte("Open air")
		if err := svc.CreateEvent(ctx, in); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		e, err := svc.GetEvent(ctx, 1)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if e.Sold != 0 || e.MaxTickets != 2 || e.Name != "concert" || string(e.Description) != "Open air" {
			t.Fatalf("unexpected event %+v", e)
		}
		if e.Price.Cmp(domain.NewAmount(100)) != 0 {
			t.Fatalf("expected price 100, got %s", e.Price)
		}
	})

	t.Run("duplicate id replaces and resets sold", func(t *testing.T) {
		store := memory.New()
		svc := New(store, nil, nil, nil, Config{})

		if err := svc.CreateEvent(ctx, newInput(1, "first", 2, 100)); err != nil {
			t.Fatalf("create: %v", err)
		}
		bumpSold(t, store, 1)

		if err := svc.CreateEvent(ctx, newInput(1, "second", 5, 50)); err != nil {
			t.Fatalf("overwrite: %v", err)
		}

		e, err := svc.GetEvent(ctx, 1)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if e.Name != "second" || e.Sold != 0 || e.MaxTickets != 5 {
			t.Fatalf("expected overwritten event with sold 0, got %+v", e)
		}

		list, err := svc.ListEvents(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected id to be indexed twice, got %d events", len(list))
		}
		for i, e := range list {
			if e.ID != 1 || e.Name != "second" {
				t.Fatalf("position %d: expected overwritten event, got %+v", i, e)
			}
		}
	})

	t.Run("reject duplicates keeps original", func(t *testing.T) {
		store := memory.New()
		svc := New(store, nil, nil, nil, Config{RejectDuplicates: true})

		if err := svc.CreateEvent(ctx, newInput(1, "first", 2, 100)); err != nil {
			t.Fatalf("create: %v", err)
		}

		err := svc.CreateEvent(ctx, newInput(1, "second", 5, 50))
		if !errors.Is(err, ErrEventExists) {
			t.Fatalf("expected ErrEventExists, got %v", err)
		}

		e, err := svc.GetEvent(ctx, 1)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if e.Name != "first" {
			t.Fatalf("expected original event to survive, got %s", e.Name)
		}

		list, err := svc.ListEvents(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("expected id to be indexed once, got %d events", len(list))
		}
	})
}

func TestService_ListEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("empty registry", func(t *testing.T) {
		svc := New(memory.New(), nil, nil, nil, Config{})

		list, err := svc.ListEvents(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if list == nil || len(list) != 0 {
			t.Fatalf("expected empty non-nil list, got %#v", list)
		}
	})

	t.Run("creation order", func(t *testing.T) {
		store := memory.New()
		svc := New(store, nil, nil, nil, Config{})

		for _, id := range []uint32{30, 10, 20} {
			if err := svc.CreateEvent(ctx, newInput(id, "ev", 1, 1)); err != nil {
				t.Fatalf("create %d: %v", id, err)
			}
		}
		// an overwrite appends 30 again, both entries load the new attributes
		if err := svc.CreateEvent(ctx, newInput(30, "again", 1, 1)); err != nil {
			t.Fatalf("overwrite: %v", err)
		}

		list, err := svc.ListEvents(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}

		want := []uint32{30, 10, 20, 30}
		if len(list) != len(want) {
			t.Fatalf("expected %d events, got %d", len(want), len(list))
		}
		for i, e := range list {
			if e.ID != want[i] {
				t.Fatalf("position %d: expected %d, got %d", i, want[i], e.ID)
			}
		}
		if list[0].Name != "again" || list[3].Name != "again" {
			t.Fatalf("expected overwritten attributes, got %s and %s", list[0].Name, list[3].Name)
		}
	})

	t.Run("skips indexed ids without an event", func(t *testing.T) {
		store := memory.New()
		svc := New(store, nil, nil, nil, Config{})

		if err := svc.CreateEvent(ctx, newInput(1, "one", 1, 1)); err != nil {
			t.Fatalf("create: %v", err)
		}
		err := store.Update(ctx, func(ctx context.Context, tx repository.Tx) error {
			return repository.Events(tx).AppendIndex(ctx, 99)
		})
		if err != nil {
			t.Fatalf("append index: %v", err)
		}
		if err := svc.CreateEvent(ctx, newInput(2, "two", 1, 1)); err != nil {
			t.Fatalf("create: %v", err)
		}

		list, err := svc.ListEvents(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 2 || list[0].ID != 1 || list[1].ID != 2 {
			t.Fatalf("expected [1 2], got %+v", list)
		}
	})
}

func TestService_GetEventNotFound(t *testing.T) {
	t.Parallel()

	svc := New(memory.New(), nil, nil, nil, Config{})

	_, err := svc.GetEvent(context.Background(), 5)
	if !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func newInput(id uint32, name string, maxTickets uint32, price int64) CreateEventInput {
	return CreateEventInput{
		ID:         id,
		Name:       domain.Symbol(name),
		Organizer:  "org",
		MaxTickets: maxTickets,
		Price:      domain.NewAmount(price),
	}
}

func bumpSold(t *testing.T, store repository.Store, id uint32) {
	t.Helper()

	err := store.Update(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		repo := repository.Events(tx)
		e, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		e.Sold++
		return repo.Put(ctx, e)
	})
	if err != nil {
		t.Fatalf("bump sold: %v", err)
	}
}
