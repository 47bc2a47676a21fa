package uow

import (
	"context"

	"github.com/kirinyoku/tix-ledger/internal/repository"
)

// AfterCommit is a function that runs after a successful transaction commit.
type AfterCommit func(ctx context.Context)

// UoW represents a unit of work over a ledger store.
type UoW struct {
	store repository.Store
}

func NewUoW(store repository.Store) *UoW {
	return &UoW{store: store}
}

// Do runs fn inside a read-write transaction. After a successful commit it
// executes the after-commit hooks registered by the final attempt.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Tx, after func(AfterCommit)) error,
) error {
	var hooks []AfterCommit

	err := u.store.Update(ctx, func(ctx context.Context, tx repository.Tx) error {
		// the store may retry fn; hooks from an aborted attempt must not run
		hooks = hooks[:0]
		return fn(ctx, tx, func(h AfterCommit) {
			hooks = append(hooks, h)
		})
	})
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}

// Read runs fn inside a read-only transaction.
func (u *UoW) Read(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Tx) error,
) error {
	return u.store.View(ctx, fn)
}
