package repository

import "context"

// Tx is a key-addressed view of the ledger inside one transaction.
// Writes made through Set are visible to later reads on the same Tx and
// are committed only if the enclosing Update returns nil.
type Tx interface {
	Get(ctx context.Context, key Key) ([]byte, bool, error)
	Has(ctx context.Context, key Key) (bool, error)
	Set(ctx context.Context, key Key, value []byte) error
}

// Store runs closures as atomic, linearizable units of work.
//
// Update may invoke fn more than once when the backend detects a
// conflicting concurrent transaction, so fn must not have side effects
// outside of tx.
type Store interface {
	Update(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}
