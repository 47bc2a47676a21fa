package postgresrepo

import (
	"context"
	"fmt"

	"github.com/kirinyoku/tix-ledger/internal/repository"
)

type kvTx struct {
	db       DB
	readOnly bool
}

func (t *kvTx) Get(ctx context.Context, key repository.Key) ([]byte, bool, error) {
	const op = "postgresrepo.kvTx.Get"

	var value []byte
	err := t.db.QueryRow(ctx,
		`SELECT value FROM ledger_entries WHERE key = $1`,
		string(key),
	).Scan(&value)
	if err != nil {
		if isNoRows(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return value, true, nil
}

func (t *kvTx) Has(ctx context.Context, key repository.Key) (bool, error) {
	const op = "postgresrepo.kvTx.Has"

	var ok bool
	err := t.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE key = $1)`,
		string(key),
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return ok, nil
}

func (t *kvTx) Set(ctx context.Context, key repository.Key, value []byte) error {
	const op = "postgresrepo.kvTx.Set"

	if t.readOnly {
		return fmt.Errorf("%s:%w", op, repository.ErrReadOnly)
	}

	if _, err := t.db.Exec(ctx,
		`INSERT INTO ledger_entries(key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE
		 SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		string(key), value,
	); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}
