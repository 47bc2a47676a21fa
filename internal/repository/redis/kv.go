package redisrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirinyoku/tix-ledger/internal/repository"
	"github.com/redis/go-redis/v9"
)

const defaultMaxRetries = 5

// Store keeps ledger entries as plain redis strings. Update is optimistic:
// every key read is WATCHed, writes are buffered and applied with
// MULTI/EXEC, and the closure is re-run when a watched key changed.
type Store struct {
	rdb        *redis.Client
	maxRetries int
}

func NewStore(rdb *redis.Client, maxRetries int) *Store {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Store{rdb: rdb, maxRetries: maxRetries}
}

func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	const op = "redisrepo.Store.Update"

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		err := s.rdb.Watch(ctx, func(rtx *redis.Tx) error {
			t := &kvTx{
				rtx:     rtx,
				watched: make(map[repository.Key]struct{}),
				writes:  make(map[repository.Key][]byte),
			}

			if err := fn(ctx, t); err != nil {
				return err
			}

			if len(t.writes) == 0 {
				return nil
			}

			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for k, v := range t.writes {
					pipe.Set(ctx, string(k), v, 0)
				}
				return nil
			})
			return err
		})
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}

	return fmt.Errorf("%s:%w", op, repository.ErrTxConflict)
}

// View reads straight from the server without a snapshot; each key read is
// individually consistent.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, &viewTx{rdb: s.rdb})
}

// Close is a no-op: the client is owned by the caller.
func (s *Store) Close() error { return nil }

type kvTx struct {
	rtx     *redis.Tx
	watched map[repository.Key]struct{}
	writes  map[repository.Key][]byte
}

func (t *kvTx) watch(ctx context.Context, key repository.Key) error {
	if _, ok := t.watched[key]; ok {
		return nil
	}
	if err := t.rtx.Watch(ctx, string(key)).Err(); err != nil {
		return err
	}
	t.watched[key] = struct{}{}
	return nil
}

func (t *kvTx) Get(ctx context.Context, key repository.Key) ([]byte, bool, error) {
	const op = "redisrepo.kvTx.Get"

	if v, ok := t.writes[key]; ok {
		return v, true, nil
	}

	if err := t.watch(ctx, key); err != nil {
		return nil, false, fmt.Errorf("%s:%w", op, err)
	}

	b, err := t.rtx.Get(ctx, string(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s:%w", op, err)
	}

	return b, true, nil
}

func (t *kvTx) Has(ctx context.Context, key repository.Key) (bool, error) {
	const op = "redisrepo.kvTx.Has"

	if _, ok := t.writes[key]; ok {
		return true, nil
	}

	if err := t.watch(ctx, key); err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}

	n, err := t.rtx.Exists(ctx, string(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}

	return n > 0, nil
}

func (t *kvTx) Set(_ context.Context, key repository.Key, value []byte) error {
	t.writes[key] = append([]byte(nil), value...)
	return nil
}

type viewTx struct {
	rdb *redis.Client
}

func (t *viewTx) Get(ctx context.Context, key repository.Key) ([]byte, bool, error) {
	b, err := t.rdb.Get(ctx, string(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redisrepo.viewTx.Get:%w", err)
	}
	return b, true, nil
}

func (t *viewTx) Has(ctx context.Context, key repository.Key) (bool, error) {
	n, err := t.rdb.Exists(ctx, string(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redisrepo.viewTx.Has:%w", err)
	}
	return n > 0, nil
}

func (t *viewTx) Set(context.Context, repository.Key, []byte) error {
	return repository.ErrReadOnly
}
