package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClientName is reported by CLIENT LIST for every ledger connection.
const ClientName = "tixledger"

type Config struct {
	Addr     string
	Password string
	DB       int
	// PoolSize of zero keeps the go-redis default.
	PoolSize    int
	DialTimeout time.Duration
	// OpTimeout bounds single reads and writes, including the WATCH/MULTI
	// round trips of the redis store.
	OpTimeout time.Duration
}

// New connects to Redis and pings it within the dial timeout. The client is
// closed again if the ping fails.
func New(ctx context.Context, cfg Config) (*redis.Client, error) {
	const op = "redis.New"

	opts := options(cfg)
	client := redis.NewClient(opts)

	ctxPing, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()

	if err := client.Ping(ctxPing).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return client, nil
}

func options(cfg Config) *redis.Options {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}

	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = time.Second
	}

	return &redis.Options{
		Addr:                  cfg.Addr,
		Password:              cfg.Password,
		DB:                    cfg.DB,
		ClientName:            ClientName,
		PoolSize:              cfg.PoolSize,
		DialTimeout:           cfg.DialTimeout,
		ReadTimeout:           cfg.OpTimeout,
		WriteTimeout:          cfg.OpTimeout,
		ContextTimeoutEnabled: true,
	}
}
