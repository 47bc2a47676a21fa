package redis

import (
	"context"
	"testing"
	"time"
)

func TestOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts := options(Config{Addr: "localhost:6380"})

		if opts.ClientName != "tixledger" {
			t.Fatalf("expected client name tixledger, got %q", opts.ClientName)
		}
		if opts.DialTimeout != 3*time.Second || opts.ReadTimeout != time.Second || opts.WriteTimeout != time.Second {
			t.Fatalf("unexpected timeouts %v %v %v", opts.DialTimeout, opts.ReadTimeout, opts.WriteTimeout)
		}
		if opts.PoolSize != 0 || !opts.ContextTimeoutEnabled {
			t.Fatalf("unexpected options %+v", opts)
		}
	})

	t.Run("from config", func(t *testing.T) {
		opts := options(Config{
			Addr:        "cache:6379",
			Password:    "secret",
			DB:          2,
			PoolSize:    32,
			DialTimeout: 500 * time.Millisecond,
			OpTimeout:   250 * time.Millisecond,
		})

		if opts.Addr != "cache:6379" || opts.Password != "secret" || opts.DB != 2 || opts.PoolSize != 32 {
			t.Fatalf("unexpected options %+v", opts)
		}
		if opts.DialTimeout != 500*time.Millisecond || opts.ReadTimeout != 250*time.Millisecond {
			t.Fatalf("unexpected timeouts %v %v", opts.DialTimeout, opts.ReadTimeout)
		}
	})
}

func TestNewUnreachable(t *testing.T) {
	// nothing listens on port 1
	_, err := New(context.Background(), Config{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	if err == nil {
		t.Fatalf("expected error for unreachable server")
	}
}
