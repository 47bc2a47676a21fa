package redisrepo

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirinyoku/tix-ledger/internal/repository"
	"github.com/kirinyoku/tix-ledger/internal/repository/repotest"
	"github.com/redis/go-redis/v9"
)

// newTestClient connects to TEST_REDIS_ADDR and flushes database 15. Tests
// using it are skipped when the variable is unset or redis is unreachable.
func newTestClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("redis unavailable: %v", err)
	}
	if err := rdb.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestStoreContract(t *testing.T) {
	rdb := newTestClient(t)

	repotest.Run(t, func(t *testing.T) repository.Store {
		if err := rdb.FlushDB(context.Background()).Err(); err != nil {
			t.Fatalf("flush: %v", err)
		}
		return NewStore(rdb, 100)
	})
}

func TestNilHelpers(t *testing.T) {
	ctx := context.Background()

	var c *Cache
	calls := 0
	v, err := GetOrSetJSON(ctx, c, "k", time.Minute, func(context.Context) (int, error) {
		calls++
		return 7, nil
	})
	if err != nil || v != 7 || calls != 1 {
		t.Fatalf("expected loader passthrough, got %d, %v (calls %d)", v, err, calls)
	}
	if err := c.InvalidateEvent(ctx, 1); err != nil {
		t.Fatalf("invalidate on nil cache: %v", err)
	}

	var l *SlidingWindowLimiter
	d, err := l.Allow(ctx, "purchase", "1.2.3.4")
	if err != nil || !d.Allowed {
		t.Fatalf("expected nil limiter to allow, got %+v, %v", d, err)
	}

	var p *EventsPubSub
	if err := p.PublishEventChanged(ctx, 1, "x"); err != nil {
		t.Fatalf("publish on nil pubsub: %v", err)
	}
}

func TestCache_GetOrSetJSON(t *testing.T) {
	rdb := newTestClient(t)
	c := NewCache(rdb)
	ctx := context.Background()

	var calls atomic.Int32
	loader := func(context.Context) ([]string, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return []string{"a", "b"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := GetOrSetJSON(ctx, c, KeyEventsList(), time.Minute, loader)
			if err != nil || len(v) != 2 {
				t.Errorf("unexpected result %v, %v", v, err)
			}
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Fatalf("expected one loader call, got %d", n)
	}

	if err := c.InvalidateEvent(ctx, 1); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := GetJSON[[]string](ctx, c, KeyEventsList()); ok {
		t.Fatalf("expected list to be invalidated")
	}

	boom := errors.New("boom")
	_, err := GetOrSetJSON(ctx, c, KeyEventSummary(2), time.Minute, func(context.Context) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
}

func TestSlidingWindowLimiter(t *testing.T) {
	rdb := newTestClient(t)
	l := NewSlidingWindowLimiter(rdb, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "purchase", "10.0.0.1")
		if err != nil || !d.Allowed {
			t.Fatalf("hit %d: expected allowed, got %+v, %v", i, d, err)
		}
	}

	d, err := l.Allow(ctx, "purchase", "10.0.0.1")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if d.Allowed || d.RetryAfter <= 0 {
		t.Fatalf("expected denial with retry-after, got %+v", d)
	}

	d, err = l.Allow(ctx, "purchase", "10.0.0.2")
	if err != nil || !d.Allowed {
		t.Fatalf("expected other client to be allowed, got %+v, %v", d, err)
	}
}

func TestKeyIdemPurchase(t *testing.T) {
	got := KeyIdemPurchase(7, "alice", "k1")
	if got != "tixledger:v1:idem:purchase:7:alice:k1" {
		t.Fatalf("unexpected key %s", got)
	}

	if got == KeyIdemPurchase(7, "bob", "k1") {
		t.Fatalf("expected buyers to get distinct keys")
	}
	if got == KeyIdemPurchase(8, "alice", "k1") {
		t.Fatalf("expected events to get distinct keys")
	}
}

func TestIdempotencyStore(t *testing.T) {
	rdb := newTestClient(t)
	s := NewIdempotencyStore(rdb, time.Hour)
	ctx := context.Background()
	key := KeyIdemPurchase(1, "alice", "abc")

	ok, err := s.AcquireLock(ctx, key, time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected lock, got %v, %v", ok, err)
	}

	ok, _ = s.AcquireLock(ctx, key, time.Minute)
	if ok {
		t.Fatalf("expected second lock to fail")
	}

	if _, found, _ := s.GetResult(ctx, key); found {
		t.Fatalf("lock must not read as a result")
	}

	if err := s.Release(ctx, key); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := s.AcquireLock(ctx, key, time.Minute); !ok {
		t.Fatalf("expected lock after release")
	}

	if err := s.SaveResult(ctx, key, `{"ticket_id":0}`); err != nil {
		t.Fatalf("save: %v", err)
	}
	// release leaves results alone
	if err := s.Release(ctx, key); err != nil {
		t.Fatalf("release: %v", err)
	}

	payload, found, err := s.GetResult(ctx, key)
	if err != nil || !found || payload != `{"ticket_id":0}` {
		t.Fatalf("unexpected result %q, %v, %v", payload, found, err)
	}
}

func TestEventsPubSub(t *testing.T) {
	rdb := newTestClient(t)
	p := NewEventsPubSub(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan uint32, 1)
	done := make(chan error, 1)
	go func() {
		done <- p.Subscribe(ctx, func(_ context.Context, id uint32) {
			select {
			case got <- id:
			default:
			}
		})
	}()

	deadline := time.After(2 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()

	// publish until the subscription is live
	for {
		select {
		case id := <-got:
			if id != 9 {
				t.Fatalf("expected event 9, got %d", id)
			}
			cancel()
			if err := <-done; !errors.Is(err, context.Canceled) {
				t.Fatalf("expected context.Canceled, got %v", err)
			}
			return
		case <-tick.C:
			if err := p.PublishEventChanged(context.Background(), 9, "ticket_sold"); err != nil {
				t.Fatalf("publish: %v", err)
			}
		case <-deadline:
			t.Fatalf("no message received")
		}
	}
}
