package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirinyoku/tix-ledger/internal/config"
	"github.com/kirinyoku/tix-ledger/internal/mongo"
	"github.com/kirinyoku/tix-ledger/internal/postgres"
	"github.com/kirinyoku/tix-ledger/internal/redis"
	"github.com/kirinyoku/tix-ledger/internal/repository"
	boltrepo "github.com/kirinyoku/tix-ledger/internal/repository/bolt"
	"github.com/kirinyoku/tix-ledger/internal/repository/memory"
	mongorepo "github.com/kirinyoku/tix-ledger/internal/repository/mongo"
	postgresrepo "github.com/kirinyoku/tix-ledger/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/tix-ledger/internal/repository/redis"
	"github.com/kirinyoku/tix-ledger/internal/service"
	"github.com/kirinyoku/tix-ledger/internal/service/events"
	"github.com/kirinyoku/tix-ledger/internal/service/tickets"
	httpgin "github.com/kirinyoku/tix-ledger/internal/transport/http/gin"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	services   *service.Services
	pubsub     *redisrepo.EventsPubSub
	closers    []func()
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx := context.Background()

	a := &App{cfg: cfg, logger: logger}

	// Redis client is shared by the redis store and the optional helpers.
	var rdb *goredis.Client
	if cfg.Redis.Enabled || cfg.Storage.Driver == config.DriverRedis {
		client, err := redis.New(ctx, redis.Config{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			DialTimeout: cfg.Redis.DialTimeout,
			OpTimeout:   cfg.Redis.OpTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		rdb = client
		a.closers = append(a.closers, func() { _ = client.Close() })
	}

	store, err := a.openStore(ctx, rdb)
	if err != nil {
		a.Close()
		return nil, err
	}

	var (
		cache *redisrepo.Cache
		deps  httpgin.Deps
	)
	if cfg.Redis.Enabled {
		cache = redisrepo.NewCache(rdb)
		a.pubsub = redisrepo.NewEventsPubSub(rdb)
		deps = httpgin.Deps{
			Idempotency: redisrepo.NewIdempotencyStore(rdb, cfg.Limits.IdempotencyTTL),
			Limiter:     redisrepo.NewSlidingWindowLimiter(rdb, cfg.Limits.RatePerMinute, time.Minute),
		}
	}

	a.services = service.NewServices(store, cache, a.pubsub, logger, service.Config{
		Events: events.Config{
			RejectDuplicates: cfg.Events.RejectDuplicates,
		},
		Tickets: tickets.Config{
			OwnerLookup: tickets.OwnerLookup(cfg.Tickets.OwnerLookup),
		},
	})

	router := httpgin.NewRouter(a.services, deps, logger)

	a.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context, rdb *goredis.Client) (repository.Store, error) {
	switch a.cfg.Storage.Driver {
	case config.DriverBolt:
		s, err := boltrepo.Open(a.cfg.Storage.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		a.closers = append(a.closers, func() { _ = s.Close() })
		return s, nil

	case config.DriverPostgres:
		pool, err := postgres.New(ctx, postgres.Config{
			DSN:      a.cfg.Postgres.DSN(),
			MaxConns: a.cfg.Postgres.MaxConns,
			Migrate:  true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		return postgresrepo.NewStore(pool, postgresrepo.WithMaxRetries(a.cfg.Storage.TxRetries)), nil

	case config.DriverRedis:
		return redisrepo.NewStore(rdb, a.cfg.Storage.TxRetries), nil

	case config.DriverMongo:
		client, err := mongo.New(ctx, mongo.Config{URI: a.cfg.Mongo.URI})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mongo: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Disconnect(context.Background()) })

		s, err := mongorepo.Open(ctx, client, a.cfg.Mongo.Database, a.cfg.Storage.TxRetries)
		if err != nil {
			return nil, fmt.Errorf("failed to open mongo store: %w", err)
		}
		return s, nil

	default:
		return memory.New(), nil
	}
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer a.Close()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening",
			"addr", a.httpServer.Addr,
			"storage", a.cfg.Storage.Driver,
			"redis", a.cfg.Redis.Enabled,
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Other instances publish sold counter changes; drop our cached copies.
	if a.pubsub != nil {
		g.Go(func() error {
			err := a.pubsub.Subscribe(gCtx, func(ctx context.Context, eventID uint32) {
				a.services.Events.Invalidate(ctx, eventID)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("events subscriber: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

// Close releases storage and redis connections in reverse order of
// acquisition. It is safe to call more than once.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
