package service

import (
	"log/slog"

	"github.com/kirinyoku/tix-ledger/internal/repository"
	redisrepo "github.com/kirinyoku/tix-ledger/internal/repository/redis"
	"github.com/kirinyoku/tix-ledger/internal/service/events"
	"github.com/kirinyoku/tix-ledger/internal/service/tickets"
)

type Services struct {
	Events  *events.Service
	Tickets *tickets.Service
}

type Config struct {
	Events  events.Config
	Tickets tickets.Config
}

// NewServices wires the event registry and ticket ledger over one store.
// cache and pubsub may be nil when redis is disabled.
func NewServices(
	store repository.Store,
	cache *redisrepo.Cache,
	pubsub *redisrepo.EventsPubSub,
	logger *slog.Logger,
	cfg Config,
) *Services {
	ev := events.New(store, cache, pubsub, logger, cfg.Events)

	return &Services{
		Events:  ev,
		Tickets: tickets.New(store, ev, logger, cfg.Tickets),
	}
}
