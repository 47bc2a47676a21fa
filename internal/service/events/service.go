package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirinyoku/tix-ledger/internal/domain"
	"github.com/kirinyoku/tix-ledger/internal/repository"
	redisrepo "github.com/kirinyoku/tix-ledger/internal/repository/redis"
	"github.com/kirinyoku/tix-ledger/internal/uow"
)

type Config struct {
	// RejectDuplicates makes CreateEvent fail with ErrEventExists instead of
	// replacing an event already stored under the same id.
	RejectDuplicates bool
	EventTTL         time.Duration
	ListTTL          time.Duration
}

type Service struct {
	uow    *uow.UoW
	cache  *redisrepo.Cache
	pubsub *redisrepo.EventsPubSub
	logger *slog.Logger
	cfg    Config
}

// New builds the event registry. cache and pubsub may be nil.
func New(
	store repository.Store,
	cache *redisrepo.Cache,
	pubsub *redisrepo.EventsPubSub,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.EventTTL <= 0 {
		cfg.EventTTL = 60 * time.Second
	}

	if cfg.ListTTL <= 0 {
		cfg.ListTTL = 15 * time.Second
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Service{
		uow:    uow.NewUoW(store),
		cache:  cache,
		pubsub: pubsub,
		logger: logger,
		cfg:    cfg,
	}
}

type CreateEventInput struct {
	ID          uint32
	Name        domain.Symbol
	Description []byte
	Datetime    []byte
	Location    []byte
	Organizer   domain.Symbol
	ImageURL    []byte
	MaxTickets  uint32
	Price       domain.Amount
}

// CreateEvent stores an event with no tickets sold and appends its id to
// the event index. An existing event under the same id is replaced, its sold
// counter resets and the id is appended again. Tickets issued against the
// replaced event are left in place.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: event attributes, including the caller supplied id.
//
// Returns:
//   - error: events.ErrEventExists if an event is already stored under
//     in.ID and RejectDuplicates is set.
func (s *Service) CreateEvent(ctx context.Context, in CreateEventInput) error {
	const op = "service.events.CreateEvent"

	e := &domain.Event{
		ID:          in.ID,
		Name:        in.Name,
		Description: in.Description,
		Datetime:    in.Datetime,
		Location:    in.Location,
		Organizer:   in.Organizer,
		ImageURL:    in.ImageURL,
		MaxTickets:  in.MaxTickets,
		Sold:        0,
		Price:       in.Price,
	}

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		repo := repository.Events(tx)

		if s.cfg.RejectDuplicates {
			exists, err := repo.Exists(ctx, in.ID)
			if err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}

			if exists {
				return fmt.Errorf("%s:%w", op, ErrEventExists)
			}
		}

		if err := repo.Put(ctx, e); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		if err := repo.AppendIndex(ctx, in.ID); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			s.EventChanged(ctx, in.ID, "created")
		})

		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("event created", "event_id", in.ID, "max_tickets", in.MaxTickets, "price", in.Price.String())

	return nil
}

// ListEvents returns every event in creation order. Ids in the index whose
// event is missing are skipped.
//
// Returns:
//   - []domain.Event: events in index order; empty when none exist.
//   - error: only when the underlying store fails.
func (s *Service) ListEvents(ctx context.Context) ([]domain.Event, error) {
	const op = "service.events.ListEvents"

	events, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyEventsList(),
		s.cfg.ListTTL,
		s.loadEvents,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return events, nil
}

func (s *Service) loadEvents(ctx context.Context) ([]domain.Event, error) {
	var out []domain.Event

	err := s.uow.Read(ctx, func(ctx context.Context, tx repository.Tx) error {
		out = []domain.Event{}
		repo := repository.Events(tx)

		ids, err := repo.Index(ctx)
		if err != nil {
			return err
		}

		for _, id := range ids {
			e, err := repo.Get(ctx, id)
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, *e)
		}

		return nil
	})

	return out, err
}

// GetEvent retrieves an event by its id.
//
// Returns:
//   - *domain.Event: the event when found.
//   - error: events.ErrEventNotFound if no event is stored under id.
func (s *Service) GetEvent(ctx context.Context, id uint32) (*domain.Event, error) {
	const op = "service.events.GetEvent"

	e, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyEventSummary(id),
		s.cfg.EventTTL,
		func(ctx context.Context) (domain.Event, error) {
			var e domain.Event

			err := s.uow.Read(ctx, func(ctx context.Context, tx repository.Tx) error {
				got, err := repository.Events(tx).Get(ctx, id)
				if err != nil {
					if errors.Is(err, repository.ErrNotFound) {
						return ErrEventNotFound
					}
					return err
				}
				e = *got
				return nil
			})

			return e, err
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &e, nil
}

// Invalidate drops cached copies of eventID. It is called for changes made
// by other instances.
func (s *Service) Invalidate(ctx context.Context, eventID uint32) {
	if err := s.cache.InvalidateEvent(ctx, eventID); err != nil {
		s.logger.Warn("cache invalidation failed", "event_id", eventID, "error", err)
	}
}

// EventChanged invalidates local caches for eventID and tells other
// instances to do the same.
func (s *Service) EventChanged(ctx context.Context, eventID uint32, reason string) {
	s.Invalidate(ctx, eventID)

	if err := s.pubsub.PublishEventChanged(ctx, eventID, reason); err != nil {
		s.logger.Warn("publish event change failed", "event_id", eventID, "error", err)
	}
}
