package tickets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirinyoku/tix-ledger/internal/domain"
	"github.com/kirinyoku/tix-ledger/internal/repository"
	"github.com/kirinyoku/tix-ledger/internal/uow"
)

// OwnerLookup selects how TicketsOwnedBy finds an owner's tickets.
type OwnerLookup string

const (
	// LookupScan probes (owner, 0), (owner, 1), ... until the first gap,
	// never past ScanLimit positions. Ticket ids come from the event's
	// shared counter, so this misses tickets of owners who did not buy ids
	// 0..n contiguously.
	LookupScan OwnerLookup = "scan"
	// LookupIndex reads the per-owner index written at issuance.
	LookupIndex OwnerLookup = "index"
)

// ScanLimit caps the positions probed by LookupScan.
const ScanLimit = 1000

// ChangeNotifier is told about events whose sold counter changed.
type ChangeNotifier interface {
	EventChanged(ctx context.Context, eventID uint32, reason string)
}

type Config struct {
	// OwnerLookup defaults to LookupScan.
	OwnerLookup OwnerLookup
}

type Service struct {
	uow      *uow.UoW
	notifier ChangeNotifier
	logger   *slog.Logger
	cfg      Config
}

// New builds the ticket ledger. notifier may be nil.
func New(store repository.Store, notifier ChangeNotifier, logger *slog.Logger, cfg Config) *Service {
	if cfg.OwnerLookup != LookupIndex {
		cfg.OwnerLookup = LookupScan
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Service{
		uow:      uow.NewUoW(store),
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
	}
}

// BuyTicket issues the next ticket of eventID to buyer. The ticket id is the
// event's sold counter before the purchase. payment is only compared with
// the price; no funds are moved.
//
// Parameters:
//   - ctx: request-scoped context.
//   - eventID: event to buy a ticket for.
//   - buyer: identity the ticket is issued to.
//   - payment: amount offered, in the smallest currency unit.
//
// Returns:
//   - uint32: the issued ticket id.
//   - error: tickets.ErrEventNotFound if the event does not exist.
//   - error: tickets.ErrSoldOut if every ticket has been sold.
//   - error: tickets.ErrInsufficientPayment if payment is below the price.
func (s *Service) BuyTicket(
	ctx context.Context,
	eventID uint32,
	buyer domain.Address,
	payment domain.Amount,
) (uint32, error) {
	const op = "service.tickets.BuyTicket"

	var ticketID uint32

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		events := repository.Events(tx)

		e, err := events.Get(ctx, eventID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrEventNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		if e.SoldOut() {
			return fmt.Errorf("%s:%w", op, ErrSoldOut)
		}

		if payment.Less(e.Price) {
			return fmt.Errorf("%s:%w", op, InsufficientPaymentError{Price: e.Price, Payment: payment})
		}

		ticketID = e.Sold
		e.Sold++

		if err := events.Put(ctx, e); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		tickets := repository.Tickets(tx)

		if err := tickets.Put(ctx, buyer, ticketID, &domain.Ticket{Used: false, EventID: eventID}); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		if err := tickets.AppendOwned(ctx, buyer, ticketID); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			if s.notifier != nil {
				s.notifier.EventChanged(ctx, eventID, "ticket_sold")
			}
		})

		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("ticket issued", "event_id", eventID, "ticket_id", ticketID, "buyer", string(buyer))

	return ticketID, nil
}

// TicketsOwnedBy lists the ticket ids held by owner. An unknown owner has
// no tickets.
//
// Returns:
//   - []uint32: the contiguous prefix 0..n of existing ids, at most
//     ScanLimit of them (scan lookup), or ticket ids in issuance order
//     (index lookup).
//   - error: only when the underlying store fails.
func (s *Service) TicketsOwnedBy(ctx context.Context, owner domain.Address) ([]uint32, error) {
	const op = "service.tickets.TicketsOwnedBy"

	var ids []uint32

	err := s.uow.Read(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error

		repo := repository.Tickets(tx)
		if s.cfg.OwnerLookup == LookupIndex {
			ids, err = repo.Owned(ctx, owner)
		} else {
			ids, err = repo.ScanOwned(ctx, owner, ScanLimit)
		}

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if ids == nil {
		ids = []uint32{}
	}

	return ids, nil
}

// ValidateTicket redeems a ticket. Redemption happens at most once: the
// first call marks the ticket used and returns true, later calls return
// false without writing.
//
// Returns:
//   - bool: true if this call redeemed the ticket.
//   - error: tickets.ErrTicketNotFound if the ticket does not exist.
func (s *Service) ValidateTicket(ctx context.Context, owner domain.Address, ticketID uint32) (bool, error) {
	const op = "service.tickets.ValidateTicket"

	var redeemed bool

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Tx,
		after func(uow.AfterCommit),
	) error {
		redeemed = false
		repo := repository.Tickets(tx)

		t, err := repo.Get(ctx, owner, ticketID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrTicketNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		if t.Used {
			return nil
		}

		t.Used = true
		if err := repo.Put(ctx, owner, ticketID, t); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		redeemed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if redeemed {
		s.logger.Info("ticket redeemed", "owner", string(owner), "ticket_id", ticketID)
	}

	return redeemed, nil
}

// GetTicket retrieves the ticket addressed by (owner, ticketID).
//
// Returns:
//   - *domain.Ticket: the ticket when found.
//   - error: tickets.ErrTicketNotFound if the ticket does not exist.
func (s *Service) GetTicket(ctx context.Context, owner domain.Address, ticketID uint32) (*domain.Ticket, error) {
	const op = "service.tickets.GetTicket"

	var t *domain.Ticket

	err := s.uow.Read(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		t, err = repository.Tickets(tx).Get(ctx, owner, ticketID)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrTicketNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return t, nil
}
