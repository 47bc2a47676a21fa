package repository

import (
	"context"
	"fmt"
	"slices"

	"github.com/kirinyoku/tix-ledger/internal/domain"
)

// EventRepo reads and writes Event entities and the event index through a
// transaction handle.
type EventRepo struct {
	tx Tx
}

func Events(tx Tx) *EventRepo {
	return &EventRepo{tx: tx}
}

// Get loads the event stored under id.
//
// Returns:
//   - *domain.Event: the event when found.
//   - error: repository.ErrNotFound if no event is stored under id.
func (r *EventRepo) Get(ctx context.Context, id uint32) (*domain.Event, error) {
	const op = "repository.EventRepo.Get"

	e, ok, err := GetValue[domain.Event](ctx, r.tx, KeyEvent(id))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, ErrNotFound)
	}

	return &e, nil
}

func (r *EventRepo) Exists(ctx context.Context, id uint32) (bool, error) {
	const op = "repository.EventRepo.Exists"

	ok, err := r.tx.Has(ctx, KeyEvent(id))
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}

	return ok, nil
}

func (r *EventRepo) Put(ctx context.Context, e *domain.Event) error {
	const op = "repository.EventRepo.Put"

	if err := SetValue(ctx, r.tx, KeyEvent(e.ID), e); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// Index returns the event ids in creation order. A missing index is empty.
func (r *EventRepo) Index(ctx context.Context) ([]uint32, error) {
	const op = "repository.EventRepo.Index"

	ids, _, err := GetValue[[]uint32](ctx, r.tx, KeyEventIndex())
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return ids, nil
}

// AppendIndex appends id to the event index. Ids already present are
// appended again.
func (r *EventRepo) AppendIndex(ctx context.Context, id uint32) error {
	const op = "repository.EventRepo.AppendIndex"

	ids, err := r.Index(ctx)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := SetValue(ctx, r.tx, KeyEventIndex(), append(ids, id)); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// TicketRepo reads and writes Ticket entities and per-owner ticket indexes.
type TicketRepo struct {
	tx Tx
}

func Tickets(tx Tx) *TicketRepo {
	return &TicketRepo{tx: tx}
}

// Get loads the ticket addressed by (owner, ticketID).
//
// Returns:
//   - *domain.Ticket: the ticket when found.
//   - error: repository.ErrNotFound if the ticket does not exist.
func (r *TicketRepo) Get(ctx context.Context, owner domain.Address, ticketID uint32) (*domain.Ticket, error) {
	const op = "repository.TicketRepo.Get"

	t, ok, err := GetValue[domain.Ticket](ctx, r.tx, KeyTicket(owner, ticketID))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, ErrNotFound)
	}

	return &t, nil
}

func (r *TicketRepo) Exists(ctx context.Context, owner domain.Address, ticketID uint32) (bool, error) {
	const op = "repository.TicketRepo.Exists"

	ok, err := r.tx.Has(ctx, KeyTicket(owner, ticketID))
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}

	return ok, nil
}

func (r *TicketRepo) Put(ctx context.Context, owner domain.Address, ticketID uint32, t *domain.Ticket) error {
	const op = "repository.TicketRepo.Put"

	if err := SetValue(ctx, r.tx, KeyTicket(owner, ticketID), t); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// Owned returns the ticket ids recorded for owner in issuance order.
func (r *TicketRepo) Owned(ctx context.Context, owner domain.Address) ([]uint32, error) {
	const op = "repository.TicketRepo.Owned"

	ids, _, err := GetValue[[]uint32](ctx, r.tx, KeyOwnerIndex(owner))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return ids, nil
}

// AppendOwned records ticketID under owner. Ticket keys are not scoped by
// event, so the same id can be issued to one owner twice; it is recorded
// once.
func (r *TicketRepo) AppendOwned(ctx context.Context, owner domain.Address, ticketID uint32) error {
	const op = "repository.TicketRepo.AppendOwned"

	ids, err := r.Owned(ctx, owner)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if slices.Contains(ids, ticketID) {
		return nil
	}

	if err := SetValue(ctx, r.tx, KeyOwnerIndex(owner), append(ids, ticketID)); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// ScanOwned probes (owner, 0), (owner, 1), ... and returns the contiguous
// prefix of existing positions, probing at most limit positions.
func (r *TicketRepo) ScanOwned(ctx context.Context, owner domain.Address, limit int) ([]uint32, error) {
	const op = "repository.TicketRepo.ScanOwned"

	out := []uint32{}
	for i := 0; i < limit; i++ {
		ok, err := r.Exists(ctx, owner, uint32(i))
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !ok {
			break
		}
		out = append(out, uint32(i))
	}

	return out, nil
}
