package httpgin

import (
	"fmt"

	"github.com/kirinyoku/tix-ledger/internal/domain"
	"github.com/kirinyoku/tix-ledger/internal/service/events"
)

// Amounts travel as decimal strings so int128 values survive JSON clients
// that decode numbers as float64.

type CreateEventRequest struct {
	ID          *uint32 `json:"id" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Datetime    string  `json:"datetime"`
	Location    string  `json:"location"`
	Organizer   string  `json:"organizer" binding:"required"`
	ImageURL    string  `json:"image_url"`
	MaxTickets  uint32  `json:"max_tickets"`
	Price       string  `json:"price" binding:"required" example:"100"`
}

func (r CreateEventRequest) toInput() (events.CreateEventInput, error) {
	name, err := domain.ParseSymbol(r.Name)
	if err != nil {
		return events.CreateEventInput{}, fmt.Errorf("name: %w", err)
	}

	organizer, err := domain.ParseSymbol(r.Organizer)
	if err != nil {
		return events.CreateEventInput{}, fmt.Errorf("organizer: %w", err)
	}

	price, err := domain.ParseAmount(r.Price)
	if err != nil {
		return events.CreateEventInput{}, fmt.Errorf("price: %w", err)
	}

	return events.CreateEventInput{
		ID:          *r.ID,
		Name:        name,
		Description: []byte(r.Description),
		Datetime:    []byte(r.Datetime),
		Location:    []byte(r.Location),
		Organizer:   organizer,
		ImageURL:    []byte(r.ImageURL),
		MaxTickets:  r.MaxTickets,
		Price:       price,
	}, nil
}

type BuyTicketRequest struct {
	Buyer   string `json:"buyer" binding:"required"`
	Payment string `json:"payment" binding:"required" example:"100"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type EventResponse struct {
	ID          uint32 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Datetime    string `json:"datetime"`
	Location    string `json:"location"`
	Organizer   string `json:"organizer"`
	ImageURL    string `json:"image_url"`
	MaxTickets  uint32 `json:"max_tickets"`
	Sold        uint32 `json:"sold"`
	Remaining   uint32 `json:"remaining"`
	Price       string `json:"price"`
}

func toEventResponse(e *domain.Event) EventResponse {
	return EventResponse{
		ID:          e.ID,
		Name:        string(e.Name),
		Description: string(e.Description),
		Datetime:    string(e.Datetime),
		Location:    string(e.Location),
		Organizer:   string(e.Organizer),
		ImageURL:    string(e.ImageURL),
		MaxTickets:  e.MaxTickets,
		Sold:        e.Sold,
		Remaining:   e.Remaining(),
		Price:       e.Price.String(),
	}
}

type CreateEventResponse struct {
	EventID uint32 `json:"event_id"`
}

type BuyTicketResponse struct {
	EventID  uint32 `json:"event_id"`
	TicketID uint32 `json:"ticket_id"`
	Owner    string `json:"owner"`
}

type OwnedTicketsResponse struct {
	Owner     string   `json:"owner"`
	TicketIDs []uint32 `json:"ticket_ids"`
}

type TicketResponse struct {
	Owner    string `json:"owner"`
	TicketID uint32 `json:"ticket_id"`
	EventID  uint32 `json:"event_id"`
	Used     bool   `json:"used"`
}

type ValidateTicketResponse struct {
	Valid bool `json:"valid"`
}
