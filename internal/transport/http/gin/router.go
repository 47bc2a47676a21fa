package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/tix-ledger/internal/domain"
	"github.com/kirinyoku/tix-ledger/internal/repository"
	redisrepo "github.com/kirinyoku/tix-ledger/internal/repository/redis"
	"github.com/kirinyoku/tix-ledger/internal/service"
	"github.com/kirinyoku/tix-ledger/internal/service/events"
	"github.com/kirinyoku/tix-ledger/internal/service/tickets"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const idemLockTTL = 60 * time.Second

// Deps are the optional redis backed helpers. Nil fields disable the
// corresponding feature.
type Deps struct {
	Idempotency *redisrepo.IdempotencyStore
	Limiter     *redisrepo.SlidingWindowLimiter
}

func NewRouter(
	svcs *service.Services,
	deps Deps,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := gin.New()

	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(logger), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/events", handleListEvents(svcs))
	r.GET("/events/:id", handleGetEvent(svcs))
	r.POST("/events/:id/tickets", handleBuyTicket(svcs, deps))

	owners := r.Group("/owners/:owner/tickets")
	{
		owners.GET("", handleTicketsOwnedBy(svcs))
		owners.GET("/:ticket_id", handleGetTicket(svcs))
		owners.POST("/:ticket_id/validate", handleValidateTicket(svcs))
	}

	// TODO: guard /admin with an operator token once accounts exist
	admin := r.Group("/admin")
	{
		admin.POST("/events", handleCreateEvent(svcs))
	}

	return r
}

// @Summary  List events
// @Success  200  {array}  EventResponse
// @Router   /events [get]
func handleListEvents(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svcs.Events.ListEvents(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}

		out := make([]EventResponse, 0, len(list))
		for i := range list {
			out = append(out, toEventResponse(&list[i]))
		}

		writeJSONWithCache(c, http.StatusOK, out, "public, max-age=15", true)
	}
}

// @Summary  Get event
// @Param    id  path  int  true  "Event ID"
// @Success  200  {object}  EventResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{id} [get]
func handleGetEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUint32Param(c, "id")
		if !ok {
			return
		}

		e, err := svcs.Events.GetEvent(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, toEventResponse(e), "public, max-age=60", true)
	}
}

// @Summary  Create event
// @Param    req body  CreateEventRequest true "payload"
// @Success  201 {object} CreateEventResponse
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "event exists (EVENTS_REJECT_DUPLICATES)"
// @Router   /admin/events [post]
func handleCreateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		in, err := req.toInput()
		if err != nil {
			badRequest(c, err.Error())
			return
		}

		if err := svcs.Events.CreateEvent(c.Request.Context(), in); err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, CreateEventResponse{EventID: in.ID})
	}
}

// @Summary  Buy ticket (idempotent)
// @Param    id  path  int  true  "Event ID"
// @Param    req body  BuyTicketRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} BuyTicketResponse
// @Failure  400 {object} ErrorResponse
// @Failure  402 {object} ErrorResponse "insufficient payment"
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "sold out / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /events/{id}/tickets [post]
func handleBuyTicket(svcs *service.Services, deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		eventID, ok := parseUint32Param(c, "id")
		if !ok {
			return
		}

		var req BuyTicketRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		buyer, err := domain.ParseAddress(req.Buyer)
		if err != nil {
			badRequest(c, err.Error())
			return
		}

		payment, err := domain.ParseAmount(req.Payment)
		if err != nil {
			badRequest(c, err.Error())
			return
		}

		decision, err := deps.Limiter.Allow(ctx, "purchase", c.ClientIP())
		if err != nil {
			respondErr(c, err)
			return
		}
		if !decision.Allowed {
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(decision.RetryAfter)))
			c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limited"})
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if deps.Idempotency != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemPurchase(eventID, string(buyer), idemKey)

			if replayIdempotent(c, deps.Idempotency, idemStorageKey, idemKey) {
				return
			}

			locked, err := deps.Idempotency.AcquireLock(ctx, idemStorageKey, idemLockTTL)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if replayIdempotent(c, deps.Idempotency, idemStorageKey, idemKey) {
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		ticketID, err := svcs.Tickets.BuyTicket(ctx, eventID, buyer, payment)
		if err != nil {
			if idemStorageKey != "" {
				_ = deps.Idempotency.Release(ctx, idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := BuyTicketResponse{
			EventID:  eventID,
			TicketID: ticketID,
			Owner:    string(buyer),
		}

		if idemStorageKey != "" {
			b, _ := json.Marshal(resp)
			if err := deps.Idempotency.SaveResult(ctx, idemStorageKey, string(b)); err != nil {
				_ = c.Error(err)
			}
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  List tickets held by an owner
// @Param    owner  path  string  true  "Owner address"
// @Success  200 {object} OwnedTicketsResponse
// @Router   /owners/{owner}/tickets [get]
func handleTicketsOwnedBy(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := parseOwnerParam(c)
		if !ok {
			return
		}

		ids, err := svcs.Tickets.TicketsOwnedBy(c.Request.Context(), owner)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, OwnedTicketsResponse{Owner: string(owner), TicketIDs: ids})
	}
}

// @Summary  Get ticket
// @Param    owner      path  string  true  "Owner address"
// @Param    ticket_id  path  int     true  "Ticket ID"
// @Success  200 {object} TicketResponse
// @Failure  404 {object} ErrorResponse
// @Router   /owners/{owner}/tickets/{ticket_id} [get]
func handleGetTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := parseOwnerParam(c)
		if !ok {
			return
		}
		ticketID, ok := parseUint32Param(c, "ticket_id")
		if !ok {
			return
		}

		t, err := svcs.Tickets.GetTicket(c.Request.Context(), owner, ticketID)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, TicketResponse{
			Owner:    string(owner),
			TicketID: ticketID,
			EventID:  t.EventID,
			Used:     t.Used,
		})
	}
}

// @Summary  Redeem ticket
// @Description Marks the ticket as used. valid is false when it was already used.
// @Param    owner      path  string  true  "Owner address"
// @Param    ticket_id  path  int     true  "Ticket ID"
// @Success  200 {object} ValidateTicketResponse
// @Failure  404 {object} ErrorResponse
// @Router   /owners/{owner}/tickets/{ticket_id}/validate [post]
func handleValidateTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := parseOwnerParam(c)
		if !ok {
			return
		}
		ticketID, ok := parseUint32Param(c, "ticket_id")
		if !ok {
			return
		}

		valid, err := svcs.Tickets.ValidateTicket(c.Request.Context(), owner, ticketID)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, ValidateTicketResponse{Valid: valid})
	}
}

// --- Helpers ---

func replayIdempotent(c *gin.Context, idem *redisrepo.IdempotencyStore, storageKey, idemKey string) bool {
	payload, ok, err := idem.GetResult(c.Request.Context(), storageKey)
	if err != nil || !ok {
		return false
	}

	c.Header("Idempotency-Key", idemKey)
	c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
	return true
}

func parseUint32Param(c *gin.Context, name string) (uint32, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint32(v), true
}

func parseOwnerParam(c *gin.Context) (domain.Address, bool) {
	owner, err := domain.ParseAddress(c.Param("owner"))
	if err != nil {
		badRequest(c, err.Error())
		return "", false
	}
	return owner, true
}

func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	switch {
	case errors.Is(err, events.ErrEventNotFound),
		errors.Is(err, tickets.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
	case errors.Is(err, tickets.ErrTicketNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "ticket not found"})
	case errors.Is(err, events.ErrEventExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "event already exists"})
	case errors.Is(err, tickets.ErrSoldOut):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "sold out"})
	case errors.Is(err, tickets.ErrInsufficientPayment):
		c.JSON(http.StatusPaymentRequired, ErrorResponse{Error: "insufficient payment"})
	case errors.Is(err, repository.ErrTxConflict):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "storage busy, retry"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
