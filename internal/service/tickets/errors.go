package tickets

import (
	"errors"
	"fmt"

	"github.com/kirinyoku/tix-ledger/internal/domain"
)

var (
	ErrEventNotFound       = errors.New("event not found")
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrSoldOut             = errors.New("sold out")
	ErrInsufficientPayment = errors.New("insufficient payment")
)

// InsufficientPaymentError carries the amounts involved in a rejected
// purchase. It matches ErrInsufficientPayment with errors.Is.
type InsufficientPaymentError struct {
	Price   domain.Amount
	Payment domain.Amount
}

func (e InsufficientPaymentError) Error() string {
	return fmt.Sprintf("insufficient payment: paid %s, price %s", e.Payment, e.Price)
}

func (e InsufficientPaymentError) Is(target error) bool {
	return target == ErrInsufficientPayment
}
