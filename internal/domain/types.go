package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const maxSymbolLen = 32

// Address identifies a caller that owns tickets. Key management is not
// handled here: any non-empty token without whitespace or ':' is accepted.
type Address string

// Symbol is a short identifier made of [A-Za-z0-9_].
type Symbol string

var (
	ErrInvalidSymbol  = errors.New("invalid symbol")
	ErrInvalidAddress = errors.New("invalid address")
)

func ParseSymbol(s string) (Symbol, error) {
	if s == "" || len(s) > maxSymbolLen {
		return "", fmt.Errorf("%w: length must be 1..%d", ErrInvalidSymbol, maxSymbolLen)
	}

	for _, r := range s {
		if r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			continue
		}
		return "", fmt.Errorf("%w: unexpected %q", ErrInvalidSymbol, r)
	}

	return Symbol(s), nil
}

func ParseAddress(s string) (Address, error) {
	if s == "" || len(s) > 128 {
		return "", fmt.Errorf("%w: length must be 1..128", ErrInvalidAddress)
	}

	if strings.ContainsFunc(s, func(r rune) bool { return unicode.IsSpace(r) || r == ':' }) {
		return "", fmt.Errorf("%w: must not contain whitespace or ':'", ErrInvalidAddress)
	}

	return Address(s), nil
}

type Event struct {
	ID          uint32 `cbor:"1,keyasint"`
	Name        Symbol `cbor:"2,keyasint"`
	Description []byte `cbor:"3,keyasint"`
	Datetime    []byte `cbor:"4,keyasint"`
	Location    []byte `cbor:"5,keyasint"`
	Organizer   Symbol `cbor:"6,keyasint"`
	ImageURL    []byte `cbor:"7,keyasint"`
	MaxTickets  uint32 `cbor:"8,keyasint"`
	Sold        uint32 `cbor:"9,keyasint"`
	Price       Amount `cbor:"10,keyasint"`
}

// Remaining reports how many tickets can still be issued.
func (e *Event) Remaining() uint32 {
	if e.Sold >= e.MaxTickets {
		return 0
	}
	return e.MaxTickets - e.Sold
}

func (e *Event) SoldOut() bool {
	return e.Sold >= e.MaxTickets
}

type Ticket struct {
	Used    bool   `cbor:"1,keyasint"`
	EventID uint32 `cbor:"2,keyasint"`
}
