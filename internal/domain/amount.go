package domain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

var (
	maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minAmount = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))

	ErrAmountOutOfRange = errors.New("amount out of int128 range")
	ErrInvalidAmount    = errors.New("invalid amount")
)

// Amount is a signed 128-bit integer in the smallest currency unit.
// The zero value is 0. Amounts are immutable.
type Amount struct {
	v *big.Int
}

func NewAmount(v int64) Amount {
	return Amount{v: big.NewInt(v)}
}

// AmountFromBig copies b into an Amount, rejecting values outside int128.
func AmountFromBig(b *big.Int) (Amount, error) {
	if b == nil {
		return Amount{}, nil
	}
	if b.Cmp(maxAmount) > 0 || b.Cmp(minAmount) < 0 {
		return Amount{}, ErrAmountOutOfRange
	}
	return Amount{v: new(big.Int).Set(b)}, nil
}

// ParseAmount parses a base-10 integer string.
func ParseAmount(s string) (Amount, error) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return AmountFromBig(b)
}

func (a Amount) big() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}

// Big returns a copy of the underlying value.
func (a Amount) Big() *big.Int {
	return new(big.Int).Set(a.big())
}

// Cmp returns -1, 0 or +1 as a is less than, equal to or greater than b.
func (a Amount) Cmp(b Amount) int {
	return a.big().Cmp(b.big())
}

func (a Amount) Less(b Amount) bool {
	return a.Cmp(b) < 0
}

func (a Amount) Sign() int {
	return a.big().Sign()
}

func (a Amount) String() string {
	return a.big().String()
}

func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalCBOR encodes the amount as a CBOR integer, or a bignum when it
// does not fit in 64 bits.
func (a Amount) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(a.big())
}

func (a *Amount) UnmarshalCBOR(data []byte) error {
	var b big.Int
	if err := cbor.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	parsed, err := AmountFromBig(&b)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
