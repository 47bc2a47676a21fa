package repository

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}

	decMode, err = cbor.DecOptions{
		MaxArrayElements: 1 << 20,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// GetValue loads and decodes the value stored at key. The boolean is false
// when the key is absent.
func GetValue[T any](ctx context.Context, tx Tx, key Key) (T, bool, error) {
	var zero T

	b, ok, err := tx.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}

	var out T
	if err := decMode.Unmarshal(b, &out); err != nil {
		return zero, false, fmt.Errorf("%s: %w: %v", key, ErrCorrupt, err)
	}

	return out, true, nil
}

func SetValue(ctx context.Context, tx Tx, key Key, v any) error {
	b, err := encMode.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", key, err)
	}

	return tx.Set(ctx, key, b)
}
