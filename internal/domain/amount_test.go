package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestParseAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{name: "zero", in: "0", want: "0"},
		{name: "negative", in: "-250", want: "-250"},
		{name: "int128 max", in: "170141183460469231731687303715884105727", want: "170141183460469231731687303715884105727"},
		{name: "int128 min", in: "-170141183460469231731687303715884105728", want: "-170141183460469231731687303715884105728"},
		{name: "above max", in: "170141183460469231731687303715884105728", wantErr: ErrAmountOutOfRange},
		{name: "below min", in: "-170141183460469231731687303715884105729", wantErr: ErrAmountOutOfRange},
		{name: "fractional", in: "1.5", wantErr: ErrInvalidAmount},
		{name: "empty", in: "", wantErr: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseAmount(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestAmountCmp(t *testing.T) {
	t.Parallel()

	var zero Amount
	if zero.Cmp(NewAmount(0)) != 0 {
		t.Fatalf("zero value must equal 0")
	}
	if !NewAmount(99).Less(NewAmount(100)) {
		t.Fatalf("expected 99 < 100")
	}
	if NewAmount(100).Less(NewAmount(100)) {
		t.Fatalf("expected 100 to not be less than 100")
	}
}

func TestAmountCBORKeepsLargeValues(t *testing.T) {
	t.Parallel()

	in, err := ParseAmount("-170141183460469231731687303715884105728")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	b, err := cbor.Marshal(Event{ID: 7, Price: in})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out Event
	if err := cbor.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Price.Cmp(in) != 0 {
		t.Fatalf("expected %s, got %s", in, out.Price)
	}
}

func TestAmountJSONIsDecimalString(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(struct {
		Price Amount `json:"price"`
	}{Price: NewAmount(1500000)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"price":"1500000"}` {
		t.Fatalf("unexpected json %s", b)
	}
}

func TestParseSymbol(t *testing.T) {
	t.Parallel()

	valid := []string{"concert", "Rock_2025", "A"}
	for _, s := range valid {
		if _, err := ParseSymbol(s); err != nil {
			t.Fatalf("expected %q to be valid, got %v", s, err)
		}
	}

	invalid := []string{"", "has space", "dash-ed", "abcdefghijklmnopqrstuvwxyz0123456", "émoji"}
	for _, s := range invalid {
		if _, err := ParseSymbol(s); !errors.Is(err, ErrInvalidSymbol) {
			t.Fatalf("expected %q to be invalid, got %v", s, err)
		}
	}
}

func TestParseAddress(t *testing.T) {
	t.Parallel()

	if _, err := ParseAddress("GBUYER"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range []string{"", "a b", "a:b"} {
		if _, err := ParseAddress(s); !errors.Is(err, ErrInvalidAddress) {
			t.Fatalf("expected %q to be invalid, got %v", s, err)
		}
	}
}

func TestEventRemaining(t *testing.T) {
	t.Parallel()

	e := Event{MaxTickets: 3, Sold: 1}
	if e.Remaining() != 2 || e.SoldOut() {
		t.Fatalf("unexpected remaining %d", e.Remaining())
	}
	e.Sold = 3
	if e.Remaining() != 0 || !e.SoldOut() {
		t.Fatalf("expected sold out")
	}
}
