// Package record decodes ingress fund-load records and normalizes them into
// events ready for adjudication.
package record

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"loadgate/money"
)

// Raw is an opaque record blob with the transport sequence number assigned
// by ingress. The sequence number is the sole ordering authority for output.
type Raw struct {
	Seq  uint64
	Data []byte
}

// Event is a fully normalized fund-load attempt.
type Event struct {
	Seq        uint64
	LoadID     string
	CustomerID string
	Time       time.Time
	Amount     money.Amount
	RawAmount  string
}

type wireLoad struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	LoadAmount string `json:"load_amount"`
	Time       string `json:"time"`
}

// Parse decodes a raw record into an Event. On error the returned event
// still carries whatever identity fields were recovered so the caller can
// attribute the failure to a load and customer in its output.
func Parse(raw Raw) (Event, error) {
	ev := Event{Seq: raw.Seq}
	var wire wireLoad
	if err := json.Unmarshal(raw.Data, &wire); err != nil {
		return ev, fmt.Errorf("record: decode: %w", err)
	}
	ev.LoadID = strings.TrimSpace(wire.ID)
	ev.CustomerID = strings.TrimSpace(wire.CustomerID)
	ev.RawAmount = wire.LoadAmount
	if ev.LoadID == "" {
		return ev, fmt.Errorf("record: load id required")
	}
	if ev.CustomerID == "" {
		return ev, fmt.Errorf("record: customer id required")
	}
	at, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(wire.Time))
	if err != nil {
		return ev, fmt.Errorf("record: parse time %q: %w", wire.Time, err)
	}
	ev.Time = at.UTC()
	amount, err := NormalizeAmount(wire.LoadAmount)
	if err != nil {
		return ev, err
	}
	ev.Amount = amount
	return ev, nil
}

// NormalizeAmount strips whitespace and any leading combination of the
// currency tokens "USD" and "$" (at most two tokens, covering "USD", "$",
// "USD$", and "$USD") before parsing the residue as a scale-2 decimal.
func NormalizeAmount(text string) (money.Amount, error) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	residue := stripCurrencyTokens(compact)
	amount, err := money.Parse(residue)
	if err != nil {
		return money.Amount{}, fmt.Errorf("record: amount %q: %w", text, err)
	}
	return amount, nil
}

func stripCurrencyTokens(s string) string {
	for i := 0; i < 2; i++ {
		switch {
		case strings.HasPrefix(s, "USD"):
			s = s[len("USD"):]
		case strings.HasPrefix(s, "$"):
			s = s[1:]
		default:
			return s
		}
	}
	return s
}
