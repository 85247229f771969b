package engine

import (
	"math/big"

	"loadgate/money"
	"loadgate/record"
)

// Features are the derived per-event inputs to policy evaluation.
type Features struct {
	Effective money.Amount
	Tags      map[string]bool
}

// TagFunc derives one boolean label from an event. Tag functions must be
// deterministic and side-effect free.
type TagFunc func(record.Event) bool

// Deriver computes features from an event under the scenario configuration.
// A nil multiplier is the identity; otherwise the effective amount is
// rounded to scale 2 with round-half-to-even.
type Deriver struct {
	Multiplier *big.Rat
	Tags       map[string]TagFunc
}

// Derive computes the effective amount and tag set for the event.
func (d Deriver) Derive(ev record.Event) Features {
	feats := Features{Effective: ev.Amount.MulRat(d.Multiplier)}
	if len(d.Tags) > 0 {
		feats.Tags = make(map[string]bool, len(d.Tags))
		for name, fn := range d.Tags {
			feats.Tags[name] = fn(ev)
		}
	}
	return feats
}

// PrimeID reports whether the load identifier parses as a non-negative
// base-10 integer that is prime. Identifiers with any non-digit character
// are not prime by definition.
func PrimeID(ev record.Event) bool {
	id := ev.LoadID
	if id == "" {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	n, ok := new(big.Int).SetString(id, 10)
	if !ok {
		return false
	}
	// Exact for all inputs below 2^64.
	return n.ProbablyPrime(64)
}
