package engine

import (
	"errors"
	"fmt"

	"loadgate/money"
	"loadgate/timekeys"
)

// ErrInvariant marks a window-state invariant breach. The stream driver
// fails fast when it surfaces.
var ErrInvariant = errors.New("engine: invariant violation")

type customerDay struct {
	customer string
	day      timekeys.Day
}

type customerWeek struct {
	customer string
	week     timekeys.Week
}

// Store holds the mutable velocity counters for one scenario run: attempt
// counts and accepted-amount sums per customer and calendar window, plus
// named global per-day gate counters. Missing keys read as zero and commits
// are strictly additive.
type Store struct {
	attempts    map[customerDay]int64
	dayAmounts  map[customerDay]money.Amount
	weekAmounts map[customerWeek]money.Amount
	gates       map[string]map[timekeys.Day]int64
	customers   map[string]struct{}
}

// NewStore returns an empty window store.
func NewStore() *Store {
	return &Store{
		attempts:    make(map[customerDay]int64),
		dayAmounts:  make(map[customerDay]money.Amount),
		weekAmounts: make(map[customerWeek]money.Amount),
		gates:       make(map[string]map[timekeys.Day]int64),
		customers:   make(map[string]struct{}),
	}
}

// Snapshot is the immutable view of the counters relevant to one event,
// captured before policy evaluation and again after commit for audit.
type Snapshot struct {
	DailyAttempts int64            `json:"daily_attempts"`
	DailyAmount   money.Amount     `json:"daily_accepted_amount"`
	WeeklyAmount  money.Amount     `json:"weekly_accepted_amount"`
	Gates         map[string]int64 `json:"gates,omitempty"`
}

// Snapshot reads the counters for the given customer and calendar keys,
// along with the per-day counts of the named global gates.
func (s *Store) Snapshot(customer string, day timekeys.Day, week timekeys.Week, gateNames []string) Snapshot {
	snap := Snapshot{
		DailyAttempts: s.attempts[customerDay{customer, day}],
		DailyAmount:   s.dayAmounts[customerDay{customer, day}],
		WeeklyAmount:  s.weekAmounts[customerWeek{customer, week}],
	}
	if len(gateNames) > 0 {
		snap.Gates = make(map[string]int64, len(gateNames))
		for _, name := range gateNames {
			snap.Gates[name] = s.gates[name][day]
		}
	}
	return snap
}

// Delta is the set of non-negative mutations applied by one commit.
type Delta struct {
	Attempts     int64
	DailyAmount  money.Amount
	WeeklyAmount money.Amount
	Gates        []string
}

// Commit applies the delta for one first-occurrence event. Negative deltas
// breach the monotonicity invariant and abort the run.
func (s *Store) Commit(customer string, day timekeys.Day, week timekeys.Week, delta Delta) error {
	if delta.Attempts < 0 {
		return fmt.Errorf("%w: negative attempt delta %d", ErrInvariant, delta.Attempts)
	}
	if delta.DailyAmount.Sign() < 0 || delta.WeeklyAmount.Sign() < 0 {
		return fmt.Errorf("%w: negative amount delta", ErrInvariant)
	}
	dayKey := customerDay{customer, day}
	weekKey := customerWeek{customer, week}
	s.attempts[dayKey] += delta.Attempts
	if !delta.DailyAmount.IsZero() {
		s.dayAmounts[dayKey] = s.dayAmounts[dayKey].Add(delta.DailyAmount)
	}
	if !delta.WeeklyAmount.IsZero() {
		s.weekAmounts[weekKey] = s.weekAmounts[weekKey].Add(delta.WeeklyAmount)
	}
	for _, name := range delta.Gates {
		counters, ok := s.gates[name]
		if !ok {
			counters = make(map[timekeys.Day]int64)
			s.gates[name] = counters
		}
		counters[day]++
	}
	s.customers[customer] = struct{}{}
	return nil
}

// CustomerCount reports the number of distinct customers with window state.
func (s *Store) CustomerCount() int {
	return len(s.customers)
}
