package engine_test

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"loadgate/engine"
	"loadgate/money"
	"loadgate/record"
)

type sliceSource struct {
	lines []string
	next  int
}

func (s *sliceSource) Next() (record.Raw, error) {
	if s.next >= len(s.lines) {
		return record.Raw{}, io.EOF
	}
	raw := record.Raw{Seq: uint64(s.next), Data: []byte(s.lines[s.next])}
	s.next++
	return raw, nil
}

type captureSink struct {
	decisions []engine.Decision
}

func (c *captureSink) Emit(d engine.Decision) error {
	c.decisions = append(c.decisions, d)
	return nil
}

func line(id, customer, amount, at string) string {
	return fmt.Sprintf(`{"id":%q,"customer_id":%q,"load_amount":%q,"time":%q}`, id, customer, amount, at)
}

func baselineParams() engine.Params {
	return engine.Params{Evaluator: baselineEvaluator()}
}

func run(t *testing.T, params engine.Params, lines ...string) []engine.Decision {
	t.Helper()
	eng := engine.New(params)
	sink := &captureSink{}
	stats, err := eng.Run(context.Background(), &sliceSource{lines: lines}, sink)
	require.NoError(t, err)
	require.Equal(t, uint64(len(lines)), stats.Records)
	require.Len(t, sink.decisions, len(lines), "one decision per input line")
	for i, d := range sink.decisions {
		require.Equal(t, uint64(i), d.Seq, "output order must match input order")
	}
	return sink.decisions
}

func TestRunReplay(t *testing.T) {
	decisions := run(t, baselineParams(),
		line("A", "1", "$100.00", "2024-01-01T10:00:00Z"),
		line("A", "1", "$100.00", "2024-01-01T10:00:00Z"),
	)
	require.True(t, decisions[0].Accepted())
	require.True(t, decisions[1].Accepted(), "replay mirrors the canonical decision")
	require.Equal(t, []engine.Reason{engine.ReasonReplay}, decisions[1].Reasons)
	require.Equal(t, uint64(0), decisions[1].CanonicalSeq)

	// State after both inputs equals state after the first: one attempt,
	// 100.00 accepted.
	require.Equal(t, int64(1), decisions[1].SnapshotBefore.DailyAttempts)
	require.Equal(t, "100.00", decisions[1].SnapshotBefore.DailyAmount.String())
	require.Equal(t, decisions[1].SnapshotBefore, decisions[1].SnapshotAfter)
}

func TestRunConflict(t *testing.T) {
	decisions := run(t, baselineParams(),
		line("B", "1", "USD100.00", "2024-01-01T11:00:00Z"),
		line("B", "1", "USD200.00", "2024-01-01T11:05:00Z"),
	)
	require.True(t, decisions[0].Accepted())
	require.False(t, decisions[1].Accepted())
	require.Equal(t, []engine.Reason{engine.ReasonConflict}, decisions[1].Reasons)
	require.Equal(t, uint64(0), decisions[1].CanonicalSeq)

	// Conflict isolation: only the canonical event contributed.
	require.Equal(t, int64(1), decisions[1].SnapshotAfter.DailyAttempts)
	require.Equal(t, "100.00", decisions[1].SnapshotAfter.DailyAmount.String())
}

func TestRunDailyAttemptCap(t *testing.T) {
	decisions := run(t, baselineParams(),
		line("T1", "1", "$10.00", "2024-01-01T01:00:00Z"),
		line("T2", "1", "$10.00", "2024-01-01T02:00:00Z"),
		line("T3", "1", "$10.00", "2024-01-01T03:00:00Z"),
		line("T4", "1", "$10.00", "2024-01-01T04:00:00Z"),
	)
	require.True(t, decisions[0].Accepted())
	require.True(t, decisions[1].Accepted())
	require.True(t, decisions[2].Accepted())
	require.False(t, decisions[3].Accepted())
	require.Equal(t, []engine.Reason{engine.ReasonDailyAttemptLimit}, decisions[3].Reasons)

	// Declined attempts still consume the attempt counter.
	require.Equal(t, int64(4), decisions[3].SnapshotAfter.DailyAttempts)
	require.Equal(t, "30.00", decisions[3].SnapshotAfter.DailyAmount.String())
}

func TestRunDailyAmountCapBoundary(t *testing.T) {
	decisions := run(t, baselineParams(),
		line("X1", "1", "$4999.99", "2024-01-01T01:00:00Z"),
		line("X2", "1", "$0.02", "2024-01-01T02:00:00Z"),
		line("X3", "1", "$0.01", "2024-01-01T03:00:00Z"),
	)
	require.True(t, decisions[0].Accepted())
	require.False(t, decisions[1].Accepted())
	require.Equal(t, []engine.Reason{engine.ReasonDailyAmountLimit}, decisions[1].Reasons)
	require.True(t, decisions[2].Accepted(), "exact match on the boundary is accepted")
	require.Equal(t, "5000.00", decisions[2].SnapshotAfter.DailyAmount.String())
}

func TestRunDirtyCurrencyNormalization(t *testing.T) {
	decisions := run(t, baselineParams(),
		line("N1", "1", "USD1000.00", "2024-01-01T01:00:00Z"),
		line("N2", "2", "$1000.00", "2024-01-01T01:00:00Z"),
		line("N3", "3", "USD$1000.00", "2024-01-01T01:00:00Z"),
		line("N4", "4", "$USD1000.00", "2024-01-01T01:00:00Z"),
	)
	for i, d := range decisions {
		require.True(t, d.Accepted(), "decision %d", i)
		require.Equal(t, "1000.00", d.Effective.String())
	}
}

func TestRunWeekBoundary(t *testing.T) {
	params := engine.Params{Evaluator: engine.Evaluator{
		Limits: engine.Limits{WeeklyAmount: amountPtr(2000000)},
	}}
	decisions := run(t, params,
		line("W1", "1", "$20000.00", "2024-01-07T23:59:59Z"),
		line("W2", "1", "$20000.00", "2024-01-08T00:00:00Z"),
	)
	require.True(t, decisions[0].Accepted())
	require.True(t, decisions[1].Accepted(), "Sunday and Monday fall in different ISO weeks")
	require.Equal(t, "20000.00", decisions[1].SnapshotAfter.WeeklyAmount.String())
}

func TestRunUTCDayBoundary(t *testing.T) {
	// 23:30-05:00 is already the next UTC day, so the attempt counter does
	// not collide with the earlier loads.
	decisions := run(t, baselineParams(),
		line("D1", "1", "$10.00", "2024-01-01T10:00:00Z"),
		line("D2", "1", "$10.00", "2024-01-01T11:00:00Z"),
		line("D3", "1", "$10.00", "2024-01-01T12:00:00Z"),
		line("D4", "1", "$10.00", "2024-01-01T23:30:00-05:00"),
	)
	require.True(t, decisions[3].Accepted())
	require.Equal(t, int64(1), decisions[3].SnapshotAfter.DailyAttempts)
}

func TestRunZeroAmount(t *testing.T) {
	decisions := run(t, baselineParams(),
		line("Z1", "1", "$0.00", "2024-01-01T01:00:00Z"),
	)
	require.True(t, decisions[0].Accepted())
	require.Equal(t, int64(1), decisions[0].SnapshotAfter.DailyAttempts)
	require.True(t, decisions[0].SnapshotAfter.DailyAmount.IsZero())
}

func TestRunMalformedInput(t *testing.T) {
	decisions := run(t, baselineParams(),
		`{"id":"M1","customer_id":"1","load_amount":"oops","time":"2024-01-01T01:00:00Z"}`,
		line("M2", "1", "$10.00", "2024-01-01T02:00:00Z"),
	)
	require.False(t, decisions[0].Accepted())
	require.Equal(t, []engine.Reason{engine.ReasonMalformedInput}, decisions[0].Reasons)
	require.Equal(t, "M1", decisions[0].LoadID)

	// Malformed records bypass all state.
	require.True(t, decisions[1].Accepted())
	require.Equal(t, int64(1), decisions[1].SnapshotAfter.DailyAttempts)
}

func TestRunMalformedDoesNotInstallIdentifier(t *testing.T) {
	decisions := run(t, baselineParams(),
		`{"id":"M1","customer_id":"1","load_amount":"oops","time":"2024-01-01T01:00:00Z"}`,
		line("M1", "1", "$10.00", "2024-01-01T02:00:00Z"),
	)
	require.False(t, decisions[0].Accepted())
	require.True(t, decisions[1].Accepted(), "a malformed record does not claim its identifier")
	require.Equal(t, uint64(1), decisions[1].CanonicalSeq)
}

func TestRunInfiniteLimits(t *testing.T) {
	decisions := run(t, engine.Params{},
		line("I1", "1", "$999999.99", "2024-01-01T01:00:00Z"),
		line("I2", "1", "$999999.99", "2024-01-01T02:00:00Z"),
		line("I2", "1", "$1.00", "2024-01-01T03:00:00Z"),
	)
	require.True(t, decisions[0].Accepted())
	require.True(t, decisions[1].Accepted())
	require.False(t, decisions[2].Accepted(), "conflicts decline even with no limits")
}

func TestRunReplayOfDeclinedDecision(t *testing.T) {
	attempts := int64(1)
	params := engine.Params{Evaluator: engine.Evaluator{Limits: engine.Limits{DailyAttempts: &attempts}}}
	decisions := run(t, params,
		line("R1", "1", "$10.00", "2024-01-01T01:00:00Z"),
		line("R2", "1", "$10.00", "2024-01-01T02:00:00Z"),
		line("R2", "1", "$10.00", "2024-01-01T02:00:00Z"),
	)
	require.True(t, decisions[0].Accepted())
	require.False(t, decisions[1].Accepted())
	require.False(t, decisions[2].Accepted(), "replay mirrors a declined canonical decision")
	require.Equal(t, []engine.Reason{engine.ReasonDailyAttemptLimit, engine.ReasonReplay}, decisions[2].Reasons)
	require.Equal(t, uint64(1), decisions[2].CanonicalSeq)

	// The declined attempt was counted once, not twice.
	require.Equal(t, int64(2), decisions[2].SnapshotAfter.DailyAttempts)
}

func TestRunPrimeGateScenario(t *testing.T) {
	acceptCap := int64(1)
	capAmount := money.MustFromMinor(999900)
	params := engine.Params{
		Evaluator: engine.Evaluator{
			Gates: []engine.GateRule{{
				Name:               "prime",
				Tag:                "prime",
				AmountCap:          &capAmount,
				AmountCapCode:      "PRIME_AMOUNT_CAP",
				DailyAcceptCap:     &acceptCap,
				DailyAcceptCapCode: "PRIME_DAILY_GLOBAL_LIMIT",
			}},
		},
		Deriver: engine.Deriver{Tags: map[string]engine.TagFunc{"prime": engine.PrimeID}},
	}
	decisions := run(t, params,
		line("2", "1", "$100.00", "2024-01-01T01:00:00Z"),
		line("3", "2", "$100.00", "2024-01-01T02:00:00Z"),
		line("4", "3", "$100.00", "2024-01-01T03:00:00Z"),
		line("5", "4", "$100000.00", "2024-01-02T01:00:00Z"),
	)
	require.True(t, decisions[0].Accepted())
	require.False(t, decisions[1].Accepted(), "global per-day prime accept cap reached")
	require.Equal(t, []engine.Reason{"PRIME_DAILY_GLOBAL_LIMIT"}, decisions[1].Reasons)
	require.True(t, decisions[2].Accepted(), "composite ids bypass the gate")
	require.False(t, decisions[3].Accepted(), "per-event prime amount cap")
	require.Equal(t, []engine.Reason{"PRIME_AMOUNT_CAP"}, decisions[3].Reasons)
}

func TestRunMultiplier(t *testing.T) {
	params := baselineParams()
	params.Deriver.Multiplier = big.NewRat(1, 2)
	decisions := run(t, params,
		line("H1", "1", "$0.05", "2024-01-01T01:00:00Z"),
		line("H2", "2", "$9999.98", "2024-01-01T02:00:00Z"),
	)
	require.Equal(t, "0.02", decisions[0].Effective.String(), "2.5 cents rounds half to even")
	require.True(t, decisions[1].Accepted(), "effective amount 4999.99 fits the daily cap")
	require.Equal(t, "4999.99", decisions[1].SnapshotAfter.DailyAmount.String())
}

func TestRunStats(t *testing.T) {
	eng := engine.New(baselineParams())
	sink := &captureSink{}
	stats, err := eng.Run(context.Background(), &sliceSource{lines: []string{
		line("S1", "1", "$10.00", "2024-01-01T01:00:00Z"),
		line("S1", "1", "$10.00", "2024-01-01T01:00:00Z"),
		line("S1", "1", "$20.00", "2024-01-01T01:00:00Z"),
		`not json`,
	}}, sink)
	require.NoError(t, err)
	require.Equal(t, engine.Stats{
		Records:   4,
		Accepted:  2,
		Declined:  2,
		Replays:   1,
		Conflicts: 1,
		Malformed: 1,
	}, stats)
	require.Equal(t, stats, eng.Progress())
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := engine.New(baselineParams())
	sink := &captureSink{}
	_, err := eng.Run(ctx, &sliceSource{lines: []string{line("C1", "1", "$1.00", "2024-01-01T01:00:00Z")}}, sink)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, sink.decisions, "no partial emission after cancellation")
}
