package engine

import "loadgate/money"

// Limits are the per-customer velocity caps. A nil field is unlimited.
type Limits struct {
	DailyAttempts *int64
	DailyAmount   *money.Amount
	WeeklyAmount  *money.Amount
}

// GateRule is a scenario-defined global rule keyed on an event tag. When
// the tag holds, the rule can cap the effective amount of a single event
// and the number of accepted events per UTC day across all customers.
type GateRule struct {
	Name               string
	Tag                string
	AmountCap          *money.Amount
	AmountCapCode      Reason
	DailyAcceptCap     *int64
	DailyAcceptCapCode Reason
}

// Evaluator applies the ordered rule set against a snapshot and the derived
// features of one event. The order is fixed: daily attempt count, global
// gates, daily accepted amount, weekly accepted amount. Comparisons are
// strict, so reaching a limit exactly is permitted.
type Evaluator struct {
	Limits      Limits
	Gates       []GateRule
	MultiReason bool
}

// GateNames lists the gate counters the evaluator reads, in rule order.
func (e Evaluator) GateNames() []string {
	if len(e.Gates) == 0 {
		return nil
	}
	names := make([]string, 0, len(e.Gates))
	for _, gate := range e.Gates {
		names = append(names, gate.Name)
	}
	return names
}

// Evaluate yields the verdict for one first-occurrence event. In the
// default short-circuit mode the first violated rule decides; in
// multi-reason mode every violated rule contributes its code.
func (e Evaluator) Evaluate(snap Snapshot, feats Features) Verdict {
	var reasons []Reason
	halt := func(code Reason) bool {
		reasons = append(reasons, code)
		return !e.MultiReason
	}

	if limit := e.Limits.DailyAttempts; limit != nil && snap.DailyAttempts+1 > *limit {
		if halt(ReasonDailyAttemptLimit) {
			return Verdict{Status: StatusDeclined, Reasons: reasons}
		}
	}
	for _, gate := range e.Gates {
		if !feats.Tags[gate.Tag] {
			continue
		}
		if gate.AmountCap != nil && feats.Effective.Cmp(*gate.AmountCap) > 0 {
			if halt(gate.AmountCapCode) {
				return Verdict{Status: StatusDeclined, Reasons: reasons}
			}
		}
		if gate.DailyAcceptCap != nil && snap.Gates[gate.Name]+1 > *gate.DailyAcceptCap {
			if halt(gate.DailyAcceptCapCode) {
				return Verdict{Status: StatusDeclined, Reasons: reasons}
			}
		}
	}
	if limit := e.Limits.DailyAmount; limit != nil && snap.DailyAmount.Add(feats.Effective).Cmp(*limit) > 0 {
		if halt(ReasonDailyAmountLimit) {
			return Verdict{Status: StatusDeclined, Reasons: reasons}
		}
	}
	if limit := e.Limits.WeeklyAmount; limit != nil && snap.WeeklyAmount.Add(feats.Effective).Cmp(*limit) > 0 {
		if halt(ReasonWeeklyAmountLimit) {
			return Verdict{Status: StatusDeclined, Reasons: reasons}
		}
	}

	if len(reasons) > 0 {
		return Verdict{Status: StatusDeclined, Reasons: reasons}
	}
	return Verdict{Status: StatusAccepted}
}

// deltaFor translates a verdict into the window mutations for one
// first-occurrence event: the attempt counter always moves; amounts and
// gate counters move on accept only.
func (e Evaluator) deltaFor(verdict Verdict, feats Features) Delta {
	delta := Delta{Attempts: 1}
	if verdict.Status != StatusAccepted {
		return delta
	}
	delta.DailyAmount = feats.Effective
	delta.WeeklyAmount = feats.Effective
	for _, gate := range e.Gates {
		if feats.Tags[gate.Tag] {
			delta.Gates = append(delta.Gates, gate.Name)
		}
	}
	return delta
}
