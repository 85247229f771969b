// Package engine adjudicates fund-load attempts: it classifies each record
// by idempotency, evaluates the scenario's velocity policies against a
// snapshot of window state, commits the resulting mutations, and binds one
// decision to every input position.
package engine

import "loadgate/money"

// Status is the outcome of an adjudicated attempt.
type Status string

const (
	StatusAccepted Status = "ACCEPTED"
	StatusDeclined Status = "DECLINED"
)

// Reason is an audit code attached to a decision. Scenario gates contribute
// their own codes beyond the built-in set.
type Reason string

const (
	ReasonMalformedInput    Reason = "MALFORMED_INPUT"
	ReasonReplay            Reason = "DUPLICATE_ID_REPLAY"
	ReasonConflict          Reason = "DUPLICATE_ID_CONFLICT"
	ReasonDailyAttemptLimit Reason = "DAILY_ATTEMPT_LIMIT"
	ReasonDailyAmountLimit  Reason = "DAILY_AMOUNT_LIMIT"
	ReasonWeeklyAmountLimit Reason = "WEEKLY_AMOUNT_LIMIT"
)

// Verdict is the policy evaluator's output. Reasons is empty exactly when
// the status is accepted.
type Verdict struct {
	Status  Status
	Reasons []Reason
}

// Decision is the engine's output for one input position.
type Decision struct {
	Seq            uint64
	LoadID         string
	CustomerID     string
	Status         Status
	Reasons        []Reason
	Effective      money.Amount
	SnapshotBefore Snapshot
	SnapshotAfter  Snapshot
	CanonicalSeq   uint64
}

// Accepted reports whether the decision accepted the attempt.
func (d Decision) Accepted() bool {
	return d.Status == StatusAccepted
}
