package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"loadgate/fingerprint"
	"loadgate/observability"
	"loadgate/record"
	"loadgate/timekeys"
)

// Source yields raw records in arrival order. Next returns io.EOF when the
// stream is exhausted.
type Source interface {
	Next() (record.Raw, error)
}

// Sink receives one decision per input record, in sequence order.
type Sink interface {
	Emit(Decision) error
}

// Params bundles the scenario-configured pieces of the pipeline.
type Params struct {
	Evaluator Evaluator
	Deriver   Deriver
}

// Stats counts the records seen by one run, segmented by routing.
type Stats struct {
	Records   uint64 `json:"records"`
	Accepted  uint64 `json:"accepted"`
	Declined  uint64 `json:"declined"`
	Replays   uint64 `json:"replays"`
	Conflicts uint64 `json:"conflicts"`
	Malformed uint64 `json:"malformed"`
}

// Engine drives the adjudication pipeline. It exclusively owns the window
// store and the idempotency table; all mutation happens inside its
// read-evaluate-commit loop.
type Engine struct {
	eval    Evaluator
	deriver Deriver
	store   *Store
	idem    *IdemTable
	metrics *observability.EngineMetrics
	log     *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	stats Stats
}

// Option customises the engine instance.
type Option func(*Engine)

// WithMetrics overrides the default metrics registry.
func WithMetrics(m *observability.EngineMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger supplies the structured logger used for malformed records and
// invariant breaches.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.log = logger }
}

// WithClock sets the function used to time per-record latency.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.now = clock }
}

// New constructs an engine for the supplied scenario parameters.
func New(params Params, opts ...Option) *Engine {
	eng := &Engine{
		eval:    params.Evaluator,
		deriver: params.Deriver,
		store:   NewStore(),
		idem:    NewIdemTable(),
		metrics: observability.Engine(),
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.metrics == nil {
		eng.metrics = observability.Engine()
	}
	if eng.log == nil {
		eng.log = slog.Default()
	}
	return eng
}

// Progress returns a copy of the run counters. Safe to call concurrently
// with Run.
func (e *Engine) Progress() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Run consumes the source to exhaustion, emitting one decision per record
// in input order. An event that entered the pipeline is either fully
// committed with an emitted decision or neither: the context is only
// checked between records. Invariant breaches abort the run with an error
// wrapping ErrInvariant; decisions already emitted are retained.
func (e *Engine) Run(ctx context.Context, src Source, sink Sink) (Stats, error) {
	for {
		if err := ctx.Err(); err != nil {
			return e.Progress(), err
		}
		raw, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return e.Progress(), fmt.Errorf("engine: read input: %w", err)
		}
		started := e.now()
		decision, err := e.process(raw)
		if err != nil {
			return e.Progress(), err
		}
		if err := sink.Emit(decision); err != nil {
			return e.Progress(), fmt.Errorf("engine: emit decision seq=%d: %w", decision.Seq, err)
		}
		e.metrics.ObserveDecision(string(decision.Status), e.now().Sub(started))
		if decision.Status == StatusDeclined {
			for _, reason := range decision.Reasons {
				e.metrics.RecordReason(string(reason))
			}
		}
		e.metrics.SetCustomerCount(e.store.CustomerCount())
	}
	return e.Progress(), nil
}

func (e *Engine) process(raw record.Raw) (Decision, error) {
	ev, err := record.Parse(raw)
	if err != nil {
		e.log.Warn("malformed input record",
			"seq", raw.Seq,
			"load_id", ev.LoadID,
			"error", err,
		)
		e.metrics.RecordMalformed()
		e.count(func(s *Stats) { s.Malformed++; s.Declined++ })
		return Decision{
			Seq:          raw.Seq,
			LoadID:       ev.LoadID,
			CustomerID:   ev.CustomerID,
			Status:       StatusDeclined,
			Reasons:      []Reason{ReasonMalformedInput},
			CanonicalSeq: raw.Seq,
		}, nil
	}

	day, week := timekeys.Keys(ev.Time)
	fp := fingerprint.Compute(ev.CustomerID, ev.Time, ev.Amount)
	class, canonical := e.idem.Classify(ev.LoadID, fp)
	switch class {
	case ClassReplay:
		snap := e.store.Snapshot(ev.CustomerID, day, week, e.eval.GateNames())
		reasons := make([]Reason, 0, len(canonical.Decision.Reasons)+1)
		reasons = append(reasons, canonical.Decision.Reasons...)
		reasons = append(reasons, ReasonReplay)
		e.metrics.RecordReplay()
		e.count(func(s *Stats) {
			s.Replays++
			if canonical.Decision.Status == StatusAccepted {
				s.Accepted++
			} else {
				s.Declined++
			}
		})
		return Decision{
			Seq:            ev.Seq,
			LoadID:         ev.LoadID,
			CustomerID:     ev.CustomerID,
			Status:         canonical.Decision.Status,
			Reasons:        reasons,
			Effective:      canonical.Decision.Effective,
			SnapshotBefore: snap,
			SnapshotAfter:  snap,
			CanonicalSeq:   canonical.Decision.Seq,
		}, nil
	case ClassConflict:
		snap := e.store.Snapshot(ev.CustomerID, day, week, e.eval.GateNames())
		e.metrics.RecordConflict()
		e.count(func(s *Stats) { s.Conflicts++; s.Declined++ })
		return Decision{
			Seq:            ev.Seq,
			LoadID:         ev.LoadID,
			CustomerID:     ev.CustomerID,
			Status:         StatusDeclined,
			Reasons:        []Reason{ReasonConflict},
			SnapshotBefore: snap,
			SnapshotAfter:  snap,
			CanonicalSeq:   canonical.Decision.Seq,
		}, nil
	}

	feats := e.deriver.Derive(ev)
	before := e.store.Snapshot(ev.CustomerID, day, week, e.eval.GateNames())
	verdict := e.eval.Evaluate(before, feats)
	delta := e.eval.deltaFor(verdict, feats)
	if err := e.store.Commit(ev.CustomerID, day, week, delta); err != nil {
		e.log.Error("window commit failed", "seq", ev.Seq, "error", err)
		return Decision{}, err
	}
	after := e.store.Snapshot(ev.CustomerID, day, week, e.eval.GateNames())
	decision := Decision{
		Seq:            ev.Seq,
		LoadID:         ev.LoadID,
		CustomerID:     ev.CustomerID,
		Status:         verdict.Status,
		Reasons:        verdict.Reasons,
		Effective:      feats.Effective,
		SnapshotBefore: before,
		SnapshotAfter:  after,
		CanonicalSeq:   ev.Seq,
	}
	if err := e.idem.Install(ev.LoadID, CanonicalRecord{Fingerprint: fp, Decision: decision}); err != nil {
		return Decision{}, err
	}
	e.count(func(s *Stats) {
		if verdict.Status == StatusAccepted {
			s.Accepted++
		} else {
			s.Declined++
		}
	})
	return decision, nil
}

func (e *Engine) count(update func(*Stats)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.Records++
	update(&e.stats)
}
