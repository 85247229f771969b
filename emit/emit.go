// Package emit serializes decisions for downstream collaborators: the
// minimal per-line decision contract and the optional deterministic audit
// stream.
package emit

import (
	"encoding/json"
	"io"

	"loadgate/engine"
	"loadgate/money"
)

type minimalRecord struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	Accepted   bool   `json:"accepted"`
}

// Writer emits the minimal decision contract as JSON lines, one per input
// record, in sequence order.
type Writer struct {
	enc *json.Encoder
}

// NewWriter wraps the destination stream.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// Emit implements engine.Sink.
func (w *Writer) Emit(d engine.Decision) error {
	return w.enc.Encode(minimalRecord{
		ID:         d.LoadID,
		CustomerID: d.CustomerID,
		Accepted:   d.Accepted(),
	})
}

type auditRecord struct {
	Seq            uint64          `json:"seq"`
	ID             string          `json:"id"`
	CustomerID     string          `json:"customer_id"`
	Status         engine.Status   `json:"status"`
	Reasons        []engine.Reason `json:"reasons,omitempty"`
	Effective      money.Amount    `json:"effective_amount"`
	CanonicalSeq   uint64          `json:"canonical_seq"`
	SnapshotBefore engine.Snapshot `json:"snapshot_before"`
	SnapshotAfter  engine.Snapshot `json:"snapshot_after"`
}

// AuditWriter emits the richer audit stream. Its output is a pure function
// of the input stream and scenario, so it stays deterministic across runs.
type AuditWriter struct {
	enc *json.Encoder
}

// NewAuditWriter wraps the audit destination.
func NewAuditWriter(w io.Writer) *AuditWriter {
	return &AuditWriter{enc: json.NewEncoder(w)}
}

// Emit implements engine.Sink.
func (w *AuditWriter) Emit(d engine.Decision) error {
	return w.enc.Encode(auditRecord{
		Seq:            d.Seq,
		ID:             d.LoadID,
		CustomerID:     d.CustomerID,
		Status:         d.Status,
		Reasons:        d.Reasons,
		Effective:      d.Effective,
		CanonicalSeq:   d.CanonicalSeq,
		SnapshotBefore: d.SnapshotBefore,
		SnapshotAfter:  d.SnapshotAfter,
	})
}

// Tee fans each decision out to every sink in order, stopping on the first
// error.
type Tee []engine.Sink

// Emit implements engine.Sink.
func (t Tee) Emit(d engine.Decision) error {
	for _, sink := range t {
		if err := sink.Emit(d); err != nil {
			return err
		}
	}
	return nil
}
