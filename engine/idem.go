package engine

import (
	"fmt"

	"loadgate/fingerprint"
)

// Class is the idempotency classification of an incoming record.
type Class int

const (
	// ClassFirst marks the first occurrence of a load identifier.
	ClassFirst Class = iota
	// ClassReplay marks a subsequent record whose payload fingerprint
	// matches the canonical record.
	ClassReplay
	// ClassConflict marks a subsequent record whose payload differs from
	// the canonical record.
	ClassConflict
)

// CanonicalRecord is the immutable per-identifier record installed after
// the first occurrence has been adjudicated.
type CanonicalRecord struct {
	Fingerprint fingerprint.Sum
	Decision    Decision
}

// IdemTable maps load identifiers to their canonical records. There is no
// transition out of the canonical state: replays and conflicts never mutate
// an installed record.
type IdemTable struct {
	records map[string]CanonicalRecord
}

// NewIdemTable returns an empty idempotency table.
func NewIdemTable() *IdemTable {
	return &IdemTable{records: make(map[string]CanonicalRecord)}
}

// Classify routes an incoming record. For replays and conflicts the
// canonical record is returned so the caller can mirror or reference it;
// first occurrences return a zero record.
func (t *IdemTable) Classify(loadID string, fp fingerprint.Sum) (Class, CanonicalRecord) {
	stored, ok := t.records[loadID]
	if !ok {
		return ClassFirst, CanonicalRecord{}
	}
	if stored.Fingerprint == fp {
		return ClassReplay, stored
	}
	return ClassConflict, stored
}

// Install records the canonical decision for a first-occurrence identifier.
// Installing twice breaches the at-most-once invariant.
func (t *IdemTable) Install(loadID string, rec CanonicalRecord) error {
	if _, exists := t.records[loadID]; exists {
		return fmt.Errorf("%w: canonical record already installed for load %q", ErrInvariant, loadID)
	}
	t.records[loadID] = rec
	return nil
}

// Len reports the number of canonical records installed.
func (t *IdemTable) Len() int {
	return len(t.records)
}
