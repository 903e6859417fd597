package ledger

import "time"

// =============================================================================
// AUDIT RECORDER - Append-only before/after log of transaction mutations
// =============================================================================

// AuditRecorder keeps entries most-recent-first. Entries are never edited
// or removed; only a wholesale import replaces the list.
type AuditRecorder struct {
	entries []AuditEntry
	now     func() time.Time
	newID   func() string
}

func newAuditRecorder(now func() time.Time, newID func() string) *AuditRecorder {
	return &AuditRecorder{now: now, newID: newID}
}

func (r *AuditRecorder) RecordCreate(current Transaction) AuditEntry {
	return r.record(AuditCreate, current.ID, AuditDetails{Current: &current})
}

func (r *AuditRecorder) RecordUpdate(previous, current Transaction) AuditEntry {
	return r.record(AuditUpdate, current.ID, AuditDetails{Previous: &previous, Current: &current})
}

func (r *AuditRecorder) RecordDelete(previous Transaction) AuditEntry {
	return r.record(AuditDelete, previous.ID, AuditDetails{Previous: &previous})
}

func (r *AuditRecorder) record(action AuditAction, entityID string, details AuditDetails) AuditEntry {
	entry := AuditEntry{
		ID:         r.newID(),
		Timestamp:  r.now(),
		Action:     action,
		EntityType: EntityTransaction,
		EntityID:   entityID,
		Details:    details,
	}
	r.entries = append([]AuditEntry{entry}, r.entries...)
	return entry
}

// Entries returns a copy, most recent first.
func (r *AuditRecorder) Entries() []AuditEntry {
	out := make([]AuditEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *AuditRecorder) replace(entries []AuditEntry) {
	r.entries = append([]AuditEntry(nil), entries...)
}
