package model

import (
	"time"
)

// Operation identifies the kind of mutation recorded by a history entry
type Operation string

const (
	OperationCreated Operation = "created"
	OperationUpdated Operation = "updated"
	OperationDeleted Operation = "deleted"
)

// HistoryEntry is one element of the append-only audit trail of a record.
// Entries form a total order per record by Version and are never mutated
// or removed, even after the record is tombstoned.
type HistoryEntry struct {
	RecordID  RecordID  `json:"record_id"`
	Version   int64     `json:"version"`
	Operation Operation `json:"operation"`
	Before    *Record   `json:"before,omitempty"`
	After     *Record   `json:"after,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewHistoryEntry builds the history entry for a mutation. Snapshots are
// cloned so the entry stays stable if the caller keeps mutating the record.
func NewHistoryEntry(op Operation, before, after *Record, at time.Time) *HistoryEntry {
	entry := &HistoryEntry{
		Operation: op,
		Before:    before.Clone(),
		After:     after.Clone(),
		CreatedAt: at,
	}

	switch {
	case after != nil:
		entry.RecordID = after.ID
		entry.Version = after.Version
	case before != nil:
		entry.RecordID = before.ID
		entry.Version = before.Version
	}

	return entry
}
