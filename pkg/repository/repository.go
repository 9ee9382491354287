package repository

import (
	"context"

	"github.com/m-mizutani/kioku/pkg/model"
)

// Repository is the authoritative store of memory records and their
// history chains. Implementations must write the record state and its
// history entry atomically: no record mutation may become visible without
// the matching history entry, and vice versa.
//
// Scope isolation is not enforced here. The engine applies visibility
// checks on top of the raw record data returned by a Repository.
type Repository interface {
	// PutRecord persists a new record (version 1) together with its
	// "created" history entry in one transaction.
	PutRecord(ctx context.Context, rec *model.Record, entry *model.HistoryEntry) error

	// GetRecord retrieves a record by ID, including tombstoned ones.
	// Returns model.ErrRecordNotFound if the ID was never created.
	GetRecord(ctx context.Context, id model.RecordID) (*model.Record, error)

	// UpdateRecord replaces the record state and appends the history entry
	// in one transaction, but only if the stored version still equals
	// expected. Returns model.ErrVersionConflict when a concurrent writer
	// won the race. Tombstoning a record goes through this path as well.
	UpdateRecord(ctx context.Context, rec *model.Record, entry *model.HistoryEntry, expected int64) error

	// ListRecords returns a stable page of records ordered by ID,
	// including tombstoned ones. Used for listing and index rebuilds.
	ListRecords(ctx context.Context, offset, limit int) ([]*model.Record, error)

	// ListHistory returns the full history chain of a record, oldest
	// first. The chain outlives the record itself.
	ListHistory(ctx context.Context, id model.RecordID) ([]*model.HistoryEntry, error)

	// Close releases resources held by the repository
	Close() error
}
