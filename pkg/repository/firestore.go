package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	recordCollection  = "records"
	historyCollection = "history"
)

// Firestore implements Repository on Cloud Firestore. Each record is a
// document in the records collection; its history chain lives in a
// subcollection keyed by zero-padded version so that version order equals
// document order. Record and history writes share one Firestore
// transaction.
type Firestore struct {
	client *firestore.Client
}

// NewFirestore creates a Firestore repository for the given project and
// database.
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	if projectID == "" {
		return nil, goerr.New("project ID is required")
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}

	return &Firestore{client: client}, nil
}

// Close closes the underlying client
func (r *Firestore) Close() error {
	if err := r.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close firestore client")
	}
	return nil
}

func (r *Firestore) recordDoc(id model.RecordID) *firestore.DocumentRef {
	return r.client.Collection(recordCollection).Doc(string(id))
}

func (r *Firestore) historyDoc(entry *model.HistoryEntry) *firestore.DocumentRef {
	return r.recordDoc(entry.RecordID).Collection(historyCollection).Doc(historyDocID(entry.Version))
}

// historyDocID pads the version so lexicographic document order matches
// version order.
func historyDocID(version int64) string {
	return fmt.Sprintf("%012d", version)
}

func (r *Firestore) PutRecord(ctx context.Context, rec *model.Record, entry *model.HistoryEntry) error {
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(r.recordDoc(rec.ID), rec); err != nil {
			return goerr.Wrap(err, "failed to create record document", goerr.V("id", rec.ID))
		}
		if err := tx.Create(r.historyDoc(entry), entry); err != nil {
			return goerr.Wrap(err, "failed to create history document", goerr.V("id", entry.RecordID))
		}
		return nil
	})
	if err != nil {
		return goerr.Wrap(err, "failed to put record", goerr.V("id", rec.ID))
	}
	return nil
}

func (r *Firestore) GetRecord(ctx context.Context, id model.RecordID) (*model.Record, error) {
	snap, err := r.recordDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrRecordNotFound, "no such record", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get record", goerr.V("id", id))
	}

	var rec model.Record
	if err := snap.DataTo(&rec); err != nil {
		return nil, goerr.Wrap(err, "failed to decode record", goerr.V("id", id))
	}
	return &rec, nil
}

func (r *Firestore) UpdateRecord(ctx context.Context, rec *model.Record, entry *model.HistoryEntry, expected int64) error {
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(r.recordDoc(rec.ID))
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(model.ErrRecordNotFound, "no such record", goerr.V("id", rec.ID))
			}
			return goerr.Wrap(err, "failed to get record for update", goerr.V("id", rec.ID))
		}

		var current model.Record
		if err := snap.DataTo(&current); err != nil {
			return goerr.Wrap(err, "failed to decode current record", goerr.V("id", rec.ID))
		}
		if current.Version != expected {
			return goerr.Wrap(model.ErrVersionConflict, "record was modified concurrently",
				goerr.V("id", rec.ID), goerr.V("expected", expected), goerr.V("actual", current.Version))
		}

		if err := tx.Set(r.recordDoc(rec.ID), rec); err != nil {
			return goerr.Wrap(err, "failed to set record document", goerr.V("id", rec.ID))
		}
		if err := tx.Create(r.historyDoc(entry), entry); err != nil {
			return goerr.Wrap(err, "failed to create history document", goerr.V("id", entry.RecordID))
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

func (r *Firestore) ListRecords(ctx context.Context, offset, limit int) ([]*model.Record, error) {
	iter := r.client.Collection(recordCollection).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Offset(offset).Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var records []*model.Record
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate records")
		}

		var rec model.Record
		if err := snap.DataTo(&rec); err != nil {
			return nil, goerr.Wrap(err, "failed to decode record", goerr.V("doc", snap.Ref.ID))
		}
		records = append(records, &rec)
	}

	return records, nil
}

func (r *Firestore) ListHistory(ctx context.Context, id model.RecordID) ([]*model.HistoryEntry, error) {
	iter := r.recordDoc(id).Collection(historyCollection).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var entries []*model.HistoryEntry
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate history", goerr.V("id", id))
		}

		var entry model.HistoryEntry
		if err := snap.DataTo(&entry); err != nil {
			return nil, goerr.Wrap(err, "failed to decode history entry", goerr.V("doc", snap.Ref.ID))
		}
		entries = append(entries, &entry)
	}

	return entries, nil
}
