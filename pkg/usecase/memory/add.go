package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
)

// AddInput contains parameters for creating a record
type AddInput struct {
	Scope    model.Scope
	Category model.Category
	Content  string
	Metadata model.Metadata
}

// Add creates a new memory record at version 1 together with its
// "created" history entry, then projects the embedding into the
// similarity index.
func (u *UseCase) Add(ctx context.Context, input AddInput) (rec *model.Record, err error) {
	start := u.now()
	defer func() {
		var id model.RecordID
		if rec != nil {
			id = rec.ID
		}
		u.observe(ctx, "add", input.Scope, start, id, 0, err)
	}()

	id := model.NewRecordID()
	now := u.now()
	rec = &model.Record{
		ID:           id,
		Scope:        input.Scope,
		Category:     input.Category,
		Content:      input.Content,
		EmbeddingRef: string(id),
		Metadata:     input.Metadata.Clone(),
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	embedding, err := u.embedder.Embed(ctx, rec.Content)
	if err != nil {
		return nil, opErr(ctx, goerr.Wrap(err, "failed to embed content"))
	}

	entry := model.NewHistoryEntry(model.OperationCreated, nil, rec, now)
	if err := u.repo.PutRecord(ctx, rec, entry); err != nil {
		return nil, opErr(ctx, err)
	}

	if err := u.updateIndex(ctx, rec, embedding); err != nil {
		// The record is durably stored; only search visibility is affected
		return rec, err
	}

	return rec, nil
}
