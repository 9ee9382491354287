package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
)

// UpdateInput contains parameters for mutating a record. Version must be
// the version the caller last read; a stale value yields
// model.ErrVersionConflict and the caller should re-read and retry.
// Content, when non-nil, replaces the payload. Metadata keys are merged
// into the existing metadata; a nil value removes the key.
type UpdateInput struct {
	Content  *string
	Metadata model.Metadata
	Version  int64
}

// Update mutates a record, producing version+1 and an "updated" history
// entry with full before/after snapshots. Scope and category stay
// immutable.
func (u *UseCase) Update(ctx context.Context, id model.RecordID, scope model.Scope, input UpdateInput) (rec *model.Record, err error) {
	start := u.now()
	defer func() { u.observe(ctx, "update", scope, start, id, 0, err) }()

	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if input.Version < 1 {
		return nil, goerr.Wrap(model.ErrInvalidInput, "expected version is required", goerr.V("version", input.Version))
	}
	if input.Content != nil && *input.Content == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "content must not be empty")
	}

	current, err := u.loadVisible(ctx, id, scope)
	if err != nil {
		return nil, opErr(ctx, err)
	}

	if current.Version != input.Version {
		return nil, goerr.Wrap(model.ErrVersionConflict, "record version is stale",
			goerr.V("id", id), goerr.V("expected", input.Version), goerr.V("actual", current.Version))
	}

	before := current.Clone()
	next := current.Clone()
	contentChanged := false

	if input.Content != nil && *input.Content != next.Content {
		next.Content = *input.Content
		contentChanged = true
	}
	if input.Metadata != nil {
		merged := next.Metadata.Clone()
		if merged == nil {
			merged = model.Metadata{}
		}
		for k, v := range input.Metadata {
			if v == nil {
				delete(merged, k)
				continue
			}
			merged[k] = v
		}
		next.Metadata = merged
	}

	now := u.now()
	next.Version = current.Version + 1
	next.UpdatedAt = now
	if err := next.Validate(); err != nil {
		return nil, err
	}

	var embedding []float32
	if contentChanged {
		embedding, err = u.embedder.Embed(ctx, next.Content)
		if err != nil {
			return nil, opErr(ctx, goerr.Wrap(err, "failed to embed content"))
		}
	}

	entry := model.NewHistoryEntry(model.OperationUpdated, before, next, now)
	if err := u.repo.UpdateRecord(ctx, next, entry, current.Version); err != nil {
		return nil, opErr(ctx, err)
	}

	if contentChanged {
		if err := u.updateIndex(ctx, next, embedding); err != nil {
			return next, err
		}
	}

	return next, nil
}
