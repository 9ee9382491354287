package memory

import (
	"context"
	"errors"

	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

// Delete tombstones a record: it becomes unreachable through get, list
// and search while its history chain is retained for audit. Deleting an
// already deleted record is a no-op success. Only a record that was never
// visible to the caller's scope yields model.ErrRecordNotFound.
func (u *UseCase) Delete(ctx context.Context, id model.RecordID, scope model.Scope) (err error) {
	start := u.now()
	defer func() { u.observe(ctx, "delete", scope, start, id, 0, err) }()

	if err := scope.Validate(); err != nil {
		return err
	}

	for {
		current, err := u.repo.GetRecord(ctx, id)
		if err != nil {
			return opErr(ctx, err)
		}
		if !scope.CanSee(current) {
			return opErr(ctx, errorsNotVisible(id))
		}
		if current.Deleted {
			// Idempotent: the tombstone already exists, no new history entry
			return nil
		}

		before := current.Clone()
		now := u.now()
		tombstone := current.Clone()
		tombstone.Deleted = true
		tombstone.Version = current.Version + 1
		tombstone.UpdatedAt = now

		entry := model.NewHistoryEntry(model.OperationDeleted, before, tombstone, now)
		if err := u.repo.UpdateRecord(ctx, tombstone, entry, current.Version); err != nil {
			if errors.Is(err, model.ErrVersionConflict) {
				// A concurrent writer moved the version; re-read and retry
				if ctx.Err() != nil {
					return opErr(ctx, ctx.Err())
				}
				continue
			}
			return opErr(ctx, err)
		}

		if err := u.index.Remove(ctx, id); err != nil {
			// Best effort: the tombstone is authoritative, a stale index
			// entry is filtered out at search time and fixed by rebuild
			logging.From(ctx).Warn("failed to remove embedding from index", "record_id", id, "error", err)
		}
		return nil
	}
}
