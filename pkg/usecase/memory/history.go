package memory

import (
	"context"

	"github.com/m-mizutani/kioku/pkg/model"
)

// History returns the full mutation chain of a record, oldest first. The
// chain is never truncated and survives deletion of the record, but it is
// only readable by scopes that could see the record itself.
func (u *UseCase) History(ctx context.Context, id model.RecordID, scope model.Scope) (entries []*model.HistoryEntry, err error) {
	start := u.now()
	defer func() { u.observe(ctx, "history", scope, start, id, len(entries), err) }()

	if err := scope.Validate(); err != nil {
		return nil, err
	}

	// Tombstoned records keep their audit trail readable, so visibility
	// is checked against the stored scope rather than liveness.
	rec, err := u.repo.GetRecord(ctx, id)
	if err != nil {
		return nil, opErr(ctx, err)
	}
	if !scope.CanSee(rec) {
		return nil, opErr(ctx, errorsNotVisible(id))
	}

	entries, err = u.repo.ListHistory(ctx, id)
	if err != nil {
		return nil, opErr(ctx, err)
	}
	return entries, nil
}
