package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
)

// Get retrieves a record by ID. Records outside the caller's scope and
// tombstoned records are reported as not found, indistinguishable from
// true absence.
func (u *UseCase) Get(ctx context.Context, id model.RecordID, scope model.Scope) (rec *model.Record, err error) {
	start := u.now()
	defer func() { u.observe(ctx, "get", scope, start, id, 0, err) }()

	if err := scope.Validate(); err != nil {
		return nil, err
	}

	rec, err = u.loadVisible(ctx, id, scope)
	if err != nil {
		return nil, opErr(ctx, err)
	}
	return rec, nil
}

// loadVisible loads a live record and enforces the scope isolation
// boundary. Every engine read and write path resolves records through
// this helper.
func (u *UseCase) loadVisible(ctx context.Context, id model.RecordID, scope model.Scope) (*model.Record, error) {
	rec, err := u.repo.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	if rec.Deleted || !scope.CanSee(rec) {
		return nil, errorsNotVisible(id)
	}
	return rec, nil
}

// errorsNotVisible reports isolation violations with the same error as
// true absence so existence never leaks across scope boundaries.
func errorsNotVisible(id model.RecordID) error {
	return goerr.Wrap(model.ErrRecordNotFound, "no such record", goerr.V("id", id))
}
