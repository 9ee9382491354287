package memory

import (
	"context"
	"iter"
	"slices"

	"github.com/m-mizutani/kioku/pkg/model"
)

// ListFilter narrows a listing. All set fields must match: Categories and
// Topics by membership of the record's value, Tags when the record
// carries at least one of the given tags.
type ListFilter struct {
	Categories []model.Category
	Topics     []string
	Tags       []string
}

func (f ListFilter) match(rec *model.Record) bool {
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, rec.Category) {
		return false
	}
	if len(f.Topics) > 0 && !slices.Contains(f.Topics, rec.Metadata.Topic()) {
		return false
	}
	if len(f.Tags) > 0 {
		tags := rec.Metadata.Tags()
		hit := false
		for _, want := range f.Tags {
			if slices.Contains(tags, want) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

const listPageSize = 200

// List returns a lazy, restartable sequence of the records visible to the
// caller's scope that match the filter, ordered by ID. Each range over
// the sequence re-reads the repository.
func (u *UseCase) List(ctx context.Context, scope model.Scope, filter ListFilter) iter.Seq2[*model.Record, error] {
	return func(yield func(*model.Record, error) bool) {
		start := u.now()
		var count int
		var opErrOut error
		defer func() { u.observe(ctx, "list", scope, start, "", count, opErrOut) }()

		if err := scope.Validate(); err != nil {
			opErrOut = err
			yield(nil, err)
			return
		}

		for offset := 0; ; offset += listPageSize {
			page, err := u.repo.ListRecords(ctx, offset, listPageSize)
			if err != nil {
				opErrOut = opErr(ctx, err)
				yield(nil, opErrOut)
				return
			}

			for _, rec := range page {
				if rec.Deleted || !scope.CanSee(rec) || !filter.match(rec) {
					continue
				}
				count++
				if !yield(rec, nil) {
					return
				}
			}

			if len(page) < listPageSize {
				return
			}
		}
	}
}
