package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

// Rebuild reconstructs the similarity index projection from the record
// store: every live record is re-embedded and upserted, tombstoned
// records are removed. The record store is the only source of truth, so a
// rebuild fully repairs any drift in the index. Returns the number of
// records projected.
func (u *UseCase) Rebuild(ctx context.Context) (int, error) {
	var count int

	for offset := 0; ; offset += listPageSize {
		page, err := u.repo.ListRecords(ctx, offset, listPageSize)
		if err != nil {
			return count, opErr(ctx, err)
		}

		for _, rec := range page {
			if rec.Deleted {
				if err := u.index.Remove(ctx, rec.ID); err != nil {
					logging.From(ctx).Warn("failed to drop tombstoned record from index",
						"record_id", rec.ID, "error", err)
				}
				continue
			}

			embedding, err := u.embedder.Embed(ctx, rec.Content)
			if err != nil {
				return count, opErr(ctx, goerr.Wrap(err, "failed to embed content", goerr.V("id", rec.ID)))
			}

			attrs := map[string]string{
				adapter.IndexAttrUserID:  rec.Scope.UserID,
				adapter.IndexAttrAgentID: rec.Scope.AgentID,
			}
			if err := u.index.Upsert(ctx, rec.ID, embedding, attrs); err != nil {
				return count, opErr(ctx, goerr.Wrap(err, "failed to upsert embedding", goerr.V("id", rec.ID)))
			}
			count++
		}

		if len(page) < listPageSize {
			return count, nil
		}
	}
}
