package memory

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
)

// SearchInput contains parameters for a similarity search
type SearchInput struct {
	Scope model.Scope
	Query string
	Limit int
}

// DefaultSearchLimit is the result budget used when the caller does not
// supply one.
const DefaultSearchLimit = 8

// overfetchFactor widens the raw candidate pull so that scope filtering
// and the diversity floor still have material to work with after the
// backend's coarse predicate pushdown.
const overfetchFactor = 4

// Search retrieves the records most relevant to the query, ordered by the
// ranking policy and truncated to the caller's budget. A failing
// similarity backend surfaces as model.ErrIndexUnavailable, never as a
// silently empty result.
func (u *UseCase) Search(ctx context.Context, input SearchInput) (hits []*Hit, err error) {
	start := u.now()
	defer func() { u.observe(ctx, "search", input.Scope, start, "", len(hits), err) }()

	if err := input.Scope.Validate(); err != nil {
		return nil, err
	}
	if input.Query == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "query is empty")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	embedding, err := u.embedder.Embed(ctx, input.Query)
	if err != nil {
		return nil, opErr(ctx, goerr.Wrap(err, "failed to embed query"))
	}

	where := map[string]string{
		adapter.IndexAttrUserID:  input.Scope.UserID,
		adapter.IndexAttrAgentID: input.Scope.AgentID,
	}
	raw, err := u.index.Query(ctx, embedding, limit*overfetchFactor, where)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, opErr(ctx, err)
		}
		return nil, goerr.Wrap(model.ErrIndexUnavailable, "vector search failed", goerr.V("cause", err.Error()))
	}

	cands := make([]candidate, 0, len(raw))
	for _, c := range raw {
		rec, err := u.repo.GetRecord(ctx, c.ID)
		if err != nil {
			if errors.Is(err, model.ErrRecordNotFound) {
				// Stale index entry; reconciliation will drop it
				continue
			}
			return nil, opErr(ctx, err)
		}
		if rec.Deleted || !input.Scope.CanSee(rec) {
			continue
		}
		cands = append(cands, candidate{record: rec, similarity: c.Similarity})
	}

	hits = rankCandidates(cands, u.now(), limit, u.rank)
	return hits, nil
}
