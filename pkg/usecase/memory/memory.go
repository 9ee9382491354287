// Package memory implements the scoped memory engine: validated, scope
// isolated storage of memory records with a full mutation history, plus
// similarity based retrieval with a deterministic ranking policy.
package memory

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/repository"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

// UseCase provides the memory engine operations. Safe for concurrent use:
// per-record mutations are linearized by optimistic version checks in the
// repository, ranking and scope filtering are pure computation.
type UseCase struct {
	repo     repository.Repository
	index    adapter.Index
	embedder adapter.Embedder
	emit     adapter.Emitter

	rank      RankConfig
	syncIndex bool
	clock     func() time.Time
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithRankConfig overrides the default ranking weights and half-life
func WithRankConfig(cfg RankConfig) Option {
	return func(uc *UseCase) {
		uc.rank = cfg
	}
}

// WithSyncIndex makes Add and Update wait for the similarity index upsert
// before acknowledging, giving read-your-write search visibility. Without
// it the index is updated asynchronously with bounded retry.
func WithSyncIndex() Option {
	return func(uc *UseCase) {
		uc.syncIndex = true
	}
}

// WithEmitter sets the telemetry emitter
func WithEmitter(emit adapter.Emitter) Option {
	return func(uc *UseCase) {
		uc.emit = emit
	}
}

// WithClock overrides the time source. Fixed clocks make ranking and
// history timestamps reproducible in tests.
func WithClock(clock func() time.Time) Option {
	return func(uc *UseCase) {
		uc.clock = clock
	}
}

// New creates a new memory engine
func New(
	repo repository.Repository,
	index adapter.Index,
	embedder adapter.Embedder,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		repo:     repo,
		index:    index,
		embedder: embedder,
		emit:     adapter.LogEmitter,
		rank:     DefaultRankConfig(),
		clock:    time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// now returns the current UTC time from the engine's clock
func (u *UseCase) now() time.Time {
	return u.clock().UTC()
}

// observe emits one telemetry event for an operation
func (u *UseCase) observe(ctx context.Context, op string, scope model.Scope, start time.Time, recordID model.RecordID, hits int, err error) {
	if u.emit == nil {
		return
	}

	outcome := adapter.OutcomeSuccess
	if err != nil {
		outcome = adapter.OutcomeError
	}

	u.emit(ctx, &adapter.Event{
		Operation: op,
		Scope:     scope,
		RecordID:  recordID,
		NumHits:   hits,
		Latency:   time.Since(start),
		Outcome:   outcome,
	})
}

// opErr maps context expiry to the engine's timeout error so callers can
// distinguish deadline loss from other failures.
func opErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return goerr.Wrap(model.ErrDeadlineExceeded, "operation aborted", goerr.V("cause", err.Error()))
	}
	return err
}

// updateIndex pushes the embedding of a live record into the similarity
// index. In sync mode a failure is returned to the caller; otherwise the
// write is retried in the background and only degrades search recall,
// never storage correctness.
func (u *UseCase) updateIndex(ctx context.Context, rec *model.Record, embedding []float32) error {
	attrs := map[string]string{
		adapter.IndexAttrUserID:  rec.Scope.UserID,
		adapter.IndexAttrAgentID: rec.Scope.AgentID,
	}

	if u.syncIndex {
		if err := u.index.Upsert(ctx, rec.ID, embedding, attrs); err != nil {
			return goerr.Wrap(model.ErrIndexUnavailable, "failed to update similarity index",
				goerr.V("id", rec.ID), goerr.V("cause", err.Error()))
		}
		return nil
	}

	go u.retryUpsert(context.WithoutCancel(ctx), rec.ID, embedding, attrs)
	return nil
}

const indexRetryLimit = 3

func (u *UseCase) retryUpsert(ctx context.Context, id model.RecordID, embedding []float32, attrs map[string]string) {
	var err error
	for attempt := 1; attempt <= indexRetryLimit; attempt++ {
		if err = u.index.Upsert(ctx, id, embedding, attrs); err == nil {
			return
		}
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}

	logging.From(ctx).Warn("giving up on similarity index upsert, search recall is degraded until rebuild",
		"record_id", id, "error", err)
}
