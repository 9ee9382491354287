package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/repository"
)

func newTestRepo(t *testing.T) *repository.SQLite {
	t.Helper()
	repo, err := repository.NewSQLite(context.Background(), ":memory:")
	gt.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newTestRecord(id string) *model.Record {
	now := time.Now().UTC().Truncate(time.Second)
	return &model.Record{
		ID:       model.RecordID(id),
		Scope:    model.Scope{UserID: "u1", AgentID: "a1", Project: "X"},
		Category: model.CategoryFactual,
		Content:  "content of " + id,
		Metadata: model.Metadata{
			"confidence": 0.9,
			"topic":      "testing",
			"tags":       []string{"a", "b"},
		},
		EmbeddingRef: id,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}
}

func TestSQLitePutAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	rec := newTestRecord("rec-1")
	entry := model.NewHistoryEntry(model.OperationCreated, nil, rec, rec.CreatedAt)
	gt.NoError(t, repo.PutRecord(ctx, rec, entry))

	got, err := repo.GetRecord(ctx, rec.ID)
	gt.NoError(t, err)
	gt.Equal(t, got.ID, rec.ID)
	gt.Equal(t, got.Scope, rec.Scope)
	gt.Equal(t, got.Category, rec.Category)
	gt.Equal(t, got.Content, rec.Content)
	gt.Equal(t, got.Version, int64(1))
	gt.Equal(t, got.Deleted, false)
	gt.Equal(t, got.Metadata.Topic(), "testing")
	gt.Equal(t, got.Metadata.Confidence(), 0.9)
	gt.Equal(t, got.Metadata.Tags(), []string{"a", "b"})
}

func TestSQLiteGetNotFound(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.GetRecord(ctx, "no-such-id")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrRecordNotFound))
}

func TestSQLiteDuplicatePut(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	rec := newTestRecord("rec-1")
	entry := model.NewHistoryEntry(model.OperationCreated, nil, rec, rec.CreatedAt)
	gt.NoError(t, repo.PutRecord(ctx, rec, entry))
	gt.Error(t, repo.PutRecord(ctx, rec, entry))
}

func TestSQLiteUpdateVersionCheck(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	rec := newTestRecord("rec-1")
	gt.NoError(t, repo.PutRecord(ctx, rec, model.NewHistoryEntry(model.OperationCreated, nil, rec, rec.CreatedAt)))

	next := rec.Clone()
	next.Content = "revised"
	next.Version = 2
	next.UpdatedAt = rec.UpdatedAt.Add(time.Minute)
	entry := model.NewHistoryEntry(model.OperationUpdated, rec, next, next.UpdatedAt)
	gt.NoError(t, repo.UpdateRecord(ctx, next, entry, 1))

	got, err := repo.GetRecord(ctx, rec.ID)
	gt.NoError(t, err)
	gt.Equal(t, got.Content, "revised")
	gt.Equal(t, got.Version, int64(2))

	// Stale expected version must not modify the record
	stale := next.Clone()
	stale.Content = "stale write"
	stale.Version = 2
	err = repo.UpdateRecord(ctx, stale, entry, 1)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrVersionConflict))

	got, err = repo.GetRecord(ctx, rec.ID)
	gt.NoError(t, err)
	gt.Equal(t, got.Content, "revised")
}

func TestSQLiteConflictLeavesNoHistory(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	rec := newTestRecord("rec-1")
	gt.NoError(t, repo.PutRecord(ctx, rec, model.NewHistoryEntry(model.OperationCreated, nil, rec, rec.CreatedAt)))

	next := rec.Clone()
	next.Version = 2
	entry := model.NewHistoryEntry(model.OperationUpdated, rec, next, time.Now().UTC())
	err := repo.UpdateRecord(ctx, next, entry, 99)
	gt.True(t, errors.Is(err, model.ErrVersionConflict))

	// The rejected mutation must not leave a history entry behind
	entries, err := repo.ListHistory(ctx, rec.ID)
	gt.NoError(t, err)
	gt.A(t, entries).Length(1)
	gt.Equal(t, entries[0].Operation, model.OperationCreated)
}

func TestSQLiteTombstone(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	rec := newTestRecord("rec-1")
	gt.NoError(t, repo.PutRecord(ctx, rec, model.NewHistoryEntry(model.OperationCreated, nil, rec, rec.CreatedAt)))

	tombstone := rec.Clone()
	tombstone.Deleted = true
	tombstone.Version = 2
	entry := model.NewHistoryEntry(model.OperationDeleted, rec, tombstone, time.Now().UTC())
	gt.NoError(t, repo.UpdateRecord(ctx, tombstone, entry, 1))

	// GetRecord still returns the tombstone; liveness is the engine's call
	got, err := repo.GetRecord(ctx, rec.ID)
	gt.NoError(t, err)
	gt.Equal(t, got.Deleted, true)
	gt.Equal(t, got.Version, int64(2))
}

func TestSQLiteListRecordsOrderAndPaging(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, id := range []string{"rec-c", "rec-a", "rec-b"} {
		rec := newTestRecord(id)
		gt.NoError(t, repo.PutRecord(ctx, rec, model.NewHistoryEntry(model.OperationCreated, nil, rec, rec.CreatedAt)))
	}

	page, err := repo.ListRecords(ctx, 0, 2)
	gt.NoError(t, err)
	gt.A(t, page).Length(2)
	gt.Equal(t, page[0].ID, model.RecordID("rec-a"))
	gt.Equal(t, page[1].ID, model.RecordID("rec-b"))

	page, err = repo.ListRecords(ctx, 2, 2)
	gt.NoError(t, err)
	gt.A(t, page).Length(1)
	gt.Equal(t, page[0].ID, model.RecordID("rec-c"))
}

func TestSQLiteListHistoryOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	rec := newTestRecord("rec-1")
	gt.NoError(t, repo.PutRecord(ctx, rec, model.NewHistoryEntry(model.OperationCreated, nil, rec, rec.CreatedAt)))

	prev := rec
	for v := int64(2); v <= 4; v++ {
		next := prev.Clone()
		next.Content = "revision"
		next.Version = v
		entry := model.NewHistoryEntry(model.OperationUpdated, prev, next, time.Now().UTC())
		gt.NoError(t, repo.UpdateRecord(ctx, next, entry, prev.Version))
		prev = next
	}

	entries, err := repo.ListHistory(ctx, rec.ID)
	gt.NoError(t, err)
	gt.A(t, entries).Length(4)
	for i, entry := range entries {
		gt.Equal(t, entry.Version, int64(i+1))
	}
	gt.Equal(t, entries[0].Operation, model.OperationCreated)
	gt.V(t, entries[0].Before).Nil()
	gt.Equal(t, entries[3].Before.Version, int64(3))
	gt.Equal(t, entries[3].After.Version, int64(4))
}

func TestSQLiteHistoryForUnknownRecord(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	entries, err := repo.ListHistory(ctx, "no-such-id")
	gt.NoError(t, err)
	gt.A(t, entries).Length(0)
}
