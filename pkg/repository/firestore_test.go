package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/repository"
)

func setupFirestore(t *testing.T) *repository.Firestore {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")

	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID must be set to run Firestore tests")
	}

	repo, err := repository.NewFirestore(context.Background(), projectID, databaseID)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func TestFirestorePutAndGet(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	rec := newTestRecord(string(model.NewRecordID()))
	entry := model.NewHistoryEntry(model.OperationCreated, nil, rec, rec.CreatedAt)
	gt.NoError(t, repo.PutRecord(ctx, rec, entry))

	got, err := repo.GetRecord(ctx, rec.ID)
	gt.NoError(t, err)
	gt.Equal(t, got.ID, rec.ID)
	gt.Equal(t, got.Content, rec.Content)
	gt.Equal(t, got.Version, int64(1))

	_, err = repo.GetRecord(ctx, model.NewRecordID())
	gt.True(t, errors.Is(err, model.ErrRecordNotFound))
}

func TestFirestoreUpdateConflict(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	rec := newTestRecord(string(model.NewRecordID()))
	gt.NoError(t, repo.PutRecord(ctx, rec, model.NewHistoryEntry(model.OperationCreated, nil, rec, rec.CreatedAt)))

	next := rec.Clone()
	next.Content = "revised"
	next.Version = 2
	next.UpdatedAt = time.Now().UTC()
	entry := model.NewHistoryEntry(model.OperationUpdated, rec, next, next.UpdatedAt)
	gt.NoError(t, repo.UpdateRecord(ctx, next, entry, 1))

	err := repo.UpdateRecord(ctx, next, entry, 1)
	gt.True(t, errors.Is(err, model.ErrVersionConflict))

	entries, err := repo.ListHistory(ctx, rec.ID)
	gt.NoError(t, err)
	gt.A(t, entries).Length(2)
	gt.Equal(t, entries[0].Operation, model.OperationCreated)
	gt.Equal(t, entries[1].Operation, model.OperationUpdated)
}
