package adapter_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
)

func setupChromem(t *testing.T) (*adapter.Chromem, *adapter.LocalEmbedder) {
	t.Helper()
	index, err := adapter.NewChromem("")
	gt.NoError(t, err)
	return index, adapter.NewLocalEmbedder(64)
}

func embed(t *testing.T, embedder *adapter.LocalEmbedder, text string) []float32 {
	t.Helper()
	vec, err := embedder.Embed(context.Background(), text)
	gt.NoError(t, err)
	return vec
}

func TestChromemUpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	index, embedder := setupChromem(t)

	attrs := map[string]string{
		adapter.IndexAttrUserID:  "u1",
		adapter.IndexAttrAgentID: "a1",
	}
	gt.NoError(t, index.Upsert(ctx, "rec-1", embed(t, embedder, "dark mode preference"), attrs))
	gt.NoError(t, index.Upsert(ctx, "rec-2", embed(t, embedder, "friday deploy freeze"), attrs))

	got, err := index.Query(ctx, embed(t, embedder, "dark mode preference"), 2, attrs)
	gt.NoError(t, err)
	gt.A(t, got).Length(2)
	// The identical text must rank first with maximal similarity
	gt.Equal(t, got[0].ID, model.RecordID("rec-1"))
	gt.True(t, got[0].Similarity > got[1].Similarity)
}

func TestChromemQueryClampsLimit(t *testing.T) {
	ctx := context.Background()
	index, embedder := setupChromem(t)

	attrs := map[string]string{adapter.IndexAttrUserID: "u1", adapter.IndexAttrAgentID: "a1"}
	gt.NoError(t, index.Upsert(ctx, "rec-1", embed(t, embedder, "only record"), attrs))

	// Asking for more results than stored must not fail
	got, err := index.Query(ctx, embed(t, embedder, "only record"), 10, nil)
	gt.NoError(t, err)
	gt.A(t, got).Length(1)
}

func TestChromemQueryEmptyIndex(t *testing.T) {
	ctx := context.Background()
	index, embedder := setupChromem(t)

	got, err := index.Query(ctx, embed(t, embedder, "anything"), 5, nil)
	gt.NoError(t, err)
	gt.A(t, got).Length(0)
}

func TestChromemWhereFilter(t *testing.T) {
	ctx := context.Background()
	index, embedder := setupChromem(t)

	gt.NoError(t, index.Upsert(ctx, "rec-u1", embed(t, embedder, "shared phrasing"), map[string]string{
		adapter.IndexAttrUserID:  "u1",
		adapter.IndexAttrAgentID: "a1",
	}))
	gt.NoError(t, index.Upsert(ctx, "rec-u2", embed(t, embedder, "shared phrasing"), map[string]string{
		adapter.IndexAttrUserID:  "u2",
		adapter.IndexAttrAgentID: "a1",
	}))

	got, err := index.Query(ctx, embed(t, embedder, "shared phrasing"), 10, map[string]string{
		adapter.IndexAttrUserID:  "u1",
		adapter.IndexAttrAgentID: "a1",
	})
	gt.NoError(t, err)
	gt.A(t, got).Length(1)
	gt.Equal(t, got[0].ID, model.RecordID("rec-u1"))
}

func TestChromemRemove(t *testing.T) {
	ctx := context.Background()
	index, embedder := setupChromem(t)

	attrs := map[string]string{adapter.IndexAttrUserID: "u1", adapter.IndexAttrAgentID: "a1"}
	gt.NoError(t, index.Upsert(ctx, "rec-1", embed(t, embedder, "to be removed"), attrs))
	gt.NoError(t, index.Remove(ctx, "rec-1"))

	got, err := index.Query(ctx, embed(t, embedder, "to be removed"), 5, nil)
	gt.NoError(t, err)
	gt.A(t, got).Length(0)
}

func TestChromemUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	index, embedder := setupChromem(t)

	attrs := map[string]string{adapter.IndexAttrUserID: "u1", adapter.IndexAttrAgentID: "a1"}
	gt.NoError(t, index.Upsert(ctx, "rec-1", embed(t, embedder, "first wording"), attrs))
	gt.NoError(t, index.Upsert(ctx, "rec-1", embed(t, embedder, "second wording"), attrs))

	got, err := index.Query(ctx, embed(t, embedder, "second wording"), 5, nil)
	gt.NoError(t, err)
	gt.A(t, got).Length(1)
	gt.Equal(t, got[0].ID, model.RecordID("rec-1"))
	gt.True(t, got[0].Similarity > 0.999)
}
