package cli_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/cli"
	"github.com/m-mizutani/kioku/pkg/model"
)

func TestAddIndexesBeforeExit(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "kioku.db")
	indexPath := filepath.Join(dir, "index")
	content := "deploys are frozen on fridays"

	// The add command is one-shot: the index write must complete before
	// it returns, not linger in a goroutine the exiting process abandons.
	errOut := cli.Run(ctx, []string{
		"kioku", "add",
		"--db", dbPath,
		"--index", indexPath,
		"--user", "u1",
		"--agent", "a1",
		"--category", "factual",
		"--content", content,
	})
	gt.V(t, errOut).Nil()

	// Reopen the persisted index as a fresh process would
	index, err := adapter.NewChromem(indexPath)
	gt.NoError(t, err)

	embedding, err := adapter.NewLocalEmbedder(0).Embed(ctx, content)
	gt.NoError(t, err)

	got, err := index.Query(ctx, embedding, 1, map[string]string{
		adapter.IndexAttrUserID:  "u1",
		adapter.IndexAttrAgentID: "a1",
	})
	gt.NoError(t, err)
	gt.A(t, got).Length(1)
	gt.NotEqual(t, got[0].ID, model.RecordID(""))
	gt.True(t, got[0].Similarity > 0.999)
}
