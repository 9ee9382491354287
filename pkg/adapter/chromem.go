package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	chromem "github.com/philippgille/chromem-go"

	"github.com/m-mizutani/kioku/pkg/model"
)

const chromemCollection = "records"

// Chromem implements Index with chromem-go, a pure Go embedded vector
// database. With a path it persists to disk, otherwise it stays in
// memory.
type Chromem struct {
	collection *chromem.Collection
}

// NewChromem creates a chromem-go backed index. An empty path selects an
// in-memory database.
func NewChromem(path string) (*Chromem, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, true)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open chromem database", goerr.V("path", path))
		}
	}

	// Embeddings are always supplied by the caller, so no embedding
	// function is registered on the collection.
	collection, err := db.GetOrCreateCollection(chromemCollection, nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open chromem collection")
	}

	return &Chromem{collection: collection}, nil
}

func (c *Chromem) Upsert(ctx context.Context, id model.RecordID, embedding []float32, attrs map[string]string) error {
	doc := chromem.Document{
		ID:        string(id),
		Embedding: embedding,
		Metadata:  attrs,
		Content:   string(id),
	}

	if err := c.collection.AddDocument(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to upsert embedding", goerr.V("id", id))
	}
	return nil
}

func (c *Chromem) Remove(ctx context.Context, id model.RecordID) error {
	if err := c.collection.Delete(ctx, nil, nil, string(id)); err != nil {
		return goerr.Wrap(err, "failed to remove embedding", goerr.V("id", id))
	}
	return nil
}

func (c *Chromem) Query(ctx context.Context, embedding []float32, limit int, where map[string]string) ([]*Candidate, error) {
	// chromem rejects result counts above the collection size
	if count := c.collection.Count(); count < limit {
		limit = count
	}
	if limit <= 0 {
		return nil, nil
	}

	results, err := c.collection.QueryEmbedding(ctx, embedding, limit, where, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query embeddings")
	}

	candidates := make([]*Candidate, 0, len(results))
	for _, res := range results {
		candidates = append(candidates, &Candidate{
			ID:         model.RecordID(res.ID),
			Similarity: float64(res.Similarity),
		})
	}

	return candidates, nil
}
