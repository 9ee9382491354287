package adapter

import (
	"context"

	"github.com/m-mizutani/kioku/pkg/model"
)

// Candidate is one raw similarity search result. Similarity is descending
// in query results and normalized to [0,1] by the backend.
type Candidate struct {
	ID         model.RecordID
	Similarity float64
}

// Index is the similarity search backend. It holds only a derived
// projection of the record store: embeddings plus the attributes needed
// to push scope predicates down to the backend. The projection is
// disposable and can be rebuilt from the record store at any time.
type Index interface {
	// Upsert inserts or replaces the embedding of a record. The attrs
	// map carries scope attributes for predicate pushdown.
	Upsert(ctx context.Context, id model.RecordID, embedding []float32, attrs map[string]string) error

	// Remove deletes the embedding of a record. Removing an absent ID is
	// a no-op.
	Remove(ctx context.Context, id model.RecordID) error

	// Query returns up to limit candidates ordered by descending
	// similarity, restricted to entries matching every attribute in
	// where.
	Query(ctx context.Context, embedding []float32, limit int, where map[string]string) ([]*Candidate, error)
}

// Attribute keys pushed down to the index backend
const (
	IndexAttrUserID  = "user_id"
	IndexAttrAgentID = "agent_id"
)
