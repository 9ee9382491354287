package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

type RecordID string

// NewRecordID generates a new unique RecordID
func NewRecordID() RecordID {
	return RecordID(uuid.New().String())
}

// Category governs retention and ranking priority of a record
type Category string

const (
	CategoryFactual  Category = "factual"
	CategoryEpisodic Category = "episodic"
	CategoryWorking  Category = "working"
	CategorySemantic Category = "semantic"
)

// Validate checks if the category is a member of the closed enum
func (c Category) Validate() error {
	switch c {
	case CategoryFactual, CategoryEpisodic, CategoryWorking, CategorySemantic:
		return nil
	default:
		return goerr.Wrap(ErrInvalidInput, "invalid category", goerr.V("category", c))
	}
}

// Reserved metadata keys validated by Metadata.Validate
const (
	MetaKeyConfidence = "confidence"
	MetaKeyTopic      = "topic"
	MetaKeyTags       = "tags"
)

// Metadata is an open mapping of string keys to scalar or array values.
// Only the reserved keys are validated; everything else is stored as-is.
type Metadata map[string]any

// Validate checks the reserved keys: confidence must be a number in [0,1],
// topic a string, and tags a list of strings.
func (m Metadata) Validate() error {
	if m == nil {
		return nil
	}

	if v, ok := m[MetaKeyConfidence]; ok {
		c, ok := toFloat(v)
		if !ok {
			return goerr.Wrap(ErrInvalidInput, "confidence must be a number", goerr.V("confidence", v))
		}
		if c < 0 || c > 1 {
			return goerr.Wrap(ErrInvalidInput, "confidence must be within [0,1]", goerr.V("confidence", c))
		}
	}

	if v, ok := m[MetaKeyTopic]; ok {
		if _, ok := v.(string); !ok {
			return goerr.Wrap(ErrInvalidInput, "topic must be a string", goerr.V("topic", v))
		}
	}

	if v, ok := m[MetaKeyTags]; ok {
		if tags := toStrings(v); tags == nil {
			return goerr.Wrap(ErrInvalidInput, "tags must be a list of strings", goerr.V("tags", v))
		}
	}

	return nil
}

// Confidence returns the confidence value, or 0.5 when absent.
// The neutral default keeps the confidence term of the composite score
// from penalizing records that never declared one.
func (m Metadata) Confidence() float64 {
	if v, ok := m[MetaKeyConfidence]; ok {
		if c, ok := toFloat(v); ok {
			return c
		}
	}
	return 0.5
}

// Topic returns the topic value, or an empty string when absent
func (m Metadata) Topic() string {
	if v, ok := m[MetaKeyTopic]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Tags returns the tags value, or nil when absent
func (m Metadata) Tags() []string {
	if v, ok := m[MetaKeyTags]; ok {
		return toStrings(v)
	}
	return nil
}

// Clone returns a shallow copy of the metadata map
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	clone := make(Metadata, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, e := range list {
			s, ok := e.(string)
			if !ok {
				return nil
			}
			out = append(out, s)
		}
		return out
	}
	return nil
}

// Record is a single memory record. The scope is immutable after creation;
// changing ownership requires delete and recreate. The embedding itself
// lives in the similarity index, the record only carries an opaque
// reference to it.
type Record struct {
	ID           RecordID `json:"id"`
	Scope        Scope    `json:"scope"`
	Category     Category `json:"category"`
	Content      string   `json:"content"`
	EmbeddingRef string   `json:"embedding_ref,omitempty"`
	Metadata     Metadata `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
	Deleted   bool      `json:"deleted,omitempty"`
}

// Validate checks the invariants of a record before it is persisted
func (r *Record) Validate() error {
	if r.ID == "" {
		return goerr.Wrap(ErrInvalidInput, "record id is empty")
	}
	if err := r.Scope.Validate(); err != nil {
		return err
	}
	if err := r.Category.Validate(); err != nil {
		return err
	}
	if r.Content == "" {
		return goerr.Wrap(ErrInvalidInput, "content is empty")
	}
	if r.Category == CategoryWorking && r.Scope.RunID == "" {
		return goerr.Wrap(ErrInvalidInput, "working records require a run_id")
	}
	if err := r.Metadata.Validate(); err != nil {
		return err
	}
	if r.Version < 1 {
		return goerr.Wrap(ErrInvalidInput, "version must be positive", goerr.V("version", r.Version))
	}
	return nil
}

// Clone returns a deep enough copy for history snapshots: metadata is
// copied so later mutations do not leak into recorded snapshots.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Metadata = r.Metadata.Clone()
	return &clone
}
