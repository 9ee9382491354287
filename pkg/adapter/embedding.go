package adapter

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Embedder converts text into a vector for the similarity index. It is
// injected into the engine so tests and offline usage can substitute the
// provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Gemini implements Embedder with the Gemini embedding API on Vertex AI
type Gemini struct {
	client         *genai.Client
	embeddingModel string
}

type GeminiOption func(*Gemini)

// WithEmbeddingModel overrides the default embedding model
func WithEmbeddingModel(model string) GeminiOption {
	return func(g *Gemini) {
		g.embeddingModel = model
	}
}

// NewGemini creates a new Gemini embedding adapter
func NewGemini(ctx context.Context, projectID, location string, opts ...GeminiOption) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &Gemini{
		client:         client,
		embeddingModel: "gemini-embedding-001",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, genai.Text(text), &genai.EmbedContentConfig{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content")
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, goerr.New("empty embedding response from gemini")
	}

	return resp.Embeddings[0].Values, nil
}

// LocalEmbedder is a deterministic hash based embedder for tests and
// offline use. The vectors carry no semantic meaning, but identical text
// always yields the identical unit vector.
type LocalEmbedder struct {
	dimensions int
}

// NewLocalEmbedder creates a LocalEmbedder with the given vector size
func NewLocalEmbedder(dimensions int) *LocalEmbedder {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &LocalEmbedder{dimensions: dimensions}
}

func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, e.dimensions)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float64(int64(seed)) / float64(math.MaxInt64)
		vec[i] = float32(v)
		norm += v * v
	}

	// Normalize to a unit vector for stable cosine similarity
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}

	return vec, nil
}
