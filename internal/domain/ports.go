package domain

import "context"

// Embedder converts text into vectors. All vectors produced within a session
// share one dimensionality.
type Embedder interface {
	// Name identifies the embedding model.
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists records and answers nearest-neighbour queries within
// one collection.
type VectorStore interface {
	// Reset removes every record of the collection.
	Reset(ctx context.Context) error
	Upsert(ctx context.Context, records []Record) error
	// Nearest returns up to k records matching filter, closest first.
	Nearest(ctx context.Context, query []float32, k int, filter Filter) ([]Candidate, error)
	// All returns every record of the collection in insertion order.
	All(ctx context.Context) ([]Record, error)
	Close() error
}

// Answerer is the generative answering service.
type Answerer interface {
	Answer(ctx context.Context, prompt string) (string, error)
}

// Tokenizer sizes chunks. Encode is deterministic for a given tokenizer and
// Decode(Encode(s)) == s.
type Tokenizer interface {
	Name() string
	Encode(text string) []int
	Decode(tokens []int) string
}
