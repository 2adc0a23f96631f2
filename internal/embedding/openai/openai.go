// Package openai embeds text with the OpenAI embeddings API through the
// eino embedding component.
package openai

import (
	"context"
	"fmt"
	"time"

	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	einoEmbedding "github.com/cloudwego/eino/components/embedding"

	"kbrag/internal/domain"
)

const (
	DefaultModel     = "text-embedding-3-small"
	DefaultBatchSize = 64
)

// Config configures the embedder. APIKey is required.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	BatchSize int
}

// Embedder adapts an eino embedder to domain.Embedder.
type Embedder struct {
	embedder  einoEmbedding.Embedder
	model     string
	batchSize int
}

func New(ctx context.Context, cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set. Set it in your shell environment or .env file before running", domain.ErrConfiguration)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	emb, err := openaiEmbed.NewEmbedder(ctx, &openaiEmbed.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating embedder: %v", domain.ErrConfiguration, err)
	}
	return Wrap(emb, cfg.Model, cfg.BatchSize), nil
}

// Wrap adapts any eino embedder. batchSize <= 0 selects DefaultBatchSize.
func Wrap(emb einoEmbedding.Embedder, model string, batchSize int) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Embedder{embedder: emb, model: model, batchSize: batchSize}
}

func (e *Embedder) Name() string { return e.model }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends texts in batches and returns one vector per text, in
// order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vectors, err := e.embedder.EmbedStrings(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: embedding request: %v", domain.ErrTransport, err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("%w: embedding request returned %d vectors for %d texts", domain.ErrTransport, len(vectors), end-start)
		}
		for _, vec := range vectors {
			if len(vec) == 0 {
				return nil, fmt.Errorf("%w: empty embedding returned", domain.ErrTransport)
			}
			f := make([]float32, len(vec))
			for i, v := range vec {
				f[i] = float32(v)
			}
			out = append(out, f)
		}
	}
	return out, nil
}

var _ domain.Embedder = (*Embedder)(nil)
