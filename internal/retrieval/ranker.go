// Package retrieval plans queries, re-ranks store candidates with a layer
// bias and assembles the grounding prompt.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"kbrag/internal/chunker"
	"kbrag/internal/domain"
	"kbrag/internal/frontmatter"
	"kbrag/internal/metadata"
)

const (
	DefaultTopK      = 5
	DefaultFetchK    = 15
	DefaultLayerBias = 0.15
)

// Options control one ranking call.
type Options struct {
	TopK   int
	FetchK int
	// LayerBias scales the layer penalty. Zero ranks by distance alone.
	LayerBias float64
	Dedupe    bool
}

// DefaultOptions returns top 5 of 15 with a 0.15 bias and dedupe on.
func DefaultOptions() Options {
	return Options{TopK: DefaultTopK, FetchK: DefaultFetchK, LayerBias: DefaultLayerBias, Dedupe: true}
}

// Validate rejects negative counts. Zero selects the default.
func (o Options) Validate() error {
	if o.TopK < 0 {
		return fmt.Errorf("%w: top_k must not be negative, got %d", domain.ErrConfiguration, o.TopK)
	}
	if o.FetchK < 0 {
		return fmt.Errorf("%w: fetch_k must not be negative, got %d", domain.ErrConfiguration, o.FetchK)
	}
	return nil
}

func (o Options) normalized() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.FetchK < o.TopK {
		o.FetchK = o.TopK
	}
	return o
}

// Score blends distance with the layer rank. Lower is better.
func Score(distance float64, layerRank int, layerBias float64) float64 {
	if layerBias <= 0 {
		return distance
	}
	return distance + layerBias*(float64(layerRank)/10)
}

// LayerRankOf derives the rank from the layer label of m.
func LayerRankOf(m metadata.Metadata) int {
	return domain.Layer(m.GetString(metadata.KeyLayer)).Rank()
}

// Rerank drops duplicate content hashes (first in store order wins), scores
// the survivors and returns the best TopK in ascending score order. Equal
// scores keep store order.
func Rerank(candidates []domain.Candidate, opts Options) []domain.Scored {
	opts = opts.normalized()
	seen := chunker.Seen{}
	out := make([]domain.Scored, 0, len(candidates))
	for _, c := range candidates {
		content := frontmatter.Strip(c.Content)
		if opts.Dedupe {
			hash := c.Metadata.GetString(metadata.KeyContentHash)
			if hash == "" {
				hash = chunker.Fingerprint(content)
			}
			if !seen.Add(hash) {
				continue
			}
		}
		rank := LayerRankOf(c.Metadata)
		out = append(out, domain.Scored{
			Score:     Score(c.Distance, rank, opts.LayerBias),
			Distance:  c.Distance,
			LayerRank: rank,
			Metadata:  c.Metadata,
			Content:   content,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	if len(out) > opts.TopK {
		out = out[:opts.TopK]
	}
	return out
}

// Ranker fetches candidates from a store and re-ranks them.
type Ranker struct {
	store domain.VectorStore
}

func NewRanker(store domain.VectorStore) *Ranker {
	return &Ranker{store: store}
}

// Rank fetches FetchK nearest candidates under filter and re-ranks them.
func (r *Ranker) Rank(ctx context.Context, query []float32, filter domain.Filter, opts Options) ([]domain.Scored, error) {
	opts = opts.normalized()
	candidates, err := r.store.Nearest(ctx, query, opts.FetchK, filter)
	if err != nil {
		return nil, fmt.Errorf("fetching candidates: %w", err)
	}
	return Rerank(candidates, opts), nil
}
