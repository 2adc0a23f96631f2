// Package domain holds the knowledge-base model shared by ingestion and
// retrieval: layers, chunks, filters and the ports to external services.
package domain

import (
	"github.com/google/uuid"

	"kbrag/internal/metadata"
)

// chunkNamespace scopes chunk ids so that re-ingesting the same content
// yields the same ids.
var chunkNamespace = uuid.MustParse("6f1d0c7e-3b9a-5d42-9c1e-8a7b2f4e6d10")

// ChunkID derives a stable record id from the source path, layer and
// content hash.
func ChunkID(sourcePath string, layer Layer, contentHash string) string {
	return uuid.NewSHA1(chunkNamespace, []byte(sourcePath+"\x00"+string(layer)+"\x00"+contentHash)).String()
}

// Document is one markdown file of the knowledge base.
type Document struct {
	// Path is relative to the knowledge-base root, slash separated.
	Path        string
	Raw         string
	Frontmatter map[string]any
	Body        string
	Topic       string
	DocType     string
	FileStem    string
	IsSummary   bool
	// Metadata is inherited by every chunk of the document.
	Metadata metadata.Metadata
}

// Section is a heading-bounded span of a document body.
type Section struct {
	Title string
	Text  string
	Index int
}

// Chunk is the atomic retrievable unit. Chunks are not mutated after
// creation; relabelling returns a copy.
type Chunk struct {
	ID          string
	Content     string
	Layer       Layer
	Tier        Tier
	ContentHash string
	Metadata    metadata.Metadata
}

// LayerRank is derived from Layer only.
func (c Chunk) LayerRank() int { return c.Layer.Rank() }

// AsFallback returns a copy relabelled as the fallback chunk of its
// document. The original layer is kept under source_layer.
func (c Chunk) AsFallback() Chunk {
	out := c
	out.Layer = LayerFallback
	out.Tier = TierFallback
	out.Metadata = c.Metadata.Clone()
	out.Metadata.Set(metadata.KeySourceLayer, string(c.Layer))
	out.Metadata.Set(metadata.KeyLayer, string(LayerFallback))
	out.Metadata.Set(metadata.KeyLayerRank, LayerFallback.Rank())
	out.Metadata.Set(metadata.KeyRetrievalTier, string(TierFallback))
	out.Metadata.Set(metadata.KeyShortFileFallback, true)
	out.ID = ChunkID(c.Metadata.GetString(metadata.KeySourcePath), LayerFallback, c.ContentHash)
	return out
}

// Record converts the chunk to its persisted form.
func (c Chunk) Record(embedding []float32) Record {
	return Record{ID: c.ID, Content: c.Content, Metadata: c.Metadata, Embedding: embedding}
}

// Record is what a vector store persists.
type Record struct {
	ID        string
	Content   string
	Metadata  metadata.Metadata
	Embedding []float32
}

// Candidate is a record returned by a nearest-neighbour query. Distance is
// 0 for identical vectors and grows with dissimilarity.
type Candidate struct {
	Record
	Distance float64
}

// Scored is a re-ranked candidate.
type Scored struct {
	Score     float64           `json:"score"`
	Distance  float64           `json:"distance"`
	LayerRank int               `json:"layer_rank"`
	Metadata  metadata.Metadata `json:"metadata"`
	Content   string            `json:"content"`
}
