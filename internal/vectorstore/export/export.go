// Package export reads and writes the portable JSON dump of a collection.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"kbrag/internal/domain"
	"kbrag/internal/frontmatter"
	"kbrag/internal/metadata"
)

// File is the export document.
type File struct {
	EmbeddingModel string   `json:"embedding_model"`
	Collection     string   `json:"collection"`
	Count          int      `json:"count"`
	Vectors        []Vector `json:"vectors"`
}

type Vector struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  metadata.Metadata `json:"metadata"`
	Embedding []float32         `json:"embedding"`
}

// Build converts stored records into an export document. Records without an
// embedding are skipped and content has any frontmatter stripped.
func Build(model, collection string, records []domain.Record) File {
	f := File{EmbeddingModel: model, Collection: collection, Vectors: []Vector{}}
	for _, r := range records {
		if len(r.Embedding) == 0 {
			continue
		}
		meta := r.Metadata
		if meta == nil {
			meta = metadata.Metadata{}
		}
		f.Vectors = append(f.Vectors, Vector{
			ID:        r.ID,
			Content:   frontmatter.Strip(r.Content),
			Metadata:  meta,
			Embedding: r.Embedding,
		})
	}
	f.Count = len(f.Vectors)
	return f
}

// Records returns the vectors as store records.
func (f File) Records() []domain.Record {
	out := make([]domain.Record, len(f.Vectors))
	for i, v := range f.Vectors {
		out[i] = domain.Record{ID: v.ID, Content: v.Content, Metadata: v.Metadata, Embedding: v.Embedding}
	}
	return out
}

// Write stores f at path, creating parent directories.
func Write(path string, f File) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Read loads an export document.
func Read(path string) (File, error) {
	var f File
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("%w: reading vectors file: %v", domain.ErrConfiguration, err)
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("%w: decoding vectors file %s: %v", domain.ErrSourceData, path, err)
	}
	for i, v := range f.Vectors {
		if v.ID == "" {
			f.Vectors[i].ID = fmt.Sprint(i)
		}
		if f.Vectors[i].Metadata == nil {
			f.Vectors[i].Metadata = metadata.Metadata{}
		}
	}
	f.Count = len(f.Vectors)
	return f, nil
}
