// Package service wires the chunker, the stores and the remote models into
// the ingest, retrieve and ask use cases.
package service

import (
	"context"

	"kbrag/internal/domain"
)

// Resources hands out the process-wide collaborators. Implementations build
// each one at most once.
type Resources interface {
	Store(ctx context.Context) (domain.VectorStore, error)
	Embedder(ctx context.Context) (domain.Embedder, error)
	Answerer(ctx context.Context) (domain.Answerer, error)
}
