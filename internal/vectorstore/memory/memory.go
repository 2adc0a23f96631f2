package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"kbrag/internal/domain"
	"kbrag/internal/vectorstore"
)

// Storage is an in-memory vector store using brute-force cosine distance.
// Records keep insertion order; upserting an existing id replaces it in
// place.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	records   []domain.Record
	index     map[string]int
}

func NewStorage() *Storage { return &Storage{index: map[string]int{}} }

func (s *Storage) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = 0
	s.records = nil
	s.index = map[string]int{}
	return nil
}

func (s *Storage) Upsert(_ context.Context, records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dim := s.dimension
	for _, r := range records {
		if r.ID == "" {
			return errors.New("record id must be set")
		}
		if len(r.Embedding) == 0 {
			return fmt.Errorf("record %s has no embedding", r.ID)
		}
		if dim == 0 {
			dim = len(r.Embedding)
		}
		if len(r.Embedding) != dim {
			return fmt.Errorf("vector dimension mismatch: %d vs %d", len(r.Embedding), dim)
		}
	}
	s.dimension = dim
	for _, r := range records {
		if i, ok := s.index[r.ID]; ok {
			s.records[i] = r
			continue
		}
		s.index[r.ID] = len(s.records)
		s.records = append(s.records, r)
	}
	return nil
}

func (s *Storage) Nearest(_ context.Context, query []float32, k int, filter domain.Filter) ([]domain.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return vectorstore.Nearest(s.records, query, k, filter)
}

func (s *Storage) All(context.Context) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Storage) Close() error { return nil }

var _ domain.VectorStore = (*Storage)(nil)
