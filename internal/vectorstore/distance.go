// Package vectorstore holds the helpers shared by the store implementations
// in its subpackages.
package vectorstore

import (
	"fmt"
	"math"
	"sort"

	"kbrag/internal/domain"
)

// CosineDistance returns 1 - cosine similarity, in [0, 2]. A zero-magnitude
// vector is treated as orthogonal to everything.
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		va, vb := float64(a[i]), float64(b[i])
		dot += va * vb
		na += va * va
		nb += vb * vb
	}
	if na == 0 || nb == 0 {
		return 1, nil
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
}

// Nearest scores every record against query and returns the k closest that
// match filter. Ties keep the input order.
func Nearest(records []domain.Record, query []float32, k int, filter domain.Filter) ([]domain.Candidate, error) {
	if k <= 0 {
		return nil, nil
	}
	out := make([]domain.Candidate, 0, len(records))
	for _, r := range records {
		if !filter.Matches(r.Metadata) {
			continue
		}
		d, err := CosineDistance(query, r.Embedding)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", r.ID, err)
		}
		out = append(out, domain.Candidate{Record: r, Distance: d})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}
