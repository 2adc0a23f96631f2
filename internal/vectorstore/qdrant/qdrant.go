package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"kbrag/internal/domain"
	"kbrag/internal/metadata"
)

// Storage is a minimal REST client to Qdrant.
// It assumes cosine distance and creates the collection on first upsert.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu      sync.Mutex
	ensured bool
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

const scrollPage = 256

var errNotFound = errors.New("not found")

func NewStorage(cfg Config) (*Storage, error) {
	if err := domain.ValidateCollectionName(cfg.Collection); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: qdrant url is empty", domain.ErrConfiguration)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

type payload struct {
	Content  string            `json:"content"`
	Metadata metadata.Metadata `json:"metadata"`
}

type point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector,omitempty"`
	Payload payload   `json:"payload"`
}

func (s *Storage) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

func (s *Storage) ensureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}
	err := s.do(ctx, http.MethodGet, s.collectionURL(), nil, nil)
	if errors.Is(err, errNotFound) {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": "Cosine",
			},
		}
		err = s.do(ctx, http.MethodPut, s.collectionURL(), body, nil)
	}
	if err != nil {
		return err
	}
	s.ensured = true
	return nil
}

// Reset drops the collection; the next upsert recreates it.
func (s *Storage) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.ensured = false
	s.mu.Unlock()
	err := s.do(ctx, http.MethodDelete, s.collectionURL(), nil, nil)
	if errors.Is(err, errNotFound) {
		return nil
	}
	return err
}

func (s *Storage) Upsert(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, len(records[0].Embedding)); err != nil {
		return err
	}
	points := make([]point, len(records))
	for i, r := range records {
		points[i] = point{
			ID:      pointID(r.ID),
			Vector:  r.Embedding,
			Payload: payload{Content: r.Content, Metadata: r.Metadata},
		}
	}
	return s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", map[string]any{"points": points}, nil)
}

func (s *Storage) Nearest(ctx context.Context, query []float32, k int, filter domain.Filter) ([]domain.Candidate, error) {
	if k <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       query,
		"limit":        k,
		"with_payload": true,
	}
	if f := mustFilter(filter); f != nil {
		req["filter"] = f
	}
	var resp struct {
		Result []struct {
			ID      any     `json:"id"`
			Score   float64 `json:"score"`
			Payload payload `json:"payload"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]domain.Candidate, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, domain.Candidate{
			Record: domain.Record{
				ID:       fmt.Sprint(r.ID),
				Content:  r.Payload.Content,
				Metadata: r.Payload.Metadata,
			},
			// cosine score is a similarity
			Distance: 1 - r.Score,
		})
	}
	return out, nil
}

// All scrolls the whole collection. Qdrant orders points by id, not by
// insertion.
func (s *Storage) All(ctx context.Context) ([]domain.Record, error) {
	var (
		out    []domain.Record
		offset any
	)
	for {
		req := map[string]any{
			"limit":        scrollPage,
			"with_payload": true,
			"with_vector":  true,
		}
		if offset != nil {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points []struct {
					ID      any       `json:"id"`
					Vector  []float32 `json:"vector"`
					Payload payload   `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/scroll", req, &resp)
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		for _, p := range resp.Result.Points {
			out = append(out, domain.Record{
				ID:        fmt.Sprint(p.ID),
				Content:   p.Payload.Content,
				Metadata:  p.Payload.Metadata,
				Embedding: p.Vector,
			})
		}
		if resp.Result.NextPageOffset == nil {
			return out, nil
		}
		offset = resp.Result.NextPageOffset
	}
}

func (s *Storage) Close() error { return nil }

func mustFilter(f domain.Filter) map[string]any {
	terms := f.Terms()
	if len(terms) == 0 {
		return nil
	}
	must := make([]map[string]any, len(terms))
	for i, t := range terms {
		must[i] = map[string]any{
			"key":   "metadata." + t.Key,
			"match": map[string]any{"value": t.Value},
		}
	}
	return map[string]any{"must": must}
}

// pointID keeps uuid ids and maps anything else onto one, since Qdrant
// accepts only uuids and unsigned integers.
func pointID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String()
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: qdrant %s %s: %v", domain.ErrTransport, method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: qdrant %s %s failed: %s %s", domain.ErrTransport, method, url, resp.Status, bytes.TrimSpace(msg))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

var _ domain.VectorStore = (*Storage)(nil)
