package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbrag/internal/domain"
	"kbrag/internal/metadata"
)

type fakeQdrant struct {
	mu       sync.Mutex
	calls    []string
	created  bool
	search   map[string]any
	upserted []map[string]any
}

func (f *fakeQdrant) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/collections/kb_docs":
			if !f.created {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(`{"result":{}}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/kb_docs":
			f.created = true
			_, _ = w.Write([]byte(`{"result":true}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/kb_docs/points":
			var req struct {
				Points []map[string]any `json:"points"`
			}
			assert.NoError(t, json.Unmarshal(body, &req))
			f.upserted = append(f.upserted, req.Points...)
			_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/collections/kb_docs/points/search":
			assert.NoError(t, json.Unmarshal(body, &f.search))
			_, _ = w.Write([]byte(`{"result":[
				{"id":"p1","score":0.9,"payload":{"content":"hello","metadata":{"layer":"window","layer_rank":1}}},
				{"id":"p2","score":0.5,"payload":{"content":"world","metadata":{"layer":"file"}}}
			]}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}

func TestStorage(t *testing.T) {
	fake := &fakeQdrant{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	s, err := NewStorage(Config{URL: srv.URL + "/", Collection: "kb_docs"})
	require.NoError(t, err)
	ctx := context.Background()

	rec := domain.Record{
		ID:        "not-a-uuid",
		Content:   "hello",
		Metadata:  metadata.Metadata{metadata.KeyLayer: metadata.String("window")},
		Embedding: []float32{1, 0},
	}
	require.NoError(t, s.Upsert(ctx, []domain.Record{rec}))
	require.NoError(t, s.Upsert(ctx, []domain.Record{rec}))
	assert.Equal(t, []string{
		"GET /collections/kb_docs",
		"PUT /collections/kb_docs",
		"PUT /collections/kb_docs/points",
		"PUT /collections/kb_docs/points",
	}, fake.calls)
	require.Len(t, fake.upserted, 2)
	assert.Equal(t, pointID("not-a-uuid"), fake.upserted[0]["id"])

	got, err := s.Nearest(ctx, []float32{1, 0}, 2, domain.Filter{Topic: "projects"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.1, got[0].Distance, 1e-9)
	assert.Equal(t, "window", got[0].Metadata.GetString(metadata.KeyLayer))
	assert.Equal(t, "hello", got[0].Content)

	filter := fake.search["filter"].(map[string]any)
	must := filter["must"].([]any)
	require.Len(t, must, 1)
	assert.Equal(t, "metadata.topic", must[0].(map[string]any)["key"])
}

func TestStorageErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, err := NewStorage(Config{URL: srv.URL, Collection: "kb_docs"})
	require.NoError(t, err)
	_, err = s.Nearest(context.Background(), []float32{1}, 3, domain.Filter{})
	assert.True(t, errors.Is(err, domain.ErrTransport))

	_, err = NewStorage(Config{URL: srv.URL, Collection: "x"})
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestPointID(t *testing.T) {
	id := "6f1d0c7e-3b9a-5d42-9c1e-8a7b2f4e6d10"
	assert.Equal(t, id, pointID(id))
	assert.Equal(t, pointID("abc"), pointID("abc"))
	assert.NotEqual(t, pointID("abc"), pointID("abd"))
}
