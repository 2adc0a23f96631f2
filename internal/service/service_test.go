package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"kbrag/internal/answer"
	"kbrag/internal/chunker"
	"kbrag/internal/domain"
	"kbrag/internal/metadata"
	"kbrag/internal/retrieval"
	"kbrag/internal/tokenizer"
	"kbrag/internal/vectorstore/memory"
)

// bagEmbedder maps text onto a small bag-of-words vector so that related
// texts land close together.
type bagEmbedder struct {
	calls int
	err   error
}

var bagVocab = []string{"project", "search", "engine", "rust", "compiler", "summary", "about", "skills"}

func (b *bagEmbedder) Name() string { return "bag" }

func (b *bagEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	lower := strings.ToLower(text)
	v := make([]float32, len(bagVocab)+1)
	for i, w := range bagVocab {
		v[i] = float32(strings.Count(lower, w))
	}
	v[len(bagVocab)] = 0.1
	return v, nil
}

func (b *bagEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := b.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type stubAnswerer struct {
	reply  string
	err    error
	prompt string
}

func (s *stubAnswerer) Answer(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.reply, s.err
}

type fakeResources struct {
	store    *memory.Storage
	embedder *bagEmbedder
	answerer domain.Answerer
	embedErr error
	stores   int
}

func newFakeResources() *fakeResources {
	return &fakeResources{store: memory.NewStorage(), embedder: &bagEmbedder{}, answerer: &stubAnswerer{reply: "ok"}}
}

func (f *fakeResources) Store(context.Context) (domain.VectorStore, error) {
	f.stores++
	return f.store, nil
}

func (f *fakeResources) Embedder(context.Context) (domain.Embedder, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.embedder, nil
}

func (f *fakeResources) Answerer(context.Context) (domain.Answerer, error) { return f.answerer, nil }

func writeKB(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return root
}

func longText(word string, n int) string {
	return strings.TrimSpace(strings.Repeat(word+" sentence with some filler words. ", n))
}

func defaultOptions(root string) IngestOptions {
	return IngestOptions{
		Root:        root,
		Collection:  "kb_docs",
		Policy:      chunker.Policy{WindowSize: 60, WindowOverlap: 10, MinSize: 20},
		StoreLayers: domain.NewLayerSet(domain.LayerSummary, domain.LayerWindow, domain.LayerSection),
	}
}

func newIngestor(res Resources) *Ingestor {
	return NewIngestor(res, tokenizer.NewRegexp(), zap.NewNop())
}

func TestDiscoverDocuments(t *testing.T) {
	root := writeKB(t, map[string]string{
		"b.md":               "x",
		"projects/a.md":      "x",
		"projects/notes.txt": "x",
		"about/deep/c.md":    "x",
	})
	got, err := DiscoverDocuments(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"about/deep/c.md", "b.md", "projects/a.md"}, got)

	_, err = DiscoverDocuments(filepath.Join(root, "missing"))
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestIngest(t *testing.T) {
	root := writeKB(t, map[string]string{
		"about/summary.md":   "---\ntitle: About\n---\nA short curated summary.",
		"projects/search.md": "---\ntitle: Search\ntags: [go]\n---\n# Search engine\n" + longText("search engine project", 12),
		"projects/empty.md":  "---\ntitle: Empty\n---\n   \n",
		"notes/short.md":     "tiny note",
	})
	res := newFakeResources()
	report, err := newIngestor(res).Ingest(context.Background(), defaultOptions(root))
	require.NoError(t, err)

	assert.Equal(t, 4, report.Files)
	assert.Equal(t, []string{"projects/empty.md"}, report.Skipped)
	assert.True(t, report.Written)
	assert.Equal(t, 1, report.ByLayer[domain.LayerSummary])
	assert.Greater(t, report.ByLayer[domain.LayerWindow], 0)
	assert.Equal(t, 0, report.ByLayer[domain.LayerFile])

	all, err := res.store.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.Stored, len(all))
	for _, r := range all {
		assert.NotEqual(t, "notes/short.md", r.Metadata.GetString(metadata.KeySourcePath))
		assert.NotEmpty(t, r.Embedding)
	}
}

func TestIngestLogsProgressFields(t *testing.T) {
	root := writeKB(t, map[string]string{
		"projects/search.md": "# Search engine\n" + longText("search engine project", 12),
	})
	core, logs := observer.New(zapcore.InfoLevel)
	_, err := NewIngestor(newFakeResources(), tokenizer.NewRegexp(), zap.New(core)).Ingest(context.Background(), defaultOptions(root))
	require.NoError(t, err)

	entries := logs.FilterMessage("ingest file").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(1), fields["n"])
	assert.Equal(t, int64(1), fields["total"])
	assert.Equal(t, "projects/search.md", fields["path"])
}

func TestIngestFallback(t *testing.T) {
	root := writeKB(t, map[string]string{"notes/short.md": "tiny note"})
	res := newFakeResources()
	opts := defaultOptions(root)
	opts.AllowFallback = true
	opts.Policy.AllowShortFiles = true

	report, err := newIngestor(res).Ingest(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, 1, report.Stored)

	all, _ := res.store.All(context.Background())
	require.Len(t, all, 1)
	m := all[0].Metadata
	assert.Equal(t, "fallback", m.GetString(metadata.KeyLayer))
	assert.Equal(t, "fallback", m.GetString(metadata.KeyRetrievalTier))
	assert.Equal(t, "4", m.GetString(metadata.KeyLayerRank))
	assert.Equal(t, "file", m.GetString(metadata.KeySourceLayer))
	assert.Equal(t, "true", m.GetString(metadata.KeyShortFileFallback))
}

func TestIngestNothingToWrite(t *testing.T) {
	root := writeKB(t, map[string]string{"notes/short.md": "tiny note"})
	res := newFakeResources()
	report, err := newIngestor(res).Ingest(context.Background(), defaultOptions(root))
	require.NoError(t, err)
	assert.False(t, report.Written)
	assert.Equal(t, 0, res.embedder.calls)
	assert.Equal(t, 0, res.stores)
}

func TestIngestConfigurationErrors(t *testing.T) {
	root := writeKB(t, map[string]string{"a.md": longText("project", 20)})

	t.Run("invalid collection", func(t *testing.T) {
		res := newFakeResources()
		opts := defaultOptions(root)
		opts.Collection = "ab"
		_, err := newIngestor(res).Ingest(context.Background(), opts)
		assert.True(t, errors.Is(err, domain.ErrConfiguration))
		assert.Equal(t, 0, res.embedder.calls)
		assert.Equal(t, 0, res.stores)
	})

	t.Run("missing root", func(t *testing.T) {
		res := newFakeResources()
		opts := defaultOptions(filepath.Join(root, "nope"))
		_, err := newIngestor(res).Ingest(context.Background(), opts)
		assert.True(t, errors.Is(err, domain.ErrConfiguration))
	})

	t.Run("missing credentials", func(t *testing.T) {
		res := newFakeResources()
		res.embedErr = domain.ErrConfiguration
		_, err := newIngestor(res).Ingest(context.Background(), defaultOptions(root))
		assert.True(t, errors.Is(err, domain.ErrConfiguration))
		assert.Equal(t, 0, res.stores)
	})
}

func TestIngestTransportFailureWritesNothing(t *testing.T) {
	root := writeKB(t, map[string]string{"a.md": longText("project", 20)})
	res := newFakeResources()
	require.NoError(t, res.store.Upsert(context.Background(), []domain.Record{{ID: "old", Embedding: []float32{1}}}))
	res.embedder.err = domain.ErrTransport

	opts := defaultOptions(root)
	opts.Reset = true
	_, err := newIngestor(res).Ingest(context.Background(), opts)
	assert.True(t, errors.Is(err, domain.ErrTransport))
	assert.Equal(t, 1, res.store.Len())
}

func TestIngestReset(t *testing.T) {
	root := writeKB(t, map[string]string{"a.md": longText("project", 20)})
	res := newFakeResources()
	require.NoError(t, res.store.Upsert(context.Background(), []domain.Record{{ID: "old", Embedding: []float32{1}}}))

	opts := defaultOptions(root)
	opts.Reset = true
	report, err := newIngestor(res).Ingest(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, report.Stored, res.store.Len())
}

func ingested(t *testing.T) *fakeResources {
	t.Helper()
	root := writeKB(t, map[string]string{
		"about/summary.md":   "I build search engines and compilers. This is the summary about me.",
		"projects/search.md": "# Search\n" + longText("search engine project", 12),
		"projects/rust.md":   "# Rust\n" + longText("rust compiler project", 12),
	})
	res := newFakeResources()
	_, err := newIngestor(res).Ingest(context.Background(), defaultOptions(root))
	require.NoError(t, err)
	return res
}

func TestRetrieve(t *testing.T) {
	res := ingested(t)
	r := NewRetriever(res, zap.NewNop())
	ctx := context.Background()

	got, err := r.Retrieve(ctx, RetrieveRequest{Query: "search engine", Options: retrieval.DefaultOptions()})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "projects/search.md", got[0].Metadata.GetString(metadata.KeySourcePath))
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Score, got[i].Score)
	}

	got, err = r.Retrieve(ctx, RetrieveRequest{Query: "give me a summary", AutoSummary: true, Options: retrieval.DefaultOptions()})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].LayerRank)

	got, err = r.Retrieve(ctx, RetrieveRequest{Query: "rust compiler", AutoTopic: true, Filter: domain.Filter{Layer: "section"}, Options: retrieval.DefaultOptions()})
	require.NoError(t, err)
	for _, s := range got {
		assert.Equal(t, "section", s.Metadata.GetString(metadata.KeyLayer))
	}

	_, err = r.Retrieve(ctx, RetrieveRequest{Query: "   "})
	assert.ErrorIs(t, err, ErrMissingQuery)
}

func TestAsk(t *testing.T) {
	res := ingested(t)
	stub := &stubAnswerer{reply: "I built a search engine."}
	res.answerer = stub

	got, err := NewAsker(res, retrieval.DefaultOptions(), zap.NewNop()).Ask(context.Background(), "  Which search engine project? ")
	require.NoError(t, err)
	assert.Equal(t, "I built a search engine.", got.Text)
	assert.NotEmpty(t, got.Sources)
	assert.True(t, strings.HasPrefix(stub.prompt, "Question: Which search engine project?\n\nContext:\n[projects/projects/"))
	for _, c := range got.Contexts {
		assert.Equal(t, "projects", c.Metadata.GetString(metadata.KeyTopic))
	}
}

func TestAskSensitiveWithoutEvidence(t *testing.T) {
	res := ingested(t)
	stub := &stubAnswerer{reply: "should not be used"}
	res.answerer = stub

	got, err := NewAsker(res, retrieval.DefaultOptions(), zap.NewNop()).Ask(context.Background(), "Do you offer visa sponsorship?")
	require.NoError(t, err)
	assert.Equal(t, answer.InPersonReply, got.Text)
	assert.Empty(t, got.Sources)
	assert.Empty(t, stub.prompt)
}

func TestAskSensitiveWithEvidence(t *testing.T) {
	res := ingested(t)
	stub := &stubAnswerer{reply: "No sponsorship is needed for the search engine."}
	res.answerer = stub

	got, err := NewAsker(res, retrieval.DefaultOptions(), zap.NewNop()).Ask(context.Background(), "Does the search engine project need visa sponsorship?")
	require.NoError(t, err)
	assert.Equal(t, stub.reply, got.Text)
	assert.NotEmpty(t, stub.prompt)
}

func TestAskTopicWithoutContexts(t *testing.T) {
	res := ingested(t)
	stub := &stubAnswerer{reply: "should not be used"}
	res.answerer = stub

	got, err := NewAsker(res, retrieval.DefaultOptions(), zap.NewNop()).Ask(context.Background(), "Any research papers?")
	require.NoError(t, err)
	assert.Equal(t, answer.NoDetailsReply, got.Text)
	assert.Empty(t, got.Contexts)
	assert.Empty(t, stub.prompt)
}

func TestAskEmptyAnswer(t *testing.T) {
	res := ingested(t)
	res.answerer = &stubAnswerer{err: domain.ErrEmptyResult}
	got, err := NewAsker(res, retrieval.DefaultOptions(), zap.NewNop()).Ask(context.Background(), "search")
	require.NoError(t, err)
	assert.Equal(t, answer.NotEnoughInformation, got.Text)

	res.answerer = &stubAnswerer{err: domain.ErrTransport}
	_, err = NewAsker(res, retrieval.DefaultOptions(), zap.NewNop()).Ask(context.Background(), "search")
	assert.True(t, errors.Is(err, domain.ErrTransport))
}
