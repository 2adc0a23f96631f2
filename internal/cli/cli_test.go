package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbrag/internal/domain"
	"kbrag/internal/vectorstore/export"
)

var fakeVocab = []string{"search", "engine", "rust", "compiler", "summary", "project"}

// fakeEmbeddings serves the OpenAI embeddings shape with a bag-of-words
// vector over fakeVocab.
func fakeEmbeddings(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		lower := strings.ToLower(req.Input)
		vec := make([]float32, len(fakeVocab)+1)
		for i, word := range fakeVocab {
			vec[i] = float32(strings.Count(lower, word))
		}
		vec[len(fakeVocab)] = 0.1
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{{"embedding": vec}}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

type fixture struct {
	dir    string
	config string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	kb := filepath.Join(dir, "kb")
	files := map[string]string{
		"about/summary.md":   "---\ntitle: About me\n---\nI build search engines and compilers.",
		"projects/search.md": "---\ntitle: Search\n---\n# Search engine\n" + strings.Repeat("The search engine indexes markdown notes quickly. ", 10),
		"projects/rust.md":   "---\ntitle: Rust\n---\n# Compiler\n" + strings.Repeat("A rust compiler project with a small parser. ", 10),
	}
	for rel, body := range files {
		p := filepath.Join(kb, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}

	emb := fakeEmbeddings(t)
	cfg := `embedder:
  type: compat
  model: fake-embed
  base_url: ` + emb.URL + `
answerer:
  type: extractive
vector_store:
  type: sqlite
  persist_dir: ` + filepath.Join(dir, "db") + `
chunking:
  window_size_tokens: 40
  window_overlap_tokens: 8
  min_size_tokens: 5
ingest:
  root: ` + kb + `
`
	path := filepath.Join(dir, "kb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return fixture{dir: dir, config: path}
}

func (f fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, logs := new(bytes.Buffer), new(bytes.Buffer)
	root := NewRootCommand()
	root.SetOut(out)
	root.SetErr(logs)
	root.SetArgs(append([]string{"--config", f.config, "--env-file", filepath.Join(f.dir, "none.env")}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestIngestRetrieveAskExport(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "ingest")
	require.NoError(t, err)
	assert.Contains(t, out, "Stored ")
	assert.Contains(t, out, "summary=1")

	out, err = f.run(t, "retrieve", "search engine", "--json")
	require.NoError(t, err)
	var results []domain.Scored
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 5)
	assert.Equal(t, "projects/search.md", results[0].Metadata.GetString("source_path"))

	out, err = f.run(t, "retrieve", "rust compiler", "--layer", "section", "--top-k", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "[1] score=")
	assert.Contains(t, out, "layer=section")
	assert.Contains(t, out, "source=projects/rust.md section=Compiler")
	assert.NotContains(t, out, "[2]")

	out, err = f.run(t, "retrieve", "give me a summary", "--auto-summary", "--json")
	require.NoError(t, err)
	results = nil
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "summary", results[0].Metadata.GetString("layer"))

	out, err = f.run(t, "ask", "Which search engine project?")
	require.NoError(t, err)
	assert.Contains(t, out, "Sources:")
	assert.Contains(t, out, "Search (projects/search.md)")

	exportPath := filepath.Join(f.dir, "out", "kb_vectors.json")
	out, err = f.run(t, "export", "-o", exportPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported ")
	file, err := export.Read(exportPath)
	require.NoError(t, err)
	assert.Equal(t, "fake-embed", file.EmbeddingModel)
	assert.Equal(t, "kb_docs", file.Collection)
	assert.NotZero(t, file.Count)
}

func TestIngestRejectsUnknownLayer(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, "ingest", "--store-layers", "window,paragraph")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Contains(t, err.Error(), "paragraph")
}

func TestIngestRejectsBadCollection(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, "ingest", "--collection", "a")
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	_, statErr := os.Stat(filepath.Join(f.dir, "db"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRetrieveRejectsNegativeTopK(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, "retrieve", "rust", "--top-k=-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Contains(t, err.Error(), "top_k")

	_, err = f.run(t, "retrieve", "rust", "--fetch-k=-3")
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestServeRejectsNegativeTopK(t *testing.T) {
	f := newFixture(t)
	cfg, err := os.ReadFile(f.config)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.config, append(cfg, []byte("retrieval:\n  top_k: -2\n")...), 0o644))

	_, err = f.run(t, "serve", "--addr", "127.0.0.1:0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestRetrieveRequiresQuery(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, "retrieve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestVersion(t *testing.T) {
	out := new(bytes.Buffer)
	root := NewRootCommand()
	root.SetOut(out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "kb version dev\n", out.String())
}

func TestConfigCommand(t *testing.T) {
	f := newFixture(t)
	out, err := f.run(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "type: compat")
	assert.Contains(t, out, "collection: kb_docs")
}

func TestFlags(t *testing.T) {
	root := NewRootCommand()
	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	require.NotNil(t, serve.Flags().Lookup("vectors"))
	assert.Equal(t, ":8080", serve.Flags().Lookup("addr").DefValue)

	retrieve, _, err := root.Find([]string{"retrieve"})
	require.NoError(t, err)
	for _, name := range []string{"top-k", "fetch-k", "layer-bias", "topic", "doc-type", "layer", "retrieval-tier", "no-dedupe", "auto-summary", "json"} {
		assert.NotNil(t, retrieve.Flags().Lookup(name), name)
	}
}
