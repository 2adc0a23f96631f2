package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"kbrag/internal/chunker"
	"kbrag/internal/domain"
)

// DiscoverDocuments lists every markdown file under root, relative to root,
// in sorted order.
func DiscoverDocuments(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: kb_dir not found: %s", domain.ErrConfiguration, root)
	}
	matches, err := doublestar.Glob(os.DirFS(root), "**/*.md", doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", root, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// IngestOptions describe one full rebuild.
type IngestOptions struct {
	Root          string
	Collection    string
	Policy        chunker.Policy
	StoreLayers   domain.LayerSet
	AllowFallback bool
	// Reset empties the collection before writing. It only happens once all
	// embeddings succeeded.
	Reset bool
}

// IngestReport summarizes a run.
type IngestReport struct {
	Files   int
	Skipped []string
	Stored  int
	ByLayer map[domain.Layer]int
	Written bool
}

// Ingestor runs the ingestion pipeline.
type Ingestor struct {
	res Resources
	tok domain.Tokenizer
	log *zap.Logger
}

func NewIngestor(res Resources, tok domain.Tokenizer, log *zap.Logger) *Ingestor {
	return &Ingestor{res: res, tok: tok, log: log}
}

// Ingest parses, chunks, embeds and persists every document under
// opts.Root. Configuration problems abort before any embedding call. A
// document that cannot be read or has an empty body is skipped.
func (in *Ingestor) Ingest(ctx context.Context, opts IngestOptions) (IngestReport, error) {
	report := IngestReport{ByLayer: map[domain.Layer]int{}}

	if err := domain.ValidateCollectionName(opts.Collection); err != nil {
		return report, err
	}
	if len(opts.StoreLayers) == 0 {
		return report, fmt.Errorf("%w: no layers selected", domain.ErrConfiguration)
	}
	builder, err := chunker.NewBuilder(in.tok, opts.Policy)
	if err != nil {
		return report, err
	}
	for _, w := range opts.Policy.Warnings() {
		in.log.Warn(w)
	}
	paths, err := DiscoverDocuments(opts.Root)
	if err != nil {
		return report, err
	}
	embedder, err := in.res.Embedder(ctx)
	if err != nil {
		return report, err
	}

	report.Files = len(paths)
	in.log.Info("processing markdown files", zap.Int("count", len(paths)))
	var pending []domain.Chunk
	for i, rel := range paths {
		in.log.Info("ingest file", zap.Int("n", i+1), zap.Int("total", len(paths)), zap.String("path", rel))
		chunks, raw, err := in.chunkFile(builder, opts, rel)
		if errors.Is(err, domain.ErrSourceData) {
			in.log.Warn("skipping document", zap.String("path", rel), zap.Error(err))
			report.Skipped = append(report.Skipped, rel)
			continue
		}
		if err != nil {
			return report, err
		}
		pending = append(pending, chunks...)
		in.log.Info("loaded",
			zap.String("path", rel),
			zap.Int("raw", raw),
			zap.Int("stored", len(chunks)))
	}

	in.log.Info("total chunks", zap.Int("count", len(pending)))
	if len(pending) == 0 {
		in.log.Warn("no chunks to store", zap.String("root", opts.Root))
		return report, nil
	}

	texts := make([]string, len(pending))
	for i, c := range pending {
		texts[i] = c.Content
	}
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return report, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(vectors) != len(pending) {
		return report, fmt.Errorf("%w: got %d embeddings for %d chunks", domain.ErrTransport, len(vectors), len(pending))
	}
	records := make([]domain.Record, len(pending))
	for i, c := range pending {
		records[i] = c.Record(vectors[i])
		report.ByLayer[c.Layer]++
	}

	store, err := in.res.Store(ctx)
	if err != nil {
		return report, err
	}
	if opts.Reset {
		in.log.Warn("resetting collection", zap.String("collection", opts.Collection))
		if err := store.Reset(ctx); err != nil {
			return report, err
		}
	}
	if err := store.Upsert(ctx, records); err != nil {
		return report, fmt.Errorf("writing chunks: %w", err)
	}
	report.Stored = len(records)
	report.Written = true
	in.log.Info("stored chunks", zap.Int("count", len(records)), zap.String("collection", opts.Collection))
	return report, nil
}

// chunkFile builds the chunks of one document, keeps the requested layers
// and falls back to the file chunk when nothing else survives. raw is the
// number of chunks built before filtering.
func (in *Ingestor) chunkFile(builder *chunker.Builder, opts IngestOptions, rel string) ([]domain.Chunk, int, error) {
	data, err := os.ReadFile(filepath.Join(opts.Root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrSourceData, err)
	}
	doc, malformed := chunker.ParseDocument(rel, string(data))
	if malformed {
		in.log.Warn("malformed frontmatter ignored", zap.String("path", rel))
	}
	if strings.TrimSpace(doc.Body) == "" {
		return nil, 0, fmt.Errorf("%w: empty body", domain.ErrSourceData)
	}

	all := builder.Build(doc)
	var kept []domain.Chunk
	for _, c := range all {
		if opts.StoreLayers.Has(c.Layer) {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 && opts.AllowFallback {
		for _, c := range all {
			if c.Layer == domain.LayerFile {
				kept = append(kept, c.AsFallback())
				break
			}
		}
	}
	return kept, len(all), nil
}
