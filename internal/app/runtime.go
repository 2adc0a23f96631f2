// Package app holds the process-wide resources built from the config. Each
// resource is created at most once, on first use, and is read-only after.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"kbrag/internal/answer"
	"kbrag/internal/chunker"
	"kbrag/internal/config"
	"kbrag/internal/domain"
	"kbrag/internal/embedding"
	"kbrag/internal/embedding/compat"
	"kbrag/internal/embedding/openai"
	"kbrag/internal/retrieval"
	"kbrag/internal/service"
	"kbrag/internal/tokenizer"
	"kbrag/internal/vectorstore/export"
	"kbrag/internal/vectorstore/memory"
	"kbrag/internal/vectorstore/qdrant"
	"kbrag/internal/vectorstore/sqlite"
)

const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
	StoreQdrant = "qdrant"
	StoreExport = "export"
)

type Runtime struct {
	cfg *config.AppConfig
	log *zap.Logger

	storeOnce sync.Once
	store     domain.VectorStore
	storeErr  error

	embedOnce sync.Once
	embedder  domain.Embedder
	embedErr  error

	answerOnce sync.Once
	answerer   domain.Answerer
	answerErr  error
}

func New(cfg *config.AppConfig, log *zap.Logger) *Runtime {
	return &Runtime{cfg: cfg, log: log}
}

func (r *Runtime) Config() *config.AppConfig { return r.cfg }

func (r *Runtime) Logger() *zap.Logger { return r.log }

// Store opens the configured vector store.
func (r *Runtime) Store(ctx context.Context) (domain.VectorStore, error) {
	r.storeOnce.Do(func() {
		r.store, r.storeErr = r.openStore(ctx)
	})
	return r.store, r.storeErr
}

func (r *Runtime) openStore(ctx context.Context) (domain.VectorStore, error) {
	vs := r.cfg.VectorStore
	if err := domain.ValidateCollectionName(vs.Collection); err != nil {
		return nil, err
	}
	switch vs.Type {
	case StoreSQLite, "":
		return sqlite.Open(vs.PersistDir, vs.Collection)
	case StoreMemory:
		return memory.NewStorage(), nil
	case StoreQdrant:
		if vs.Qdrant == nil {
			return nil, fmt.Errorf("%w: qdrant config missing", domain.ErrConfiguration)
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        vs.Qdrant.URL,
			APIKey:     vs.Qdrant.APIKey,
			Collection: vs.Collection,
			Timeout:    seconds(vs.Qdrant.TimeoutSecs),
		})
	case StoreExport:
		f, err := export.Read(vs.ExportPath)
		if err != nil {
			return nil, err
		}
		if f.EmbeddingModel != "" && f.EmbeddingModel != r.cfg.Embedder.Model {
			r.log.Warn("vectors were embedded with a different model",
				zap.String("file_model", f.EmbeddingModel),
				zap.String("configured_model", r.cfg.Embedder.Model))
		}
		st := memory.NewStorage()
		if err := st.Upsert(ctx, f.Records()); err != nil {
			return nil, fmt.Errorf("%w: loading %s: %v", domain.ErrSourceData, vs.ExportPath, err)
		}
		r.log.Info("loaded vectors", zap.String("path", vs.ExportPath), zap.Int("count", st.Len()))
		return st, nil
	}
	return nil, fmt.Errorf("%w: unknown vector store: %s", domain.ErrConfiguration, vs.Type)
}

// Embedder builds the configured embedder, wrapped in the query cache when
// cache_size is positive.
func (r *Runtime) Embedder(ctx context.Context) (domain.Embedder, error) {
	r.embedOnce.Do(func() {
		r.embedder, r.embedErr = r.newEmbedder(ctx)
	})
	return r.embedder, r.embedErr
}

func (r *Runtime) newEmbedder(ctx context.Context) (domain.Embedder, error) {
	ec := r.cfg.Embedder
	var (
		emb domain.Embedder
		err error
	)
	switch ec.Type {
	case "openai", "":
		emb, err = openai.New(ctx, openai.Config{
			APIKey:    ec.APIKey(),
			BaseURL:   ec.BaseURL,
			Model:     ec.Model,
			Timeout:   seconds(ec.TimeoutSecs),
			BatchSize: ec.BatchSize,
		})
	case "compat":
		emb, err = compat.NewClient(compat.Config{
			BaseURL: ec.BaseURL,
			APIKey:  ec.APIKey(),
			Model:   ec.Model,
			Timeout: seconds(ec.TimeoutSecs),
		})
	default:
		return nil, fmt.Errorf("%w: unknown embedder: %s", domain.ErrConfiguration, ec.Type)
	}
	if err != nil {
		return nil, err
	}
	if ec.CacheSize > 0 {
		emb = embedding.NewCached(emb, ec.CacheSize, seconds(ec.CacheTTLSecs))
	}
	return emb, nil
}

// Answerer builds the configured answering service.
func (r *Runtime) Answerer(ctx context.Context) (domain.Answerer, error) {
	r.answerOnce.Do(func() {
		r.answerer, r.answerErr = r.newAnswerer(ctx)
	})
	return r.answerer, r.answerErr
}

func (r *Runtime) newAnswerer(ctx context.Context) (domain.Answerer, error) {
	ac := r.cfg.Answerer
	pc := answer.ProviderConfig{
		APIKey:  ac.APIKey(),
		BaseURL: ac.BaseURL,
		Model:   ac.Model,
		Options: answer.Options{
			System:      ac.System,
			Temperature: ac.Temperature,
			MaxTokens:   ac.MaxTokens,
			Timeout:     seconds(ac.TimeoutSecs),
		},
	}
	switch ac.Type {
	case "gemini", "":
		return answer.NewGemini(ctx, pc)
	case "openai":
		return answer.NewOpenAI(ctx, pc)
	case "extractive":
		return answer.NewExtractive(ac.MaxSentences), nil
	}
	return nil, fmt.Errorf("%w: unknown answerer: %s", domain.ErrConfiguration, ac.Type)
}

// Tokenizer returns the tokenizer named by chunking.tokenizer.
func (r *Runtime) Tokenizer() (domain.Tokenizer, error) {
	return tokenizer.New(r.cfg.Chunking.Tokenizer)
}

// IngestOptions maps the ingest and chunking sections.
func (r *Runtime) IngestOptions() (service.IngestOptions, error) {
	layers, err := domain.ParseLayerSet(r.cfg.Ingest.StoreLayers)
	if err != nil {
		return service.IngestOptions{}, err
	}
	return service.IngestOptions{
		Root:       r.cfg.Ingest.Root,
		Collection: r.cfg.VectorStore.Collection,
		Policy: chunker.Policy{
			WindowSize:      r.cfg.Chunking.WindowSize,
			WindowOverlap:   r.cfg.Chunking.WindowOverlap,
			MinSize:         r.cfg.Chunking.MinSize,
			AllowShortFiles: r.cfg.Ingest.AllowShortFiles,
		},
		StoreLayers:   layers,
		AllowFallback: r.cfg.Ingest.AllowFileFallback,
	}, nil
}

// RetrievalOptions maps the retrieval section. Negative counts are a
// configuration error.
func (r *Runtime) RetrievalOptions() (retrieval.Options, error) {
	rc := r.cfg.Retrieval
	opts := retrieval.Options{
		TopK:      rc.TopK,
		FetchK:    rc.FetchK,
		LayerBias: rc.LayerBias,
		Dedupe:    !rc.DisableDedupe,
	}
	return opts, opts.Validate()
}

// Close releases the store if it was opened.
func (r *Runtime) Close() error {
	if r.store == nil || r.storeErr != nil {
		return nil
	}
	return r.store.Close()
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

var _ service.Resources = (*Runtime)(nil)
