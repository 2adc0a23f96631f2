package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"kbrag/internal/domain"
)

const (
	FileName       = "kb.yaml"
	DefaultEnvFile = ".env"

	EnvOpenAIKey        = "OPENAI_API_KEY"
	EnvOpenAIEmbedModel = "OPENAI_EMBEDDING_MODEL"
	EnvGeminiKey        = "GEMINI_API_KEY"
	EnvGeminiModel      = "GEMINI_MODEL"

	defaultEmbedModel  = "text-embedding-3-small"
	defaultGeminiModel = "gemini-1.5-flash"
	defaultOpenAIModel = "gpt-4o-mini"
)

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	// Type is openai or compat.
	Type         string `yaml:"type"`
	Model        string `yaml:"model"`
	BaseURL      string `yaml:"base_url"`
	APIKeyEnv    string `yaml:"api_key_env"`
	TimeoutSecs  int    `yaml:"timeout_secs"`
	BatchSize    int    `yaml:"batch_size"`
	CacheSize    int    `yaml:"cache_size"`
	CacheTTLSecs int    `yaml:"cache_ttl_secs"`
}

// APIKey reads the key from the configured environment variable.
func (c EmbedderConfig) APIKey() string { return os.Getenv(c.APIKeyEnv) }

// AnswererConfig selects the answering service.
type AnswererConfig struct {
	// Type is gemini, openai or extractive.
	Type        string  `yaml:"type"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	System      string  `yaml:"system,omitempty"`
	// MaxSentences bounds the extractive answer.
	MaxSentences int `yaml:"max_sentences"`
}

func (c AnswererConfig) APIKey() string { return os.Getenv(c.APIKeyEnv) }

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	// Type is sqlite, memory, qdrant or export.
	Type       string        `yaml:"type"`
	PersistDir string        `yaml:"persist_dir"`
	Collection string        `yaml:"collection"`
	ExportPath string        `yaml:"export_path"`
	Qdrant     *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ChunkingConfig is the token policy of the layer builder.
type ChunkingConfig struct {
	Tokenizer     string `yaml:"tokenizer"`
	WindowSize    int    `yaml:"window_size_tokens"`
	WindowOverlap int    `yaml:"window_overlap_tokens"`
	MinSize       int    `yaml:"min_size_tokens"`
}

type IngestConfig struct {
	Root              string   `yaml:"root"`
	StoreLayers       []string `yaml:"store_layers"`
	AllowFileFallback bool     `yaml:"allow_file_fallback"`
	AllowShortFiles   bool     `yaml:"allow_short_files"`
}

type RetrievalConfig struct {
	TopK          int     `yaml:"top_k"`
	FetchK        int     `yaml:"fetch_k"`
	LayerBias     float64 `yaml:"layer_bias"`
	DisableDedupe bool    `yaml:"disable_dedupe"`
	AutoSummary   bool    `yaml:"auto_summary"`
}

type ServerConfig struct {
	Addr         string `yaml:"addr"`
	AllowOrigins string `yaml:"allow_origins"`
}

type LoggingConfig struct {
	File string `yaml:"file"`
	JSON bool   `yaml:"json"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Answerer    AnswererConfig    `yaml:"answerer"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Keys absent from the file keep their default values.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyConfigDefaults(cfg)
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", domain.ErrConfiguration, path, err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./kb.yaml first, then ~/.config/kb/config.yaml. If
// neither exists it returns defaults and an empty path.
func LoadDefault() (*AppConfig, string, error) {
	if _, err := os.Stat(FileName); err == nil {
		cfg, err := Load(FileName)
		return cfg, FileName, err
	}
	userPath, err := DefaultUserConfigPath()
	if err == nil {
		if _, statErr := os.Stat(userPath); statErr == nil {
			cfg, err := Load(userPath)
			return cfg, userPath, err
		}
	}
	cfg := Default()
	applyConfigDefaults(cfg)
	return cfg, "", nil
}

// LoadEnv loads a dotenv file without overriding variables that are already
// set. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: loading %s: %v", domain.ErrConfiguration, path, err)
	}
	return nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func DefaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "kb", "config.yaml"), nil
}

// Default returns the built-in configuration. Model names are left empty
// and resolved from the environment when the config is loaded.
func Default() *AppConfig {
	return &AppConfig{
		Embedder: EmbedderConfig{
			Type:         "openai",
			TimeoutSecs:  30,
			BatchSize:    64,
			CacheSize:    256,
			CacheTTLSecs: 600,
		},
		Answerer: AnswererConfig{
			Type:         "gemini",
			TimeoutSecs:  30,
			Temperature:  0.3,
			MaxTokens:    512,
			MaxSentences: 3,
		},
		VectorStore: VectorStoreConfig{
			Type:       "sqlite",
			PersistDir: "db",
			Collection: "kb_docs",
			ExportPath: filepath.Join("db", "kb_vectors.json"),
		},
		Chunking: ChunkingConfig{
			Tokenizer:     "regexp",
			WindowSize:    500,
			WindowOverlap: 100,
			MinSize:       150,
		},
		Ingest: IngestConfig{
			Root:        "kb",
			StoreLayers: []string{"summary", "window", "section"},
		},
		Retrieval: RetrievalConfig{TopK: 5, FetchK: 15, LayerBias: 0.15},
		Server:    ServerConfig{Addr: ":8080", AllowOrigins: "*"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	if cfg.Embedder.APIKeyEnv == "" {
		cfg.Embedder.APIKeyEnv = EnvOpenAIKey
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = envOr(EnvOpenAIEmbedModel, defaultEmbedModel)
	}

	if cfg.Answerer.Type == "" {
		cfg.Answerer.Type = "gemini"
	}
	switch cfg.Answerer.Type {
	case "gemini":
		if cfg.Answerer.APIKeyEnv == "" {
			cfg.Answerer.APIKeyEnv = EnvGeminiKey
		}
		if cfg.Answerer.Model == "" {
			cfg.Answerer.Model = envOr(EnvGeminiModel, defaultGeminiModel)
		}
	case "openai":
		if cfg.Answerer.APIKeyEnv == "" {
			cfg.Answerer.APIKeyEnv = EnvOpenAIKey
		}
		if cfg.Answerer.Model == "" {
			cfg.Answerer.Model = defaultOpenAIModel
		}
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "sqlite"
	}
	if cfg.Chunking.Tokenizer == "" {
		cfg.Chunking.Tokenizer = "regexp"
	}
	if cfg.Server.AllowOrigins == "" {
		cfg.Server.AllowOrigins = "*"
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
