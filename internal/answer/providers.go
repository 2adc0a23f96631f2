package answer

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	"google.golang.org/genai"

	"kbrag/internal/domain"
)

const (
	DefaultGeminiModel = "gemini-1.5-flash"
	DefaultOpenAIModel = "gpt-4o-mini"
)

// ProviderConfig selects the remote model.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Options Options
}

// NewGemini answers with Google Gemini.
func NewGemini(ctx context.Context, cfg ProviderConfig) (*Chat, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is not set", domain.ErrConfiguration)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating gemini client: %v", domain.ErrConfiguration, err)
	}
	m, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client: client,
		Model:  cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating gemini model: %v", domain.ErrConfiguration, err)
	}
	return NewChat(m, cfg.Options), nil
}

// NewOpenAI answers with any OpenAI-compatible chat completion endpoint.
func NewOpenAI(ctx context.Context, cfg ProviderConfig) (*Chat, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: answering API key is not set", domain.ErrConfiguration)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	opts := cfg.Options.withDefaults()
	m, err := openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating chat model: %v", domain.ErrConfiguration, err)
	}
	return NewChat(m, opts), nil
}
