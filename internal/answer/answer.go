// Package answer produces the final text answer from a grounded prompt.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"kbrag/internal/domain"
	"kbrag/internal/retrieval"
)

const (
	// SystemInstruction is sent with every prompt.
	SystemInstruction = "You are a portfolio assistant. " +
		"Answer only from the provided context. " +
		"If the answer is not in context, say you don't have that information. " +
		"Be recruiter-friendly and concise."

	// NotEnoughInformation replaces an empty answer.
	NotEnoughInformation = "I don't have enough information to answer that."
	// InPersonReply answers a sensitive question the contexts do not cover.
	InPersonReply = "I'd prefer to discuss those details in person during our conversation."
	// NoDetailsReply answers a topic question that retrieved nothing.
	NoDetailsReply = "I don't have details about that in my portfolio yet, but I'd be happy to discuss it."

	DefaultTemperature = 0.3
	DefaultMaxTokens   = 512
	DefaultTimeout     = 30 * time.Second
)

// Options tune a chat answerer. Zero values select the defaults.
type Options struct {
	System      string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

func (o Options) withDefaults() Options {
	if o.System == "" {
		o.System = SystemInstruction
	}
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Chat answers through an eino chat model with one system and one user
// message.
type Chat struct {
	model model.BaseChatModel
	opts  Options
}

func NewChat(m model.BaseChatModel, opts Options) *Chat {
	return &Chat{model: m, opts: opts.withDefaults()}
}

// Answer makes a single bounded call. A blank reply is ErrEmptyResult.
func (c *Chat) Answer(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	msg, err := c.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(c.opts.System),
		schema.UserMessage(prompt),
	}, model.WithTemperature(c.opts.Temperature), model.WithMaxTokens(c.opts.MaxTokens))
	if err != nil {
		return "", fmt.Errorf("%w: answering service: %v", domain.ErrTransport, err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", domain.ErrEmptyResult
	}
	return strings.TrimSpace(msg.Content), nil
}

// Grounded is implemented by answerers that work from the question and the
// context snippets rather than a rendered prompt.
type Grounded interface {
	AnswerGrounded(ctx context.Context, question string, snippets []string) (string, error)
}

// Respond hands question and contexts to a. A Grounded answerer receives them
// as-is; any other answerer gets the prompt built by retrieval.BuildPrompt.
func Respond(ctx context.Context, a domain.Answerer, question string, contexts []domain.Scored) (string, error) {
	if g, ok := a.(Grounded); ok {
		return g.AnswerGrounded(ctx, question, retrieval.Snippets(contexts))
	}
	return a.Answer(ctx, retrieval.BuildPrompt(question, contexts))
}

// OrFallback maps ErrEmptyResult to the fixed NotEnoughInformation text.
func OrFallback(text string, err error) (string, error) {
	if errors.Is(err, domain.ErrEmptyResult) {
		return NotEnoughInformation, nil
	}
	return text, err
}

var _ domain.Answerer = (*Chat)(nil)
