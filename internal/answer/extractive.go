package answer

import (
	"context"
	"strings"

	"kbrag/internal/domain"
	"kbrag/internal/summarizer"
)

// Extractive answers offline by picking the context sentences that best
// cover the question.
type Extractive struct {
	summarizer   *summarizer.FrequencySummarizer
	maxSentences int
}

func NewExtractive(maxSentences int) *Extractive {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &Extractive{summarizer: summarizer.NewFrequencySummarizer(), maxSentences: maxSentences}
}

// AnswerGrounded picks the sentences of snippets that best match question.
func (e *Extractive) AnswerGrounded(_ context.Context, question string, snippets []string) (string, error) {
	var parts []string
	for _, s := range snippets {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "", domain.ErrEmptyResult
	}
	out := e.summarizer.Summarize(strings.Join(parts, " "), question, e.maxSentences)
	if strings.TrimSpace(out) == "" {
		return "", domain.ErrEmptyResult
	}
	return out, nil
}

// Answer summarizes a free-form prompt with no question bias. Callers that
// hold the contexts should go through Respond instead.
func (e *Extractive) Answer(ctx context.Context, prompt string) (string, error) {
	return e.AnswerGrounded(ctx, "", []string{prompt})
}

var (
	_ domain.Answerer = (*Extractive)(nil)
	_ Grounded        = (*Extractive)(nil)
)
