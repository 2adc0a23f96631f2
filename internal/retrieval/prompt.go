package retrieval

import (
	"fmt"
	"strings"

	"kbrag/internal/chunker"
	"kbrag/internal/domain"
	"kbrag/internal/metadata"
)

const (
	QuestionPrefix = "Question: "
	ContextHeader  = "Context:\n"
	Instruction    = "Answer clearly and concisely, grounded only in the context."
)

// Label names a context snippet as topic/source_path, plus " :: section"
// when a section title is present.
func Label(m metadata.Metadata) string {
	topic := m.GetString(metadata.KeyTopic)
	if topic == "" {
		topic = chunker.DefaultTopic
	}
	label := topic + "/" + m.GetString(metadata.KeySourcePath)
	if section := m.GetString(metadata.KeySectionTitle); section != "" {
		label += " :: " + section
	}
	return label
}

// BuildPrompt formats the ranked contexts into the single user prompt.
func BuildPrompt(query string, contexts []domain.Scored) string {
	parts := Snippets(contexts)
	for i, c := range contexts {
		parts[i] = fmt.Sprintf("[%s] %s", Label(c.Metadata), parts[i])
	}
	return QuestionPrefix + query + "\n\n" +
		ContextHeader + strings.Join(parts, "\n") + "\n\n" +
		Instruction
}

// Snippets returns the whitespace-normalized content of each context, in
// rank order.
func Snippets(contexts []domain.Scored) []string {
	out := make([]string, len(contexts))
	for i, c := range contexts {
		out[i] = chunker.NormalizeWhitespace(c.Content)
	}
	return out
}

// Sources lists "title (source_path)" per context, in rank order.
func Sources(contexts []domain.Scored) []string {
	out := make([]string, len(contexts))
	for i, c := range contexts {
		source := c.Metadata.GetString(metadata.KeySourcePath)
		if source == "" {
			source = chunker.DefaultTopic
		}
		title := c.Metadata.GetString(metadata.KeyTitle)
		if title == "" {
			title = c.Metadata.GetString(metadata.KeySectionTitle)
		}
		if title == "" {
			title = "Context"
		}
		out[i] = fmt.Sprintf("%s (%s)", title, source)
	}
	return out
}
