package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbrag/internal/domain"
	"kbrag/internal/metadata"
)

func scored(content, layer string, score float64) domain.Scored {
	return domain.Scored{
		Score:    score,
		Content:  content,
		Metadata: metadata.Metadata{metadata.KeyLayer: metadata.String(layer), metadata.KeySourcePath: metadata.String("projects/a.md")},
	}
}

func TestEmphasizeBestSentence(t *testing.T) {
	text := "I like tea. The search engine indexes markdown. Bye."
	got := emphasizeBestSentence(text, "search engine")
	assert.Equal(t, "I like tea. **The search engine indexes markdown.** Bye.", got)

	assert.Equal(t, text, emphasizeBestSentence(text, ""))
	assert.Equal(t, text, emphasizeBestSentence(text, "unrelated"))
}

func TestSearchFlow(t *testing.T) {
	var asked string
	m := New(func(_ context.Context, q string) ([]domain.Scored, error) {
		asked = q
		return []domain.Scored{scored("first", "window", 0.1), scored("second", "section", 0.2)}, nil
	}, "kb_docs")

	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	m = next.(Model)
	assert.Contains(t, m.View(), "No results yet.")

	m.input.SetValue("  rust  ")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.searching)

	next, _ = m.Update(cmd())
	m = next.(Model)
	assert.Equal(t, "rust", asked)
	require.Len(t, m.results, 2)
	assert.Contains(t, m.renderCurrentResult(), "layer=window")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Equal(t, 1, m.cursor)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Equal(t, 0, m.cursor)
}

func TestSearchError(t *testing.T) {
	m := New(func(context.Context, string) ([]domain.Scored, error) {
		return nil, errors.New("boom")
	}, "")
	next, _ := m.Update(resultsMsg{query: "x", err: errors.New("boom")})
	m = next.(Model)
	assert.Equal(t, "Error: boom", m.status)
	assert.Empty(t, m.results)
}

func TestMarkdownRendererFailure(t *testing.T) {
	orig := newMarkdownRenderer
	t.Cleanup(func() { newMarkdownRenderer = orig })
	newMarkdownRenderer = func(int) (*glamour.TermRenderer, error) {
		return nil, errors.New("no style")
	}

	m := New(nil, "")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	m = next.(Model)
	assert.Nil(t, m.markdown)
	assert.Equal(t, "Markdown rendering unavailable: no style", m.status)

	next, _ = m.Update(resultsMsg{query: "rust", results: []domain.Scored{scored("Rust **compiler** notes", "window", 0.1)}})
	m = next.(Model)
	assert.Contains(t, m.renderCurrentResult(), "Rust **compiler** notes")
}
