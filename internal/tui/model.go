package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"kbrag/internal/domain"
	"kbrag/internal/metadata"
)

// SearchFunc runs one ranked retrieval.
type SearchFunc func(ctx context.Context, query string) ([]domain.Scored, error)

type resultsMsg struct {
	query   string
	results []domain.Scored
	err     error
}

// Model is the Bubble Tea model of the result browser.
type Model struct {
	search    SearchFunc
	input     textinput.Model
	viewport  viewport.Model
	markdown  *glamour.TermRenderer
	results   []domain.Scored
	subtitle  string
	status    string
	cursor    int
	ready     bool
	searching bool
	lastQuery string
}

// New creates the browser. subtitle is shown under the header.
func New(search SearchFunc, subtitle string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type query and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{search: search, input: ti, viewport: vp, subtitle: subtitle, status: "Ready. Type to search."}
}

var newMarkdownRenderer = func(width int) (*glamour.TermRenderer, error) {
	return glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) runSearch(q string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.search(context.Background(), q)
		return resultsMsg{query: q, results: res, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// frames around the result and query boxes
		rw, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + subtitle, status, spacer
		m.viewport.Width = max(20, msg.Width-rw)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		r, err := newMarkdownRenderer(max(20, m.viewport.Width-2))
		if err != nil {
			// results are shown as plain text
			m.markdown = nil
			m.status = "Markdown rendering unavailable: " + err.Error()
		} else {
			m.markdown = r
		}
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case resultsMsg:
		m.searching = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.results = nil
		} else {
			m.status = fmt.Sprintf("%d results for %q", len(msg.results), msg.query)
			m.results = msg.results
			m.cursor = 0
			m.lastQuery = msg.query
		}
		m.viewport.SetContent(m.renderCurrentResult())
		m.viewport.GotoTop()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.searching {
				m.searching = true
				m.status = fmt.Sprintf("Searching %q...", q)
				return m, m.runSearch(q)
			}
		case "down", "tab":
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				m.viewport.GotoTop()
				return m, nil
			}
		case "up", "shift+tab":
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				m.viewport.GotoTop()
				return m, nil
			}
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Knowledge Base")
	subtitle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.subtitle)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + subtitle + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrentResult() string {
	if len(m.results) == 0 {
		return "No results yet."
	}
	r := m.results[m.cursor]
	title := fmt.Sprintf("Result %d/%d  score=%.4f  dist=%.4f  layer=%s",
		m.cursor+1, len(m.results), r.Score, r.Distance, r.Metadata.GetString(metadata.KeyLayer))
	source := metaStyle.Render(fmt.Sprintf("source=%s  section=%s  topic=%s",
		r.Metadata.GetString(metadata.KeySourcePath),
		r.Metadata.GetString(metadata.KeySectionTitle),
		r.Metadata.GetString(metadata.KeyTopic)))

	body := emphasizeBestSentence(r.Content, m.lastQuery)
	if m.markdown == nil {
		return titleStyle.Render(title) + "\n" + source + "\n" + body
	}
	if out, err := m.markdown.Render(body); err == nil {
		body = out
	}
	return titleStyle.Render(title) + "\n" + source + "\n" + body
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	metaStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`[^.!?\n]+[.!?]`)
)

// emphasizeBestSentence bolds the sentence sharing the most words with the
// query. Markdown structure outside that sentence is left alone.
func emphasizeBestSentence(text, query string) string {
	qTokens := toTokenSet(query)
	if strings.TrimSpace(text) == "" || len(qTokens) == 0 {
		return text
	}
	locs := sentenceRe.FindAllStringIndex(text, -1)
	best, bestScore := -1, 0
	for i, loc := range locs {
		if score := tokenOverlapScore(qTokens, text[loc[0]:loc[1]]); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return text
	}
	start, end := locs[best][0], locs[best][1]
	sentence := text[start:end]
	trimmed := strings.TrimLeft(sentence, " \t")
	start += len(sentence) - len(trimmed)
	return text[:start] + "**" + text[start:end] + "**" + text[end:]
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
