package chunker

import (
	"regexp"
	"strings"

	"kbrag/internal/domain"
)

const (
	// PreambleTitle names text that precedes the first heading.
	PreambleTitle = "Section"
	// DocumentTitle names the single section of a body without headings.
	DocumentTitle = "Document"
)

var (
	headingLine = regexp.MustCompile(`^ {0,3}(#{1,6})(?:[ \t]+(.*?))?[ \t]*$`)
	closingHash = regexp.MustCompile(`[ \t]+#+$`)
	fenceLine   = regexp.MustCompile("^ {0,3}(```+|~~~+)")
)

// SplitSections breaks body at markdown headings of levels 1-6. Each
// section starts at its heading line and runs to the next heading.
// Headings inside fenced code blocks are ignored. A span holding nothing
// but headings and whitespace is carried into the following section, or
// appended to the last one at the end of the body, so concatenating the
// texts reconstructs the body.
func SplitSections(body string) []domain.Section {
	lines := strings.SplitAfter(body, "\n")

	type span struct {
		title   string
		text    strings.Builder
		content bool
	}
	var (
		spans   []*span
		cur     = &span{}
		fence   string
		heading bool
	)
	spans = append(spans, cur)
	for _, line := range lines {
		if line == "" {
			continue
		}
		bare := strings.TrimRight(line, "\r\n")
		title, isHeading := "", false
		if fence == "" {
			if m := fenceLine.FindStringSubmatch(bare); m != nil {
				fence = m[1][:3]
			} else if m := headingLine.FindStringSubmatch(bare); m != nil {
				title, isHeading = headingTitle(m[2]), true
			}
		} else if strings.HasPrefix(strings.TrimLeft(bare, " "), fence) {
			fence = ""
		}
		if isHeading {
			heading = true
			cur = &span{title: title}
			spans = append(spans, cur)
			cur.text.WriteString(line)
			continue
		}
		cur.text.WriteString(line)
		if strings.TrimSpace(line) != "" {
			cur.content = true
		}
	}

	if !heading {
		if strings.TrimSpace(body) == "" {
			return nil
		}
		return []domain.Section{{Title: DocumentTitle, Text: body, Index: 0}}
	}

	var (
		out          []domain.Section
		pending      string
		pendingTitle string
	)
	for i, s := range spans {
		title := s.title
		if i == 0 || title == "" {
			title = PreambleTitle
		}
		if !s.content {
			if pending == "" && s.text.Len() > 0 {
				pendingTitle = title
			}
			pending += s.text.String()
			continue
		}
		out = append(out, domain.Section{Title: title, Text: pending + s.text.String(), Index: len(out)})
		pending = ""
	}
	if pending != "" {
		if len(out) == 0 {
			return []domain.Section{{Title: pendingTitle, Text: pending, Index: 0}}
		}
		out[len(out)-1].Text += pending
	}
	return out
}

func headingTitle(raw string) string {
	t := closingHash.ReplaceAllString(strings.TrimSpace(raw), "")
	if strings.Trim(t, "#") == "" {
		return ""
	}
	return strings.TrimSpace(t)
}
