// Package frontmatter splits a markdown document into its YAML header and body.
package frontmatter

import (
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	delimiter = "---"
	bom       = "\ufeff"
)

// Parse returns the frontmatter mapping and the body. A header that is not
// valid YAML, or is not a mapping, yields an empty mapping and malformed is
// set; the body is still returned without the header. Text without an
// opening delimiter is returned verbatim apart from a leading byte order mark.
func Parse(text string) (meta map[string]any, body string, malformed bool) {
	meta = map[string]any{}
	text = strings.TrimPrefix(text, bom)
	header, rest, ok := split(text)
	if !ok {
		return meta, text, false
	}
	var raw any
	if err := yaml.Unmarshal([]byte(header), &raw); err != nil {
		return meta, rest, true
	}
	switch m := raw.(type) {
	case nil:
	case map[string]any:
		meta = m
	default:
		malformed = true
	}
	return meta, rest, malformed
}

// Strip removes the frontmatter block, if any, and returns the body.
func Strip(text string) string {
	text = strings.TrimPrefix(text, bom)
	if _, rest, ok := split(text); ok {
		return rest
	}
	return text
}

// split locates the delimited header. The body after the closing delimiter
// has its leading whitespace trimmed.
func split(text string) (header, body string, ok bool) {
	first, after, found := strings.Cut(text, "\n")
	if !found || strings.TrimRight(first, " \t\r") != delimiter {
		return "", "", false
	}
	lines := strings.SplitAfter(after, "\n")
	offset := 0
	for _, line := range lines {
		if strings.TrimRight(line, " \t\r\n") == delimiter {
			header = after[:offset]
			body = strings.TrimLeft(after[offset+len(line):], " \t\r\n")
			return header, body, true
		}
		offset += len(line)
	}
	return "", "", false
}
