package retrieval

import (
	"strings"
	"unicode"

	"kbrag/internal/domain"
)

// TopicRule maps any of its keywords to a topic.
type TopicRule struct {
	Keywords []string
	Topic    string
}

// TopicRules are evaluated in order; the first rule with a keyword contained
// in the lower-cased query wins.
var TopicRules = []TopicRule{
	{Keywords: []string{"project"}, Topic: "projects"},
	{Keywords: []string{"experience", "work", "job"}, Topic: "experience"},
	{Keywords: []string{"skill", "stack", "tool"}, Topic: "skills"},
	{Keywords: []string{"education", "degree", "university"}, Topic: "about"},
	{Keywords: []string{"research", "paper"}, Topic: "research"},
}

// SensitiveTriggers mark a query about personal matters that is only
// answered when the retrieved contexts cover it.
var SensitiveTriggers = []string{"visa", "sponsorship", "citizenship", "immigration"}

var evidenceStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {},
	"of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
}

// SummaryTriggers mark a query that asks for a whole-profile overview.
var SummaryTriggers = []string{
	"summarize",
	"summary",
	"overview",
	"who are you",
	"about you",
	"tell me about yourself",
	"background",
}

// Plan is what the planner infers from a query.
type Plan struct {
	// Topic is empty when no rule matched.
	Topic         string
	SummaryIntent bool
}

// PlanQuery runs both heuristics over the query.
func PlanQuery(query string) Plan {
	q := strings.ToLower(query)
	return Plan{Topic: InferTopic(q), SummaryIntent: IsSummaryIntent(q)}
}

// InferTopic returns the topic of the first matching rule, or "".
func InferTopic(query string) string {
	q := strings.ToLower(query)
	for _, rule := range TopicRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(q, kw) {
				return rule.Topic
			}
		}
	}
	return ""
}

// IsSummaryIntent reports whether the query contains a summary trigger.
func IsSummaryIntent(query string) bool {
	q := strings.ToLower(query)
	for _, t := range SummaryTriggers {
		if strings.Contains(q, t) {
			return true
		}
	}
	return false
}

// IsSensitive reports whether the query contains a sensitive trigger.
func IsSensitive(query string) bool {
	q := strings.ToLower(query)
	for _, t := range SensitiveTriggers {
		if strings.Contains(q, t) {
			return true
		}
	}
	return false
}

// HasEvidence reports whether contents back the query: at least 30% of its
// significant terms, and never fewer than one, must appear in them. There is
// no evidence without contents.
func HasEvidence(query string, contents []string) bool {
	if len(contents) == 0 {
		return false
	}
	terms := evidenceTerms(query)
	if len(terms) == 0 {
		return true
	}
	seen := evidenceTerms(strings.Join(contents, " "))
	matches := 0
	for t := range terms {
		if _, ok := seen[t]; ok {
			matches++
		}
	}
	return matches >= max(1, len(terms)*3/10)
}

func evidenceTerms(text string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, stop := evidenceStopwords[w]; stop || len(w) <= 2 {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

// Filter turns the plan into a metadata filter. A summary intent restricts
// candidates to the summary layer.
func (p Plan) Filter() domain.Filter {
	f := domain.Filter{Topic: p.Topic}
	if p.SummaryIntent {
		f.Layer = string(domain.LayerSummary)
	}
	return f
}

// MergeFilter applies the summary heuristic on top of explicit filters. The
// heuristic only sets the layer when autoSummary is on and no layer was given
// explicitly.
func MergeFilter(explicit domain.Filter, query string, autoSummary bool) domain.Filter {
	f := explicit
	if autoSummary && f.Layer == "" && IsSummaryIntent(query) {
		f.Layer = string(domain.LayerSummary)
	}
	return f
}
