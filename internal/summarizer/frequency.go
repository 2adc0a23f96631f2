// Package summarizer picks the most representative sentences of a text.
package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	sentencePattern = regexp.MustCompile(`(?s)[^.!?]+(?:[.!?]+|$)`)
	wordPattern     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)
)

// queryBoost is added to the normalized frequency of words that also occur
// in the query.
const queryBoost = 1.0

// FrequencySummarizer ranks sentences by word frequency with stopwords
// removed. Words shared with the query weigh more.
type FrequencySummarizer struct {
	stopwords map[string]struct{}
}

func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{stopwords: defaultStopwords()}
}

// Summarize returns up to maxSentences sentences of text in their original
// order. query may be empty.
func (s *FrequencySummarizer) Summarize(text, query string, maxSentences int) string {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	var sentences []string
	for _, m := range sentencePattern.FindAllString(text, -1) {
		if t := strings.TrimSpace(m); t != "" {
			sentences = append(sentences, t)
		}
	}
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}

	freq := map[string]float64{}
	words := make([][]string, len(sentences))
	for i, sent := range sentences {
		words[i] = s.words(sent)
		for _, w := range words[i] {
			freq[w]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	for k, v := range freq {
		freq[k] = v / maxF
	}
	for _, w := range s.words(query) {
		if _, ok := freq[w]; ok {
			freq[w] += queryBoost
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(sentences))
	for i := range sentences {
		total := 0.0
		for _, w := range words[i] {
			total += freq[w]
		}
		if n := len(words[i]); n > 0 {
			total /= math.Sqrt(float64(n))
		}
		ranked[i] = scored{i, total}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	n := min(maxSentences, len(ranked))
	selected := make([]int, n)
	for i := range selected {
		selected[i] = ranked[i].idx
	}
	sort.Ints(selected)
	out := make([]string, n)
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " ")
}

func (s *FrequencySummarizer) words(text string) []string {
	var out []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if _, stop := s.stopwords[w]; !stop {
			out = append(out, w)
		}
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those",
		"from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about",
		"between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too",
		"very", "can", "will", "just", "don", "should", "now", "what", "who", "how", "you", "your", "i", "me",
		"my", "do", "does", "did", "have", "has", "had",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
