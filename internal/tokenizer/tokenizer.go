// Package tokenizer provides the token counters used to size chunks.
package tokenizer

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"kbrag/internal/domain"
)

const (
	NameRegexp = "regexp"
	NameCL100K = "cl100k_base"
)

// New returns the tokenizer registered under name. An empty name selects
// the regexp tokenizer.
func New(name string) (domain.Tokenizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameRegexp:
		return NewRegexp(), nil
	case NameCL100K, "cl100k":
		return NewCL100K()
	default:
		return nil, fmt.Errorf("%w: unknown tokenizer %q", domain.ErrConfiguration, name)
	}
}

// Count returns the number of tokens in text.
func Count(tok domain.Tokenizer, text string) int {
	return len(tok.Encode(text))
}

// wordPattern yields word runs and single punctuation marks, each carrying
// its leading whitespace, so every byte of the input lands in exactly one
// token.
var wordPattern = regexp.MustCompile(`\s*[\p{L}\p{N}_]+|\s*[^\s\p{L}\p{N}_]|\s+`)

// Regexp is an offline tokenizer that approximates BPE granularity with
// word and punctuation pieces. Token ids come from a vocabulary that grows
// as new pieces are seen.
type Regexp struct {
	mu    sync.Mutex
	ids   map[string]int
	words []string
}

func NewRegexp() *Regexp {
	return &Regexp{ids: map[string]int{}}
}

func (r *Regexp) Name() string { return NameRegexp }

func (r *Regexp) Encode(text string) []int {
	pieces := wordPattern.FindAllString(text, -1)
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(pieces))
	for i, p := range pieces {
		id, ok := r.ids[p]
		if !ok {
			id = len(r.words)
			r.ids[p] = id
			r.words = append(r.words, p)
		}
		out[i] = id
	}
	return out
}

func (r *Regexp) Decode(tokens []int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var b strings.Builder
	for _, id := range tokens {
		if id >= 0 && id < len(r.words) {
			b.WriteString(r.words[id])
		}
	}
	return b.String()
}

// CL100K wraps the cl100k_base BPE encoding. The ranks file is fetched on
// first use unless TIKTOKEN_CACHE_DIR already holds it.
type CL100K struct {
	enc *tiktoken.Tiktoken
}

func NewCL100K() (*CL100K, error) {
	enc, err := tiktoken.GetEncoding(NameCL100K)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", domain.ErrConfiguration, NameCL100K, err)
	}
	return &CL100K{enc: enc}, nil
}

func (c *CL100K) Name() string { return NameCL100K }

func (c *CL100K) Encode(text string) []int { return c.enc.Encode(text, nil, nil) }

func (c *CL100K) Decode(tokens []int) string { return c.enc.Decode(tokens) }
