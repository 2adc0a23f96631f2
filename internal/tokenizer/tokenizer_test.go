package tokenizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbrag/internal/domain"
)

func TestRegexpRoundTrip(t *testing.T) {
	tok := NewRegexp()
	inputs := []string{
		"",
		"hello world",
		"  leading and trailing  ",
		"# Heading\n\nSome text, with punctuation! And ünïcode.\n",
		"tabs\tand\nnewlines\r\n",
	}
	for _, in := range inputs {
		assert.Equal(t, in, tok.Decode(tok.Encode(in)), "input %q", in)
	}
}

func TestRegexpDeterministic(t *testing.T) {
	tok := NewRegexp()
	a := tok.Encode("the quick brown fox")
	b := tok.Encode("the quick brown fox")
	assert.Equal(t, a, b)
	assert.Len(t, a, 4)
	assert.Equal(t, 5, Count(tok, "Hello, world! ok"))
}

func TestNew(t *testing.T) {
	tok, err := New("")
	require.NoError(t, err)
	assert.Equal(t, NameRegexp, tok.Name())

	_, err = New("nope")
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}
