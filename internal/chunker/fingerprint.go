package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeWhitespace collapses whitespace runs to one space and trims.
func NormalizeWhitespace(text string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(text), " ")
}

// Fingerprint is the sha256 hex digest of the whitespace-normalized text.
// Texts differing only in whitespace share a fingerprint.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(NormalizeWhitespace(text)))
	return hex.EncodeToString(sum[:])
}

// Seen records fingerprints; the first occurrence of a hash wins.
type Seen map[string]struct{}

// Add records hash and reports whether it was new.
func (s Seen) Add(hash string) bool {
	if _, ok := s[hash]; ok {
		return false
	}
	s[hash] = struct{}{}
	return true
}
