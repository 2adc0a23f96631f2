package domain

import (
	"errors"
	"fmt"
	"regexp"
)

// Error kinds. Concrete errors wrap one of these so callers can branch with
// errors.Is.
var (
	// ErrConfiguration is fatal and raised before any outbound call.
	ErrConfiguration = errors.New("configuration error")

	// ErrSourceData marks a document that cannot be ingested. The document is
	// skipped and ingestion continues.
	ErrSourceData = errors.New("source data error")

	// ErrTransport marks a failed or timed out call to the embedding service,
	// the vector store or the answering service. It is never retried.
	ErrTransport = errors.New("transport error")

	// ErrEmptyResult means the answering service returned no usable text.
	ErrEmptyResult = errors.New("empty result")
)

var collectionNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{1,510}[a-zA-Z0-9]$`)

// ValidateCollectionName checks a collection identifier: 3-512 characters of
// [a-zA-Z0-9._-], starting and ending with an alphanumeric.
func ValidateCollectionName(name string) error {
	if !collectionNameRe.MatchString(name) {
		return fmt.Errorf("%w: invalid collection name %q: use 3-512 chars [a-zA-Z0-9._-], starting and ending with alnum",
			ErrConfiguration, name)
	}
	return nil
}
