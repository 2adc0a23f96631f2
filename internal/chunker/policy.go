package chunker

import (
	"fmt"

	"kbrag/internal/domain"
)

const (
	DefaultWindowSize    = 500
	DefaultWindowOverlap = 100
	DefaultMinSize       = 150
)

// Policy sizes the layers built for a document. Sizes are in tokens.
type Policy struct {
	WindowSize    int
	WindowOverlap int
	MinSize       int
	// AllowShortFiles lets the file chunk bypass MinSize.
	AllowShortFiles bool
}

// DefaultPolicy returns the 500/100/150 policy.
func DefaultPolicy() Policy {
	return Policy{
		WindowSize:    DefaultWindowSize,
		WindowOverlap: DefaultWindowOverlap,
		MinSize:       DefaultMinSize,
	}
}

// Validate rejects sizes the window splitter cannot work with.
func (p Policy) Validate() error {
	if p.WindowSize <= 0 {
		return fmt.Errorf("%w: window size must be positive, got %d", domain.ErrConfiguration, p.WindowSize)
	}
	if p.WindowOverlap < 0 || p.WindowOverlap >= p.WindowSize {
		return fmt.Errorf("%w: window overlap %d must be in [0, %d)", domain.ErrConfiguration, p.WindowOverlap, p.WindowSize)
	}
	if p.MinSize < 0 {
		return fmt.Errorf("%w: min size must not be negative, got %d", domain.ErrConfiguration, p.MinSize)
	}
	return nil
}

// Warnings lists values outside the recommended ranges. They are advisory.
func (p Policy) Warnings() []string {
	var out []string
	if p.WindowSize < 400 || p.WindowSize > 600 {
		out = append(out, fmt.Sprintf("window size %d is outside the 400-600 guideline", p.WindowSize))
	}
	if p.WindowOverlap < 80 || p.WindowOverlap > 120 {
		out = append(out, fmt.Sprintf("window overlap %d is outside the 80-120 guideline", p.WindowOverlap))
	}
	if p.MinSize < 150 {
		out = append(out, fmt.Sprintf("min size %d is below the 150 guideline", p.MinSize))
	}
	return out
}
