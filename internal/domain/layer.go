package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Layer is the granularity at which a piece of source text is stored.
type Layer string

const (
	LayerSummary  Layer = "summary"
	LayerWindow   Layer = "window"
	LayerSection  Layer = "section"
	LayerFile     Layer = "file"
	LayerFallback Layer = "fallback"
)

// UnknownLayerRank is assigned to anything outside the rank table so that it
// sorts after every defined layer.
const UnknownLayerRank = 9

var layerRanks = map[Layer]int{
	LayerSummary:  0,
	LayerWindow:   1,
	LayerSection:  2,
	LayerFile:     3,
	LayerFallback: 4,
}

// Rank returns the fixed priority of the layer. Lower is preferred.
func (l Layer) Rank() int {
	if r, ok := layerRanks[l]; ok {
		return r
	}
	return UnknownLayerRank
}

// Storable reports whether an operator may request the layer to be persisted.
func (l Layer) Storable() bool {
	switch l {
	case LayerSummary, LayerWindow, LayerSection, LayerFile:
		return true
	}
	return false
}

// Tier mirrors the layer as an independently filterable label.
type Tier string

const (
	TierSummary   Tier = "summary"
	TierPrimary   Tier = "primary"
	TierSecondary Tier = "secondary"
	TierTertiary  Tier = "tertiary"
	TierFallback  Tier = "fallback"
)

// LayerSet is the set of layers selected for persistence.
type LayerSet map[Layer]struct{}

// NewLayerSet builds a set from the given layers.
func NewLayerSet(layers ...Layer) LayerSet {
	s := make(LayerSet, len(layers))
	for _, l := range layers {
		s[l] = struct{}{}
	}
	return s
}

// Has reports whether l is in the set.
func (s LayerSet) Has(l Layer) bool {
	_, ok := s[l]
	return ok
}

// Names returns the sorted layer names.
func (s LayerSet) Names() []string {
	out := make([]string, 0, len(s))
	for l := range s {
		out = append(out, string(l))
	}
	sort.Strings(out)
	return out
}

// ParseLayerSet parses names such as "summary, window,section". Names are
// case-insensitive; anything outside summary/window/section/file is a
// configuration error.
func ParseLayerSet(names []string) (LayerSet, error) {
	set := make(LayerSet)
	var invalid []string
	for _, raw := range names {
		for _, part := range strings.Split(raw, ",") {
			name := strings.ToLower(strings.TrimSpace(part))
			if name == "" {
				continue
			}
			l := Layer(name)
			if !l.Storable() {
				invalid = append(invalid, name)
				continue
			}
			set[l] = struct{}{}
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return nil, fmt.Errorf("%w: invalid layer(s): %s. Valid: file, section, summary, window",
			ErrConfiguration, strings.Join(invalid, ", "))
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: no layers selected", ErrConfiguration)
	}
	return set, nil
}
