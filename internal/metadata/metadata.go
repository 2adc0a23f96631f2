package metadata

import (
	"encoding/json"
	"sort"
)

// Well-known keys written at ingestion.
const (
	KeySourcePath        = "source_path"
	KeyDocType           = "doc_type"
	KeyTitle             = "title"
	KeyID                = "id"
	KeyTopic             = "topic"
	KeyFileStem          = "file_stem"
	KeyChunkIndex        = "chunk_index"
	KeySectionIndex      = "section_index"
	KeySectionTitle      = "section_title"
	KeyWindowIndex       = "window_index"
	KeyLayer             = "layer"
	KeyLayerRank         = "layer_rank"
	KeyRetrievalTier     = "retrieval_tier"
	KeyContentHash       = "content_hash"
	KeySourceLayer       = "source_layer"
	KeyShortFileFallback = "short_file_fallback"
)

// Metadata maps keys to scalar values.
type Metadata map[string]Value

// FromMap normalizes every entry of raw, dropping nil values.
func FromMap(raw map[string]any) Metadata {
	m := make(Metadata, len(raw))
	for k, x := range raw {
		if v, ok := Normalize(x); ok {
			m[k] = v
		}
	}
	return m
}

// Set normalizes raw and stores it under key. A nil raw removes the key.
func (m Metadata) Set(key string, raw any) {
	v, ok := Normalize(raw)
	if !ok {
		delete(m, key)
		return
	}
	m[key] = v
}

// GetString returns the text form of key, or "" when absent.
func (m Metadata) GetString(key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	return v.String()
}

// Has reports whether key is present.
func (m Metadata) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Clone returns a shallow copy; values are immutable.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge copies every entry of other into m, overwriting existing keys.
func (m Metadata) Merge(other Metadata) Metadata {
	for k, v := range other {
		m[k] = v
	}
	return m
}

// Keys returns the sorted keys.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToMap returns plain scalars, e.g. for store payloads.
func (m Metadata) ToMap() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Interface()
	}
	return out
}

// UnmarshalJSON drops null entries so that round trips never carry empty
// values.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]Value
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Metadata, len(raw))
	for k, v := range raw {
		if v.IsZero() {
			continue
		}
		out[k] = v
	}
	*m = out
	return nil
}
