package domain

import "kbrag/internal/metadata"

// Filter restricts candidates by metadata. Set fields are ANDed; empty
// fields do not filter.
type Filter struct {
	Topic         string
	DocType       string
	Layer         string
	RetrievalTier string
}

// Term is one equality condition of a Filter.
type Term struct {
	Key   string
	Value string
}

// Terms lists the active conditions in a fixed order.
func (f Filter) Terms() []Term {
	var terms []Term
	if f.Topic != "" {
		terms = append(terms, Term{Key: metadata.KeyTopic, Value: f.Topic})
	}
	if f.DocType != "" {
		terms = append(terms, Term{Key: metadata.KeyDocType, Value: f.DocType})
	}
	if f.Layer != "" {
		terms = append(terms, Term{Key: metadata.KeyLayer, Value: f.Layer})
	}
	if f.RetrievalTier != "" {
		terms = append(terms, Term{Key: metadata.KeyRetrievalTier, Value: f.RetrievalTier})
	}
	return terms
}

// IsEmpty reports whether the filter lets everything through.
func (f Filter) IsEmpty() bool { return len(f.Terms()) == 0 }

// Matches reports whether m satisfies every condition.
func (f Filter) Matches(m metadata.Metadata) bool {
	for _, t := range f.Terms() {
		v, ok := m[t.Key]
		if !ok || v.String() != t.Value {
			return false
		}
	}
	return true
}
