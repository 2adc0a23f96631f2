// Package chunker turns a knowledge-base document into layered chunks:
// one summary chunk for digest documents, otherwise token windows per
// section, whole sections and the whole file.
package chunker

import (
	"strings"

	"kbrag/internal/domain"
	"kbrag/internal/metadata"
)

// Builder produces the candidate chunk set of a document.
type Builder struct {
	tok    domain.Tokenizer
	policy Policy
}

func NewBuilder(tok domain.Tokenizer, policy Policy) (*Builder, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Builder{tok: tok, policy: policy}, nil
}

func (b *Builder) Policy() Policy { return b.policy }

// Build emits the chunks of doc in layer order: windows, sections, file.
// A summary document yields exactly one summary chunk. Within the result no
// two chunks share a content hash.
func (b *Builder) Build(doc domain.Document) []domain.Chunk {
	e := emitter{doc: doc, seen: Seen{}, tok: b.tok}

	if doc.IsSummary {
		e.add(doc.Body, domain.LayerSummary, domain.TierSummary, -1, metadata.Metadata{
			metadata.KeyChunkIndex: metadata.Int(0),
		})
		return e.out
	}

	sections := SplitSections(doc.Body)

	windowIndex := 0
	for _, s := range sections {
		for local, w := range SplitWindows(b.tok, strings.TrimSpace(s.Text), b.policy.WindowSize, b.policy.WindowOverlap) {
			e.add(w, domain.LayerWindow, domain.TierPrimary, b.policy.MinSize, metadata.Metadata{
				metadata.KeyChunkIndex:   metadata.Int(int64(windowIndex)),
				metadata.KeySectionIndex: metadata.Int(int64(s.Index)),
				metadata.KeySectionTitle: metadata.String(s.Title),
				metadata.KeyWindowIndex:  metadata.Int(int64(local)),
			})
			windowIndex++
		}
	}

	for _, s := range sections {
		e.add(s.Text, domain.LayerSection, domain.TierSecondary, b.policy.MinSize, metadata.Metadata{
			metadata.KeySectionTitle: metadata.String(s.Title),
			metadata.KeyChunkIndex:   metadata.Int(int64(s.Index)),
		})
	}

	fileFloor := b.policy.MinSize
	if b.policy.AllowShortFiles {
		fileFloor = -1
	}
	e.add(doc.Body, domain.LayerFile, domain.TierTertiary, fileFloor, metadata.Metadata{
		metadata.KeyChunkIndex: metadata.Int(0),
	})
	return e.out
}

type emitter struct {
	doc  domain.Document
	tok  domain.Tokenizer
	seen Seen
	out  []domain.Chunk
}

// add appends one chunk unless it is blank, shorter than floor tokens or a
// duplicate. A negative floor disables the size check.
func (e *emitter) add(text string, layer domain.Layer, tier domain.Tier, floor int, extra metadata.Metadata) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if floor >= 0 && len(e.tok.Encode(text)) < floor {
		return
	}
	hash := Fingerprint(text)
	if !e.seen.Add(hash) {
		return
	}
	meta := e.doc.Metadata.Clone().Merge(extra)
	meta[metadata.KeyLayer] = metadata.String(string(layer))
	meta[metadata.KeyLayerRank] = metadata.Int(int64(layer.Rank()))
	meta[metadata.KeyRetrievalTier] = metadata.String(string(tier))
	meta[metadata.KeyContentHash] = metadata.String(hash)

	e.out = append(e.out, domain.Chunk{
		ID:          domain.ChunkID(e.doc.Path, layer, hash),
		Content:     strings.TrimSpace(text),
		Layer:       layer,
		Tier:        tier,
		ContentHash: hash,
		Metadata:    meta,
	})
}
