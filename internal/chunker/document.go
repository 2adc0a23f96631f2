package chunker

import (
	"path"
	"strings"

	"kbrag/internal/domain"
	"kbrag/internal/frontmatter"
	"kbrag/internal/metadata"
)

const (
	// DefaultTopic is used for files at the root of the knowledge base.
	DefaultTopic = "kb"
	summaryType  = "summary"
)

// ParseDocument splits raw into frontmatter and body and derives the
// document fields. relPath is relative to the knowledge-base root. The
// returned flag is set when the frontmatter could not be read as a mapping.
func ParseDocument(relPath, raw string) (domain.Document, bool) {
	relPath = path.Clean(strings.ReplaceAll(relPath, "\\", "/"))
	fm, body, malformed := frontmatter.Parse(raw)

	topic := DefaultTopic
	if dir, _, nested := strings.Cut(relPath, "/"); nested {
		topic = dir
	}
	stem := strings.TrimSuffix(path.Base(relPath), path.Ext(relPath))

	docType := topic
	if v, ok := metadata.Normalize(fm[metadata.KeyDocType]); ok && v.String() != "" {
		docType = v.String()
	}

	meta := metadata.Metadata{}
	meta.Set(metadata.KeySourcePath, relPath)
	meta.Set(metadata.KeyDocType, docType)
	meta.Set(metadata.KeyTitle, fm[metadata.KeyTitle])
	meta.Set(metadata.KeyID, fm[metadata.KeyID])
	meta.Set(metadata.KeyTopic, topic)
	meta.Set(metadata.KeyFileStem, stem)
	meta.Merge(metadata.FromMap(fm))
	// an empty doc_type in the header falls back to the topic
	meta.Set(metadata.KeyDocType, docType)

	return domain.Document{
		Path:        relPath,
		Raw:         raw,
		Frontmatter: fm,
		Body:        body,
		Topic:       topic,
		DocType:     docType,
		FileStem:    stem,
		IsSummary:   docType == summaryType || strings.ToLower(stem) == summaryType,
		Metadata:    meta,
	}, malformed
}
