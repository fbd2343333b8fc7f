package ingest

import "github.com/cinegraph/cinegraph/engine/domain"

// Request is one document submitted for ingestion. Content travels base64
// in JSON, which keeps image and PDF mood boards valid message payloads.
type Request struct {
	Kind       domain.DocumentKind `json:"kind"`
	Title      string              `json:"title"`
	Content    []byte              `json:"content"`
	ContentRef string              `json:"content_ref,omitempty"`
}

// ParsedDoc carries a freshly minted document and its segments. Warnings
// lists regions the parser skipped; they surface on the summary.
type ParsedDoc struct {
	Doc      domain.Document
	Content  []byte
	Segments []domain.Segment
	Warnings []string
}

// ExtractedDoc adds candidate entities and relations.
type ExtractedDoc struct {
	ParsedDoc
	Entities  []domain.Entity
	Relations []domain.Relation
}

// EmbeddedDoc adds one embedding per segment. Embeddings is nil when the
// model was unavailable and the pipeline proceeded without vectors.
type EmbeddedDoc struct {
	ExtractedDoc
	Embeddings [][]float32
}

// Summary reports one completed ingestion.
type Summary struct {
	DocumentID   string   `json:"document_id"`
	Segments     int      `json:"segments"`
	Entities     int      `json:"entities"`
	Relations    int      `json:"relations"`
	GraphVersion int64    `json:"graph_version"`
	Superseded   string   `json:"superseded,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}
