// Package semantic owns the Qdrant vector index of segment embeddings. It is
// the retrieval half of query answering and the candidate source for
// cross-modal alignment.
package semantic

import (
	"strings"

	"github.com/cinegraph/cinegraph/engine/domain"
)

// SearchResult is a single similarity hit.
type SearchResult struct {
	SegmentID string  `json:"segment_id"`
	DocID     string  `json:"doc_id"`
	Score     float32 `json:"score"`
	Content   string  `json:"content"`
	Modality  string  `json:"modality"`
	Position  int     `json:"position"`
	Keywords  string  `json:"keywords,omitempty"`
}

// VectorRecord is one point to store.
type VectorRecord struct {
	ID        string // qdrant point uuid
	Embedding []float32
	Payload   map[string]any
}

// RecordFromSegment builds the point for a segment. The point uuid is the
// segment id without its prefix, so re-embedding a segment overwrites its
// point instead of duplicating it.
func RecordFromSegment(seg domain.Segment, embedding []float32) VectorRecord {
	payload := map[string]any{
		"segment_id": seg.ID,
		"content":    seg.Text,
		"doc_id":     seg.DocumentID,
		"position":   seg.Position,
		"modality":   string(seg.Modality),
	}
	if seg.Visual != nil && len(seg.Visual.Keywords) > 0 {
		payload["keywords"] = strings.Join(seg.Visual.Keywords, ",")
	}
	return VectorRecord{
		ID:        strings.TrimPrefix(seg.ID, "seg-"),
		Embedding: embedding,
		Payload:   payload,
	}
}
