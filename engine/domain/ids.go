package domain

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Deterministic ids make re-parsing and re-extraction stable: the same
// document yields the same segment and entity ids, which keeps graph merges
// idempotent and earlier-id-wins tie-breaks reproducible.

// NewDocumentID returns a fresh random document id. Documents are the one
// place randomness is wanted: re-ingestion must produce a new identity.
func NewDocumentID() string {
	return "doc-" + uuid.NewString()
}

// SegmentID derives the id of the segment at the given ordinal position.
func SegmentID(docID string, position int) string {
	return "seg-" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(docID+"/"+strconv.Itoa(position))).String()
}

// EntityID derives a candidate entity id from its source document, type, and
// normalized name.
func EntityID(docID string, t EntityType, name string) string {
	return "ent-" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(docID+"/"+string(t)+"/"+NormalizeName(name))).String()
}

// NormalizeName lowercases and collapses whitespace for matching.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
