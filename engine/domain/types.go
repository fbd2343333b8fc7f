// Package domain defines core domain types, constants, and validation for the
// cinegraph fusion pipeline. It acts as the validation gate at pipeline entry points.
package domain

import "time"

// DocumentKind distinguishes the two source families.
type DocumentKind string

const (
	KindScreenplay DocumentKind = "screenplay"
	KindMoodboard  DocumentKind = "moodboard"
)

// ValidDocumentKinds is the set of recognised document kinds.
var ValidDocumentKinds = map[DocumentKind]bool{
	KindScreenplay: true,
	KindMoodboard:  true,
}

// Modality classifies what a segment carries.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityMixed Modality = "mixed"
)

// Document is an immutable ingested source artifact. Re-ingesting produces a
// new Document with a new id; the old one is superseded, never mutated.
type Document struct {
	ID         string       `json:"id"`
	Kind       DocumentKind `json:"kind"`
	Title      string       `json:"title"`
	ContentRef string       `json:"content_ref,omitempty"`
	IngestedAt time.Time    `json:"ingested_at"`
}

// VisualDescriptor holds extracted visual attributes of an image or
// image-bearing page.
type VisualDescriptor struct {
	Palette    []string `json:"palette,omitempty"`  // dominant colors as #rrggbb hex
	Brightness string   `json:"brightness,omitempty"` // low, medium, high
	Keywords   []string `json:"keywords,omitempty"`   // e.g. cold-blue, rim-light
}

// Segment is one unit of normalized content owned by a Document. Segments of
// a Document are position-contiguous: ordinals start at 0 with no gaps.
type Segment struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Position   int               `json:"position"`
	Modality   Modality          `json:"modality"`
	Text       string            `json:"text"`
	Visual     *VisualDescriptor `json:"visual,omitempty"`
}

// EntityType classifies knowledge units in the graph.
type EntityType string

const (
	EntityCharacter     EntityType = "character"
	EntityLocation      EntityType = "location"
	EntityScene         EntityType = "scene"
	EntityVisualMotif   EntityType = "visual-motif"
	EntityColorPalette  EntityType = "color-palette"
	EntityLightingStyle EntityType = "lighting-style"
)

// ValidEntityTypes is the set of recognised entity types.
var ValidEntityTypes = map[EntityType]bool{
	EntityCharacter: true, EntityLocation: true, EntityScene: true,
	EntityVisualMotif: true, EntityColorPalette: true, EntityLightingStyle: true,
}

// ScreenplaySide reports whether the type originates from screenplay parsing.
func (t EntityType) ScreenplaySide() bool {
	return t == EntityCharacter || t == EntityLocation || t == EntityScene
}

// MoodboardSide reports whether the type originates from mood-board analysis.
func (t EntityType) MoodboardSide() bool {
	return t == EntityVisualMotif || t == EntityColorPalette || t == EntityLightingStyle
}

// Entity is a typed, named knowledge unit. Support must never be empty: every
// entity traces back to at least one Segment. Entities are merged, not
// deleted; the merge survivor keeps the union of aliases, support, and
// document provenance.
type Entity struct {
	ID          string     `json:"id"`
	Type        EntityType `json:"type"`
	Name        string     `json:"name"`
	Aliases     []string   `json:"aliases,omitempty"`
	Description string     `json:"description,omitempty"`
	Support     []string   `json:"support"`   // supporting Segment ids
	Documents   []string   `json:"documents"` // source Document ids
	Confidence  float64    `json:"confidence"`
}

// RelationType classifies directed edges between entities.
type RelationType string

const (
	RelAppearsIn   RelationType = "APPEARS_IN"   // character -> scene
	RelSetIn       RelationType = "SET_IN"       // scene -> location
	RelEvokesMood  RelationType = "EVOKES_MOOD"  // visual-motif -> palette/lighting
	RelAlignedWith RelationType = "ALIGNED_WITH" // screenplay entity -> moodboard entity
)

// Relation is a directed, weighted, typed edge. Like entities, relations
// carry non-empty supporting Segment ids. ALIGNED_WITH edges are written only
// by the aligner.
type Relation struct {
	Source  string       `json:"source"`
	Target  string       `json:"target"`
	Type    RelationType `json:"type"`
	Weight  float64      `json:"weight"`
	Support []string     `json:"support"`
}

// Key identifies a relation for idempotent upserts: one edge per
// (source, type, target) triple.
func (r Relation) Key() string {
	return r.Source + "|" + string(r.Type) + "|" + r.Target
}

// Query is a user question against the fused graph.
type Query struct {
	Text string `json:"text"`
	Hops int    `json:"hops,omitempty"` // 0 means use the configured default
}

// Answer is the query engine's response. Citations are the deterministic
// part: identical graph state and question always yield identical citations,
// even when the composed text varies between model calls.
type Answer struct {
	Text      string   `json:"text"`
	Citations []string `json:"citations"` // Segment ids, ordered
	Entities  []string `json:"entities"`  // Entity ids in the candidate subgraph
	Degraded  bool     `json:"degraded"`  // true when generation fell back to extractive mode
}
