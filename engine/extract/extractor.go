// Package extract derives candidate entities and relations from parsed
// segments using lexicon and structure recognizers. Results are pre-merged
// per document so the graph builder only sees one candidate per
// (type, normalized name) pair.
package extract

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/cinegraph/cinegraph/engine/domain"
)

// Mention is one occurrence of a candidate entity inside a segment.
type Mention struct {
	Type       domain.EntityType
	Name       string
	Confidence float64
}

// Extractor runs the recognizer set for a document kind and folds mentions
// into deduplicated entities plus structural relations.
type Extractor struct {
	minConfidence float64
	log           *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMinConfidence overrides the confidence cutoff below which mentions are
// dropped.
func WithMinConfidence(c float64) Option {
	return func(e *Extractor) { e.minConfidence = c }
}

// DefaultMinConfidence is the cutoff applied when none is configured.
const DefaultMinConfidence = 0.5

// New builds an extractor.
func New(log *slog.Logger, opts ...Option) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	e := &Extractor{minConfidence: DefaultMinConfidence, log: log}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract processes all segments of one document. Every returned entity has
// non-empty support and carries the source document id; entity ids are
// deterministic in the document id, type, and normalized name.
func (e *Extractor) Extract(doc domain.Document, segments []domain.Segment) ([]domain.Entity, []domain.Relation, error) {
	switch doc.Kind {
	case domain.KindScreenplay:
		return e.extractScreenplay(doc, segments)
	case domain.KindMoodboard:
		return e.extractMoodboard(doc, segments)
	default:
		return nil, nil, domain.ErrInvalidDocument
	}
}

// accumulator folds mentions into per-document entities and relations.
type accumulator struct {
	doc       domain.Document
	min       float64
	log       *slog.Logger
	entities  map[string]*domain.Entity  // by entity id
	relations map[string]*domain.Relation // by relation key
	order     []string                    // entity ids in first-seen order
}

func newAccumulator(doc domain.Document, min float64, log *slog.Logger) *accumulator {
	return &accumulator{
		doc:       doc,
		min:       min,
		log:       log,
		entities:  make(map[string]*domain.Entity),
		relations: make(map[string]*domain.Relation),
	}
}

// add records a mention supported by the given segment and returns the entity
// id, or "" when the mention fell below the cutoff.
func (a *accumulator) add(m Mention, segID string) string {
	if m.Confidence < a.min {
		a.log.Debug("dropping mention",
			"document_id", a.doc.ID, "type", m.Type, "name", m.Name,
			"confidence", m.Confidence, "error", domain.ErrLowConfidence)
		return ""
	}
	id := domain.EntityID(a.doc.ID, m.Type, m.Name)
	ent, ok := a.entities[id]
	if !ok {
		ent = &domain.Entity{
			ID:         id,
			Type:       m.Type,
			Name:       m.Name,
			Documents:  []string{a.doc.ID},
			Confidence: m.Confidence,
		}
		a.entities[id] = ent
		a.order = append(a.order, id)
	}
	if m.Confidence > ent.Confidence {
		ent.Confidence = m.Confidence
	}
	if !containsStr(ent.Support, segID) {
		ent.Support = append(ent.Support, segID)
	}
	return id
}

// relate records a directed edge between two accumulated entities. Repeated
// observations raise the weight toward 1 and extend support.
func (a *accumulator) relate(src, dst string, t domain.RelationType, weight float64, segID string) {
	if src == "" || dst == "" || src == dst {
		return
	}
	r := domain.Relation{Source: src, Target: dst, Type: t, Weight: weight}
	key := r.Key()
	existing, ok := a.relations[key]
	if !ok {
		r.Support = []string{segID}
		a.relations[key] = &r
		return
	}
	if containsStr(existing.Support, segID) {
		return
	}
	existing.Support = append(existing.Support, segID)
	// Each extra supporting segment closes half the gap to certainty.
	existing.Weight = existing.Weight + (1-existing.Weight)*0.5
}

// finish returns deterministic, validated slices.
func (a *accumulator) finish() ([]domain.Entity, []domain.Relation, error) {
	entities := make([]domain.Entity, 0, len(a.entities))
	for _, id := range a.order {
		ent := *a.entities[id]
		if err := domain.ValidateEntity(ent); err != nil {
			return nil, nil, err
		}
		entities = append(entities, ent)
	}

	keys := make([]string, 0, len(a.relations))
	for k := range a.relations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	relations := make([]domain.Relation, 0, len(keys))
	for _, k := range keys {
		rel := *a.relations[k]
		if err := domain.ValidateRelation(rel); err != nil {
			return nil, nil, err
		}
		relations = append(relations, rel)
	}
	return entities, relations, nil
}

func containsStr(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// titleCase capitalizes the first letter of each word, for display names
// built from lowercase lexicon hits.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
