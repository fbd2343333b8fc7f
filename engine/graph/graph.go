package graph

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/cinegraph/cinegraph/engine/domain"
)

// KnowledgeGraph is the live, mutex-guarded graph state. Readers work on
// snapshots; writers go through Integrate and ReplaceAlignments, which bump
// the version only when state actually changed.
type KnowledgeGraph struct {
	mu      sync.RWMutex
	g       Graph
	nextSeq int64
	fuzzy   float64
	log     *slog.Logger
}

// Option configures a KnowledgeGraph.
type Option func(*KnowledgeGraph)

// WithFuzzyThreshold overrides the name-similarity threshold for merging.
func WithFuzzyThreshold(t float64) Option {
	return func(kg *KnowledgeGraph) { kg.fuzzy = t }
}

// New creates an empty knowledge graph.
func New(log *slog.Logger, opts ...Option) *KnowledgeGraph {
	if log == nil {
		log = slog.Default()
	}
	kg := &KnowledgeGraph{g: NewGraph(), fuzzy: DefaultFuzzyThreshold, log: log}
	for _, o := range opts {
		o(kg)
	}
	return kg
}

// Restore replaces the live state with a previously flushed graph.
func (kg *KnowledgeGraph) Restore(g Graph) {
	kg.mu.Lock()
	defer kg.mu.Unlock()
	kg.g = g.Clone()
	kg.nextSeq = 0
	for _, seq := range kg.g.Born {
		if seq >= kg.nextSeq {
			kg.nextSeq = seq + 1
		}
	}
}

// Snapshot returns a deep copy of the current version.
func (kg *KnowledgeGraph) Snapshot() Graph {
	kg.mu.RLock()
	defer kg.mu.RUnlock()
	return kg.g.Clone()
}

// Version returns the current version number.
func (kg *KnowledgeGraph) Version() int64 {
	kg.mu.RLock()
	defer kg.mu.RUnlock()
	return kg.g.Version
}

// Stats returns counts for the current version.
func (kg *KnowledgeGraph) Stats() Stats {
	kg.mu.RLock()
	defer kg.mu.RUnlock()
	return kg.g.Stats()
}

// Integrate merges candidate entities and relations from one document into
// the graph. Candidates whose name matches an existing entity of the same
// type, exactly or above the fuzzy threshold, merge into it: the survivor
// keeps the union of aliases, support, and document provenance. Relation
// endpoints are remapped to merge survivors. Integration is idempotent:
// re-integrating the same candidates changes nothing and keeps the version.
func (kg *KnowledgeGraph) Integrate(entities []domain.Entity, relations []domain.Relation) (IntegrateResult, error) {
	for _, e := range entities {
		if err := domain.ValidateEntity(e); err != nil {
			return IntegrateResult{}, err
		}
	}
	for _, r := range relations {
		if err := domain.ValidateRelation(r); err != nil {
			return IntegrateResult{}, err
		}
	}

	kg.mu.Lock()
	defer kg.mu.Unlock()

	var res IntegrateResult
	changed := false
	idmap := make(map[string]string, len(entities))

	for _, cand := range entities {
		target := kg.matchLocked(cand)
		if target == "" {
			kg.g.Entities[cand.ID] = cloneEntity(cand)
			kg.g.Born[cand.ID] = kg.nextSeq
			kg.nextSeq++
			idmap[cand.ID] = cand.ID
			res.EntitiesAdded++
			changed = true
			continue
		}
		idmap[cand.ID] = target
		if target != cand.ID {
			res.EntitiesMerged++
		}
		ent := kg.g.Entities[target]
		if mergeEntity(&ent, cand) {
			kg.g.Entities[target] = ent
			changed = true
		}
	}

	for _, cand := range relations {
		rel := cand
		if to, ok := idmap[rel.Source]; ok {
			rel.Source = to
		}
		if to, ok := idmap[rel.Target]; ok {
			rel.Target = to
		}
		if rel.Source == rel.Target {
			continue
		}
		if _, ok := kg.g.Entities[rel.Source]; !ok {
			kg.log.Warn("dropping relation with unknown source", "relation", rel.Key())
			continue
		}
		if _, ok := kg.g.Entities[rel.Target]; !ok {
			kg.log.Warn("dropping relation with unknown target", "relation", rel.Key())
			continue
		}

		key := rel.Key()
		existing, ok := kg.g.Relations[key]
		if !ok {
			rel.Support = append([]string(nil), rel.Support...)
			kg.g.Relations[key] = rel
			res.RelationsAdded++
			changed = true
			continue
		}
		relChanged := false
		for _, s := range rel.Support {
			if !containsStr(existing.Support, s) {
				existing.Support = append(existing.Support, s)
				relChanged = true
			}
		}
		if rel.Weight > existing.Weight {
			existing.Weight = rel.Weight
			relChanged = true
		}
		if relChanged {
			kg.g.Relations[key] = existing
			res.RelationsUpdated++
			changed = true
		}
	}

	if changed {
		kg.g.Version++
	}
	res.Version = kg.g.Version
	return res, nil
}

// matchLocked finds the merge target for a candidate, or "" when it is new.
// Exact name or alias matches win over fuzzy similarity; when several
// existing entities claim the same name the earliest-born (then lowest-id)
// one survives and the conflict is logged.
func (kg *KnowledgeGraph) matchLocked(cand domain.Entity) string {
	if _, ok := kg.g.Entities[cand.ID]; ok {
		return cand.ID
	}
	candNames := names(cand)

	// Fuzzy matching is reserved for proper nouns. Scene headings differ by
	// a single digit between distinct scenes, and visual vocabulary is
	// already canonical, so both merge on exact names only.
	allowFuzzy := cand.Type == domain.EntityCharacter || cand.Type == domain.EntityLocation

	var exact []string
	bestFuzzy, bestSim := "", kg.fuzzy
	for id, e := range kg.g.Entities {
		if e.Type != cand.Type {
			continue
		}
		matched := false
		for _, en := range names(e) {
			for _, cn := range candNames {
				if en == cn {
					exact = append(exact, id)
					matched = true
					break
				}
				if !allowFuzzy {
					continue
				}
				if sim := Similarity(en, cn); sim >= bestSim {
					if sim > bestSim || id < bestFuzzy || bestFuzzy == "" {
						bestFuzzy, bestSim = id, sim
					}
				}
			}
			if matched {
				break
			}
		}
	}

	switch len(exact) {
	case 0:
		return bestFuzzy
	case 1:
		return exact[0]
	}

	sort.Slice(exact, func(i, j int) bool {
		bi, bj := kg.g.Born[exact[i]], kg.g.Born[exact[j]]
		if bi != bj {
			return bi < bj
		}
		return exact[i] < exact[j]
	})
	kg.log.Warn("merge conflict resolved to earliest entity",
		"error", domain.ErrMergeConflict, "name", cand.Name, "type", cand.Type,
		"survivor", exact[0], "contenders", len(exact))
	return exact[0]
}

// mergeEntity folds src into dst and reports whether dst changed. The
// survivor keeps its own name and description; the absorbed name joins the
// alias set.
func mergeEntity(dst *domain.Entity, src domain.Entity) bool {
	changed := false

	dstNames := make(map[string]bool)
	for _, n := range names(*dst) {
		dstNames[n] = true
	}
	for _, alias := range append([]string{src.Name}, src.Aliases...) {
		if !dstNames[domain.NormalizeName(alias)] {
			dst.Aliases = append(dst.Aliases, alias)
			dstNames[domain.NormalizeName(alias)] = true
			changed = true
		}
	}
	for _, s := range src.Support {
		if !containsStr(dst.Support, s) {
			dst.Support = append(dst.Support, s)
			changed = true
		}
	}
	for _, d := range src.Documents {
		if !containsStr(dst.Documents, d) {
			dst.Documents = append(dst.Documents, d)
			changed = true
		}
	}
	if src.Confidence > dst.Confidence {
		dst.Confidence = src.Confidence
		changed = true
	}
	if dst.Description == "" && src.Description != "" {
		dst.Description = src.Description
		changed = true
	}
	return changed
}

// ReplaceAlignments swaps the full ALIGNED_WITH edge set for a new one,
// atomically. Identical sets leave the version untouched, which makes
// re-alignment idempotent.
func (kg *KnowledgeGraph) ReplaceAlignments(edges []domain.Relation) (int64, error) {
	next := make(map[string]domain.Relation, len(edges))
	for _, r := range edges {
		if r.Type != domain.RelAlignedWith {
			return 0, domain.NewValidationError("relation.type", string(r.Type), domain.ErrInvalidDocument)
		}
		if err := domain.ValidateRelation(r); err != nil {
			return 0, err
		}
		next[r.Key()] = r
	}

	kg.mu.Lock()
	defer kg.mu.Unlock()

	for key, r := range next {
		if _, ok := kg.g.Entities[r.Source]; !ok {
			kg.log.Warn("dropping alignment with unknown source", "relation", key)
			delete(next, key)
			continue
		}
		if _, ok := kg.g.Entities[r.Target]; !ok {
			kg.log.Warn("dropping alignment with unknown target", "relation", key)
			delete(next, key)
		}
	}

	current := make(map[string]domain.Relation)
	for key, r := range kg.g.Relations {
		if r.Type == domain.RelAlignedWith {
			current[key] = r
		}
	}
	if alignmentsEqual(current, next) {
		return kg.g.Version, nil
	}

	for key := range current {
		delete(kg.g.Relations, key)
	}
	for key, r := range next {
		r.Support = append([]string(nil), r.Support...)
		kg.g.Relations[key] = r
	}
	kg.g.Version++
	return kg.g.Version, nil
}

func alignmentsEqual(a, b map[string]domain.Relation) bool {
	if len(a) != len(b) {
		return false
	}
	for key, ra := range a {
		rb, ok := b[key]
		if !ok || ra.Weight != rb.Weight || len(ra.Support) != len(rb.Support) {
			return false
		}
		for _, s := range rb.Support {
			if !containsStr(ra.Support, s) {
				return false
			}
		}
	}
	return true
}

func cloneEntity(e domain.Entity) domain.Entity {
	e.Aliases = append([]string(nil), e.Aliases...)
	e.Support = append([]string(nil), e.Support...)
	e.Documents = append([]string(nil), e.Documents...)
	return e
}

func containsStr(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
