// Package graph holds the versioned, provenance-preserving knowledge graph
// and its durable Neo4j store. All mutation goes through KnowledgeGraph,
// whose lock is the single serialization point for graph state.
package graph

import "github.com/cinegraph/cinegraph/engine/domain"

// Graph is one version of the fused knowledge graph. KnowledgeGraph hands out
// deep copies; holders of a Graph never share memory with live state.
type Graph struct {
	Version   int64
	Entities  map[string]domain.Entity
	Relations map[string]domain.Relation // keyed by Relation.Key()
	// Born orders entities by first integration so merge survivor selection
	// is reproducible. Lower is older.
	Born map[string]int64
}

// NewGraph returns an empty version-zero graph.
func NewGraph() Graph {
	return Graph{
		Entities:  make(map[string]domain.Entity),
		Relations: make(map[string]domain.Relation),
		Born:      make(map[string]int64),
	}
}

// Clone deep-copies the graph, slices included.
func (g Graph) Clone() Graph {
	out := Graph{
		Version:   g.Version,
		Entities:  make(map[string]domain.Entity, len(g.Entities)),
		Relations: make(map[string]domain.Relation, len(g.Relations)),
		Born:      make(map[string]int64, len(g.Born)),
	}
	for id, e := range g.Entities {
		e.Aliases = append([]string(nil), e.Aliases...)
		e.Support = append([]string(nil), e.Support...)
		e.Documents = append([]string(nil), e.Documents...)
		out.Entities[id] = e
	}
	for k, r := range g.Relations {
		r.Support = append([]string(nil), r.Support...)
		out.Relations[k] = r
	}
	for id, seq := range g.Born {
		out.Born[id] = seq
	}
	return out
}

// Stats summarizes one graph version.
type Stats struct {
	Version   int64 `json:"version"`
	Entities  int   `json:"entities"`
	Relations int   `json:"relations"`
}

// Stats returns counts for the graph.
func (g Graph) Stats() Stats {
	return Stats{Version: g.Version, Entities: len(g.Entities), Relations: len(g.Relations)}
}

// IntegrateResult reports what one integration pass changed.
type IntegrateResult struct {
	EntitiesAdded    int   `json:"entities_added"`
	EntitiesMerged   int   `json:"entities_merged"`
	RelationsAdded   int   `json:"relations_added"`
	RelationsUpdated int   `json:"relations_updated"`
	Version          int64 `json:"version"`
}
