package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/cinegraph/cinegraph/engine/domain"
)

// Neo4jStore persists graph versions in Neo4j. Entities become :Entity nodes
// and relations become typed relationships; a :GraphMeta singleton carries
// the version. Flush writes the whole version in one transaction so a crash
// never leaves a half-flushed graph behind.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jStore wraps an open driver.
func NewNeo4jStore(driver neo4j.DriverWithContext) *Neo4jStore {
	return &Neo4jStore{driver: driver}
}

var _ Store = (*Neo4jStore)(nil)

// Flush replaces the durable graph with g.
func (s *Neo4jStore) Flush(ctx context.Context, g Graph) error {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	ids := make([]string, 0, len(g.Entities))
	for id := range g.Entities {
		ids = append(ids, id)
	}

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx,
			`MATCH (n:Entity) WHERE NOT n.id IN $ids DETACH DELETE n`,
			map[string]any{"ids": ids}); err != nil {
			return nil, err
		}
		if _, err := tx.Run(ctx,
			`MATCH (:Entity)-[r]->(:Entity) DELETE r`, nil); err != nil {
			return nil, err
		}
		for id, e := range g.Entities {
			if _, err := tx.Run(ctx,
				`MERGE (n:Entity {id: $id}) SET n = $props`,
				map[string]any{"id": id, "props": entityToMap(e, g.Born[id])}); err != nil {
				return nil, err
			}
		}
		for _, r := range g.Relations {
			cypher := fmt.Sprintf(
				`MATCH (a:Entity {id: $src}), (b:Entity {id: $dst})
				 MERGE (a)-[r:%s]->(b)
				 SET r.weight = $weight, r.support = $support`,
				sanitizeRelType(string(r.Type)))
			if _, err := tx.Run(ctx, cypher, map[string]any{
				"src": r.Source, "dst": r.Target,
				"weight": r.Weight, "support": toAnySlice(r.Support),
			}); err != nil {
				return nil, err
			}
		}
		if _, err := tx.Run(ctx,
			`MERGE (m:GraphMeta {id: 'graph'}) SET m.version = $version`,
			map[string]any{"version": g.Version}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

// Load restores the latest flushed graph; an empty database yields an empty
// version-zero graph.
func (s *Neo4jStore) Load(ctx context.Context) (Graph, error) {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	g := NewGraph()

	result, err := sess.Run(ctx, `MATCH (m:GraphMeta {id: 'graph'}) RETURN m.version AS version`, nil)
	if err != nil {
		return Graph{}, err
	}
	if result.Next(ctx) {
		if v, ok := result.Record().Get("version"); ok {
			if version, ok := v.(int64); ok {
				g.Version = version
			}
		}
	}

	result, err = sess.Run(ctx, `MATCH (n:Entity) RETURN n`, nil)
	if err != nil {
		return Graph{}, err
	}
	for result.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "n")
		if err != nil {
			return Graph{}, err
		}
		e, born := entityFromProps(node.Props)
		if err := domain.ValidateEntity(e); err != nil {
			return Graph{}, fmt.Errorf("corrupt entity node: %w", err)
		}
		g.Entities[e.ID] = e
		g.Born[e.ID] = born
	}

	result, err = sess.Run(ctx,
		`MATCH (a:Entity)-[r]->(b:Entity)
		 RETURN a.id AS src, b.id AS dst, type(r) AS type, r.weight AS weight, r.support AS support`, nil)
	if err != nil {
		return Graph{}, err
	}
	for result.Next(ctx) {
		rec := result.Record()
		rel := domain.Relation{
			Source:  strVal(rec, "src"),
			Target:  strVal(rec, "dst"),
			Type:    domain.RelationType(strVal(rec, "type")),
			Support: strSliceVal(rec, "support"),
		}
		if w, ok := rec.Get("weight"); ok {
			if f, ok := w.(float64); ok {
				rel.Weight = f
			}
		}
		g.Relations[rel.Key()] = rel
	}
	return g, nil
}

func entityToMap(e domain.Entity, born int64) map[string]any {
	return map[string]any{
		"id":          e.ID,
		"type":        string(e.Type),
		"name":        e.Name,
		"aliases":     toAnySlice(e.Aliases),
		"description": e.Description,
		"support":     toAnySlice(e.Support),
		"documents":   toAnySlice(e.Documents),
		"confidence":  e.Confidence,
		"born":        born,
	}
}

func entityFromProps(props map[string]any) (domain.Entity, int64) {
	e := domain.Entity{
		ID:          strProp(props, "id"),
		Type:        domain.EntityType(strProp(props, "type")),
		Name:        strProp(props, "name"),
		Aliases:     strSliceProp(props, "aliases"),
		Description: strProp(props, "description"),
		Support:     strSliceProp(props, "support"),
		Documents:   strSliceProp(props, "documents"),
	}
	if v, ok := props["confidence"].(float64); ok {
		e.Confidence = v
	}
	var born int64
	if v, ok := props["born"].(int64); ok {
		born = v
	}
	return e, born
}

func strProp(props map[string]any, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}

func strSliceProp(props map[string]any, key string) []string {
	raw, ok := props[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func strVal(rec *neo4j.Record, key string) string {
	if v, ok := rec.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func strSliceVal(rec *neo4j.Record, key string) []string {
	v, ok := rec.Get(key)
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, x := range raw {
		if s, ok := x.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toAnySlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// sanitizeRelType keeps relationship types valid Cypher identifiers.
func sanitizeRelType(t string) string {
	safe := make([]byte, 0, len(t))
	for i := range t {
		c := t[i]
		if c >= 'a' && c <= 'z' {
			c -= 32
		}
		if c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' {
			safe = append(safe, c)
		}
	}
	if len(safe) == 0 {
		return "RELATED_TO"
	}
	return string(safe)
}
