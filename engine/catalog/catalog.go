// Package catalog records document metadata in Neo4j so re-ingestions of the
// same title can be detected and superseded. The content itself never lands
// here; only identity, kind, title, and ingestion time.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/cinegraph/cinegraph/engine/domain"
	"github.com/cinegraph/cinegraph/pkg/repo"
)

// Catalog tracks ingested documents.
type Catalog struct {
	docs repo.Repository[domain.Document, string]
}

// New wraps any document repository; tests pass a fake.
func New(docs repo.Repository[domain.Document, string]) *Catalog {
	return &Catalog{docs: docs}
}

// NewNeo4j builds a catalog backed by Document nodes.
func NewNeo4j(driver neo4j.DriverWithContext) *Catalog {
	return New(repo.NewNeo4jRepo[domain.Document, string](
		driver, "Document", docToMap, docFromRecord,
	))
}

// Register stores the document's metadata.
func (c *Catalog) Register(ctx context.Context, doc domain.Document) error {
	if _, err := c.docs.Create(ctx, doc); err != nil {
		return fmt.Errorf("catalog: register %s: %w", doc.ID, err)
	}
	return nil
}

// Get returns one document by id.
func (c *Catalog) Get(ctx context.Context, id string) (domain.Document, error) {
	return c.docs.Get(ctx, id)
}

// List returns documents, optionally restricted to one kind.
func (c *Catalog) List(ctx context.Context, kind domain.DocumentKind, offset, limit int) ([]domain.Document, error) {
	opts := repo.ListOpts{Offset: offset, Limit: limit}
	if kind != "" {
		opts.Filter = map[string]any{"kind": string(kind)}
	}
	return c.docs.List(ctx, opts)
}

// Supersedes returns the id of the most recent earlier document with the
// same kind and title, or "" when doc is the first of its name. Ingestion
// uses this to drop the old document's vectors.
func (c *Catalog) Supersedes(ctx context.Context, doc domain.Document) (string, error) {
	prior, err := c.docs.List(ctx, repo.ListOpts{
		Filter: map[string]any{"kind": string(doc.Kind), "title": doc.Title},
	})
	if err != nil {
		return "", fmt.Errorf("catalog: supersession lookup for %q: %w", doc.Title, err)
	}
	var latest domain.Document
	for _, p := range prior {
		if p.ID == doc.ID {
			continue
		}
		if latest.ID == "" || p.IngestedAt.After(latest.IngestedAt) {
			latest = p
		}
	}
	return latest.ID, nil
}

func docToMap(d domain.Document) map[string]any {
	return map[string]any{
		"id":          d.ID,
		"kind":        string(d.Kind),
		"title":       d.Title,
		"content_ref": d.ContentRef,
		"ingested_at": d.IngestedAt.UTC().Format(time.RFC3339Nano),
	}
}

func docFromRecord(rec *neo4j.Record) (domain.Document, error) {
	var d domain.Document
	node, ok := rec.Values[0].(neo4j.Node)
	if !ok {
		return d, fmt.Errorf("catalog: unexpected record shape %T", rec.Values[0])
	}
	d.ID, _ = node.Props["id"].(string)
	if kind, ok := node.Props["kind"].(string); ok {
		d.Kind = domain.DocumentKind(kind)
	}
	d.Title, _ = node.Props["title"].(string)
	d.ContentRef, _ = node.Props["content_ref"].(string)
	if ts, ok := node.Props["ingested_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			d.IngestedAt = t
		}
	}
	return d, nil
}
