package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/cinegraph/cinegraph/engine/domain"
	"github.com/cinegraph/cinegraph/pkg/repo"
)

type memRepo struct {
	docs map[string]domain.Document
}

func newMemRepo() *memRepo { return &memRepo{docs: make(map[string]domain.Document)} }

func (m *memRepo) Get(_ context.Context, id string) (domain.Document, error) {
	d, ok := m.docs[id]
	if !ok {
		return d, errors.New("not found")
	}
	return d, nil
}

func (m *memRepo) List(_ context.Context, opts repo.ListOpts) ([]domain.Document, error) {
	var out []domain.Document
	for _, d := range m.docs {
		match := true
		for k, v := range opts.Filter {
			switch k {
			case "kind":
				match = match && string(d.Kind) == v.(string)
			case "title":
				match = match && d.Title == v.(string)
			}
		}
		if match {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memRepo) Create(_ context.Context, d domain.Document) (domain.Document, error) {
	m.docs[d.ID] = d
	return d, nil
}

func (m *memRepo) Update(_ context.Context, d domain.Document) (domain.Document, error) {
	m.docs[d.ID] = d
	return d, nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	delete(m.docs, id)
	return nil
}

func doc(id, title string, age time.Duration) domain.Document {
	return domain.Document{
		ID: id, Kind: domain.KindScreenplay, Title: title,
		IngestedAt: time.Now().Add(-age),
	}
}

func TestSupersedesFirstDocument(t *testing.T) {
	c := New(newMemRepo())
	d := doc("doc-1", "draft", 0)
	if err := c.Register(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	old, err := c.Supersedes(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	if old != "" {
		t.Errorf("first document must supersede nothing, got %q", old)
	}
}

func TestSupersedesPicksNewestPrior(t *testing.T) {
	c := New(newMemRepo())
	ctx := context.Background()
	for _, d := range []domain.Document{
		doc("doc-1", "draft", 2*time.Hour),
		doc("doc-2", "draft", time.Hour),
		doc("doc-other", "other title", time.Minute),
	} {
		if err := c.Register(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	latest := doc("doc-3", "draft", 0)
	old, err := c.Supersedes(ctx, latest)
	if err != nil {
		t.Fatal(err)
	}
	if old != "doc-2" {
		t.Errorf("superseded = %q, want doc-2", old)
	}
}

func TestSupersedesIgnoresOtherKind(t *testing.T) {
	c := New(newMemRepo())
	ctx := context.Background()
	board := domain.Document{ID: "doc-b", Kind: domain.KindMoodboard, Title: "draft", IngestedAt: time.Now()}
	if err := c.Register(ctx, board); err != nil {
		t.Fatal(err)
	}

	old, err := c.Supersedes(ctx, doc("doc-s", "draft", 0))
	if err != nil {
		t.Fatal(err)
	}
	if old != "" {
		t.Errorf("moodboard must not supersede a screenplay, got %q", old)
	}
}

func TestRoundTripMapping(t *testing.T) {
	in := domain.Document{
		ID: "doc-7", Kind: domain.KindMoodboard, Title: "night palette",
		ContentRef: "s3://boards/7.pdf", IngestedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	props := docToMap(in)
	if props["kind"] != "moodboard" || props["title"] != "night palette" {
		t.Errorf("props = %v", props)
	}
	if props["ingested_at"] != "2026-05-01T12:00:00Z" {
		t.Errorf("ingested_at = %v", props["ingested_at"])
	}

	out, err := docFromRecord(&neo4j.Record{
		Keys:   []string{"n"},
		Values: []any{neo4j.Node{Props: props}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.ID != in.ID || out.Kind != in.Kind || !out.IngestedAt.Equal(in.IngestedAt) {
		t.Errorf("round trip lost fields: %+v", out)
	}
}
