package repo

import (
	"context"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type doc struct {
	ID    string
	Title string
}

// fakeRunner records the cypher it was asked to run and replays canned records.
type fakeRunner struct {
	cypher  []string
	params  []map[string]any
	records []*neo4j.Record
}

type fakeResult struct {
	records []*neo4j.Record
	pos     int
}

func (r *fakeResult) Next(context.Context) bool {
	r.pos++
	return r.pos <= len(r.records)
}

func (r *fakeResult) Record() *neo4j.Record { return r.records[r.pos-1] }

func (f *fakeRunner) Run(_ context.Context, cypher string, params map[string]any) (result, error) {
	f.cypher = append(f.cypher, cypher)
	f.params = append(f.params, params)
	return &fakeResult{records: f.records}, nil
}

func (f *fakeRunner) Close(context.Context) error { return nil }

func record(props map[string]any) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{"n"},
		Values: []any{neo4j.Node{Props: props}},
	}
}

func newTestRepo(fr *fakeRunner) *Neo4jRepo[doc, string] {
	r := NewNeo4jRepo[doc, string](nil, "Document",
		func(d doc) map[string]any { return map[string]any{"id": d.ID, "title": d.Title} },
		func(rec *neo4j.Record) (doc, error) {
			node := rec.Values[0].(neo4j.Node)
			return doc{
				ID:    node.Props["id"].(string),
				Title: node.Props["title"].(string),
			}, nil
		},
	)
	r.newSession = func(context.Context) runner { return fr }
	return r
}

func TestGet(t *testing.T) {
	runner := &fakeRunner{records: []*neo4j.Record{record(map[string]any{"id": "doc-1", "title": "draft"})}}
	r := newTestRepo(runner)

	got, err := r.Get(context.Background(), "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "draft" {
		t.Errorf("title = %q", got.Title)
	}
	if !strings.Contains(runner.cypher[0], "MATCH (n:Document {id: $id})") {
		t.Errorf("cypher = %q", runner.cypher[0])
	}
}

func TestGetNotFound(t *testing.T) {
	r := newTestRepo(&fakeRunner{})
	if _, err := r.Get(context.Background(), "missing"); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestListAppliesFilter(t *testing.T) {
	runner := &fakeRunner{records: []*neo4j.Record{
		record(map[string]any{"id": "doc-1", "title": "draft"}),
		record(map[string]any{"id": "doc-2", "title": "draft"}),
	}}
	r := newTestRepo(runner)

	items, err := r.List(context.Background(), ListOpts{
		Filter: map[string]any{"title": "draft", "kind": "screenplay"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Errorf("len = %d", len(items))
	}
	cy := runner.cypher[0]
	if !strings.Contains(cy, "WHERE n.kind = $f_kind AND n.title = $f_title") {
		t.Errorf("filter clause missing or unordered: %q", cy)
	}
	if runner.params[0]["f_title"] != "draft" {
		t.Errorf("params = %v", runner.params[0])
	}
}

func TestListWithoutFilter(t *testing.T) {
	runner := &fakeRunner{}
	r := newTestRepo(runner)
	if _, err := r.List(context.Background(), ListOpts{Limit: 5}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(runner.cypher[0], "WHERE") {
		t.Errorf("unexpected WHERE: %q", runner.cypher[0])
	}
	if runner.params[0]["limit"] != 5 {
		t.Errorf("limit = %v", runner.params[0]["limit"])
	}
}

func TestCreateAndDelete(t *testing.T) {
	runner := &fakeRunner{records: []*neo4j.Record{record(map[string]any{"id": "doc-9", "title": "t"})}}
	r := newTestRepo(runner)

	if _, err := r.Create(context.Background(), doc{ID: "doc-9", Title: "t"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(runner.cypher[0], "CREATE (n:Document $props)") {
		t.Errorf("cypher = %q", runner.cypher[0])
	}

	if err := r.Delete(context.Background(), "doc-9"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(runner.cypher[1], "DELETE n") {
		t.Errorf("cypher = %q", runner.cypher[1])
	}
}
