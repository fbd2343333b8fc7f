package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cinegraph/cinegraph/engine/domain"
	"github.com/cinegraph/cinegraph/engine/extract"
	"github.com/cinegraph/cinegraph/engine/graph"
	"github.com/cinegraph/cinegraph/engine/parse"
	"github.com/cinegraph/cinegraph/engine/semantic"
	"github.com/cinegraph/cinegraph/engine/vision"
	"github.com/cinegraph/cinegraph/pkg/model"
)

const screenplaySample = `INT. WAREHOUSE - NIGHT

ADA
They were never going to let us leave.
`

type fakeVectors struct {
	upserts [][]semantic.VectorRecord
	deleted []string
}

func (f *fakeVectors) Upsert(_ context.Context, records []semantic.VectorRecord) error {
	f.upserts = append(f.upserts, records)
	return nil
}

func (f *fakeVectors) DeleteByDocID(_ context.Context, docID string) error {
	f.deleted = append(f.deleted, docID)
	return nil
}

type fakeModel struct {
	embedErr error
}

func (f *fakeModel) Generate(context.Context, model.Request) (*model.Response, error) {
	return &model.Response{Text: "ok"}, nil
}

func (f *fakeModel) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

type memStore struct {
	flushed  []graph.Graph
	flushErr error
}

func (m *memStore) Load(context.Context) (graph.Graph, error) { return graph.NewGraph(), nil }
func (m *memStore) Flush(_ context.Context, g graph.Graph) error {
	if m.flushErr != nil {
		return m.flushErr
	}
	m.flushed = append(m.flushed, g)
	return nil
}

func newDeps(vectors *fakeVectors, client model.Client, store graph.Store) Deps {
	return Deps{
		Parser:    parse.New(vision.NewHeuristic(), nil),
		Extractor: extract.New(nil),
		Client:    client,
		Vectors:   vectors,
		Graph:     graph.New(nil),
		Store:     store,
	}
}

func TestPipelineIngestsScreenplay(t *testing.T) {
	vectors := &fakeVectors{}
	store := &memStore{}
	deps := newDeps(vectors, &fakeModel{}, store)
	pipeline := NewPipeline(deps)

	summary, err := pipeline(context.Background(), Request{
		Kind: domain.KindScreenplay, Title: "draft 1", Content: []byte(screenplaySample),
	}).Unwrap()
	if err != nil {
		t.Fatal(err)
	}
	if summary.Segments != 1 || summary.Entities == 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.GraphVersion != 1 {
		t.Errorf("graph version = %d, want 1", summary.GraphVersion)
	}
	if len(vectors.upserts) != 1 || len(vectors.upserts[0]) != summary.Segments {
		t.Errorf("expected one upsert with %d records", summary.Segments)
	}
	if len(store.flushed) != 1 {
		t.Errorf("expected one durable flush, got %d", len(store.flushed))
	}
	if deps.Graph.Stats().Entities == 0 {
		t.Error("graph should hold extracted entities")
	}
}

func TestPipelineRejectsEmptyContent(t *testing.T) {
	pipeline := NewPipeline(newDeps(&fakeVectors{}, &fakeModel{}, nil))
	_, err := pipeline(context.Background(), Request{Kind: domain.KindScreenplay, Title: "x"}).Unwrap()
	if !errors.Is(err, domain.ErrUnreadableDocument) {
		t.Fatalf("expected ErrUnreadableDocument, got %v", err)
	}
}

func TestPipelineRejectsUnknownKind(t *testing.T) {
	pipeline := NewPipeline(newDeps(&fakeVectors{}, &fakeModel{}, nil))
	_, err := pipeline(context.Background(), Request{Kind: "poster", Title: "x", Content: []byte("y")}).Unwrap()
	if !errors.Is(err, domain.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestPipelineDegradesWithoutModel(t *testing.T) {
	vectors := &fakeVectors{}
	deps := newDeps(vectors, &fakeModel{embedErr: model.ErrUnavailable}, nil)
	pipeline := NewPipeline(deps)

	summary, err := pipeline(context.Background(), Request{
		Kind: domain.KindScreenplay, Title: "draft", Content: []byte(screenplaySample),
	}).Unwrap()
	if err != nil {
		t.Fatal(err)
	}
	if len(vectors.upserts) != 0 {
		t.Error("no vectors should be written when embedding is down")
	}
	if len(summary.Warnings) == 0 || !strings.Contains(summary.Warnings[0], "model unavailable") {
		t.Errorf("expected degradation warning, got %v", summary.Warnings)
	}
	if summary.GraphVersion == 0 {
		t.Error("graph integration must still happen")
	}
}

func TestPipelineSupersedesOldDocument(t *testing.T) {
	vectors := &fakeVectors{}
	deps := newDeps(vectors, &fakeModel{}, nil)
	deps.SupersededF = func(_ context.Context, doc domain.Document) (string, error) {
		return "doc-old", nil
	}
	pipeline := NewPipeline(deps)

	summary, err := pipeline(context.Background(), Request{
		Kind: domain.KindScreenplay, Title: "draft 2", Content: []byte(screenplaySample),
	}).Unwrap()
	if err != nil {
		t.Fatal(err)
	}
	if summary.Superseded != "doc-old" {
		t.Errorf("superseded = %q", summary.Superseded)
	}
	if len(vectors.deleted) != 1 || vectors.deleted[0] != "doc-old" {
		t.Errorf("old vectors not dropped: %v", vectors.deleted)
	}
}

func TestPipelineReingestionCreatesNewDocument(t *testing.T) {
	deps := newDeps(&fakeVectors{}, &fakeModel{}, nil)
	pipeline := NewPipeline(deps)

	s1, err := pipeline(context.Background(), Request{Kind: domain.KindScreenplay, Title: "t", Content: []byte(screenplaySample)}).Unwrap()
	if err != nil {
		t.Fatal(err)
	}
	s2, err := pipeline(context.Background(), Request{Kind: domain.KindScreenplay, Title: "t", Content: []byte(screenplaySample)}).Unwrap()
	if err != nil {
		t.Fatal(err)
	}
	if s1.DocumentID == s2.DocumentID {
		t.Error("re-ingestion must mint a new document identity")
	}
	// Same names from both documents merge into one entity set.
	stats := deps.Graph.Stats()
	if stats.Entities != s1.Entities {
		t.Errorf("expected %d entities after merge, got %d", s1.Entities, stats.Entities)
	}
}

func TestPipelineFlushFailureIsWarning(t *testing.T) {
	store := &memStore{flushErr: errors.New("db down")}
	pipeline := NewPipeline(newDeps(&fakeVectors{}, &fakeModel{}, store))

	summary, err := pipeline(context.Background(), Request{
		Kind: domain.KindScreenplay, Title: "t", Content: []byte(screenplaySample),
	}).Unwrap()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, w := range summary.Warnings {
		if strings.Contains(w, "flush") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected flush warning, got %v", summary.Warnings)
	}
}

func TestPersistCarriesParserWarnings(t *testing.T) {
	persist := NewPersist(newDeps(&fakeVectors{}, nil, nil))
	doc := EmbeddedDoc{ExtractedDoc: ExtractedDoc{ParsedDoc: ParsedDoc{
		Doc:      domain.Document{ID: "doc-1", Kind: domain.KindMoodboard, Title: "deck"},
		Warnings: []string{"pdf page 2 skipped: no extractable text"},
	}}}
	summary, err := persist(context.Background(), doc).Unwrap()
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Warnings) != 1 || !strings.Contains(summary.Warnings[0], "page 2") {
		t.Errorf("parser warnings must surface on the summary, got %v", summary.Warnings)
	}
}

func TestPipelineMoodboardCaptions(t *testing.T) {
	deps := newDeps(&fakeVectors{}, &fakeModel{}, nil)
	pipeline := NewPipeline(deps)

	summary, err := pipeline(context.Background(), Request{
		Kind:    domain.KindMoodboard,
		Title:   "night exteriors",
		Content: []byte("Cold blue neon over wet asphalt, low-key"),
	}).Unwrap()
	if err != nil {
		t.Fatal(err)
	}
	if summary.Entities == 0 || summary.Relations == 0 {
		t.Fatalf("moodboard should yield visual entities and EVOKES_MOOD edges: %+v", summary)
	}
}
