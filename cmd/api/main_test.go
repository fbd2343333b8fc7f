package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cinegraph/cinegraph/engine/align"
	"github.com/cinegraph/cinegraph/engine/catalog"
	"github.com/cinegraph/cinegraph/engine/domain"
	"github.com/cinegraph/cinegraph/engine/extract"
	"github.com/cinegraph/cinegraph/engine/graph"
	"github.com/cinegraph/cinegraph/engine/ingest"
	"github.com/cinegraph/cinegraph/engine/parse"
	"github.com/cinegraph/cinegraph/engine/query"
	"github.com/cinegraph/cinegraph/engine/vision"
	"github.com/cinegraph/cinegraph/pkg/metrics"
	"github.com/cinegraph/cinegraph/pkg/repo"
)

type memDocs struct {
	docs map[string]domain.Document
}

func (m *memDocs) Get(_ context.Context, id string) (domain.Document, error) {
	d, ok := m.docs[id]
	if !ok {
		return d, errors.New("not found")
	}
	return d, nil
}

func (m *memDocs) List(_ context.Context, opts repo.ListOpts) ([]domain.Document, error) {
	var out []domain.Document
	for _, d := range m.docs {
		if kind, ok := opts.Filter["kind"]; ok && string(d.Kind) != kind.(string) {
			continue
		}
		if title, ok := opts.Filter["title"]; ok && d.Title != title.(string) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *memDocs) Create(_ context.Context, d domain.Document) (domain.Document, error) {
	m.docs[d.ID] = d
	return d, nil
}

func (m *memDocs) Update(_ context.Context, d domain.Document) (domain.Document, error) {
	m.docs[d.ID] = d
	return d, nil
}

func (m *memDocs) Delete(_ context.Context, id string) error {
	delete(m.docs, id)
	return nil
}

// newTestServer wires an in-memory server: no Neo4j, Qdrant, NATS, or model.
func newTestServer() *server {
	kg := graph.New(nil)
	cat := catalog.New(&memDocs{docs: make(map[string]domain.Document)})
	deps := ingest.Deps{
		Parser:      parse.New(vision.NewHeuristic(), nil),
		Extractor:   extract.New(nil),
		Graph:       kg,
		SupersededF: cat.Supersedes,
		RegisterF:   cat.Register,
	}
	return &server{
		pipeline: ingest.NewPipeline(deps),
		aligner:  align.New(align.LexicalScorer{}, nil),
		engine:   query.New(kg, nil, nil, query.DefaultOptions(), nil),
		kg:       kg,
		cat:      cat,
		reg:      metrics.New(),
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

const screenplaySample = `INT. WAREHOUSE - NIGHT

ADA
They were never going to let us leave.
`

func ingestSample(t *testing.T, h http.Handler) ingest.Summary {
	t.Helper()
	rec := do(t, h, "POST", "/api/documents", ingest.Request{
		Kind: domain.KindScreenplay, Title: "draft", Content: []byte(screenplaySample),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("ingest status = %d body = %s", rec.Code, rec.Body)
	}
	var summary ingest.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatal(err)
	}
	return summary
}

func TestHealth(t *testing.T) {
	h := newTestServer().routes()
	rec := do(t, h, "GET", "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestIngestDocument(t *testing.T) {
	s := newTestServer()
	h := s.routes()

	summary := ingestSample(t, h)
	if summary.Entities == 0 || summary.GraphVersion != 1 {
		t.Errorf("summary = %+v", summary)
	}

	rec := do(t, h, "GET", "/api/documents?kind=screenplay", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var docs []domain.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &docs); err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Title != "draft" {
		t.Errorf("docs = %+v", docs)
	}
}

func TestIngestRejectsBadRequests(t *testing.T) {
	h := newTestServer().routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/documents", strings.NewReader("{broken")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON: status = %d", rec.Code)
	}

	rec = do(t, h, "POST", "/api/documents", ingest.Request{Kind: "poster", Title: "x", Content: []byte("y")})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown kind: status = %d", rec.Code)
	}
}

func TestIngestAsyncWithoutNATS(t *testing.T) {
	h := newTestServer().routes()
	rec := do(t, h, "POST", "/api/documents?async=1", ingest.Request{
		Kind: domain.KindScreenplay, Title: "t", Content: []byte("INT. LAB - DAY"),
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestQueryAnswersFromGraph(t *testing.T) {
	s := newTestServer()
	h := s.routes()
	ingestSample(t, h)

	rec := do(t, h, "POST", "/api/query", QueryRequest{Question: "Where does Ada appear?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var resp QueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	// No model wired: extractive fallback, still with citations.
	if !resp.Degraded {
		t.Error("expected degraded answer without a model")
	}
	if len(resp.Citations) == 0 || len(resp.Entities) == 0 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestQueryErrors(t *testing.T) {
	s := newTestServer()
	h := s.routes()
	ingestSample(t, h)

	rec := do(t, h, "POST", "/api/query", QueryRequest{Question: "a"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("short question: status = %d", rec.Code)
	}

	rec = do(t, h, "POST", "/api/query", QueryRequest{Question: "anything about the moon colony?"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("no context: status = %d", rec.Code)
	}
}

func TestAlignEndpoint(t *testing.T) {
	s := newTestServer()
	h := s.routes()
	ingestSample(t, h)

	rec := do(t, h, "POST", "/api/align", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var resp AlignResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	// One screenplay only: nothing to align against.
	if resp.Kept != 0 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestGraphStatsAndMetrics(t *testing.T) {
	s := newTestServer()
	h := s.routes()
	ingestSample(t, h)

	rec := do(t, h, "GET", "/api/graph/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats graph.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Entities == 0 || stats.Version != 1 {
		t.Errorf("stats = %+v", stats)
	}

	rec = do(t, h, "GET", "/metrics", nil)
	if !strings.Contains(rec.Body.String(), "ingest_documents_total") {
		t.Errorf("metrics body = %s", rec.Body)
	}
}
