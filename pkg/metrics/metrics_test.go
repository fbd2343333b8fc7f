package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounterAndGauge(t *testing.T) {
	r := New()
	c := r.Counter("ingest_documents_total", "Documents ingested.")
	c.Inc()
	c.Add(2)
	if c.Value() != 3 {
		t.Errorf("counter = %d", c.Value())
	}

	g := r.Gauge("graph_version", "Current graph version.")
	g.Set(7)
	g.Inc()
	g.Dec()
	if g.Value() != 7 {
		t.Errorf("gauge = %d", g.Value())
	}
}

func TestCounterReuseByName(t *testing.T) {
	r := New()
	a := r.Counter("query_total", "")
	b := r.Counter("query_total", "")
	if a != b {
		t.Error("same name must return the same counter")
	}
}

func TestWithLabels(t *testing.T) {
	got := WithLabels("ingest_documents_total", "kind", "screenplay")
	if got != `ingest_documents_total{kind="screenplay"}` {
		t.Errorf("got %q", got)
	}
	if WithLabels("x", "odd") != "x" {
		t.Error("odd label pairs must be ignored")
	}
}

func TestRenderExposition(t *testing.T) {
	r := New()
	r.Counter(WithLabels("ingest_documents_total", "kind", "screenplay"), "Documents ingested.").Inc()
	r.Counter(WithLabels("ingest_documents_total", "kind", "moodboard"), "").Add(2)
	h := r.Histogram("query_duration_seconds", "Query latency.", []float64{0.1, 1})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(5)

	out := r.Render()
	for _, want := range []string{
		"# TYPE ingest_documents_total counter",
		`ingest_documents_total{kind="moodboard"} 2`,
		`ingest_documents_total{kind="screenplay"} 1`,
		"# TYPE query_duration_seconds histogram",
		`query_duration_seconds_bucket{le="0.1"} 1`,
		`query_duration_seconds_bucket{le="1"} 2`,
		`query_duration_seconds_bucket{le="+Inf"} 3`,
		"query_duration_seconds_count 3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestHandlerContentType(t *testing.T) {
	r := New()
	r.Counter("up", "").Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "up 1") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
