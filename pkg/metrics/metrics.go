// Package metrics is a small Prometheus text-format registry backing the
// engine's /metrics endpoints: documents ingested, segments parsed, graph
// version, alignment runs, query latency. Counters, gauges, and histograms
// only; label combinations are baked into series names with WithLabels.
package metrics

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets are the histogram bounds, in seconds, applied when a caller
// passes nil buckets.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Counter only ever increases.
type Counter struct{ val atomic.Int64 }

func (c *Counter) Inc()         { c.val.Add(1) }
func (c *Counter) Add(n int64)  { c.val.Add(n) }
func (c *Counter) Value() int64 { return c.val.Load() }

// Gauge moves in both directions; the graph version gauge is the main user.
type Gauge struct{ val atomic.Int64 }

func (g *Gauge) Set(n int64)  { g.val.Store(n) }
func (g *Gauge) Inc()         { g.val.Add(1) }
func (g *Gauge) Dec()         { g.val.Add(-1) }
func (g *Gauge) Value() int64 { return g.val.Load() }

// Histogram counts observations against fixed upper bounds. Counts are kept
// cumulative the way the exposition format reports them.
type Histogram struct {
	mu     sync.Mutex
	bounds []float64
	cum    []uint64
	sum    float64
	count  uint64
}

func newHistogram(bounds []float64) *Histogram {
	bs := append([]float64(nil), bounds...)
	sort.Float64s(bs)
	return &Histogram{bounds: bs, cum: make([]uint64, len(bs))}
}

// Observe records one value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	h.sum += v
	h.count++
	for i := len(h.bounds) - 1; i >= 0 && v <= h.bounds[i]; i-- {
		h.cum[i]++
	}
	h.mu.Unlock()
}

// Since observes the elapsed time since t in seconds.
func (h *Histogram) Since(t time.Time) {
	h.Observe(time.Since(t).Seconds())
}

func (h *Histogram) render(b *strings.Builder, name string) {
	base, labels := splitName(name)
	h.mu.Lock()
	cum := append([]uint64(nil), h.cum...)
	sum, count := h.sum, h.count
	h.mu.Unlock()
	for i, bound := range h.bounds {
		fmt.Fprintf(b, "%s_bucket%s %d\n", base, bucketLabels(fmt.Sprintf("%g", bound), labels), cum[i])
	}
	fmt.Fprintf(b, "%s_bucket%s %d\n", base, bucketLabels("+Inf", labels), count)
	suffix := ""
	if labels != "" {
		suffix = "{" + labels + "}"
	}
	fmt.Fprintf(b, "%s_sum%s %g\n", base, suffix, sum)
	fmt.Fprintf(b, "%s_count%s %d\n", base, suffix, count)
}

// family is the HELP/TYPE metadata shared by every labeled series of one
// base name.
type family struct {
	typ  string
	help string
}

// Registry holds named series grouped into families.
type Registry struct {
	mu       sync.RWMutex
	families map[string]family
	order    []string // base names in first-registration order
	counters map[string]*Counter
	gauges   map[string]*Gauge
	hists    map[string]*Histogram
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		families: make(map[string]family),
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
		hists:    make(map[string]*Histogram),
	}
}

// Counter returns the counter series with the given name, creating it on
// first use. Repeated calls with the same name share one counter.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{}
	r.counters[name] = c
	r.register(name, "counter", help)
	return c
}

// Gauge returns the gauge series with the given name.
func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{}
	r.gauges[name] = g
	r.register(name, "gauge", help)
	return g
}

// Histogram returns the histogram series with the given name. Nil buckets
// select DefaultBuckets.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.hists[name]; ok {
		return h
	}
	h := newHistogram(buckets)
	r.hists[name] = h
	r.register(name, "histogram", help)
	return h
}

// register must run under the write lock.
func (r *Registry) register(name, typ, help string) {
	base, _ := splitName(name)
	f, ok := r.families[base]
	if !ok {
		r.order = append(r.order, base)
		r.families[base] = family{typ: typ, help: help}
		return
	}
	if f.help == "" && help != "" {
		f.help = help
		r.families[base] = f
	}
}

// WithLabels bakes label pairs into a series name, so each combination
// renders as its own line. Odd pair counts leave the name untouched.
func WithLabels(name string, kvs ...string) string {
	if len(kvs) == 0 || len(kvs)%2 != 0 {
		return name
	}
	parts := make([]string, 0, len(kvs)/2)
	for i := 0; i < len(kvs); i += 2 {
		parts = append(parts, fmt.Sprintf("%s=%q", kvs[i], kvs[i+1]))
	}
	return name + "{" + strings.Join(parts, ",") + "}"
}

// splitName separates a series name into base name and inner label block.
func splitName(name string) (base, labels string) {
	if i := strings.IndexByte(name, '{'); i != -1 {
		return name[:i], name[i+1 : len(name)-1]
	}
	return name, ""
}

// bucketLabels renders the label block of a histogram bucket line, with le
// first and the series labels after it.
func bucketLabels(le, labels string) string {
	if labels == "" {
		return `{le="` + le + `"}`
	}
	return `{le="` + le + `",` + labels + `}`
}

// Render writes every family in registration order, series sorted by name,
// in the Prometheus text exposition format.
func (r *Registry) Render() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, base := range r.order {
		f := r.families[base]
		if f.help != "" {
			fmt.Fprintf(&b, "# HELP %s %s\n", base, f.help)
		}
		fmt.Fprintf(&b, "# TYPE %s %s\n", base, f.typ)
		switch f.typ {
		case "counter":
			for _, n := range seriesNames(r.counters, base) {
				fmt.Fprintf(&b, "%s %d\n", n, r.counters[n].Value())
			}
		case "gauge":
			for _, n := range seriesNames(r.gauges, base) {
				fmt.Fprintf(&b, "%s %d\n", n, r.gauges[n].Value())
			}
		case "histogram":
			for _, n := range seriesNames(r.hists, base) {
				r.hists[n].render(&b, n)
			}
		}
	}
	return b.String()
}

// seriesNames returns the sorted series of one family.
func seriesNames[T any](m map[string]*T, base string) []string {
	var out []string
	for n := range m {
		if b, _ := splitName(n); b == base {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Handler serves the rendered registry.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Write([]byte(r.Render()))
	})
}

// Serve runs a standalone listener exposing /metrics, for processes that
// carry no API server of their own.
func (r *Registry) Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}

// ServeAsync runs Serve in a goroutine.
func (r *Registry) ServeAsync(port int) {
	go func() {
		if err := r.Serve(port); err != nil {
			slog.Error("metrics listener stopped", "port", port, "error", err)
		}
	}()
}
