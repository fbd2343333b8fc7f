// Package query answers natural-language questions over the fused graph. It
// resolves candidate entities by name and by semantic retrieval, expands a
// bounded-hop subgraph, and composes an answer with deterministic citations:
// identical graph state and question always cite the same segments, whatever
// the language model returns.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/cinegraph/cinegraph/engine/domain"
	"github.com/cinegraph/cinegraph/engine/graph"
	"github.com/cinegraph/cinegraph/engine/semantic"
	"github.com/cinegraph/cinegraph/pkg/model"
)

// Searcher abstracts vector retrieval.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, topK int) ([]semantic.SearchResult, error)
}

// Options configures the query engine.
type Options struct {
	TopK          int
	DefaultHops   int
	MinEdgeWeight float64
	MinRelevance  float32
	SystemPrompt  string
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{
		TopK:          8,
		DefaultHops:   2,
		MinEdgeWeight: 0.25,
		MinRelevance:  0.35,
		SystemPrompt:  defaultSystemPrompt,
	}
}

const defaultSystemPrompt = `You are a film development assistant. Answer the
question using ONLY the provided script and mood-board context. If the
context does not contain enough information, say so plainly.`

// Engine runs the query pipeline.
type Engine struct {
	kg     *graph.KnowledgeGraph
	search Searcher
	client model.Client
	opts   Options
	log    *slog.Logger
}

// New creates a query engine. search and client may be nil in reduced
// deployments; the engine degrades rather than fails.
func New(kg *graph.KnowledgeGraph, search Searcher, client model.Client, opts Options, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.DefaultHops <= 0 {
		opts.DefaultHops = DefaultOptions().DefaultHops
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	return &Engine{kg: kg, search: search, client: client, opts: opts, log: log}
}

// Answer runs the full pipeline for one question.
func (e *Engine) Answer(ctx context.Context, q domain.Query) (*domain.Answer, error) {
	if err := domain.ValidateQuery(q); err != nil {
		return nil, err
	}
	hops := q.Hops
	if hops == 0 {
		hops = e.opts.DefaultHops
	}

	g := e.kg.Snapshot()
	degraded := false

	seeds := resolveByName(g, q.Text)

	var hits []semantic.SearchResult
	if e.search != nil && e.client != nil {
		var err error
		hits, err = e.retrieve(ctx, q.Text)
		if err != nil {
			if !errors.Is(err, model.ErrUnavailable) {
				return nil, err
			}
			e.log.Warn("retrieval unavailable, answering from graph only", "error", err)
			degraded = true
		}
	}
	hits = filterHits(hits, e.opts.MinRelevance)
	seeds = append(seeds, seedsFromHits(g, hits)...)
	seeds = uniqueSorted(seeds)

	if len(seeds) == 0 && len(hits) == 0 {
		return nil, fmt.Errorf("%w: no entities or passages match the question", domain.ErrInsufficientContext)
	}

	sub := expand(g, seeds, hops, e.opts.MinEdgeWeight)
	citations := citationsFor(g, sub, hits)

	text, genDegraded := e.compose(ctx, q.Text, g, sub, hits)
	return &domain.Answer{
		Text:      text,
		Citations: citations,
		Entities:  sub,
		Degraded:  degraded || genDegraded,
	}, nil
}

// retrieve embeds the question and searches the vector index.
func (e *Engine) retrieve(ctx context.Context, question string) ([]semantic.SearchResult, error) {
	vecs, err := e.client.Embed(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, model.ErrUnavailable
	}
	return e.search.Search(ctx, vecs[0], e.opts.TopK)
}

// resolveByName finds entities whose name or alias occurs in the question.
func resolveByName(g graph.Graph, question string) []string {
	lower := strings.ToLower(question)
	var out []string
	for id, ent := range g.Entities {
		for _, name := range append([]string{ent.Name}, ent.Aliases...) {
			if containsWord(lower, domain.NormalizeName(name)) {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

// seedsFromHits maps retrieved segments back to the entities they support.
func seedsFromHits(g graph.Graph, hits []semantic.SearchResult) []string {
	if len(hits) == 0 {
		return nil
	}
	hitSegs := make(map[string]bool, len(hits))
	for _, h := range hits {
		hitSegs[h.SegmentID] = true
	}
	var out []string
	for id, ent := range g.Entities {
		for _, s := range ent.Support {
			if hitSegs[s] {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

func filterHits(hits []semantic.SearchResult, min float32) []semantic.SearchResult {
	out := hits[:0]
	for _, h := range hits {
		if h.Score >= min {
			out = append(out, h)
		}
	}
	return out
}

// containsWord reports a word-boundary occurrence of needle in haystack;
// both already lowercased.
func containsWord(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	for start := 0; ; {
		i := strings.Index(haystack[start:], needle)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(needle)
		beforeOK := i == 0 || !isAlnum(haystack[i-1])
		afterOK := end == len(haystack) || !isAlnum(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		start = i + 1
	}
}

func isAlnum(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b >= 'A' && b <= 'Z'
}

func uniqueSorted(s []string) []string {
	seen := make(map[string]bool, len(s))
	out := make([]string, 0, len(s))
	for _, v := range s {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
