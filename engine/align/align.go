package align

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/cinegraph/cinegraph/engine/domain"
	"github.com/cinegraph/cinegraph/engine/graph"
	"github.com/cinegraph/cinegraph/pkg/fn"
	"github.com/cinegraph/cinegraph/pkg/model"
)

// Defaults for the alignment pass.
const (
	DefaultThreshold = 0.6
	DefaultWorkers   = 8
)

// Aligner scores screenplay-side against mood-board-side entities and emits
// the ALIGNED_WITH edge set for the graph.
type Aligner struct {
	scorer    Scorer
	fallback  Scorer
	threshold float64
	workers   int
	log       *slog.Logger
}

// Option configures an Aligner.
type Option func(*Aligner)

// WithThreshold overrides the minimum score for an edge.
func WithThreshold(t float64) Option {
	return func(a *Aligner) { a.threshold = t }
}

// WithWorkers overrides scoring parallelism.
func WithWorkers(n int) Option {
	return func(a *Aligner) { a.workers = n }
}

// New builds an aligner. The fallback scorer takes over per-pair when the
// primary reports the model unavailable.
func New(scorer Scorer, log *slog.Logger, opts ...Option) *Aligner {
	if log == nil {
		log = slog.Default()
	}
	a := &Aligner{
		scorer:    scorer,
		fallback:  LexicalScorer{},
		threshold: DefaultThreshold,
		workers:   DefaultWorkers,
		log:       log,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Result reports one alignment pass.
type Result struct {
	Edges    []domain.Relation `json:"-"`
	Pairs    int               `json:"pairs_scored"`
	Kept     int               `json:"edges_kept"`
	Degraded bool              `json:"degraded"`
	Version  int64             `json:"graph_version,omitempty"`
}

type pair struct {
	left, right domain.Entity
}

// Align scores all cross-modal candidate pairs in a snapshot. Pairs whose
// entities share a source document are excluded: alignment is for evidence
// across documents, not within one. The returned edge slice is sorted, so
// identical graph state always yields the identical edge set.
func (a *Aligner) Align(ctx context.Context, g graph.Graph) (Result, error) {
	var left, right []domain.Entity
	for _, e := range g.Entities {
		switch {
		case e.Type.ScreenplaySide():
			left = append(left, e)
		case e.Type.MoodboardSide():
			right = append(right, e)
		}
	}
	sort.Slice(left, func(i, j int) bool { return left[i].ID < left[j].ID })
	sort.Slice(right, func(i, j int) bool { return right[i].ID < right[j].ID })

	var pairs []pair
	for _, l := range left {
		for _, r := range right {
			if sharesDocument(l, r) {
				continue
			}
			pairs = append(pairs, pair{left: l, right: r})
		}
	}

	var degraded atomic.Bool
	scored := fn.ParMapResult(pairs, a.workers, func(p pair) fn.Result[domain.Relation] {
		score, err := a.scorer.Score(ctx, p.left, p.right)
		if err != nil {
			if !errors.Is(err, model.ErrUnavailable) {
				return fn.Err[domain.Relation](err)
			}
			degraded.Store(true)
			score, err = a.fallback.Score(ctx, p.left, p.right)
			if err != nil {
				return fn.Err[domain.Relation](err)
			}
		}
		if score < a.threshold {
			return fn.Ok(domain.Relation{}) // filtered below
		}
		return fn.Ok(domain.Relation{
			Source:  p.left.ID,
			Target:  p.right.ID,
			Type:    domain.RelAlignedWith,
			Weight:  score,
			Support: unionSupport(p.left, p.right),
		})
	})

	rels, err := fn.Collect(scored).Unwrap()
	if err != nil {
		return Result{}, err
	}
	edges := make([]domain.Relation, 0, len(rels))
	for _, r := range rels {
		if r.Source != "" {
			edges = append(edges, r)
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].Key() < edges[j].Key() })

	res := Result{Edges: edges, Pairs: len(pairs), Kept: len(edges), Degraded: degraded.Load()}
	a.log.Info("alignment pass complete",
		"pairs", res.Pairs, "kept", res.Kept, "degraded", res.Degraded)
	return res, nil
}

// Run aligns a live graph and installs the edge set.
func (a *Aligner) Run(ctx context.Context, kg *graph.KnowledgeGraph) (Result, error) {
	res, err := a.Align(ctx, kg.Snapshot())
	if err != nil {
		return Result{}, err
	}
	version, err := kg.ReplaceAlignments(res.Edges)
	if err != nil {
		return Result{}, err
	}
	res.Version = version
	return res, nil
}

func sharesDocument(a, b domain.Entity) bool {
	for _, d := range a.Documents {
		for _, d2 := range b.Documents {
			if d == d2 {
				return true
			}
		}
	}
	return false
}

func unionSupport(a, b domain.Entity) []string {
	out := append([]string(nil), a.Support...)
	for _, s := range b.Support {
		dup := false
		for _, x := range out {
			if x == s {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}
