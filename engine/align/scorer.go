// Package align discovers cross-modal ALIGNED_WITH edges between
// screenplay-side and mood-board-side entities. Scoring is pluggable: the
// embedding scorer uses the model capability, with a lexical fallback that
// keeps alignment running when the model is down.
package align

import (
	"context"
	"math"
	"strings"

	"github.com/cinegraph/cinegraph/engine/domain"
	"github.com/cinegraph/cinegraph/pkg/model"
)

// Scorer rates how strongly two entities refer to the same creative concept,
// in [0,1].
type Scorer interface {
	Score(ctx context.Context, a, b domain.Entity) (float64, error)
}

// EmbeddingScorer embeds entity descriptions and compares them by cosine
// similarity, rescaled from [-1,1] to [0,1].
type EmbeddingScorer struct {
	client model.Client
}

// NewEmbeddingScorer wraps a model client.
func NewEmbeddingScorer(client model.Client) *EmbeddingScorer {
	return &EmbeddingScorer{client: client}
}

// Score implements Scorer.
func (s *EmbeddingScorer) Score(ctx context.Context, a, b domain.Entity) (float64, error) {
	vecs, err := s.client.Embed(ctx, []string{entityText(a), entityText(b)})
	if err != nil {
		return 0, err
	}
	if len(vecs) != 2 {
		return 0, model.ErrUnavailable
	}
	return (cosine(vecs[0], vecs[1]) + 1) / 2, nil
}

// entityText renders an entity for embedding.
func entityText(e domain.Entity) string {
	parts := []string{string(e.Type), e.Name}
	if len(e.Aliases) > 0 {
		parts = append(parts, strings.Join(e.Aliases, " "))
	}
	if e.Description != "" {
		parts = append(parts, e.Description)
	}
	return strings.Join(parts, ". ")
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// LexicalScorer rates entities by Jaccard overlap of their name and alias
// token sets. It needs no external services.
type LexicalScorer struct{}

// Score implements Scorer.
func (LexicalScorer) Score(_ context.Context, a, b domain.Entity) (float64, error) {
	ta, tb := tokens(a), tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0, nil
	}
	inter := 0
	for tok := range ta {
		if tb[tok] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union), nil
}

func tokens(e domain.Entity) map[string]bool {
	out := make(map[string]bool)
	add := func(s string) {
		for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
			return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
		}) {
			if len(tok) > 2 && !stopword[tok] {
				out[tok] = true
			}
		}
	}
	add(e.Name)
	for _, a := range e.Aliases {
		add(a)
	}
	add(e.Description)
	return out
}

var stopword = map[string]bool{
	"the": true, "and": true, "int": true, "ext": true,
	"day": true, "night": true, "with": true, "for": true,
}
