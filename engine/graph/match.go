package graph

import (
	"unicode/utf8"

	"github.com/cinegraph/cinegraph/engine/domain"
)

// DefaultFuzzyThreshold is the normalized similarity above which two names of
// the same entity type are treated as the same entity.
const DefaultFuzzyThreshold = 0.85

// Similarity returns normalized Levenshtein similarity in [0,1] over
// already-normalized names. 1 means identical. Distance and length both
// count runes, so multi-byte names normalize the same as ASCII ones.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	d := levenshtein(a, b)
	longer := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longer {
		longer = n
	}
	return 1 - float64(d)/float64(longer)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = minInt(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// names returns every normalized name the entity answers to.
func names(e domain.Entity) []string {
	out := make([]string, 0, 1+len(e.Aliases))
	out = append(out, domain.NormalizeName(e.Name))
	for _, a := range e.Aliases {
		out = append(out, domain.NormalizeName(a))
	}
	return out
}
