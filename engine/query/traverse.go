package query

import (
	"sort"

	"github.com/cinegraph/cinegraph/engine/graph"
	"github.com/cinegraph/cinegraph/engine/semantic"
)

// expand runs a bounded-hop breadth-first walk from the seed entities,
// following edges in either direction whose weight clears the floor.
// Traversal order is by ascending entity id so the resulting subgraph is
// independent of map iteration.
func expand(g graph.Graph, seeds []string, hops int, minWeight float64) []string {
	adj := make(map[string][]string)
	for _, r := range g.Relations {
		if r.Weight < minWeight {
			continue
		}
		adj[r.Source] = append(adj[r.Source], r.Target)
		adj[r.Target] = append(adj[r.Target], r.Source)
	}
	for id := range adj {
		sort.Strings(adj[id])
	}

	visited := make(map[string]bool)
	frontier := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if _, ok := g.Entities[s]; ok && !visited[s] {
			visited[s] = true
			frontier = append(frontier, s)
		}
	}
	sort.Strings(frontier)

	for depth := 0; depth < hops && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, nb := range adj[id] {
				if !visited[nb] {
					visited[nb] = true
					next = append(next, nb)
				}
			}
		}
		sort.Strings(next)
		frontier = next
	}

	out := make([]string, 0, len(visited))
	for id := range visited {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// citationsFor assembles the deterministic citation list: retrieval hits
// first, ordered by descending score with segment id as tie-break, followed
// by the supporting segments of the subgraph in ascending id order. Each
// segment appears once.
func citationsFor(g graph.Graph, subgraph []string, hits []semantic.SearchResult) []string {
	ordered := append([]semantic.SearchResult(nil), hits...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		return ordered[i].SegmentID < ordered[j].SegmentID
	})

	seen := make(map[string]bool)
	var out []string
	for _, h := range ordered {
		if h.SegmentID != "" && !seen[h.SegmentID] {
			seen[h.SegmentID] = true
			out = append(out, h.SegmentID)
		}
	}

	inSub := make(map[string]bool, len(subgraph))
	for _, id := range subgraph {
		inSub[id] = true
	}
	var fromGraph []string
	for _, id := range subgraph {
		for _, s := range g.Entities[id].Support {
			if !seen[s] {
				seen[s] = true
				fromGraph = append(fromGraph, s)
			}
		}
	}
	for _, r := range g.Relations {
		if !inSub[r.Source] || !inSub[r.Target] {
			continue
		}
		for _, s := range r.Support {
			if !seen[s] {
				seen[s] = true
				fromGraph = append(fromGraph, s)
			}
		}
	}
	sort.Strings(fromGraph)
	return append(out, fromGraph...)
}
