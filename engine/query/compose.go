package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cinegraph/cinegraph/engine/graph"
	"github.com/cinegraph/cinegraph/engine/semantic"
	"github.com/cinegraph/cinegraph/pkg/model"
)

// compose builds the answer text. With a healthy model it generates from the
// assembled context; when the model is unavailable it falls back to an
// extractive summary of the same context and reports degraded mode.
func (e *Engine) compose(ctx context.Context, question string, g graph.Graph, subgraph []string, hits []semantic.SearchResult) (string, bool) {
	facts := renderFacts(g, subgraph)
	passages := renderPassages(hits)

	if e.client != nil {
		resp, err := e.client.Generate(ctx, promptFor(question, e.opts.SystemPrompt, facts, passages))
		if err == nil {
			return resp.Text, false
		}
		e.log.Warn("generation unavailable, falling back to extractive answer", "error", err)
	}
	return extractiveAnswer(facts, hits), true
}

func promptFor(question, system string, facts, passages []string) model.Request {
	contextParts := make([]string, 0, len(facts)+len(passages))
	if len(facts) > 0 {
		contextParts = append(contextParts, "Knowledge graph facts:\n"+strings.Join(facts, "\n"))
	}
	contextParts = append(contextParts, passages...)
	return model.Request{
		Prompt:  question,
		System:  system,
		Context: contextParts,
	}
}

// renderFacts turns the subgraph into one line per entity and relation,
// in deterministic order.
func renderFacts(g graph.Graph, subgraph []string) []string {
	var facts []string
	for _, id := range subgraph {
		ent := g.Entities[id]
		line := fmt.Sprintf("- %s %q", ent.Type, ent.Name)
		if ent.Description != "" {
			line += ": " + ent.Description
		}
		facts = append(facts, line)
	}

	inSub := make(map[string]bool, len(subgraph))
	for _, id := range subgraph {
		inSub[id] = true
	}
	keys := make([]string, 0, len(g.Relations))
	for k, r := range g.Relations {
		if inSub[r.Source] && inSub[r.Target] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		r := g.Relations[k]
		facts = append(facts, fmt.Sprintf("- %q -[%s %.2f]-> %q",
			g.Entities[r.Source].Name, r.Type, r.Weight, g.Entities[r.Target].Name))
	}
	return facts
}

func renderPassages(hits []semantic.SearchResult) []string {
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, fmt.Sprintf("[%s] (score %.3f)\n%s", h.SegmentID, h.Score, h.Content))
	}
	return out
}

// extractiveAnswer stitches the strongest evidence into plain text when no
// model is available.
func extractiveAnswer(facts []string, hits []semantic.SearchResult) string {
	var b strings.Builder
	b.WriteString("Model unavailable; extracted context follows.\n")
	if len(facts) > 0 {
		b.WriteString("\nRelated knowledge:\n")
		b.WriteString(strings.Join(facts, "\n"))
		b.WriteString("\n")
	}
	if len(hits) > 0 {
		b.WriteString("\nMost relevant passages:\n")
		for i, h := range hits {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(h.Content))
		}
	}
	return b.String()
}
