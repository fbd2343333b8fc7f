// Package vision derives visual descriptors (palette, brightness, lighting
// keywords) from mood-board content. The Analyzer interface keeps the
// concrete feature extraction pluggable; the shipped implementation is
// heuristic and dependency-free.
package vision

import (
	"context"

	"github.com/cinegraph/cinegraph/engine/domain"
)

// Analyzer is the pluggable visual-feature capability.
type Analyzer interface {
	// AnalyzeImage derives a descriptor from encoded image bytes.
	AnalyzeImage(ctx context.Context, data []byte) (*domain.VisualDescriptor, error)
	// AnalyzeText derives a descriptor from caption or annotation text.
	// Returns nil when the text carries no visual vocabulary.
	AnalyzeText(text string) *domain.VisualDescriptor
}
