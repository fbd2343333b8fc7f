// Package parse normalizes raw document bytes into ordered segments.
// Screenplays are split on structural markers; mood boards are dispatched by
// content sniffing to PDF, image, or caption-text handling.
package parse

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/cinegraph/cinegraph/engine/domain"
	"github.com/cinegraph/cinegraph/engine/vision"
)

// Parser turns a validated document and its raw content into segments.
type Parser struct {
	analyzer vision.Analyzer
	log      *slog.Logger
}

// New builds a parser backed by the given visual analyzer.
func New(analyzer vision.Analyzer, log *slog.Logger) *Parser {
	if log == nil {
		log = slog.Default()
	}
	return &Parser{analyzer: analyzer, log: log}
}

// Parse dispatches on the document kind. Returned segments are contiguous
// from position 0 and every segment id derives from the document id. The
// second return value lists non-fatal skips, one entry per dropped region,
// for the ingest summary.
func (p *Parser) Parse(ctx context.Context, doc domain.Document, content []byte) ([]domain.Segment, []string, error) {
	if err := domain.ValidateDocument(doc, content); err != nil {
		return nil, nil, err
	}
	switch doc.Kind {
	case domain.KindScreenplay:
		segs, err := p.parseScreenplay(doc, content)
		return segs, nil, err
	case domain.KindMoodboard:
		return p.parseMoodboard(ctx, doc, content)
	default:
		return nil, nil, fmt.Errorf("%w: kind %q", domain.ErrInvalidDocument, doc.Kind)
	}
}

var (
	pdfMagic  = []byte("%PDF")
	pngMagic  = []byte{0x89, 'P', 'N', 'G'}
	jpegMagic = []byte{0xff, 0xd8, 0xff}
)

// sniff classifies mood-board content by magic bytes.
func sniff(content []byte) string {
	switch {
	case bytes.HasPrefix(content, pdfMagic):
		return "pdf"
	case bytes.HasPrefix(content, pngMagic), bytes.HasPrefix(content, jpegMagic):
		return "image"
	default:
		return "text"
	}
}
