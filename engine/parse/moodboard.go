package parse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/cinegraph/cinegraph/engine/domain"
)

// parseMoodboard sniffs the content format and dispatches. Mood boards arrive
// as PDF decks, single images, or plain caption text.
func (p *Parser) parseMoodboard(ctx context.Context, doc domain.Document, content []byte) ([]domain.Segment, []string, error) {
	switch sniff(content) {
	case "pdf":
		return p.parseMoodboardPDF(ctx, doc, content)
	case "image":
		segs, err := p.parseMoodboardImage(ctx, doc, content)
		return segs, nil, err
	default:
		segs, err := p.parseMoodboardText(doc, content)
		return segs, nil, err
	}
}

// pageResult is one PDF page after text extraction, before segmentation.
type pageResult struct {
	text string
	err  error
}

var errNullPage = errors.New("null page object")

// parseMoodboardPDF extracts text page by page and hands the results to
// moodboardFromPages for segmentation.
func (p *Parser) parseMoodboardPDF(ctx context.Context, doc domain.Document, content []byte) ([]domain.Segment, []string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open pdf: %v", domain.ErrUnreadableDocument, err)
	}
	pages := make([]pageResult, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, pageResult{err: errNullPage})
			continue
		}
		text, err := page.GetPlainText(nil)
		pages = append(pages, pageResult{text: text, err: err})
	}
	return p.moodboardFromPages(ctx, doc, pages)
}

// moodboardFromPages builds one mixed segment per page with usable text.
// Every skipped page, including one whose extraction yielded only whitespace,
// is logged and recorded as a warning so the ingest summary can surface it.
// A deck with no usable pages at all is unreadable.
func (p *Parser) moodboardFromPages(ctx context.Context, doc domain.Document, pages []pageResult) ([]domain.Segment, []string, error) {
	var segments []domain.Segment
	var warnings []string
	for i, pg := range pages {
		n := i + 1
		if pg.err != nil {
			p.log.WarnContext(ctx, "skipping unreadable pdf page", "document_id", doc.ID, "page", n, "error", pg.err)
			warnings = append(warnings, fmt.Sprintf("pdf page %d skipped: %v", n, pg.err))
			continue
		}
		text := strings.TrimSpace(pg.text)
		if text == "" {
			p.log.WarnContext(ctx, "skipping empty pdf page", "document_id", doc.ID, "page", n)
			warnings = append(warnings, fmt.Sprintf("pdf page %d skipped: no extractable text", n))
			continue
		}
		pos := len(segments)
		segments = append(segments, domain.Segment{
			ID:         domain.SegmentID(doc.ID, pos),
			DocumentID: doc.ID,
			Position:   pos,
			Modality:   domain.ModalityMixed,
			Text:       text,
			Visual:     p.analyzer.AnalyzeText(text),
		})
	}
	if len(segments) == 0 {
		return nil, warnings, fmt.Errorf("%w: no readable pages", domain.ErrUnreadableDocument)
	}
	return segments, warnings, nil
}

// parseMoodboardImage produces a single image segment whose text is rendered
// from the visual descriptor so it can be embedded alongside text segments.
func (p *Parser) parseMoodboardImage(ctx context.Context, doc domain.Document, content []byte) ([]domain.Segment, error) {
	desc, err := p.analyzer.AnalyzeImage(ctx, content)
	if err != nil {
		return nil, err
	}
	return []domain.Segment{{
		ID:         domain.SegmentID(doc.ID, 0),
		DocumentID: doc.ID,
		Position:   0,
		Modality:   domain.ModalityImage,
		Text:       RenderDescriptor(desc),
		Visual:     desc,
	}}, nil
}

// parseMoodboardText treats content as blank-line-separated caption regions,
// one segment each.
func (p *Parser) parseMoodboardText(doc domain.Document, content []byte) ([]domain.Segment, error) {
	blocks := splitOnParagraphs(strings.Split(string(content), "\n"))
	if len(blocks) == 0 {
		return nil, domain.ErrUnreadableDocument
	}
	segments := make([]domain.Segment, 0, len(blocks))
	for _, block := range blocks {
		pos := len(segments)
		segments = append(segments, domain.Segment{
			ID:         domain.SegmentID(doc.ID, pos),
			DocumentID: doc.ID,
			Position:   pos,
			Modality:   domain.ModalityText,
			Text:       block,
			Visual:     p.analyzer.AnalyzeText(block),
		})
	}
	return segments, nil
}

// RenderDescriptor turns a visual descriptor into embeddable prose. The query
// and alignment layers rely on this text form for image-only segments.
func RenderDescriptor(d *domain.VisualDescriptor) string {
	if d == nil {
		return ""
	}
	var parts []string
	if d.Brightness != "" {
		parts = append(parts, d.Brightness+" brightness")
	}
	if len(d.Palette) > 0 {
		parts = append(parts, "dominant colors "+strings.Join(d.Palette, " "))
	}
	if len(d.Keywords) > 0 {
		parts = append(parts, "mood "+strings.Join(d.Keywords, ", "))
	}
	return strings.Join(parts, "; ")
}
