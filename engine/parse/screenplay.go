package parse

import (
	"strings"

	"github.com/cinegraph/cinegraph/engine/domain"
)

// Line classes used by screenplay segmentation and downstream extraction.
type lineClass int

const (
	lineAction lineClass = iota
	lineHeading
	lineTransition
	lineCue
)

var headingPrefixes = []string{"INT.", "EXT.", "INT/EXT.", "EXT/INT.", "INT ", "EXT ", "I/E."}

var transitions = []string{
	"FADE IN:", "FADE OUT", "FADE TO BLACK", "CUT TO:", "DISSOLVE TO:",
	"SMASH CUT TO:", "MATCH CUT TO:", "THE END",
}

// classifyLine assigns a structural class to a trimmed, non-blank line.
func classifyLine(line string) lineClass {
	upper := strings.ToUpper(line)
	for _, p := range headingPrefixes {
		if strings.HasPrefix(upper, p) {
			return lineHeading
		}
	}
	for _, t := range transitions {
		if strings.HasPrefix(upper, t) {
			return lineTransition
		}
	}
	if isCharacterCue(line) {
		return lineCue
	}
	return lineAction
}

// isCharacterCue reports whether a line looks like a dialogue cue: all caps,
// at most three words, letters present. A trailing parenthetical such as
// (V.O.) or (CONT'D) is stripped first.
func isCharacterCue(line string) bool {
	_, ok := CharacterCue(line)
	return ok
}

// CharacterCue extracts the character name from a dialogue cue line,
// stripping parentheticals. The extractor shares this with segmentation so
// both agree on what counts as a cue.
func CharacterCue(line string) (string, bool) {
	if i := strings.IndexByte(line, '('); i > 0 {
		line = strings.TrimSpace(line[:i])
	}
	words := strings.Fields(line)
	if len(words) == 0 || len(words) > 3 {
		return "", false
	}
	hasLetter := false
	for _, r := range line {
		switch {
		case r >= 'a' && r <= 'z':
			return "", false
		case r >= 'A' && r <= 'Z':
			hasLetter = true
		}
	}
	if !hasLetter {
		return "", false
	}
	return line, true
}

// SceneHeading reports whether a line is a scene heading and, if so, returns
// the location portion: prefix and trailing time-of-day qualifier stripped.
func SceneHeading(line string) (location string, ok bool) {
	upper := strings.ToUpper(strings.TrimSpace(line))
	matched := ""
	for _, p := range headingPrefixes {
		if strings.HasPrefix(upper, p) {
			matched = p
			break
		}
	}
	if matched == "" {
		return "", false
	}
	rest := strings.TrimSpace(upper[len(matched):])
	// "WAREHOUSE - NIGHT" keeps only the place.
	if i := strings.Index(rest, " - "); i >= 0 {
		rest = strings.TrimSpace(rest[:i])
	}
	rest = strings.Trim(rest, " -")
	if rest == "" {
		return "", false
	}
	return rest, true
}

// parseScreenplay splits the text into scene segments. A new segment starts
// at every scene heading or transition; text before the first marker becomes
// its own leading segment. When the document carries no markers at all the
// parser falls back to blank-line-separated paragraphs so that every
// non-blank line still lands in exactly one segment.
func (p *Parser) parseScreenplay(doc domain.Document, content []byte) ([]domain.Segment, error) {
	lines := strings.Split(string(content), "\n")

	hasMarkers := false
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if c := classifyLine(line); c == lineHeading || c == lineTransition {
			hasMarkers = true
			break
		}
	}

	var blocks []string
	if hasMarkers {
		blocks = splitOnMarkers(lines)
	} else {
		blocks = splitOnParagraphs(lines)
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
		})
	}
	if len(segments) == 0 {
		return nil, domain.ErrUnreadableDocument
	}
	return segments, nil
}

func splitOnMarkers(lines []string) []string {
	var blocks []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			blocks = append(blocks, strings.Join(cur, "\n"))
			cur = cur[:0]
		}
	}
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if c := classifyLine(line); c == lineHeading || c == lineTransition {
			flush()
		}
		cur = append(cur, line)
	}
	flush()
	return blocks
}

func splitOnParagraphs(lines []string) []string {
	var blocks []string
	var cur []string
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			if len(cur) > 0 {
				blocks = append(blocks, strings.Join(cur, "\n"))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		blocks = append(blocks, strings.Join(cur, "\n"))
	}
	return blocks
}
