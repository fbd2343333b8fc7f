package extract

import (
	"strings"

	"github.com/cinegraph/cinegraph/engine/domain"
	"github.com/cinegraph/cinegraph/engine/parse"
)

// Confidence tiers for screenplay recognizers. Structural markers are near
// certain; name mentions spotted in action lines are weaker evidence.
const (
	confSceneHeading = 0.95
	confLocation     = 0.9
	confCharacterCue = 0.9
	confActionName   = 0.6
)

// extractScreenplay runs two passes. The first collects cue-confirmed
// character names across the whole document and emits structural entities:
// a scene per heading segment, SET_IN its location, with cue characters
// APPEARS_IN the scene. The second scans action text for known character
// names so characters present in a scene without speaking still get an edge.
func (e *Extractor) extractScreenplay(doc domain.Document, segments []domain.Segment) ([]domain.Entity, []domain.Relation, error) {
	acc := newAccumulator(doc, e.minConfidence, e.log)

	knownNames := make(map[string]string) // normalized name -> display name
	sceneBySegment := make(map[string]string)

	for _, seg := range segments {
		var sceneID string
		for _, raw := range strings.Split(seg.Text, "\n") {
			line := strings.TrimSpace(raw)
			if line == "" {
				continue
			}

			if loc, ok := parse.SceneHeading(line); ok {
				sceneID = acc.add(Mention{
					Type:       domain.EntityScene,
					Name:       line,
					Confidence: confSceneHeading,
				}, seg.ID)
				locID := acc.add(Mention{
					Type:       domain.EntityLocation,
					Name:       titleCase(strings.ToLower(loc)),
					Confidence: confLocation,
				}, seg.ID)
				acc.relate(sceneID, locID, domain.RelSetIn, confLocation, seg.ID)
				continue
			}

			if name, ok := parse.CharacterCue(line); ok {
				display := titleCase(strings.ToLower(name))
				knownNames[domain.NormalizeName(name)] = display
				charID := acc.add(Mention{
					Type:       domain.EntityCharacter,
					Name:       display,
					Confidence: confCharacterCue,
				}, seg.ID)
				acc.relate(charID, sceneID, domain.RelAppearsIn, confCharacterCue, seg.ID)
			}
		}
		if sceneID != "" {
			sceneBySegment[seg.ID] = sceneID
		}
	}

	// Action-line mentions of cue-confirmed names. ALL-CAPS introductions
	// ("ADA enters.") are the screenwriting convention this catches.
	for _, seg := range segments {
		sceneID, ok := sceneBySegment[seg.ID]
		if !ok {
			continue
		}
		for norm, display := range knownNames {
			if !mentionsName(seg.Text, norm) {
				continue
			}
			charID := acc.add(Mention{
				Type:       domain.EntityCharacter,
				Name:       display,
				Confidence: confActionName,
			}, seg.ID)
			acc.relate(charID, sceneID, domain.RelAppearsIn, confActionName, seg.ID)
		}
	}

	return acc.finish()
}

// mentionsName reports a word-boundary, case-insensitive occurrence of a
// normalized name in the text.
func mentionsName(text, norm string) bool {
	lower := strings.ToLower(text)
	for start := 0; ; {
		i := strings.Index(lower[start:], norm)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(norm)
		beforeOK := i == 0 || !isWordChar(lower[i-1])
		afterOK := end == len(lower) || !isWordChar(lower[end])
		if beforeOK && afterOK {
			return true
		}
		start = i + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
