package extract

import (
	"strings"

	"github.com/cinegraph/cinegraph/engine/domain"
	"github.com/cinegraph/cinegraph/engine/vision"
)

// Confidence tiers for mood-board recognizers. Caption vocabulary is stronger
// evidence than pixel-derived descriptors.
const (
	confCaptionKeyword = 0.8
	confImageKeyword   = 0.7
	confMotif          = 0.75
)

// motifLexicon maps caption vocabulary to canonical visual-motif names.
var motifLexicon = map[string]string{
	"rain":        "rain",
	"wet asphalt": "wet asphalt",
	"wet streets": "wet asphalt",
	"fog":         "fog",
	"mist":        "fog",
	"haze":        "fog",
	"smoke":       "smoke",
	"mirror":      "mirrors",
	"reflection":  "reflections",
	"shadow":      "shadows",
	"silhouette":  "silhouettes",
	"neon sign":   "neon signs",
	"rust":        "rust",
	"concrete":    "concrete",
	"glass":       "glass",
	"flicker":     "flickering light",
	"dust":        "dust",
	"snow":        "snow",
	"fire":        "fire",
	"water":       "water",
	"window":      "windows",
	"curtain":     "curtains",
}

// extractMoodboard folds segment descriptors and caption text into visual
// entities. Descriptor keywords split into color-palette and lighting-style
// entities; motif vocabulary in the text yields visual-motif entities, each
// EVOKES_MOOD-linked to the palette and lighting found in the same segment.
func (e *Extractor) extractMoodboard(doc domain.Document, segments []domain.Segment) ([]domain.Entity, []domain.Relation, error) {
	acc := newAccumulator(doc, e.minConfidence, e.log)

	for _, seg := range segments {
		conf := confCaptionKeyword
		if seg.Modality == domain.ModalityImage {
			conf = confImageKeyword
		}

		var moodIDs []string
		if seg.Visual != nil {
			for _, kw := range seg.Visual.Keywords {
				switch {
				case vision.IsColorName(kw):
					id := acc.add(Mention{
						Type:       domain.EntityColorPalette,
						Name:       kw,
						Confidence: conf,
					}, seg.ID)
					moodIDs = append(moodIDs, id)
				case vision.IsLightingStyle(kw):
					id := acc.add(Mention{
						Type:       domain.EntityLightingStyle,
						Name:       kw,
						Confidence: conf,
					}, seg.ID)
					moodIDs = append(moodIDs, id)
				}
			}
		}

		lower := strings.ToLower(seg.Text)
		for phrase, motif := range motifLexicon {
			if !strings.Contains(lower, phrase) {
				continue
			}
			motifID := acc.add(Mention{
				Type:       domain.EntityVisualMotif,
				Name:       motif,
				Confidence: confMotif,
			}, seg.ID)
			for _, moodID := range moodIDs {
				acc.relate(motifID, moodID, domain.RelEvokesMood, confMotif, seg.ID)
			}
		}
	}

	return acc.finish()
}
