package vision

import (
	"sort"
	"strings"

	"github.com/cinegraph/cinegraph/engine/domain"
)

// colorLexicon maps caption vocabulary to the shared named-color palette.
// Multi-word phrases are matched before single words.
var colorLexicon = map[string]string{
	"cold blue":   "cold-blue",
	"icy blue":    "cold-blue",
	"steel blue":  "cold-blue",
	"blue":        "cold-blue",
	"teal":        "teal",
	"cyan":        "teal",
	"warm amber":  "warm-amber",
	"amber":       "warm-amber",
	"golden":      "warm-amber",
	"orange":      "warm-amber",
	"crimson":     "crimson",
	"red":         "crimson",
	"scarlet":     "crimson",
	"green":       "forest-green",
	"emerald":     "forest-green",
	"violet":      "violet",
	"purple":      "violet",
	"magenta":     "violet",
	"grey":        "desaturated-grey",
	"gray":        "desaturated-grey",
	"desaturated": "desaturated-grey",
	"charcoal":    "charcoal",
	"black":       "charcoal",
	"white":       "bone-white",
	"ivory":       "bone-white",
	"sepia":       "sepia",
	"brown":       "sepia",
}

// lightingLexicon maps caption vocabulary to lighting-style keywords.
var lightingLexicon = map[string]string{
	"low-key":       "low-key",
	"low key":       "low-key",
	"noir":          "low-key",
	"chiaroscuro":   "low-key",
	"shadowy":       "low-key",
	"moody":         "low-key",
	"high-key":      "high-key",
	"high key":      "high-key",
	"overexposed":   "high-key",
	"washed out":    "high-key",
	"neon":          "neon",
	"fluorescent":   "neon",
	"naturalistic":  "natural",
	"natural light": "natural",
	"daylight":      "natural",
	"golden hour":   "golden-hour",
	"sunset":        "golden-hour",
	"backlit":       "backlit",
	"silhouette":    "backlit",
	"candlelit":     "practical",
	"practical":     "practical",
}

// brightnessLexicon maps caption vocabulary to a brightness class.
var brightnessLexicon = map[string]string{
	"dark":      "low",
	"dim":       "low",
	"murky":     "low",
	"shadowy":   "low",
	"night":     "low",
	"bright":    "high",
	"blinding":  "high",
	"sunlit":    "high",
	"overcast":  "medium",
	"twilight":  "medium",
	"dusk":      "medium",
}

// AnalyzeText implements Analyzer. Matching is case-insensitive substring
// lookup over the three lexicons; a nil return means the text carried no
// visual vocabulary at all.
func (h *Heuristic) AnalyzeText(text string) *domain.VisualDescriptor {
	lower := strings.ToLower(text)

	desc := &domain.VisualDescriptor{}
	for phrase, name := range colorLexicon {
		if strings.Contains(lower, phrase) {
			desc.Keywords = append(desc.Keywords, name)
		}
	}
	for phrase, style := range lightingLexicon {
		if strings.Contains(lower, phrase) {
			desc.Keywords = append(desc.Keywords, style)
		}
	}
	desc.Brightness = brightnessClass(lower)

	if len(desc.Keywords) == 0 && desc.Brightness == "" {
		return nil
	}
	sort.Strings(desc.Keywords)
	desc.Keywords = dedupe(desc.Keywords)
	return desc
}

// brightnessClass tallies lexicon hits per class and returns the winner, or
// "" when nothing matched. Ties resolve low before medium before high, so a
// caption mixing classes always classifies the same way.
func brightnessClass(lower string) string {
	counts := make(map[string]int, 3)
	for phrase, class := range brightnessLexicon {
		if strings.Contains(lower, phrase) {
			counts[class]++
		}
	}
	best := ""
	for _, class := range []string{"low", "medium", "high"} {
		if counts[class] > counts[best] {
			best = class
		}
	}
	return best
}

var colorNames = func() map[string]bool {
	m := make(map[string]bool)
	for _, name := range colorLexicon {
		m[name] = true
	}
	return m
}()

var lightingStyles = func() map[string]bool {
	m := make(map[string]bool)
	for _, style := range lightingLexicon {
		m[style] = true
	}
	return m
}()

// IsColorName reports whether a descriptor keyword names a palette color.
func IsColorName(kw string) bool { return colorNames[kw] }

// IsLightingStyle reports whether a descriptor keyword names a lighting style.
func IsLightingStyle(kw string) bool { return lightingStyles[kw] }
