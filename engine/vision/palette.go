package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sort"

	"github.com/cinegraph/cinegraph/engine/domain"
)

// Brightness classification thresholds over mean luma (0-255).
const (
	brightnessLow  = 70
	brightnessHigh = 180
)

// paletteColors is how many dominant colors a descriptor carries.
const paletteColors = 3

// pixelStride subsamples large images; palette extraction does not need
// every pixel.
const pixelStride = 4

// Heuristic implements Analyzer without external services. Dominant colors
// come from quantizing pixels into 4-bit-per-channel bins and averaging the
// heaviest bins; brightness from mean luma.
type Heuristic struct{}

// NewHeuristic creates the default analyzer.
func NewHeuristic() *Heuristic { return &Heuristic{} }

// AnalyzeImage implements Analyzer.
func (h *Heuristic) AnalyzeImage(_ context.Context, data []byte) (*domain.VisualDescriptor, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", domain.ErrUnreadableDocument, err)
	}

	type bin struct {
		count   int
		r, g, b uint64
	}
	bins := make(map[uint32]*bin)
	bounds := img.Bounds()

	var lumaSum, samples uint64
	for y := bounds.Min.Y; y < bounds.Max.Y; y += pixelStride {
		for x := bounds.Min.X; x < bounds.Max.X; x += pixelStride {
			r, g, b, _ := img.At(x, y).RGBA()
			r8, g8, b8 := r>>8, g>>8, b>>8

			key := uint32(r8>>4)<<8 | uint32(g8>>4)<<4 | uint32(b8>>4)
			bk, ok := bins[key]
			if !ok {
				bk = &bin{}
				bins[key] = bk
			}
			bk.count++
			bk.r += uint64(r8)
			bk.g += uint64(g8)
			bk.b += uint64(b8)

			// ITU-R BT.601 luma.
			lumaSum += uint64(299*r8+587*g8+114*b8) / 1000
			samples++
		}
	}
	if samples == 0 {
		return nil, fmt.Errorf("%w: image has no pixels", domain.ErrUnreadableDocument)
	}

	ordered := make([]*bin, 0, len(bins))
	for _, bk := range bins {
		ordered = append(ordered, bk)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		// Stable ordering for equal-weight bins.
		return ordered[i].r*3+ordered[i].g*2+ordered[i].b < ordered[j].r*3+ordered[j].g*2+ordered[j].b
	})

	desc := &domain.VisualDescriptor{Brightness: classifyBrightness(lumaSum / samples)}
	for i := 0; i < len(ordered) && i < paletteColors; i++ {
		bk := ordered[i]
		r := uint8(bk.r / uint64(bk.count))
		g := uint8(bk.g / uint64(bk.count))
		b := uint8(bk.b / uint64(bk.count))
		desc.Palette = append(desc.Palette, fmt.Sprintf("#%02x%02x%02x", r, g, b))
		if name := nearestColorName(r, g, b); name != "" {
			desc.Keywords = append(desc.Keywords, name)
		}
	}
	desc.Keywords = dedupe(desc.Keywords)
	return desc, nil
}

func classifyBrightness(meanLuma uint64) string {
	switch {
	case meanLuma < brightnessLow:
		return "low"
	case meanLuma > brightnessHigh:
		return "high"
	default:
		return "medium"
	}
}

// namedColors anchors palette bins to the descriptor vocabulary shared with
// the lexical analyzer so image- and caption-derived entities can merge.
var namedColors = []struct {
	name    string
	r, g, b int
}{
	{"cold-blue", 60, 90, 160},
	{"teal", 40, 130, 130},
	{"warm-amber", 220, 150, 60},
	{"crimson", 160, 40, 50},
	{"forest-green", 50, 110, 60},
	{"violet", 120, 70, 160},
	{"desaturated-grey", 128, 128, 128},
	{"charcoal", 40, 40, 45},
	{"bone-white", 230, 228, 220},
	{"sepia", 150, 115, 80},
}

// nearestColorName maps an RGB triple to the closest named color, or ""
// when nothing is reasonably close.
func nearestColorName(r, g, b uint8) string {
	best, bestDist := "", 1<<31-1
	for _, c := range namedColors {
		dr, dg, db := int(r)-c.r, int(g)-c.g, int(b)-c.b
		d := dr*dr + dg*dg + db*db
		if d < bestDist {
			best, bestDist = c.name, d
		}
	}
	// ~100 per channel is the limit of a meaningful match.
	if bestDist > 100*100*3 {
		return ""
	}
	return best
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
