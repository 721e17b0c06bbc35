package barcode

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/labelkit/internal/units"
)

// Small-label policy constants. Pixel values are at StandardDPI.
const (
	SmallLabelHeightCM = 1.0
	SmallFontScale     = 0.7
	MinSmallFontPx     = 6.0
	SmallTextMargin    = 6
	StandardTextMargin = 16
	flatFactor         = 1.0
)

// Adaptation is the rendering geometry chosen for one label size.
type Adaptation struct {
	Small      bool
	DPI        float64
	FontPx     float64 // at StandardDPI
	TextMargin int     // at StandardDPI
}

// Scale is the factor from StandardDPI pixels to render pixels.
func (a Adaptation) Scale() float64 { return a.DPI / units.StandardDPI }

// IsSmall reports whether a label is under 1 cm tall. Heights are compared
// after rounding to a micrometer so 0.3937in is not classified by float noise.
func IsSmall(d Dimensions) bool {
	h := math.Round(d.HeightCM()*1e6) / 1e6
	return h < SmallLabelHeightCM
}

// Adapt picks DPI, font size and text margin for a label. Small labels with
// auto-adjust render at HighDPI with a shrunken font and tight margin.
func Adapt(d Dimensions, f Font) Adaptation {
	if IsSmall(d) && f.AutoAdjustEnabled() {
		return Adaptation{
			Small:      true,
			DPI:        units.HighDPI,
			FontPx:     math.Max(float64(f.Size)*SmallFontScale, MinSmallFontPx),
			TextMargin: SmallTextMargin,
		}
	}
	return Adaptation{
		DPI:        units.StandardDPI,
		FontPx:     float64(f.Size),
		TextMargin: StandardTextMargin,
	}
}

// edgeFactor grows from 0.5 for a 1:1 resize to 1.0 at a 3:1 downscale.
func edgeFactor(ratio float64) float64 {
	e := 0.5 + (ratio-1)/4
	return math.Min(1.0, math.Max(0.5, e))
}

// downscaleSharpen resizes a high-DPI render to the standard-DPI target with
// Lanczos and applies an unsharp mask. Flat regions pass through unchanged
// (flatFactor 1.0); edge strength follows the downscale ratio.
func downscaleSharpen(img image.Image, width, height int) *image.NRGBA {
	b := img.Bounds()
	ratio := 1.0
	if width > 0 {
		ratio = float64(b.Dx()) / float64(width)
	}
	resized := imaging.Resize(img, width, height, imaging.Lanczos)
	return imaging.Sharpen(resized, edgeFactor(ratio)*flatFactor)
}
