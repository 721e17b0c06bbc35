package barcode

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/labelkit/internal/apperr"
	"github.com/MeKo-Tech/labelkit/internal/units"
)

// RenderedImage is one finished label bitmap.
type RenderedImage struct {
	Image    image.Image
	Width    int
	Height   int
	Filename string
	Index    int // 0-based item index
	Variant  Variant
	Value    string // value after ignore-digits
	DPI      float64
}

// Renderer renders single labels. It is safe for concurrent use as long as
// its Encoder and FontSource are.
type Renderer struct {
	encoder Encoder
	fonts   FontSource
}

// NewRenderer creates a renderer around an encoder and a font source.
func NewRenderer(encoder Encoder, fonts FontSource) *Renderer {
	return &Renderer{encoder: encoder, fonts: fonts}
}

// ApplyIgnoreDigits trims Count runes from the configured end of value.
// A nil or disabled setting returns value unchanged.
func ApplyIgnoreDigits(value string, id *IgnoreDigits) string {
	if id == nil || !id.Enabled || id.Count <= 0 {
		return value
	}
	runes := []rune(value)
	if id.Count >= len(runes) {
		return ""
	}
	if id.Position == End {
		return string(runes[:len(runes)-id.Count])
	}
	return string(runes[id.Count:])
}

// Render produces the label for value using cfg's primary style. Callers
// wanting the dual image pass cfg.Secondary() with variant Secondary.
func (r *Renderer) Render(value string, index int, variant Variant, cfg Config) (*RenderedImage, error) {
	processed := ApplyIgnoreDigits(value, cfg.Options.IgnoreDigits)
	if processed == "" {
		return nil, apperr.Symbology(value, nil, "nothing left to encode as %s after ignoring digits", cfg.Type)
	}

	adapt := Adapt(cfg.Dimensions, cfg.Font)
	scale := adapt.Scale()
	dims := cfg.Dimensions

	finalW := units.ToPixels(dims.Width, dims.Unit, units.StandardDPI)
	finalH := units.ToPixels(dims.Height, dims.Unit, units.StandardDPI)
	canvasW := max(units.ToPixels(dims.Width, dims.Unit, adapt.DPI), 1)
	canvasH := max(units.ToPixels(dims.Height, dims.Unit, adapt.DPI), 1)
	if cfg.Orientation == Vertical {
		canvasW, canvasH = canvasH, canvasW
	}

	hints := Hints{ShowText: cfg.Options.ShowText}
	textArea := 0
	if hints.ShowText {
		face, err := r.fonts.Face(cfg.Font.Family, adapt.FontPx, scale)
		if err != nil {
			return nil, fmt.Errorf("font for %q: %w", value, err)
		}
		defer face.Close()
		hints.Face = face
		hints.TextMargin = int(math.Round(float64(adapt.TextMargin) * scale))
		m := face.Metrics()
		textArea = (m.Ascent + m.Descent).Ceil() + hints.TextMargin
	}

	if cfg.Options.Stretch {
		hints.ModuleWidth = max(1, canvasW/100)
	} else {
		hints.ModuleWidth = max(1, int(math.Round(2*scale)))
	}
	hints.BarHeight = max(canvasH-textArea, 1)
	hints.QRSize = max(min(canvasW, canvasH-textArea), 1)

	symbol, err := r.encoder.Encode(processed, cfg.Type, hints)
	if err != nil {
		return nil, err
	}

	var img *image.NRGBA
	if cfg.Options.Stretch {
		img = imaging.Resize(symbol, canvasW, canvasH, imaging.Lanczos)
	} else {
		// Oversized symbols are clipped at the canvas edge.
		img = imaging.PasteCenter(imaging.New(canvasW, canvasH, color.White), symbol)
	}

	if cfg.Orientation == Vertical {
		img = imaging.Rotate270(img)
	}

	dpi := adapt.DPI
	if adapt.Small && adapt.DPI != units.StandardDPI {
		img = downscaleSharpen(img, finalW, finalH)
		dpi = units.StandardDPI
	}

	b := img.Bounds()
	return &RenderedImage{
		Image:    img,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Filename: Filename(index, value, variant),
		Index:    index,
		Variant:  variant,
		Value:    processed,
		DPI:      dpi,
	}, nil
}
