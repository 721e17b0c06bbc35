package barcode

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"unicode"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/code39"
	"github.com/boombuler/barcode/ean"
	"github.com/fogleman/gg"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"

	"github.com/MeKo-Tech/labelkit/internal/apperr"
)

// Hints carries the geometry the renderer wants from the encoder.
// All sizes are pixels at the render DPI.
type Hints struct {
	ModuleWidth int // narrow bar width, linear types
	BarHeight   int // bar height, linear types
	QRSize      int // side of the square symbol, QR
	ShowText    bool
	Face        font.Face // text face; required when ShowText
	TextMargin  int       // gap between symbol and text
}

// Encoder turns a value into a natural-size symbol image.
type Encoder interface {
	Encode(value string, t Type, hints Hints) (image.Image, error)
}

// LibraryEncoder draws symbols with boombuler/barcode and skip2/go-qrcode
// and sets the human-readable text with gg.
type LibraryEncoder struct{}

// NewEncoder returns the default encoder.
func NewEncoder() *LibraryEncoder { return &LibraryEncoder{} }

var _ Encoder = (*LibraryEncoder)(nil)

// Encode renders value as a symbol of type t, with its text underneath when
// hints.ShowText is set. Values the symbology rejects produce an apperr
// symbology error naming the value.
func (e *LibraryEncoder) Encode(value string, t Type, hints Hints) (image.Image, error) {
	if value == "" {
		return nil, apperr.Symbology(value, nil, "empty value cannot be encoded as %s", t)
	}

	symbol, err := e.symbol(value, t, hints)
	if err != nil {
		return nil, err
	}
	if !hints.ShowText || hints.Face == nil {
		return symbol, nil
	}
	return withText(symbol, value, hints.Face, hints.TextMargin), nil
}

func (e *LibraryEncoder) symbol(value string, t Type, hints Hints) (image.Image, error) {
	if t == TypeQR {
		size := hints.QRSize
		if size <= 0 {
			size = 128
		}
		q, err := qrcode.New(value, qrcode.Medium)
		if err != nil {
			return nil, apperr.Symbology(value, err, "cannot encode as %s", t)
		}
		q.DisableBorder = true
		return q.Image(size), nil
	}

	bc, err := encodeLinear(value, t)
	if err != nil {
		return nil, apperr.Symbology(value, err, "cannot encode as %s", t)
	}

	module := max(hints.ModuleWidth, 1)
	height := max(hints.BarHeight, 1)
	width := bc.Bounds().Dx() * module
	scaled, err := barcode.Scale(bc, width, height)
	if err != nil {
		return nil, apperr.Symbology(value, err, "cannot scale %s symbol to %dx%d", t, width, height)
	}
	return scaled, nil
}

// encodeLinear dispatches a linear type to its boombuler encoder.
func encodeLinear(value string, t Type) (barcode.Barcode, error) {
	switch t {
	case TypeCode128:
		return code128.Encode(value)
	case TypeCode39:
		return code39.Encode(value, false, true)
	case TypeEAN13:
		if err := requireDigits(value, 12, 13); err != nil {
			return nil, err
		}
		return ean.Encode(value)
	case TypeEAN8:
		if err := requireDigits(value, 7, 8); err != nil {
			return nil, err
		}
		return ean.Encode(value)
	case TypeUPCA:
		if err := requireDigits(value, 11, 12); err != nil {
			return nil, err
		}
		// UPC-A is EAN-13 with a leading zero system digit.
		return ean.Encode("0" + value)
	default:
		return nil, fmt.Errorf("unsupported linear type %q", t)
	}
}

func requireDigits(value string, lengths ...int) error {
	for _, r := range value {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return errors.New("value must contain digits only")
		}
	}
	for _, n := range lengths {
		if len(value) == n {
			return nil
		}
	}
	parts := make([]string, len(lengths))
	for i, n := range lengths {
		parts[i] = fmt.Sprint(n)
	}
	return fmt.Errorf("value must have %s digits, got %d", strings.Join(parts, " or "), len(value))
}

// withText stacks the symbol above its text, both centred horizontally.
func withText(symbol image.Image, text string, face font.Face, margin int) image.Image {
	sb := symbol.Bounds()
	metrics := face.Metrics()
	textH := (metrics.Ascent + metrics.Descent).Ceil()

	dc := gg.NewContext(1, 1)
	dc.SetFontFace(face)
	textW, _ := dc.MeasureString(text)

	width := max(sb.Dx(), int(math.Ceil(textW)))
	height := sb.Dy() + margin + textH

	dc = gg.NewContext(width, height)
	dc.SetColor(color.White)
	dc.Clear()
	dc.DrawImage(symbol, (width-sb.Dx())/2, 0)
	dc.SetFontFace(face)
	dc.SetColor(color.Black)
	dc.DrawStringAnchored(text, float64(width)/2, float64(sb.Dy()+margin+metrics.Ascent.Ceil()), 0.5, 0)
	return dc.Image()
}
