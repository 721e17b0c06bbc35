// Package barcode renders data values into barcode label images.
//
// Symbol encoding is delegated to an Encoder (boombuler/barcode for linear
// symbologies, skip2/go-qrcode for QR). This package owns everything around
// it: ignore-digits truncation, physical sizing, small-label DPI adaptation,
// text composition, stretch/centre placement, rotation and batch ordering.
package barcode

import (
	"strings"

	"github.com/MeKo-Tech/labelkit/internal/apperr"
	"github.com/MeKo-Tech/labelkit/internal/units"
)

// Type is a barcode symbology.
type Type string

const (
	TypeCode128 Type = "code128"
	TypeQR      Type = "qr"
	TypeEAN13   Type = "ean13"
	TypeEAN8    Type = "ean8"
	TypeUPCA    Type = "upca"
	TypeCode39  Type = "code39"
)

// Types lists every supported symbology.
var Types = []Type{TypeCode128, TypeQR, TypeEAN13, TypeEAN8, TypeUPCA, TypeCode39}

// ParseType maps user input ("CODE128", "ean-13", "upc") to a Type.
func ParseType(s string) (Type, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "", "_", "", " ", "").Replace(norm)
	switch norm {
	case "code128", "128":
		return TypeCode128, true
	case "qr", "qrcode":
		return TypeQR, true
	case "ean13", "ean":
		return TypeEAN13, true
	case "ean8":
		return TypeEAN8, true
	case "upca", "upc":
		return TypeUPCA, true
	case "code39", "39":
		return TypeCode39, true
	}
	return "", false
}

// Is2D reports whether the symbology is a square matrix code.
func (t Type) Is2D() bool { return t == TypeQR }

// Orientation of the finished label.
type Orientation string

const (
	Horizontal Orientation = "horizontal"
	Vertical   Orientation = "vertical"
)

// Position selects which end of a value ignore-digits trims.
type Position string

const (
	Start Position = "start"
	End   Position = "end"
)

// Variant distinguishes the two images of a dual-mode item.
type Variant string

const (
	Primary   Variant = "primary"
	Secondary Variant = "secondary"
)

// Dimensions is a physical label size.
type Dimensions struct {
	Width  float64    `json:"width" yaml:"width" mapstructure:"width"`
	Height float64    `json:"height" yaml:"height" mapstructure:"height"`
	Unit   units.Unit `json:"unit" yaml:"unit" mapstructure:"unit"`
}

// HeightCM returns the label height normalised to centimeters.
func (d Dimensions) HeightCM() float64 { return units.ToCentimeters(d.Height, d.Unit) }

// WidthCM returns the label width normalised to centimeters.
func (d Dimensions) WidthCM() float64 { return units.ToCentimeters(d.Width, d.Unit) }

// Font describes the human-readable text under the symbol.
type Font struct {
	Family string `json:"family" yaml:"family" mapstructure:"family"`
	Size   int    `json:"size" yaml:"size" mapstructure:"size"`
	// AutoAdjust enables the small-label adjustments. Nil means true.
	AutoAdjust *bool `json:"autoAdjust,omitempty" yaml:"auto_adjust,omitempty" mapstructure:"auto_adjust"`
}

// AutoAdjustEnabled resolves the AutoAdjust default.
func (f Font) AutoAdjustEnabled() bool { return f.AutoAdjust == nil || *f.AutoAdjust }

// IgnoreDigits trims a fixed number of characters before encoding.
type IgnoreDigits struct {
	Enabled  bool     `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Position Position `json:"position" yaml:"position" mapstructure:"position"`
	Count    int      `json:"count" yaml:"count" mapstructure:"count"`
}

// Options are rendering toggles.
type Options struct {
	ShowText     bool          `json:"showText" yaml:"show_text" mapstructure:"show_text"`
	Stretch      bool          `json:"stretch" yaml:"stretch" mapstructure:"stretch"`
	IgnoreDigits *IgnoreDigits `json:"ignoreDigits,omitempty" yaml:"ignore_digits,omitempty" mapstructure:"ignore_digits"`
}

// Config is the declarative style of a label run.
type Config struct {
	Type           Type        `json:"type" yaml:"type" mapstructure:"type"`
	Dimensions     Dimensions  `json:"dimensions" yaml:"dimensions" mapstructure:"dimensions"`
	Font           Font        `json:"font" yaml:"font" mapstructure:"font"`
	Options        Options     `json:"options" yaml:"options" mapstructure:"options"`
	DualMode       bool        `json:"dualMode" yaml:"dual_mode" mapstructure:"dual_mode"`
	DualDimensions *Dimensions `json:"dualDimensions,omitempty" yaml:"dual_dimensions,omitempty" mapstructure:"dual_dimensions"`
	DualFont       *Font       `json:"dualFont,omitempty" yaml:"dual_font,omitempty" mapstructure:"dual_font"`
	Orientation    Orientation `json:"orientation,omitempty" yaml:"orientation,omitempty" mapstructure:"orientation"`
	ContinuousMode bool        `json:"continuousMode" yaml:"continuous_mode" mapstructure:"continuous_mode"`
}

// Validation bounds.
const (
	MinDimension    = 0.1
	MaxDimension    = 50.0
	MinFontSize     = 8
	MaxFontSize     = 48
	MaxIgnoreDigits = 20
)

// DefaultConfig returns a 5x3 cm Code128 label with text.
func DefaultConfig() Config {
	return Config{
		Type:        TypeCode128,
		Dimensions:  Dimensions{Width: 5, Height: 3, Unit: units.CM},
		Font:        Font{Family: "Arial", Size: 12},
		Options:     Options{ShowText: true},
		Orientation: Horizontal,
	}
}

// Normalize fills in omitted defaults (orientation, font family) and
// canonicalises unit and type aliases. Call before Validate.
func (c *Config) Normalize() {
	if t, ok := ParseType(string(c.Type)); ok {
		c.Type = t
	}
	if c.Orientation == "" {
		c.Orientation = Horizontal
	}
	normalizeDims(&c.Dimensions)
	if c.Font.Family == "" {
		c.Font.Family = "Arial"
	}
	if c.DualDimensions != nil {
		normalizeDims(c.DualDimensions)
	}
	if c.DualFont != nil && c.DualFont.Family == "" {
		c.DualFont.Family = c.Font.Family
	}
	if id := c.Options.IgnoreDigits; id != nil && id.Position == "" {
		id.Position = Start
	}
}

func normalizeDims(d *Dimensions) {
	if u, ok := units.ParseUnit(string(d.Unit)); ok {
		d.Unit = u
	}
	if d.Unit == "" {
		d.Unit = units.CM
	}
}

// Validate checks ranges and enum membership, returning the first violation
// as an apperr validation error carrying the field path.
func (c *Config) Validate() error {
	if !validType(c.Type) {
		return apperr.Validation("type", "unsupported barcode type %q", c.Type)
	}
	if err := validateDims("dimensions", c.Dimensions); err != nil {
		return err
	}
	if err := validateFont("font", c.Font); err != nil {
		return err
	}
	if id := c.Options.IgnoreDigits; id != nil {
		if id.Count < 0 || id.Count > MaxIgnoreDigits {
			return apperr.Validation("options.ignoreDigits.count", "must be between 0 and %d, got %d", MaxIgnoreDigits, id.Count)
		}
		if id.Position != Start && id.Position != End {
			return apperr.Validation("options.ignoreDigits.position", "must be %q or %q, got %q", Start, End, id.Position)
		}
	}
	if c.Orientation != Horizontal && c.Orientation != Vertical {
		return apperr.Validation("orientation", "must be %q or %q, got %q", Horizontal, Vertical, c.Orientation)
	}
	if c.DualMode {
		if c.DualDimensions == nil || c.DualFont == nil {
			return apperr.Validation("dualDimensions", "dualDimensions and dualFont are required when dualMode is enabled")
		}
		if err := validateDims("dualDimensions", *c.DualDimensions); err != nil {
			return err
		}
		if err := validateFont("dualFont", *c.DualFont); err != nil {
			return err
		}
	} else if c.DualDimensions != nil || c.DualFont != nil {
		return apperr.Validation("dualMode", "dualDimensions and dualFont must be omitted when dualMode is disabled")
	}
	return nil
}

func validType(t Type) bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

func validateDims(field string, d Dimensions) error {
	if d.Unit != units.CM && d.Unit != units.Inches {
		return apperr.Validation(field+".unit", "must be %q or %q, got %q", units.CM, units.Inches, d.Unit)
	}
	if d.Width < MinDimension || d.Width > MaxDimension {
		return apperr.Validation(field+".width", "must be between %.1f and %.1f, got %g", MinDimension, MaxDimension, d.Width)
	}
	if d.Height < MinDimension || d.Height > MaxDimension {
		return apperr.Validation(field+".height", "must be between %.1f and %.1f, got %g", MinDimension, MaxDimension, d.Height)
	}
	return nil
}

func validateFont(field string, f Font) error {
	if f.Size < MinFontSize || f.Size > MaxFontSize {
		return apperr.Validation(field+".size", "must be between %d and %d, got %d", MinFontSize, MaxFontSize, f.Size)
	}
	return nil
}

// Secondary derives the style used for the second image of a dual-mode item.
// DualMode is forced off so rendering never expands recursively.
func (c Config) Secondary() Config {
	sec := c
	sec.DualMode = false
	sec.DualDimensions = nil
	sec.DualFont = nil
	if c.DualDimensions != nil {
		sec.Dimensions = *c.DualDimensions
	}
	if c.DualFont != nil {
		sec.Font = *c.DualFont
	}
	return sec
}

// ImagesPerItem is 2 in dual mode, 1 otherwise.
func (c Config) ImagesPerItem() int {
	if c.DualMode {
		return 2
	}
	return 1
}
