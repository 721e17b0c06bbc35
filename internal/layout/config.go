// Package layout places rendered labels on a print sheet.
//
// All lengths in this package are millimeters unless a name says otherwise.
package layout

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/labelkit/internal/apperr"
)

// Margins around the printable area.
type Margins struct {
	Top    float64 `json:"top" yaml:"top" mapstructure:"top"`
	Bottom float64 `json:"bottom" yaml:"bottom" mapstructure:"bottom"`
	Left   float64 `json:"left" yaml:"left" mapstructure:"left"`
	Right  float64 `json:"right" yaml:"right" mapstructure:"right"`
}

// Config is a fully resolved print layout.
type Config struct {
	CanvasWidthCM  float64 `json:"canvasWidth" yaml:"canvas_width" mapstructure:"canvas_width"`
	Margins        Margins `json:"margins" yaml:"margins" mapstructure:"margins"`
	Spacing        float64 `json:"spacing" yaml:"spacing" mapstructure:"spacing"`
	BorderWidth    float64 `json:"borderWidth" yaml:"border_width" mapstructure:"border_width"`
	BorderColor    string  `json:"borderColor" yaml:"border_color" mapstructure:"border_color"`
	ContinuousMode bool    `json:"continuousMode" yaml:"continuous_mode" mapstructure:"continuous_mode"`
}

// MarginsOverride sets individual margins; nil fields keep the base value.
type MarginsOverride struct {
	Top    *float64 `json:"top,omitempty"`
	Bottom *float64 `json:"bottom,omitempty"`
	Left   *float64 `json:"left,omitempty"`
	Right  *float64 `json:"right,omitempty"`
}

// Override is a partial layout from a request. Nil fields keep the base value.
type Override struct {
	CanvasWidth    *float64         `json:"canvasWidth,omitempty"`
	Margins        *MarginsOverride `json:"margins,omitempty"`
	Spacing        *float64         `json:"spacing,omitempty"`
	BorderWidth    *float64         `json:"borderWidth,omitempty"`
	BorderColor    *string          `json:"borderColor,omitempty"`
	ContinuousMode *bool            `json:"continuousMode,omitempty"`
}

// InternalPadding separates label content from its border.
const InternalPadding = 1.0

// DefaultConfig is an A4-wide sheet with 10 mm margins.
func DefaultConfig() Config {
	return Config{
		CanvasWidthCM: 21,
		Margins:       Margins{Top: 10, Bottom: 10, Left: 10, Right: 10},
		Spacing:       5,
		BorderWidth:   0.5,
		BorderColor:   "#000000",
	}
}

// Merge applies o field by field over c. Margins merge individually.
func (c Config) Merge(o *Override) Config {
	if o == nil {
		return c
	}
	setF(&c.CanvasWidthCM, o.CanvasWidth)
	setF(&c.Spacing, o.Spacing)
	setF(&c.BorderWidth, o.BorderWidth)
	if o.BorderColor != nil {
		c.BorderColor = *o.BorderColor
	}
	if o.ContinuousMode != nil {
		c.ContinuousMode = *o.ContinuousMode
	}
	if m := o.Margins; m != nil {
		setF(&c.Margins.Top, m.Top)
		setF(&c.Margins.Bottom, m.Bottom)
		setF(&c.Margins.Left, m.Left)
		setF(&c.Margins.Right, m.Right)
	}
	return c
}

func setF(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

// Validate rejects negative lengths, a non-positive canvas and bad colours.
func (c Config) Validate() error {
	if !c.ContinuousMode && c.CanvasWidthCM <= 0 {
		return apperr.Validation("layout.canvasWidth", "must be positive, got %g", c.CanvasWidthCM)
	}
	for name, v := range map[string]float64{
		"layout.margins.top":    c.Margins.Top,
		"layout.margins.bottom": c.Margins.Bottom,
		"layout.margins.left":   c.Margins.Left,
		"layout.margins.right":  c.Margins.Right,
		"layout.spacing":        c.Spacing,
		"layout.borderWidth":    c.BorderWidth,
	} {
		if v < 0 {
			return apperr.Validation(name, "must not be negative, got %g", v)
		}
	}
	if _, err := ParseColor(c.BorderColor); err != nil {
		return apperr.Validation("layout.borderColor", "%v", err)
	}
	return nil
}

// ParseColor parses #rgb or #rrggbb.
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
