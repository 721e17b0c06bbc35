// Package units converts physical lengths between centimeters, inches,
// millimeters, points and pixels at a given resolution.
package units

import (
	"math"
	"strings"
)

// Unit is the unit a length value was specified in.
type Unit string

const (
	CM     Unit = "cm"
	Inches Unit = "inches"
	MM     Unit = "mm"
	PT     Unit = "pt"
)

const (
	// StandardDPI is the screen resolution labels are delivered at.
	StandardDPI = 96
	// HighDPI is the internal resolution used for very small labels.
	HighDPI = 288

	MMPerInch   = 25.4
	CMPerInch   = 2.54
	PointsPerIn = 72.0
)

// ParseUnit maps user input to a Unit. Accepts the common aliases
// ("in", "inch", "\"", "centimeters", ...).
func ParseUnit(s string) (Unit, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cm", "centimeter", "centimeters":
		return CM, true
	case "in", "inch", "inches", "\"":
		return Inches, true
	case "mm", "millimeter", "millimeters":
		return MM, true
	case "pt", "point", "points":
		return PT, true
	default:
		return "", false
	}
}

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	switch u {
	case CM, Inches, MM, PT:
		return true
	}
	return false
}

// ToMillimeters converts value in unit to millimeters.
// Unknown units are treated as millimeters.
func ToMillimeters(value float64, unit Unit) float64 {
	switch unit {
	case CM:
		return value * 10
	case Inches:
		return value * MMPerInch
	case PT:
		return value / PointsPerIn * MMPerInch
	default:
		return value
	}
}

// ToCentimeters converts value in unit to centimeters.
func ToCentimeters(value float64, unit Unit) float64 {
	return ToMillimeters(value, unit) / 10
}

// ToInches converts value in unit to inches.
func ToInches(value float64, unit Unit) float64 {
	return ToMillimeters(value, unit) / MMPerInch
}

// ToPixels converts a physical length to a pixel count at dpi,
// rounded to the nearest integer.
func ToPixels(value float64, unit Unit, dpi float64) int {
	return int(math.Round(ToInches(value, unit) * dpi))
}

// MillimetersToPixels is ToPixels for a length already in millimeters.
func MillimetersToPixels(mm, dpi float64) int {
	return ToPixels(mm, MM, dpi)
}

// PixelsToMillimeters converts a pixel count rendered at dpi back to millimeters.
func PixelsToMillimeters(px int, dpi float64) float64 {
	if dpi <= 0 {
		return 0
	}
	return float64(px) / dpi * MMPerInch
}

// PixelsToPoints converts source pixels at dpi to 72-per-inch document points.
func PixelsToPoints(px int, dpi float64) float64 {
	if dpi <= 0 {
		return 0
	}
	return float64(px) / dpi * PointsPerIn
}

// MillimetersToPoints converts millimeters to document points.
func MillimetersToPoints(mm float64) float64 {
	return mm / MMPerInch * PointsPerIn
}
