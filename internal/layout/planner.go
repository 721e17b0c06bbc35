package layout

import (
	"image/color"
	"math"

	"github.com/MeKo-Tech/labelkit/internal/apperr"
	"github.com/MeKo-Tech/labelkit/internal/barcode"
	"github.com/MeKo-Tech/labelkit/internal/units"
)

// Rect is an axis-aligned box in millimeters, origin top-left.
type Rect struct {
	X, Y, Width, Height float64
}

// Cell is the placement of one label. X, Y, Width and Height describe the
// border box; Content is where the image itself goes.
type Cell struct {
	Index   int // item index of the label
	Variant barcode.Variant
	Image   *barcode.RenderedImage
	X       float64
	Y       float64
	Width   float64
	Height  float64
	Content Rect
}

// Plan is the full sheet geometry.
type Plan struct {
	Cells         []Cell
	ColumnsPerRow int
	Rows          int
	CanvasWidth   float64
	CanvasHeight  float64
	DPI           float64 // resolution of the source pixels
	BorderWidth   float64
	BorderColor   color.NRGBA
	Padding       float64
}

// Compute places images row-major on a sheet. Continuous layouts form a
// single row as wide as needed; paged layouts wrap at the canvas width.
// Dual pairs are ordinary consecutive cells and may straddle a row break.
func Compute(images []*barcode.RenderedImage, cfg Config) (*Plan, error) {
	if len(images) == 0 {
		return nil, apperr.Validation("data", "at least one image is required for a layout")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	border, _ := ParseColor(cfg.BorderColor)

	frame := 2*InternalPadding + 2*cfg.BorderWidth
	widths := make([]float64, len(images))
	heights := make([]float64, len(images))
	maxCellWidth := 0.0
	for i, img := range images {
		widths[i] = units.PixelsToMillimeters(img.Width, dpiOf(img)) + frame
		heights[i] = units.PixelsToMillimeters(img.Height, dpiOf(img)) + frame
		maxCellWidth = math.Max(maxCellWidth, widths[i])
	}

	plan := &Plan{
		DPI:         dpiOf(images[0]),
		BorderWidth: cfg.BorderWidth,
		BorderColor: border,
		Padding:     InternalPadding,
		Cells:       make([]Cell, 0, len(images)),
	}

	m := cfg.Margins
	if cfg.ContinuousMode {
		plan.ColumnsPerRow = len(images)
		plan.CanvasWidth = m.Left + m.Right + cfg.Spacing*float64(len(images)-1)
		for _, w := range widths {
			plan.CanvasWidth += w
		}
	} else {
		plan.CanvasWidth = cfg.CanvasWidthCM * 10
		printable := plan.CanvasWidth - m.Left - m.Right
		plan.ColumnsPerRow = int(math.Floor(printable / (maxCellWidth + cfg.Spacing)))
		if plan.ColumnsPerRow < 1 {
			return nil, apperr.LayoutInfeasible(
				"cell width %.1fmm (plus %.1fmm spacing) does not fit printable width %.1fmm",
				maxCellWidth, cfg.Spacing, printable)
		}
	}

	x, y := m.Left, m.Top
	rowHeight := 0.0
	col := 0
	for i, img := range images {
		if col == plan.ColumnsPerRow {
			y += rowHeight + cfg.Spacing
			x, rowHeight, col = m.Left, 0, 0
		}
		inset := cfg.BorderWidth + InternalPadding
		plan.Cells = append(plan.Cells, Cell{
			Index:   img.Index,
			Variant: img.Variant,
			Image:   img,
			X:       x,
			Y:       y,
			Width:   widths[i],
			Height:  heights[i],
			Content: Rect{X: x + inset, Y: y + inset, Width: widths[i] - 2*inset, Height: heights[i] - 2*inset},
		})
		if col == 0 {
			plan.Rows++
		}
		rowHeight = math.Max(rowHeight, heights[i])
		x += widths[i] + cfg.Spacing
		col++
	}
	plan.CanvasHeight = y + rowHeight + m.Bottom
	return plan, nil
}

func dpiOf(img *barcode.RenderedImage) float64 {
	if img.DPI > 0 {
		return img.DPI
	}
	return units.StandardDPI
}

// PixelSize is the raster canvas size of the plan at its DPI.
func (p *Plan) PixelSize() (int, int) {
	return units.MillimetersToPixels(p.CanvasWidth, p.DPI), units.MillimetersToPixels(p.CanvasHeight, p.DPI)
}

// PointSize is the document size of the plan in 72-per-inch points.
func (p *Plan) PointSize() (float64, float64) {
	return units.MillimetersToPoints(p.CanvasWidth), units.MillimetersToPoints(p.CanvasHeight)
}
