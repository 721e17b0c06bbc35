// Package compose draws a layout plan as a raster image or a vector PDF.
// Both renderings use the same cell geometry from the plan.
package compose

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/MeKo-Tech/labelkit/internal/layout"
	"github.com/MeKo-Tech/labelkit/internal/units"
)

// Sheet summarises a composed plan.
type Sheet struct {
	Labels        int     `json:"labels"`
	Rows          int     `json:"rows"`
	ColumnsPerRow int     `json:"columnsPerRow"`
	WidthMM       float64 `json:"widthMm"`
	HeightMM      float64 `json:"heightMm"`
	WidthPx       int     `json:"widthPx"`
	HeightPx      int     `json:"heightPx"`
	WidthPt       float64 `json:"widthPt"`
	HeightPt      float64 `json:"heightPt"`
	DPI           float64 `json:"dpi"`
}

// Summary describes plan in mm, pixels and points.
func Summary(plan *layout.Plan) Sheet {
	wpx, hpx := plan.PixelSize()
	wpt, hpt := plan.PointSize()
	return Sheet{
		Labels:        len(plan.Cells),
		Rows:          plan.Rows,
		ColumnsPerRow: plan.ColumnsPerRow,
		WidthMM:       plan.CanvasWidth,
		HeightMM:      plan.CanvasHeight,
		WidthPx:       wpx,
		HeightPx:      hpx,
		WidthPt:       wpt,
		HeightPt:      hpt,
		DPI:           plan.DPI,
	}
}

var errNoCells = errors.New("plan has no cells")

// Raster draws plan onto a white canvas at the plan's DPI: a filled border
// box per cell, the white padding box inside it, then the label.
func Raster(plan *layout.Plan) (image.Image, error) {
	if plan == nil || len(plan.Cells) == 0 {
		return nil, errNoCells
	}
	w, h := plan.PixelSize()
	px := func(mm float64) float64 { return mm / units.MMPerInch * plan.DPI }

	dc := gg.NewContext(w, h)
	dc.SetColor(color.White)
	dc.Clear()

	b := plan.BorderWidth
	for _, cell := range plan.Cells {
		if b > 0 {
			dc.SetColor(plan.BorderColor)
			dc.DrawRectangle(px(cell.X), px(cell.Y), px(cell.Width), px(cell.Height))
			dc.Fill()
			dc.SetColor(color.White)
			dc.DrawRectangle(px(cell.X+b), px(cell.Y+b), px(cell.Width-2*b), px(cell.Height-2*b))
			dc.Fill()
		}
		if cell.Image == nil || cell.Image.Image == nil {
			return nil, fmt.Errorf("cell for item %d has no image", cell.Index)
		}
		dc.DrawImage(cell.Image.Image, int(math.Round(px(cell.Content.X))), int(math.Round(px(cell.Content.Y))))
	}
	return dc.Image(), nil
}

// PDF renders plan as a single-page vector document sized to the canvas.
// Borders are stroked rectangles; labels are embedded at their source DPI.
func PDF(plan *layout.Plan) ([]byte, error) {
	c, err := vector(plan)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := pdf.New(&buf, plan.CanvasWidth, plan.CanvasHeight, nil)
	writer.SetInfo("labelkit sheet", "", "", "", "labelkit")
	c.RenderTo(writer)
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// vector draws plan onto a canvas in mm with a top-left origin.
func vector(plan *layout.Plan) (*canvas.Canvas, error) {
	if plan == nil || len(plan.Cells) == 0 {
		return nil, errNoCells
	}

	c := canvas.New(plan.CanvasWidth, plan.CanvasHeight)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV)

	dpmm := plan.DPI / units.MMPerInch
	b := plan.BorderWidth
	for _, cell := range plan.Cells {
		if b > 0 {
			ctx.SetFillColor(color.RGBA{})
			ctx.SetStrokeColor(plan.BorderColor)
			ctx.SetStrokeWidth(b)
			ctx.DrawPath(cell.X+b/2, cell.Y+b/2, canvas.Rectangle(cell.Width-b, cell.Height-b))
		}
		if cell.Image == nil || cell.Image.Image == nil {
			return nil, fmt.Errorf("cell for item %d has no image", cell.Index)
		}
		ctx.DrawImage(cell.Content.X, cell.Content.Y, cell.Image.Image, canvas.DPMM(dpmm))
	}
	return c, nil
}
