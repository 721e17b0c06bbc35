package pipeline

import (
	"context"
	"time"

	"github.com/MeKo-Tech/labelkit/internal/barcode"
	"github.com/MeKo-Tech/labelkit/internal/compose"
	"github.com/MeKo-Tech/labelkit/internal/layout"
	"github.com/MeKo-Tech/labelkit/internal/output"
	"github.com/MeKo-Tech/labelkit/internal/remote"
	"github.com/MeKo-Tech/labelkit/internal/router"
)

// PrintRequest asks for a composed sheet.
type PrintRequest struct {
	Request
	Layout *layout.Override
	Format string // png or pdf; empty means png
	// MinItems overrides the lower item bound; 0 means 1.
	MinItems int
}

// PrintResult is a composed sheet document.
type PrintResult struct {
	Document    []byte
	ContentType string
	Format      string
	Decision    router.Decision
	Mode        router.Mode
	Sheet       *compose.Sheet // local runs only
	Duration    time.Duration
}

// LayoutFor merges the pipeline's default layout with an override. A
// continuous barcode config forces a continuous layout.
func (p *Pipeline) LayoutFor(cfg barcode.Config, o *layout.Override) layout.Config {
	l := p.cfg.Layout.Merge(o)
	if cfg.ContinuousMode {
		l.ContinuousMode = true
	}
	return l
}

// Print renders every label, lays them out and composes one sheet. Unlike
// Bulk, any failed label aborts the whole sheet.
func (p *Pipeline) Print(ctx context.Context, req PrintRequest) (*PrintResult, error) {
	start := time.Now()
	format, err := remote.ValidateFormat(req.Format)
	if err != nil {
		return nil, err
	}
	if err := p.prepare(&req.Request, max(1, req.MinItems)); err != nil {
		return nil, err
	}
	lcfg := p.LayoutFor(req.Config, req.Layout)
	if err := lcfg.Validate(); err != nil {
		return nil, err
	}

	res := &PrintResult{Format: format, ContentType: contentType(format), Decision: p.route(ctx, req.Request)}
	if res.Decision.Mode == router.Remote && len(req.Data) >= remote.MinPrintItems {
		doc, err := p.remote.Print(ctx, remote.PrintRequest{
			Data: req.Data, Config: req.Config, Layout: req.Layout, Format: format,
		}, req.Progress)
		switch {
		case err == nil:
			res.Document, res.Mode, res.Duration = doc.Data, router.Remote, time.Since(start)
			return res, nil
		case !p.fallback(err, "print"):
			return nil, err
		}
	}

	batch, err := p.renderer.RenderBatch(ctx, req.Data, req.Config, barcode.BatchOptions{
		Workers:  p.cfg.Workers,
		Policy:   barcode.Abort,
		Progress: req.Progress,
	})
	if err != nil {
		return nil, err
	}
	plan, err := layout.Compute(batch.Images, lcfg)
	if err != nil {
		return nil, err
	}
	doc, err := renderSheet(plan, format)
	if err != nil {
		return nil, err
	}
	sheet := compose.Summary(plan)
	res.Document, res.Mode, res.Sheet = doc, router.Local, &sheet
	res.Duration = time.Since(start)
	p.logger.Info("Print sheet generated",
		"items", len(req.Data),
		"labels", sheet.Labels,
		"rows", sheet.Rows,
		"columns", sheet.ColumnsPerRow,
		"format", format,
		"duration", res.Duration.Round(time.Millisecond))
	return res, nil
}

// Plan renders locally and returns the layout without composing it.
func (p *Pipeline) Plan(ctx context.Context, req PrintRequest) (*layout.Plan, error) {
	if err := p.prepare(&req.Request, 1); err != nil {
		return nil, err
	}
	batch, err := p.renderer.RenderBatch(ctx, req.Data, req.Config, barcode.BatchOptions{
		Workers: p.cfg.Workers,
		Policy:  barcode.Abort,
	})
	if err != nil {
		return nil, err
	}
	return layout.Compute(batch.Images, p.LayoutFor(req.Config, req.Layout))
}

func renderSheet(plan *layout.Plan, format string) ([]byte, error) {
	if format == remote.FormatPDF {
		return compose.PDF(plan)
	}
	img, err := compose.Raster(plan)
	if err != nil {
		return nil, err
	}
	return output.EncodePNG(img)
}

func contentType(format string) string {
	if format == remote.FormatPDF {
		return output.ContentTypePDF
	}
	return output.ContentTypePNG
}
