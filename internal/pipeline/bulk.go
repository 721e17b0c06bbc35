package pipeline

import (
	"context"
	"time"

	"github.com/MeKo-Tech/labelkit/internal/barcode"
	"github.com/MeKo-Tech/labelkit/internal/output"
	"github.com/MeKo-Tech/labelkit/internal/remote"
	"github.com/MeKo-Tech/labelkit/internal/router"
)

// BulkResult is a zip archive of individual labels.
type BulkResult struct {
	Archive  []byte
	Decision router.Decision
	// Mode is where the job actually ran, which differs from
	// Decision.Mode after a remote failure.
	Mode     router.Mode
	Images   []*barcode.RenderedImage // local runs only
	Errors   []*barcode.ItemError     // local runs only
	Duration time.Duration
}

// Bulk renders one image per label and zips them. Values that cannot be
// encoded are skipped and reported in Errors; the job fails only when
// nothing renders.
func (p *Pipeline) Bulk(ctx context.Context, req Request) (*BulkResult, error) {
	start := time.Now()
	if err := p.prepare(&req, 1); err != nil {
		return nil, err
	}
	res := &BulkResult{Decision: p.route(ctx, req)}

	if res.Decision.Mode == router.Remote {
		doc, err := p.remote.Bulk(ctx, remote.BulkRequest{Data: req.Data, Config: req.Config}, req.Progress)
		switch {
		case err == nil:
			res.Archive, res.Mode, res.Duration = doc.Data, router.Remote, time.Since(start)
			return res, nil
		case !p.fallback(err, "bulk"):
			return nil, err
		}
	}

	batch, err := p.renderer.RenderBatch(ctx, req.Data, req.Config, barcode.BatchOptions{
		Workers:  p.cfg.Workers,
		Policy:   barcode.Continue,
		Progress: req.Progress,
	})
	if err != nil {
		return nil, err
	}
	if len(batch.Images) == 0 {
		return nil, firstItemError(batch.Errors)
	}
	for _, e := range batch.Errors {
		p.logger.Warn("Skipped label", "index", e.Index, "variant", e.Variant, "value", e.Value, "error", e.Err)
	}

	archive, err := output.Zip(batch.Images)
	if err != nil {
		return nil, err
	}
	res.Archive = archive
	res.Mode = router.Local
	res.Images = batch.Images
	res.Errors = batch.Errors
	res.Duration = time.Since(start)
	p.logger.Info("Bulk generation finished",
		"items", len(req.Data),
		"images", len(batch.Images),
		"skipped", len(batch.Errors),
		"bytes", len(archive),
		"duration", res.Duration.Round(time.Millisecond))
	return res, nil
}

// LabelPDF renders every label locally into a multi-page PDF, one label per
// page. Any failed label aborts the document.
func (p *Pipeline) LabelPDF(ctx context.Context, req Request) ([]byte, error) {
	if err := p.prepare(&req, 1); err != nil {
		return nil, err
	}
	batch, err := p.renderer.RenderBatch(ctx, req.Data, req.Config, barcode.BatchOptions{
		Workers:  p.cfg.Workers,
		Policy:   barcode.Abort,
		Progress: req.Progress,
	})
	if err != nil {
		return nil, err
	}
	return output.LabelPages(batch.Images)
}
