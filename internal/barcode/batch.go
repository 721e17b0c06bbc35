package barcode

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/MeKo-Tech/labelkit/internal/apperr"
	"github.com/MeKo-Tech/labelkit/internal/progress"
)

// ErrorPolicy decides what a failed item does to the rest of a batch.
type ErrorPolicy int

const (
	// Continue records per-item failures and keeps rendering.
	Continue ErrorPolicy = iota
	// Abort stops at the first failure; nothing is returned.
	Abort
)

func (p ErrorPolicy) String() string {
	if p == Abort {
		return "abort"
	}
	return "continue"
}

// BatchOptions configures RenderBatch.
type BatchOptions struct {
	Workers  int // 0 = runtime.NumCPU()
	Policy   ErrorPolicy
	Progress progress.Callback
}

// ItemError is a failure for one image of one item.
type ItemError struct {
	Index   int
	Variant Variant
	Value   string
	Err     error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d (%s) %q: %v", e.Index+1, e.Variant, e.Value, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// BatchResult holds rendered images in input order. In dual mode item i
// owns slots 2i (primary) and 2i+1 (secondary). A failed item contributes
// no images, whichever variant failed.
type BatchResult struct {
	Images []*RenderedImage
	Errors []*ItemError
}

type renderJob struct {
	index int
	value string
}

// RenderBatch renders every item with cfg, fanning out across a worker pool
// and re-sequencing results by index.
func (r *Renderer) RenderBatch(ctx context.Context, items []string, cfg Config, opts BatchOptions) (*BatchResult, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("data", "no items to render")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	workers := min(opts.Workers, len(items))
	cb := progress.OrNoop(opts.Progress)

	cb.OnStart(len(items))
	defer cb.OnComplete()

	per := cfg.ImagesPerItem()
	secondary := cfg.Secondary()
	slots := make([]*RenderedImage, len(items)*per)
	// One failure per item; a failed item keeps none of its images so a
	// secondary never appears without its primary.
	failures := make([]*ItemError, len(items))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan renderJob)
	var wg sync.WaitGroup
	var done atomic.Int64

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if runCtx.Err() != nil {
					continue
				}
				for v := range per {
					variant, style := Primary, cfg
					if v == 1 {
						variant, style = Secondary, secondary
					}
					img, err := r.Render(job.value, job.index, variant, style)
					if err != nil {
						failures[job.index] = &ItemError{Index: job.index, Variant: variant, Value: job.value, Err: err}
						break
					}
					slots[job.index*per+v] = img
				}
				if f := failures[job.index]; f != nil {
					clear(slots[job.index*per : (job.index+1)*per])
					cb.OnError(job.index, f)
					if opts.Policy == Abort {
						cancel()
					}
				}
				cb.OnProgress(int(done.Add(1)), len(items))
			}
		}()
	}

feed:
	for i, value := range items {
		select {
		case jobs <- renderJob{index: i, value: value}:
		case <-runCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &BatchResult{Images: make([]*RenderedImage, 0, len(slots))}
	for i, f := range failures {
		if f != nil {
			if opts.Policy == Abort {
				return nil, f
			}
			result.Errors = append(result.Errors, f)
			continue
		}
		for _, img := range slots[i*per : (i+1)*per] {
			if img != nil {
				result.Images = append(result.Images, img)
			}
		}
	}
	return result, nil
}
