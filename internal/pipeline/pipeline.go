// Package pipeline runs a label job end to end: route, render, lay out,
// compose and serialise. It is the single entry point used by the CLI and
// the HTTP server.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/MeKo-Tech/labelkit/internal/apperr"
	"github.com/MeKo-Tech/labelkit/internal/barcode"
	"github.com/MeKo-Tech/labelkit/internal/layout"
	"github.com/MeKo-Tech/labelkit/internal/progress"
	"github.com/MeKo-Tech/labelkit/internal/remote"
	"github.com/MeKo-Tech/labelkit/internal/router"
)

// ItemLimit is the largest value MaxItems may take.
const ItemLimit = 1000

// Config holds the pipeline's tunables.
type Config struct {
	Workers       int
	FontDir       string
	MaxItems      int
	Router        router.Settings
	Layout        layout.Config
	RemoteTimeout time.Duration
}

// DefaultConfig returns a config rendering on every CPU with the stock
// router settings and an A4-wide paged layout.
func DefaultConfig() Config {
	return Config{
		Workers:       runtime.NumCPU(),
		MaxItems:      ItemLimit,
		Router:        router.DefaultSettings(),
		Layout:        layout.DefaultConfig(),
		RemoteTimeout: 2 * time.Minute,
	}
}

// Remote generates documents on another labelkit instance.
type Remote interface {
	Bulk(ctx context.Context, req remote.BulkRequest, cb progress.Callback) (*remote.Document, error)
	Print(ctx context.Context, req remote.PrintRequest, cb progress.Callback) (*remote.Document, error)
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg     Config
	logger  *slog.Logger
	encoder barcode.Encoder
	fonts   barcode.FontSource
	checker router.HealthChecker
	remote  Remote
	local   bool
}

// NewBuilder creates a builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole config.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithWorkers sets the render worker count; values < 1 keep the default.
func (b *Builder) WithWorkers(n int) *Builder {
	if n > 0 {
		b.cfg.Workers = n
	}
	return b
}

// WithFontDir adds a directory of .ttf/.otf files to the font registry.
func (b *Builder) WithFontDir(dir string) *Builder {
	b.cfg.FontDir = dir
	return b
}

// WithRemoteURL points routing and remote generation at a server.
func (b *Builder) WithRemoteURL(url string) *Builder {
	b.cfg.Router.RemoteURL = url
	return b
}

// WithLayout sets the default print layout.
func (b *Builder) WithLayout(cfg layout.Config) *Builder {
	b.cfg.Layout = cfg
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithEncoder overrides the symbology encoder.
func (b *Builder) WithEncoder(e barcode.Encoder) *Builder {
	b.encoder = e
	return b
}

// WithFonts overrides the font source.
func (b *Builder) WithFonts(f barcode.FontSource) *Builder {
	b.fonts = f
	return b
}

// WithHealthChecker overrides the remote availability check.
func (b *Builder) WithHealthChecker(p router.HealthChecker) *Builder {
	b.checker = p
	return b
}

// WithRemote overrides the remote generator.
func (b *Builder) WithRemote(r Remote) *Builder {
	b.remote = r
	return b
}

// LocalOnly disables routing; every job renders in process. Used by the
// server itself so it never forwards work.
func (b *Builder) LocalOnly() *Builder {
	b.local = true
	return b
}

// Config returns the current builder config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks the builder config.
func (b *Builder) Validate() error {
	if b.cfg.MaxItems < 1 || b.cfg.MaxItems > ItemLimit {
		return apperr.Validation("render.maxItems", "must be between 1 and %d, got %d", ItemLimit, b.cfg.MaxItems)
	}
	if b.cfg.Router.BaseThreshold < 0 {
		return apperr.Validation("router.baseThreshold", "must not be negative, got %d", b.cfg.Router.BaseThreshold)
	}
	return b.cfg.Layout.Validate()
}

// Build assembles the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	fonts := b.fonts
	families := []string(nil)
	if fonts == nil {
		reg, err := barcode.NewFontRegistry(b.cfg.FontDir)
		if err != nil {
			return nil, fmt.Errorf("load fonts: %w", err)
		}
		fonts, families = reg, reg.Families()
	}
	encoder := b.encoder
	if encoder == nil {
		encoder = barcode.NewEncoder()
	}

	p := &Pipeline{
		cfg:      b.cfg,
		logger:   logger,
		renderer: barcode.NewRenderer(encoder, fonts),
		families: families,
	}
	if b.local {
		return p, nil
	}

	checker := b.checker
	if checker == nil {
		checker = router.NewHTTPHealthChecker(b.cfg.Router.RemoteURL, b.cfg.Router.HealthTimeout)
	}
	p.router = router.New(b.cfg.Router, checker, logger)
	p.remote = b.remote
	if p.remote == nil && b.cfg.Router.RemoteURL != "" {
		p.remote = remote.NewClient(b.cfg.Router.RemoteURL, b.cfg.RemoteTimeout, logger)
	}
	return p, nil
}

// Pipeline runs label jobs.
type Pipeline struct {
	cfg      Config
	logger   *slog.Logger
	renderer *barcode.Renderer
	router   *router.Router
	remote   Remote
	families []string
}

// Config returns the pipeline config.
func (p *Pipeline) Config() Config { return p.cfg }

// FontFamilies lists the registered font families, if the pipeline owns
// its registry.
func (p *Pipeline) FontFamilies() []string { return p.families }

// Request is the common part of every job.
type Request struct {
	Data     []string
	Config   barcode.Config
	Progress progress.Callback
	// Local skips routing and renders in process.
	Local bool
}

// prepare normalises and validates the request before any rendering.
func (p *Pipeline) prepare(req *Request, minItems int) error {
	if n := len(req.Data); n < minItems || n > p.cfg.MaxItems {
		return apperr.Validation("data", "must contain between %d and %d items, got %d", minItems, p.cfg.MaxItems, n)
	}
	// Composed and decomposed spellings of the same value must produce the
	// same label and cache key.
	data := make([]string, len(req.Data))
	for i, v := range req.Data {
		data[i] = norm.NFC.String(v)
	}
	if err := remote.ValidateNonEmpty(data); err != nil {
		return err
	}
	req.Data = data
	req.Config.Normalize()
	return req.Config.Validate()
}

// Estimate returns the routing decision for a job without running it.
func (p *Pipeline) Estimate(ctx context.Context, itemCount int, cfg barcode.Config) (router.Decision, error) {
	if itemCount < 1 {
		return router.Decision{}, apperr.Validation("itemCount", "must be positive, got %d", itemCount)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return router.Decision{}, err
	}
	if p.router == nil {
		settings := p.cfg.Router
		return router.New(settings, nil, p.logger).Decide(ctx, itemCount, cfg), nil
	}
	return p.router.Decide(ctx, itemCount, cfg), nil
}

// route decides the venue, forcing local when routing is off.
func (p *Pipeline) route(ctx context.Context, req Request) router.Decision {
	if req.Local || p.router == nil || p.remote == nil {
		cf := router.ComplexityFactor(req.Config)
		return router.Decision{
			Mode:             router.Local,
			Reason:           "local rendering requested",
			ItemCount:        len(req.Data),
			ComplexityFactor: cf,
			Threshold:        router.AdjustedThreshold(p.cfg.Router.BaseThreshold, cf),
			Estimate:         router.EstimateTime(router.Local, len(req.Data), cf, p.cfg.Router.Local),
		}
	}
	return p.router.Decide(ctx, len(req.Data), req.Config)
}

// fallback reports whether a remote failure should be retried locally.
func (p *Pipeline) fallback(err error, kind string) bool {
	if !apperr.Is(err, apperr.KindRemoteUnavailable) {
		return false
	}
	p.logger.Warn("Remote generation failed, falling back to local", "job", kind, "error", err)
	return true
}

// Preview renders one label, for single-item previews.
func (p *Pipeline) Preview(value string, cfg barcode.Config) (*barcode.RenderedImage, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return p.renderer.Render(value, 0, barcode.Primary, cfg)
}

func firstItemError(errs []*barcode.ItemError) error {
	if len(errs) == 0 {
		return errors.New("no labels rendered")
	}
	return errs[0]
}
