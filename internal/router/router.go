// Package router decides whether a label run executes locally or on the
// remote generation server, and estimates how long it will take.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/labelkit/internal/apperr"
	"github.com/MeKo-Tech/labelkit/internal/barcode"
)

// Mode is where a run executes.
type Mode string

const (
	Local  Mode = "local"
	Remote Mode = "remote"
)

// EstimateParams are the per-venue cost constants.
type EstimateParams struct {
	PerItemMs  float64 `json:"perItemMs" yaml:"per_item_ms" mapstructure:"per_item_ms"`
	OverheadMs float64 `json:"overheadMs" yaml:"overhead_ms" mapstructure:"overhead_ms"`
}

// Settings tune the routing decision.
type Settings struct {
	BaseThreshold       int            `yaml:"base_threshold" mapstructure:"base_threshold"`
	HighVolumeThreshold int            `yaml:"high_volume_threshold" mapstructure:"high_volume_threshold"`
	RemoteURL           string         `yaml:"remote_url" mapstructure:"remote_url"`
	HealthTimeout       time.Duration  `yaml:"health_timeout" mapstructure:"health_timeout"`
	Local               EstimateParams `yaml:"local" mapstructure:"local"`
	Remote              EstimateParams `yaml:"remote" mapstructure:"remote"`
}

// DefaultSettings returns the stock thresholds and estimate constants.
func DefaultSettings() Settings {
	return Settings{
		BaseThreshold:       20,
		HighVolumeThreshold: 100,
		HealthTimeout:       5 * time.Second,
		Local:               EstimateParams{PerItemMs: 50, OverheadMs: 200},
		Remote:              EstimateParams{PerItemMs: 20, OverheadMs: 1500},
	}
}

// Estimate is a duration guess for display only.
type Estimate struct {
	Mode         Mode    `json:"mode"`
	Milliseconds float64 `json:"milliseconds"`
	Human        string  `json:"human"`
}

// Decision is the outcome of Decide.
type Decision struct {
	Mode             Mode     `json:"mode"`
	Reason           string   `json:"reason"`
	ItemCount        int      `json:"itemCount"`
	Threshold        int      `json:"adjustedThreshold"`
	ComplexityFactor float64  `json:"complexityFactor"`
	RemoteChecked    bool     `json:"remoteChecked"`
	Estimate         Estimate `json:"estimate"`
	Alternative      Estimate `json:"alternative"`
}

// HealthChecker checks whether the remote server can take work. A nil
// error means available.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// ComplexityFactor scores how expensive one item of cfg is to render.
func ComplexityFactor(cfg barcode.Config) float64 {
	f := 1.0
	if cfg.Type.Is2D() {
		f *= 1.5
	}
	if cfg.DualMode {
		f *= 2
	}
	if (cfg.Dimensions.WidthCM()+cfg.Dimensions.HeightCM())/2 > 10 {
		f *= 1.2
	}
	if cfg.Options.Stretch {
		f *= 1.1
	}
	return math.Max(f, 1)
}

// AdjustedThreshold scales the base local threshold down by complexity.
func AdjustedThreshold(base int, cf float64) int {
	if cf < 1 {
		cf = 1
	}
	return int(math.Floor(float64(base) / cf))
}

// EstimateTime is itemCount × perItem × cf + overhead.
func EstimateTime(mode Mode, itemCount int, cf float64, p EstimateParams) Estimate {
	ms := float64(itemCount)*p.PerItemMs*cf + p.OverheadMs
	return Estimate{Mode: mode, Milliseconds: ms, Human: humanize(ms)}
}

func humanize(ms float64) string {
	d := time.Duration(ms * float64(time.Millisecond))
	switch {
	case d < time.Second:
		return fmt.Sprintf("about %dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("about %.1fs", d.Seconds())
	default:
		m := int(d.Minutes())
		s := int(d.Seconds()) - m*60
		return fmt.Sprintf("about %dm%02ds", m, s)
	}
}

// Router makes routing decisions.
type Router struct {
	settings Settings
	checker  HealthChecker
	logger   *slog.Logger
}

// New creates a router. A nil checker means no remote is configured.
func New(settings Settings, checker HealthChecker, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{settings: settings, checker: checker, logger: logger}
}

// Settings returns the router's configuration.
func (r *Router) Settings() Settings { return r.settings }

// Decide picks a venue for itemCount items of cfg. Small runs stay local
// without touching the network; larger runs prefer the remote when the
// health check succeeds. Failed checks never fail the decision.
func (r *Router) Decide(ctx context.Context, itemCount int, cfg barcode.Config) Decision {
	cf := ComplexityFactor(cfg)
	d := Decision{
		ItemCount:        itemCount,
		ComplexityFactor: cf,
		Threshold:        AdjustedThreshold(r.settings.BaseThreshold, cf),
	}

	switch {
	case itemCount <= d.Threshold:
		d.Mode = Local
		d.Reason = fmt.Sprintf("%d items within local threshold %d", itemCount, d.Threshold)
	default:
		d.RemoteChecked = r.checker != nil
		err := r.checkRemote(ctx)
		highVolume := itemCount > r.settings.HighVolumeThreshold
		switch {
		case err == nil && highVolume:
			d.Mode = Remote
			d.Reason = fmt.Sprintf("high volume (%d > %d items), remote available", itemCount, r.settings.HighVolumeThreshold)
		case err == nil:
			d.Mode = Remote
			d.Reason = fmt.Sprintf("%d items above local threshold %d, remote available", itemCount, d.Threshold)
		case highVolume:
			d.Mode = Local
			d.Reason = fmt.Sprintf("high volume (%d items) but remote unavailable, falling back to local: %v", itemCount, err)
		default:
			d.Mode = Local
			d.Reason = fmt.Sprintf("remote unavailable, rendering %d items locally: %v", itemCount, err)
		}
	}

	local := EstimateTime(Local, itemCount, cf, r.settings.Local)
	remote := EstimateTime(Remote, itemCount, cf, r.settings.Remote)
	d.Estimate, d.Alternative = local, remote
	if d.Mode == Remote {
		d.Estimate, d.Alternative = remote, local
	}

	r.logger.Debug("Routing decision",
		"mode", d.Mode,
		"items", itemCount,
		"threshold", d.Threshold,
		"complexity", cf,
		"remoteChecked", d.RemoteChecked,
		"estimate_ms", d.Estimate.Milliseconds)
	return d
}

func (r *Router) checkRemote(ctx context.Context) error {
	if r.checker == nil {
		return apperr.RemoteUnavailable(nil, "no remote server configured")
	}
	if err := r.checker.Check(ctx); err != nil {
		r.logger.Warn("Remote generation server unavailable", "error", err)
		return err
	}
	return nil
}

// HTTPHealthChecker issues GET <base>/health with a bounded timeout.
type HTTPHealthChecker struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// NewHTTPHealthChecker returns nil when baseURL is empty so the router
// treats the remote as not configured.
func NewHTTPHealthChecker(baseURL string, timeout time.Duration) HealthChecker {
	if strings.TrimSpace(baseURL) == "" {
		return nil
	}
	return &HTTPHealthChecker{BaseURL: strings.TrimRight(baseURL, "/"), Timeout: timeout, Client: http.DefaultClient}
}

// Check returns a remote-unavailable error for transport failures, timeouts
// and non-2xx responses.
func (p *HTTPHealthChecker) Check(ctx context.Context) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/health", nil)
	if err != nil {
		return apperr.RemoteUnavailable(err, "build health request")
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return apperr.RemoteUnavailable(err, "health check %s", p.BaseURL)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.RemoteUnavailable(nil, "health check %s returned %d", p.BaseURL, resp.StatusCode)
	}
	return nil
}
