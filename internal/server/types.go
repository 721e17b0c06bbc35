package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/labelkit/internal/barcode"
	"github.com/MeKo-Tech/labelkit/internal/cache"
	"github.com/MeKo-Tech/labelkit/internal/pipeline"
	"github.com/MeKo-Tech/labelkit/internal/remote"
	"github.com/MeKo-Tech/labelkit/internal/router"
)

// generator is what the server needs from a pipeline.
type generator interface {
	Bulk(ctx context.Context, req pipeline.Request) (*pipeline.BulkResult, error)
	Print(ctx context.Context, req pipeline.PrintRequest) (*pipeline.PrintResult, error)
	LabelPDF(ctx context.Context, req pipeline.Request) ([]byte, error)
	Estimate(ctx context.Context, itemCount int, cfg barcode.Config) (router.Decision, error)
	FontFamilies() []string
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    generator
	cache       cache.Cache
	cacheTTL    time.Duration
	rateLimiter *RateLimiter
	corsOrigin  string
	maxBodyMB   int64
	timeout     time.Duration
	version     string
	logger      *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Host            string          `yaml:"host" mapstructure:"host"`
	Port            int             `yaml:"port" mapstructure:"port"`
	CORSOrigin      string          `yaml:"cors_origin" mapstructure:"cors_origin"`
	MaxBodyMB       int64           `yaml:"max_body_mb" mapstructure:"max_body_mb"`
	TimeoutSec      int             `yaml:"timeout_sec" mapstructure:"timeout_sec"`
	ShutdownTimeout int             `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// DefaultConfig returns the stock server settings.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            8080,
		CORSOrigin:      "*",
		MaxBodyMB:       10,
		TimeoutSec:      120,
		ShutdownTimeout: 10,
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
			MaxRequestsPerDay: 5000,
			MaxLabelsPerDay:   200000,
		},
	}
}

// Options are the collaborators of a Server.
type Options struct {
	Pipeline *pipeline.Pipeline
	Cache    cache.Cache
	CacheTTL time.Duration
	Version  string
	Logger   *slog.Logger
}

// NewServer creates a generation server. The pipeline must be local-only;
// a nil cache disables output caching.
func NewServer(config Config, opts Options) (*Server, error) {
	return newServer(config, opts.Pipeline, opts)
}

func newServer(config Config, gen generator, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := opts.Cache
	if c == nil {
		c = cache.NewNullCache()
	}
	s := &Server{
		pipeline:   gen,
		cache:      c,
		cacheTTL:   opts.CacheTTL,
		corsOrigin: config.CORSOrigin,
		maxBodyMB:  config.MaxBodyMB,
		timeout:    time.Duration(config.TimeoutSec) * time.Second,
		version:    opts.Version,
		logger:     logger,
	}
	if s.maxBodyMB <= 0 {
		s.maxBodyMB = 10
	}
	if config.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(config.RateLimit)
	}
	return s, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc(remote.PathHealth, s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/fonts", s.corsMiddleware(s.fontsHandler))
	mux.HandleFunc(remote.PathEstimate, s.corsMiddleware(s.rateLimitMiddleware(s.estimateHandler)))
	mux.HandleFunc(remote.PathBulk, s.corsMiddleware(s.rateLimitMiddleware(s.bulkHandler)))
	mux.HandleFunc(remote.PathPrint, s.corsMiddleware(s.rateLimitMiddleware(s.printHandler)))
	mux.HandleFunc(PathLabels, s.corsMiddleware(s.rateLimitMiddleware(s.labelsHandler)))
	mux.HandleFunc(remote.PathWS, s.rateLimitMiddleware(s.generateWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

// PathLabels serves one PDF page per label.
const PathLabels = "/generate/labels"
