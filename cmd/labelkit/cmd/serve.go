package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/labelkit/internal/cache"
	"github.com/MeKo-Tech/labelkit/internal/config"
	"github.com/MeKo-Tech/labelkit/internal/server"
	"github.com/MeKo-Tech/labelkit/internal/version"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the label generation server",
	Long: `Start an HTTP server that renders labels for remote clients.

The server provides the following endpoints:
  POST /generate/bulk   - ZIP archive of label PNGs
  POST /generate/print  - print sheet as PNG or PDF
  POST /generate/labels - PDF with one page per label
  POST /estimate        - routing decision for a job
  GET  /ws/generate     - WebSocket jobs with progress
  GET  /fonts           - registered font families
  GET  /health          - health check
  GET  /metrics         - Prometheus metrics

Examples:
  labelkit serve
  labelkit serve --port 8080
  labelkit serve --host 0.0.0.0 --cache redis --redis-addr localhost:6379`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int64("max-body-size", 10, "maximum request body size in MB")
	serveCmd.Flags().Int("timeout", 120, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 5000, "maximum requests per day per client")
	serveCmd.Flags().Int64("max-labels-per-day", 200000, "maximum labels rendered per day per client")
	// Cache flags
	serveCmd.Flags().String("cache", config.CacheNone, "response cache backend: none, memory or redis")
	serveCmd.Flags().String("redis-addr", "", "redis address for the redis cache backend")
}

// serverConfig applies the serve flags the user set over cfg.
func serverConfig(cmd *cobra.Command, cfg *config.Config) (server.Config, config.CacheConfig) {
	sc, cc := cfg.Server, cfg.Cache
	flags := cmd.Flags()
	if flags.Changed("host") {
		sc.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		sc.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		sc.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("max-body-size") {
		sc.MaxBodyMB, _ = flags.GetInt64("max-body-size")
	}
	if flags.Changed("timeout") {
		sc.TimeoutSec, _ = flags.GetInt("timeout")
	}
	if flags.Changed("shutdown-timeout") {
		sc.ShutdownTimeout, _ = flags.GetInt("shutdown-timeout")
	}
	if flags.Changed("rate-limit-enabled") {
		sc.RateLimit.Enabled, _ = flags.GetBool("rate-limit-enabled")
	}
	if flags.Changed("requests-per-minute") {
		sc.RateLimit.RequestsPerMinute, _ = flags.GetInt("requests-per-minute")
	}
	if flags.Changed("requests-per-hour") {
		sc.RateLimit.RequestsPerHour, _ = flags.GetInt("requests-per-hour")
	}
	if flags.Changed("max-requests-per-day") {
		sc.RateLimit.MaxRequestsPerDay, _ = flags.GetInt("max-requests-per-day")
	}
	if flags.Changed("max-labels-per-day") {
		sc.RateLimit.MaxLabelsPerDay, _ = flags.GetInt64("max-labels-per-day")
	}
	if flags.Changed("cache") {
		cc.Backend, _ = flags.GetString("cache")
	}
	if flags.Changed("redis-addr") {
		cc.Redis.Addr, _ = flags.GetString("redis-addr")
	}
	return sc, cc
}

// openCache creates the configured response cache.
func openCache(ctx context.Context, cc config.CacheConfig) (cache.Cache, error) {
	switch cc.Backend {
	case config.CacheMemory:
		return cache.NewMemory(cc.MaxEntries), nil
	case config.CacheRedis:
		return cache.NewRedis(ctx, cc.Redis)
	case "", config.CacheNone:
		return cache.NewNullCache(), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cc.Backend)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := GetConfig()
	sc, cc := serverConfig(cmd, cfg)
	if sc.Port < 1 || sc.Port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", sc.Port)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	p, err := newPipeline(cfg, true)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	c, err := openCache(ctx, cc)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	labelServer, err := server.NewServer(sc, server.Options{
		Pipeline: p,
		Cache:    c,
		CacheTTL: time.Duration(cc.TTLSec) * time.Second,
		Version:  version.Version,
		Logger:   slog.Default(),
	})
	if err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	mux := http.NewServeMux()
	labelServer.SetupRoutes(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", sc.Host, sc.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(sc.TimeoutSec) * time.Second,
	}

	go func() {
		slog.Info("Starting label server", "host", sc.Host, "port", sc.Port, "cache", cc.Backend,
			"workers", cfg.Render.Workers, "rate_limit", sc.RateLimit.Enabled)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", sc.ShutdownTimeout))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(sc.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	if err := labelServer.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	}
	slog.Info("Graceful shutdown completed")
	return nil
}
