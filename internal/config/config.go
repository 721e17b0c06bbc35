package config

import (
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/labelkit/internal/cache"
	"github.com/MeKo-Tech/labelkit/internal/layout"
	"github.com/MeKo-Tech/labelkit/internal/pipeline"
	"github.com/MeKo-Tech/labelkit/internal/remote"
	"github.com/MeKo-Tech/labelkit/internal/router"
	"github.com/MeKo-Tech/labelkit/internal/server"
)

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Render:    defaultRenderConfig(),
		Router:    defaultRouterConfig(),
		Layout:    layout.DefaultConfig(),
		Output: OutputConfig{
			Dir:         ".",
			SheetFormat: remote.FormatPDF,
		},
		Server: server.DefaultConfig(),
		Cache: CacheConfig{
			Backend:    CacheNone,
			TTLSec:     600,
			MaxEntries: 128,
			Redis:      cache.RedisConfig{KeyPrefix: "labelkit"},
		},
	}
}

func defaultRenderConfig() RenderConfig {
	cfg := pipeline.DefaultConfig()
	return RenderConfig{
		Workers:  runtime.NumCPU(),
		MaxItems: cfg.MaxItems,
	}
}

func defaultRouterConfig() RouterConfig {
	s := router.DefaultSettings()
	return RouterConfig{
		BaseThreshold:       s.BaseThreshold,
		HighVolumeThreshold: s.HighVolumeThreshold,
		HealthTimeoutSec:    int(s.HealthTimeout / time.Second),
		RemoteTimeoutSec:    int(pipeline.DefaultConfig().RemoteTimeout / time.Second),
		LocalPerItemMs:      s.Local.PerItemMs,
		LocalOverheadMs:     s.Local.OverheadMs,
		RemotePerItemMs:     s.Remote.PerItemMs,
		RemoteOverheadMs:    s.Remote.OverheadMs,
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	validLogFormats := []string{"text", "json"}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		return fmt.Errorf("invalid log format: %s (must be one of: %s)", c.LogFormat, strings.Join(validLogFormats, ", "))
	}

	if c.Render.Workers <= 0 {
		return fmt.Errorf("invalid render workers: %d (must be positive)", c.Render.Workers)
	}
	if c.Render.MaxItems <= 0 || c.Render.MaxItems > pipeline.ItemLimit {
		return fmt.Errorf("invalid render max items: %d (must be between 1 and %d)", c.Render.MaxItems, pipeline.ItemLimit)
	}

	if c.Router.BaseThreshold <= 0 || c.Router.HighVolumeThreshold < c.Router.BaseThreshold {
		return fmt.Errorf("invalid router thresholds: base %d, high volume %d (need 0 < base <= high volume)",
			c.Router.BaseThreshold, c.Router.HighVolumeThreshold)
	}
	if c.Router.HealthTimeoutSec <= 0 || c.Router.RemoteTimeoutSec <= 0 {
		return fmt.Errorf("invalid router timeouts: health %ds, remote %ds (must be positive)",
			c.Router.HealthTimeoutSec, c.Router.RemoteTimeoutSec)
	}
	if c.Router.RemoteURL != "" && !strings.HasPrefix(c.Router.RemoteURL, "http://") && !strings.HasPrefix(c.Router.RemoteURL, "https://") {
		return fmt.Errorf("invalid router remote url: %s (must start with http:// or https://)", c.Router.RemoteURL)
	}

	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("invalid layout: %w", err)
	}

	if _, err := remote.ValidateFormat(c.Output.SheetFormat); err != nil {
		return fmt.Errorf("invalid output sheet format: %w", err)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxBodyMB <= 0 {
		return fmt.Errorf("invalid max body size: %d (must be positive)", c.Server.MaxBodyMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}

	validBackends := []string{CacheNone, CacheMemory, CacheRedis}
	if !slices.Contains(validBackends, c.Cache.Backend) {
		return fmt.Errorf("invalid cache backend: %s (must be one of: %s)", c.Cache.Backend, strings.Join(validBackends, ", "))
	}
	if c.Cache.Backend == CacheRedis && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache backend redis requires cache.redis.addr")
	}
	if c.Cache.TTLSec < 0 {
		return fmt.Errorf("invalid cache ttl: %d (must not be negative)", c.Cache.TTLSec)
	}

	return nil
}

// ToRouterSettings converts to router.Settings.
func (c *Config) ToRouterSettings() router.Settings {
	return router.Settings{
		BaseThreshold:       c.Router.BaseThreshold,
		HighVolumeThreshold: c.Router.HighVolumeThreshold,
		RemoteURL:           c.Router.RemoteURL,
		HealthTimeout:       time.Duration(c.Router.HealthTimeoutSec) * time.Second,
		Local:               router.EstimateParams{PerItemMs: c.Router.LocalPerItemMs, OverheadMs: c.Router.LocalOverheadMs},
		Remote:              router.EstimateParams{PerItemMs: c.Router.RemotePerItemMs, OverheadMs: c.Router.RemoteOverheadMs},
	}
}

// ToPipelineConfig converts the config to the pipeline configuration format.
func (c *Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		Workers:       c.Render.Workers,
		FontDir:       c.Render.FontDir,
		MaxItems:      c.Render.MaxItems,
		Router:        c.ToRouterSettings(),
		Layout:        c.Layout,
		RemoteTimeout: time.Duration(c.Router.RemoteTimeoutSec) * time.Second,
	}
}

// CacheTTL returns the cache entry lifetime; zero keeps entries until evicted.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSec) * time.Second
}
