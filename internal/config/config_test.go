package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Cache.Backend != CacheNone {
		t.Errorf("expected cache backend %q, got %q", CacheNone, cfg.Cache.Backend)
	}
	if cfg.Router.BaseThreshold != 20 || cfg.Router.HighVolumeThreshold != 100 {
		t.Errorf("unexpected router thresholds %d/%d", cfg.Router.BaseThreshold, cfg.Router.HighVolumeThreshold)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "invalid log format"},
		{"zero workers", func(c *Config) { c.Render.Workers = 0 }, "invalid render workers"},
		{"zero max items", func(c *Config) { c.Render.MaxItems = 0 }, "invalid render max items"},
		{"too many max items", func(c *Config) { c.Render.MaxItems = 1001 }, "invalid render max items"},
		{"inverted thresholds", func(c *Config) { c.Router.HighVolumeThreshold = 10 }, "invalid router thresholds"},
		{"zero health timeout", func(c *Config) { c.Router.HealthTimeoutSec = 0 }, "invalid router timeouts"},
		{"remote url scheme", func(c *Config) { c.Router.RemoteURL = "ftp://host" }, "invalid router remote url"},
		{"layout", func(c *Config) { c.Layout.CanvasWidthCM = 0 }, "invalid layout"},
		{"sheet format", func(c *Config) { c.Output.SheetFormat = "tiff" }, "invalid output sheet format"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"body size", func(c *Config) { c.Server.MaxBodyMB = 0 }, "invalid max body size"},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = -1 }, "invalid timeout"},
		{"cache backend", func(c *Config) { c.Cache.Backend = "memcached" }, "invalid cache backend"},
		{"redis without addr", func(c *Config) { c.Cache.Backend = CacheRedis }, "requires cache.redis.addr"},
		{"negative ttl", func(c *Config) { c.Cache.TTLSec = -5 }, "invalid cache ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAcceptsRedisWithAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Backend = CacheRedis
	cfg.Cache.Redis.Addr = "localhost:6379"
	cfg.Router.RemoteURL = "https://labels.internal"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
}

func TestToPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Render.Workers = 3
	cfg.Render.FontDir = "/fonts"
	cfg.Router.RemoteURL = "http://remote:8080"
	cfg.Router.HealthTimeoutSec = 2
	cfg.Router.RemoteTimeoutSec = 30
	cfg.Router.LocalPerItemMs = 10
	cfg.Layout.ContinuousMode = true

	pc := cfg.ToPipelineConfig()
	if pc.Workers != 3 || pc.FontDir != "/fonts" {
		t.Errorf("render settings not carried over: %+v", pc)
	}
	if pc.Router.RemoteURL != "http://remote:8080" {
		t.Errorf("remote url = %q", pc.Router.RemoteURL)
	}
	if pc.Router.HealthTimeout != 2*time.Second {
		t.Errorf("health timeout = %v", pc.Router.HealthTimeout)
	}
	if pc.RemoteTimeout != 30*time.Second {
		t.Errorf("remote timeout = %v", pc.RemoteTimeout)
	}
	if pc.Router.Local.PerItemMs != 10 {
		t.Errorf("local per item = %v", pc.Router.Local.PerItemMs)
	}
	if !pc.Layout.ContinuousMode {
		t.Error("layout not carried over")
	}
}

func TestCacheTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.TTLSec = 90
	if got := cfg.CacheTTL(); got != 90*time.Second {
		t.Errorf("CacheTTL() = %v", got)
	}
}
