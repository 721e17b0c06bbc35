//nolint:lll
package config

import (
	"github.com/MeKo-Tech/labelkit/internal/cache"
	"github.com/MeKo-Tech/labelkit/internal/layout"
	"github.com/MeKo-Tech/labelkit/internal/server"
)

// Config represents the complete configuration for labelkit.
// It covers every command (generate, sheet, estimate, serve) and is loaded
// from configuration files, environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" json:"log_format"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Label rendering
	Render RenderConfig `mapstructure:"render" yaml:"render" json:"render"`

	// Local/remote routing
	Router RouterConfig `mapstructure:"router" yaml:"router" json:"router"`

	// Print sheet layout
	Layout layout.Config `mapstructure:"layout" yaml:"layout" json:"layout"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server server.Config `mapstructure:"server" yaml:"server" json:"server"`

	// Response cache (for serve command)
	Cache CacheConfig `mapstructure:"cache" yaml:"cache" json:"cache"`
}

// RenderConfig contains label rendering settings.
type RenderConfig struct {
	Workers  int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	FontDir  string `mapstructure:"font_dir" yaml:"font_dir" json:"font_dir"`
	MaxItems int    `mapstructure:"max_items" yaml:"max_items" json:"max_items"`
}

// RouterConfig contains the generation-mode routing settings.
type RouterConfig struct {
	RemoteURL           string  `mapstructure:"remote_url" yaml:"remote_url" json:"remote_url"`
	BaseThreshold       int     `mapstructure:"base_threshold" yaml:"base_threshold" json:"base_threshold"`
	HighVolumeThreshold int     `mapstructure:"high_volume_threshold" yaml:"high_volume_threshold" json:"high_volume_threshold"`
	HealthTimeoutSec    int     `mapstructure:"health_timeout_sec" yaml:"health_timeout_sec" json:"health_timeout_sec"`
	RemoteTimeoutSec    int     `mapstructure:"remote_timeout_sec" yaml:"remote_timeout_sec" json:"remote_timeout_sec"`
	LocalPerItemMs      float64 `mapstructure:"local_per_item_ms" yaml:"local_per_item_ms" json:"local_per_item_ms"`
	LocalOverheadMs     float64 `mapstructure:"local_overhead_ms" yaml:"local_overhead_ms" json:"local_overhead_ms"`
	RemotePerItemMs     float64 `mapstructure:"remote_per_item_ms" yaml:"remote_per_item_ms" json:"remote_per_item_ms"`
	RemoteOverheadMs    float64 `mapstructure:"remote_overhead_ms" yaml:"remote_overhead_ms" json:"remote_overhead_ms"`
}

// OutputConfig contains output settings for the CLI.
type OutputConfig struct {
	Dir         string `mapstructure:"dir" yaml:"dir" json:"dir"`
	SheetFormat string `mapstructure:"sheet_format" yaml:"sheet_format" json:"sheet_format"`
}

// CacheConfig selects and tunes the server's response cache.
type CacheConfig struct {
	Backend    string            `mapstructure:"backend" yaml:"backend" json:"backend"`
	TTLSec     int               `mapstructure:"ttl_sec" yaml:"ttl_sec" json:"ttl_sec"`
	MaxEntries int               `mapstructure:"max_entries" yaml:"max_entries" json:"max_entries"`
	Redis      cache.RedisConfig `mapstructure:"redis" yaml:"redis" json:"redis"`
}
