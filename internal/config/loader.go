package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "labelkit"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "LABELKIT"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that flags
// bound by the root command take part in resolution.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on a private viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load reads the first config file found on the search paths, applies
// environment variables and defaults, and validates the result.
func (l *Loader) Load() (*Config, error) {
	return l.load("", true)
}

// LoadWithoutValidation is Load without the final validation step.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.load("", false)
}

// LoadWithFile loads configuration from a specific file path. An empty
// path searches the standard locations.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.load(configFile, true)
}

// LoadWithFileWithoutValidation is LoadWithFile without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	return l.load(configFile, false)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file: defaults and env vars only.
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if validate {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return &config, nil
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so that AutomaticEnv can resolve it
// during Unmarshal.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("log_format", d.LogFormat)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("render.workers", d.Render.Workers)
	l.v.SetDefault("render.font_dir", d.Render.FontDir)
	l.v.SetDefault("render.max_items", d.Render.MaxItems)

	l.v.SetDefault("router.remote_url", d.Router.RemoteURL)
	l.v.SetDefault("router.base_threshold", d.Router.BaseThreshold)
	l.v.SetDefault("router.high_volume_threshold", d.Router.HighVolumeThreshold)
	l.v.SetDefault("router.health_timeout_sec", d.Router.HealthTimeoutSec)
	l.v.SetDefault("router.remote_timeout_sec", d.Router.RemoteTimeoutSec)
	l.v.SetDefault("router.local_per_item_ms", d.Router.LocalPerItemMs)
	l.v.SetDefault("router.local_overhead_ms", d.Router.LocalOverheadMs)
	l.v.SetDefault("router.remote_per_item_ms", d.Router.RemotePerItemMs)
	l.v.SetDefault("router.remote_overhead_ms", d.Router.RemoteOverheadMs)

	l.v.SetDefault("layout.canvas_width", d.Layout.CanvasWidthCM)
	l.v.SetDefault("layout.margins.top", d.Layout.Margins.Top)
	l.v.SetDefault("layout.margins.bottom", d.Layout.Margins.Bottom)
	l.v.SetDefault("layout.margins.left", d.Layout.Margins.Left)
	l.v.SetDefault("layout.margins.right", d.Layout.Margins.Right)
	l.v.SetDefault("layout.spacing", d.Layout.Spacing)
	l.v.SetDefault("layout.border_width", d.Layout.BorderWidth)
	l.v.SetDefault("layout.border_color", d.Layout.BorderColor)
	l.v.SetDefault("layout.continuous_mode", d.Layout.ContinuousMode)

	l.v.SetDefault("output.dir", d.Output.Dir)
	l.v.SetDefault("output.sheet_format", d.Output.SheetFormat)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_body_mb", d.Server.MaxBodyMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.rate_limit.enabled", d.Server.RateLimit.Enabled)
	l.v.SetDefault("server.rate_limit.requests_per_minute", d.Server.RateLimit.RequestsPerMinute)
	l.v.SetDefault("server.rate_limit.requests_per_hour", d.Server.RateLimit.RequestsPerHour)
	l.v.SetDefault("server.rate_limit.max_requests_per_day", d.Server.RateLimit.MaxRequestsPerDay)
	l.v.SetDefault("server.rate_limit.max_labels_per_day", d.Server.RateLimit.MaxLabelsPerDay)

	l.v.SetDefault("cache.backend", d.Cache.Backend)
	l.v.SetDefault("cache.ttl_sec", d.Cache.TTLSec)
	l.v.SetDefault("cache.max_entries", d.Cache.MaxEntries)
	l.v.SetDefault("cache.redis.addr", d.Cache.Redis.Addr)
	l.v.SetDefault("cache.redis.password", d.Cache.Redis.Password)
	l.v.SetDefault("cache.redis.db", d.Cache.Redis.DB)
	l.v.SetDefault("cache.redis.key_prefix", d.Cache.Redis.KeyPrefix)
}

// GetResolvedConfig returns the current resolved configuration for debugging.
func (l *Loader) GetResolvedConfig() map[string]any {
	return l.v.AllSettings()
}

// GenerateDefaultConfigFile writes the defaults to filename as YAML.
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	v := viper.New()
	NewLoaderWithViper(v).setDefaults()
	return v.WriteConfigAs(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "labelkit"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "labelkit"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	return append(paths, "/etc/labelkit")
}
