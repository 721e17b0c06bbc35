package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func newTestLoader() *Loader {
	return NewLoaderWithViper(viper.New())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labelkit.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil || loader.v == nil {
		t.Fatal("NewLoader() returned no viper instance")
	}
}

func TestLoadWithNoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := newTestLoader().Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.Layout.CanvasWidthCM != 21 {
		t.Errorf("expected default canvas width 21, got %v", cfg.Layout.CanvasWidthCM)
	}
}

func TestLoadWithValidYAMLFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
log_format: json
render:
  workers: 2
  font_dir: /opt/fonts
router:
  remote_url: http://labels:8080
  base_threshold: 50
  high_volume_threshold: 200
layout:
  canvas_width: 10
  margins:
    top: 5
  continuous_mode: true
server:
  port: 9090
  rate_limit:
    enabled: true
    max_labels_per_day: 500
cache:
  backend: memory
  ttl_sec: 60
`)
	loader := newTestLoader()
	cfg, err := loader.LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error: %v", err)
	}

	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("log settings = %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.Render.Workers != 2 || cfg.Render.FontDir != "/opt/fonts" {
		t.Errorf("render = %+v", cfg.Render)
	}
	if cfg.Router.RemoteURL != "http://labels:8080" || cfg.Router.BaseThreshold != 50 {
		t.Errorf("router = %+v", cfg.Router)
	}
	if cfg.Layout.CanvasWidthCM != 10 || cfg.Layout.Margins.Top != 5 || !cfg.Layout.ContinuousMode {
		t.Errorf("layout = %+v", cfg.Layout)
	}
	if cfg.Layout.Margins.Left != 10 {
		t.Errorf("unset margin should keep default 10, got %v", cfg.Layout.Margins.Left)
	}
	if cfg.Server.Port != 9090 || !cfg.Server.RateLimit.Enabled || cfg.Server.RateLimit.MaxLabelsPerDay != 500 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Cache.Backend != CacheMemory || cfg.Cache.TTLSec != 60 {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if loader.GetConfigFileUsed() != path {
		t.Errorf("GetConfigFileUsed() = %q", loader.GetConfigFileUsed())
	}
}

func TestLoadWithInvalidConfig(t *testing.T) {
	path := writeConfig(t, "log_level: loud\n")

	if _, err := newTestLoader().LoadWithFile(path); err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("expected validation error, got %v", err)
	}

	cfg, err := newTestLoader().LoadWithFileWithoutValidation(path)
	if err != nil {
		t.Fatalf("LoadWithFileWithoutValidation() error: %v", err)
	}
	if cfg.LogLevel != "loud" {
		t.Errorf("expected raw log level, got %s", cfg.LogLevel)
	}
}

func TestLoadWithMissingFile(t *testing.T) {
	_, err := newTestLoader().LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("expected missing file error, got %v", err)
	}
}

func TestLoadWithMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed\n")
	if _, err := newTestLoader().LoadWithFile(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("LABELKIT_SERVER_PORT", "7070")
	t.Setenv("LABELKIT_LAYOUT_SPACING", "2.5")
	t.Setenv("LABELKIT_CACHE_REDIS_ADDR", "redis:6379")
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := newTestLoader().LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("env should override file port, got %d", cfg.Server.Port)
	}
	if cfg.Layout.Spacing != 2.5 {
		t.Errorf("spacing = %v", cfg.Layout.Spacing)
	}
	if cfg.Cache.Redis.Addr != "redis:6379" {
		t.Errorf("redis addr = %q", cfg.Cache.Redis.Addr)
	}
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := GenerateDefaultConfigFile(path); err != nil {
		t.Fatalf("GenerateDefaultConfigFile() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("generated file is not YAML: %v", err)
	}
	for _, key := range []string{"render", "router", "layout", "server", "cache"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("generated file misses section %q", key)
		}
	}

	cfg, err := newTestLoader().LoadWithFile(path)
	if err != nil {
		t.Fatalf("generated file does not load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	paths := GetConfigSearchPaths()
	if paths[0] != "." {
		t.Errorf("first path = %q", paths[0])
	}
	if paths[1] != filepath.Join("/xdg", "labelkit") {
		t.Errorf("xdg path = %q", paths[1])
	}
	if paths[len(paths)-1] != "/etc/labelkit" {
		t.Errorf("last path = %q", paths[len(paths)-1])
	}
}
