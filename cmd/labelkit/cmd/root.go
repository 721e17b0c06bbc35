package cmd

import (
	"fmt"
	"io"
	"log/slog"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/labelkit/internal/config"
	"github.com/MeKo-Tech/labelkit/internal/pipeline"
	"github.com/MeKo-Tech/labelkit/internal/version"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "labelkit",
	Short: "Barcode label rendering and print-sheet layout",
	Long: `labelkit renders barcode and QR labels at print resolution, lays them
out on print sheets and writes them as PNG, ZIP or PDF.

Large jobs can be routed to a labelkit server; small ones render locally.

Examples:
  labelkit generate --data-file values.txt -o labels.zip
  labelkit sheet --data-file values.txt --format pdf -o sheet.pdf
  labelkit estimate --items 500
  labelkit serve --port 8080`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		_, _ = fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg))
		return nil
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $XDG_CONFIG_HOME/labelkit, $HOME, /etc/labelkit)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("remote-url", "", "labelkit server used for large jobs")
	rootCmd.PersistentFlags().String("font-dir", "", "directory of .ttf/.otf fonts to register")
	rootCmd.PersistentFlags().Int("workers", 0, "render workers (default: number of CPUs)")

	rootCmd.SetVersionTemplate("labelkit {{.Version}}\n")
}

// loadConfig resolves the configuration from file, environment and bound
// flags. It runs once per process.
func loadConfig() (*config.Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}
	v := viper.New()
	flags := rootCmd.PersistentFlags()
	for key, flag := range map[string]string{
		"verbose":           "verbose",
		"log_level":         "log-level",
		"log_format":        "log-format",
		"router.remote_url": "remote-url",
		"render.font_dir":   "font-dir",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind --%s: %w", flag, err)
		}
	}

	configLoader = config.NewLoaderWithViper(v)
	cfg, err := configLoader.LoadWithFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if w, _ := rootCmd.PersistentFlags().GetInt("workers"); w > 0 {
		cfg.Render.Workers = w
	}
	globalConfig = cfg
	return cfg, nil
}

// GetConfig returns the resolved configuration.
func GetConfig() *config.Config {
	if globalConfig == nil {
		if _, err := loadConfig(); err != nil {
			d := config.DefaultConfig()
			return &d
		}
	}
	return globalConfig
}

// newLogger builds the process logger: JSON through slog, text through
// charmbracelet/log.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	} else {
		_ = level.UnmarshalText([]byte(cfg.LogLevel))
	}

	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           charmlog.Level(level),
	}))
}

// newPipeline builds a pipeline from the resolved configuration. Local
// pipelines never route work to a server.
func newPipeline(cfg *config.Config, local bool) (*pipeline.Pipeline, error) {
	b := pipeline.NewBuilder().WithConfig(cfg.ToPipelineConfig()).WithLogger(slog.Default())
	if local {
		b = b.LocalOnly()
	}
	return b.Build()
}
