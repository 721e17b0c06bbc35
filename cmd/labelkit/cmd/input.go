package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/labelkit/internal/barcode"
	"github.com/MeKo-Tech/labelkit/internal/progress"
)

// addInputFlags registers the flags shared by every command that renders.
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("data", nil, "value to encode, taken verbatim (repeat for more)")
	cmd.Flags().String("data-file", "", "file with one value per line ('-' for stdin)")
	cmd.Flags().String("barcode-config", "", "label style as JSON, or @file to read it from a file")
	cmd.Flags().StringP("type", "t", "", "barcode type, overrides the style's type")
	cmd.Flags().Bool("no-progress", false, "do not draw a progress bar")
}

// readData collects the values to encode from --data, --data-file or stdin.
func readData(cmd *cobra.Command) ([]string, error) {
	values, _ := cmd.Flags().GetStringArray("data")
	path, _ := cmd.Flags().GetString("data-file")
	switch {
	case len(values) > 0 && path != "":
		return nil, fmt.Errorf("--data and --data-file are mutually exclusive")
	case len(values) > 0:
		return values, nil
	case path == "" || path == "-":
		return readLines(cmd.InOrStdin())
	}

	f, err := os.Open(path) //nolint:gosec // user-supplied input file
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return readLines(f)
}

// readLines returns the non-blank lines of r with surrounding space removed.
func readLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no values to encode")
	}
	return out, nil
}

// readBarcodeConfig parses --barcode-config over the default style and
// applies --type.
func readBarcodeConfig(cmd *cobra.Command) (barcode.Config, error) {
	cfg := barcode.DefaultConfig()
	raw, _ := cmd.Flags().GetString("barcode-config")
	if strings.HasPrefix(raw, "@") {
		data, err := os.ReadFile(strings.TrimPrefix(raw, "@"))
		if err != nil {
			return cfg, fmt.Errorf("read barcode config: %w", err)
		}
		raw = string(data)
	}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return cfg, fmt.Errorf("parse barcode config: %w", err)
		}
	}
	if t, _ := cmd.Flags().GetString("type"); t != "" {
		cfg.Type = barcode.Type(t)
	}
	return cfg, nil
}

// progressFor returns a console progress bar on stderr unless disabled.
func progressFor(cmd *cobra.Command, prefix string) progress.Callback {
	if off, _ := cmd.Flags().GetBool("no-progress"); off {
		return progress.Noop{}
	}
	return progress.NewConsole(cmd.ErrOrStderr(), prefix)
}
