package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/labelkit/internal/output"
	"github.com/MeKo-Tech/labelkit/internal/pipeline"
)

// generateCmd renders one image per value.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render one label image per value",
	Long: `Render one label per value and write them as a ZIP archive of PNGs,
as individual PNG files, or as a PDF with one page per label.

Values that cannot be encoded with the chosen barcode type are skipped and
reported; the command fails only when nothing renders.

Examples:
  labelkit generate --data 4006381333931,4006381333948 -t ean13 -o labels.zip
  labelkit generate --data-file values.txt --dir ./labels
  labelkit generate --data-file values.txt --pdf -o labels.pdf
  seq 1000 2000 | labelkit generate -o labels.zip`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	addInputFlags(generateCmd)
	generateCmd.Flags().StringP("output", "o", "labels.zip", "output file")
	generateCmd.Flags().String("dir", "", "write individual PNG files into this directory instead of an archive")
	generateCmd.Flags().Bool("pdf", false, "write a PDF with one page per label instead of an archive")
	generateCmd.Flags().Bool("local", false, "always render locally, never on the remote server")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg := GetConfig()
	data, err := readData(cmd)
	if err != nil {
		return err
	}
	style, err := readBarcodeConfig(cmd)
	if err != nil {
		return err
	}
	outPath, _ := cmd.Flags().GetString("output")
	dir, _ := cmd.Flags().GetString("dir")
	asPDF, _ := cmd.Flags().GetBool("pdf")
	local, _ := cmd.Flags().GetBool("local")
	if dir != "" && asPDF {
		return fmt.Errorf("--dir and --pdf are mutually exclusive")
	}

	// Directory and PDF output need the images themselves.
	local = local || dir != "" || asPDF
	p, err := newPipeline(cfg, local)
	if err != nil {
		return err
	}
	req := pipeline.Request{Data: data, Config: style, Progress: progressFor(cmd, "labels "), Local: local}

	if asPDF {
		doc, err := p.LabelPDF(cmd.Context(), req)
		if err != nil {
			return err
		}
		if err := output.WriteFileAtomic(outPath, doc); err != nil {
			return err
		}
		slog.Info("Wrote label PDF", "path", outPath, "labels", len(data), "bytes", len(doc))
		return nil
	}

	res, err := p.Bulk(cmd.Context(), req)
	if err != nil {
		return err
	}
	for _, e := range res.Errors {
		slog.Warn("Skipped label", "item", e.Index+1, "value", e.Value, "error", e.Err)
	}

	if dir != "" {
		if err := output.WriteDir(dir, res.Images); err != nil {
			return err
		}
		slog.Info("Wrote labels", "dir", dir, "labels", len(res.Images), "skipped", len(res.Errors),
			"duration", res.Duration)
		return nil
	}

	if err := output.WriteFileAtomic(outPath, res.Archive); err != nil {
		return err
	}
	slog.Info("Wrote label archive", "path", outPath, "mode", res.Mode, "values", len(data),
		"skipped", len(res.Errors), "bytes", len(res.Archive), "duration", res.Duration)
	return nil
}
