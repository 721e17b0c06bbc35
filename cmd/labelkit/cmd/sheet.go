package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/labelkit/internal/layout"
	"github.com/MeKo-Tech/labelkit/internal/output"
	"github.com/MeKo-Tech/labelkit/internal/pipeline"
)

// sheetCmd composes labels onto a print sheet.
var sheetCmd = &cobra.Command{
	Use:   "sheet",
	Short: "Lay labels out on a print sheet",
	Long: `Render every value and lay the labels out row by row on a print sheet,
written as a PNG image or a print-exact PDF.

Unlike generate, a value that cannot be encoded aborts the sheet.

Examples:
  labelkit sheet --data-file values.txt -o sheet.pdf
  labelkit sheet --data-file values.txt --format png --canvas-width 10 --spacing 2
  labelkit sheet --data-file values.txt --continuous -o strip.pdf
  labelkit sheet --data-file values.txt --plan`,
	RunE: runSheet,
}

func init() {
	rootCmd.AddCommand(sheetCmd)
	addInputFlags(sheetCmd)
	sheetCmd.Flags().StringP("output", "o", "", "output file (default sheet.<format>)")
	sheetCmd.Flags().StringP("format", "f", "", "sheet format: png or pdf (default from config)")
	sheetCmd.Flags().Float64("canvas-width", 0, "sheet width in cm")
	sheetCmd.Flags().Float64("spacing", 0, "gap between labels in mm")
	sheetCmd.Flags().Float64("margin", 0, "margin on every side in mm")
	sheetCmd.Flags().Float64("border-width", 0, "label border width in mm (0 for none)")
	sheetCmd.Flags().String("border-color", "", "label border colour (#rgb or #rrggbb)")
	sheetCmd.Flags().Bool("continuous", false, "one row as wide as the labels need")
	sheetCmd.Flags().Bool("plan", false, "print the layout plan instead of rendering the sheet")
	sheetCmd.Flags().Bool("local", false, "always render locally, never on the remote server")
}

// layoutOverride collects the layout flags the user actually set.
func layoutOverride(cmd *cobra.Command) *layout.Override {
	var o layout.Override
	set := false
	float := func(name string) *float64 {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		v, _ := cmd.Flags().GetFloat64(name)
		set = true
		return &v
	}
	o.CanvasWidth = float("canvas-width")
	o.Spacing = float("spacing")
	o.BorderWidth = float("border-width")
	if m := float("margin"); m != nil {
		o.Margins = &layout.MarginsOverride{Top: m, Bottom: m, Left: m, Right: m}
	}
	if cmd.Flags().Changed("border-color") {
		c, _ := cmd.Flags().GetString("border-color")
		o.BorderColor, set = &c, true
	}
	if cmd.Flags().Changed("continuous") {
		c, _ := cmd.Flags().GetBool("continuous")
		o.ContinuousMode, set = &c, true
	}
	if !set {
		return nil
	}
	return &o
}

func runSheet(cmd *cobra.Command, _ []string) error {
	cfg := GetConfig()
	data, err := readData(cmd)
	if err != nil {
		return err
	}
	style, err := readBarcodeConfig(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	if format == "" {
		format = cfg.Output.SheetFormat
	}
	outPath, _ := cmd.Flags().GetString("output")
	if outPath == "" {
		outPath = "sheet." + format
	}
	planOnly, _ := cmd.Flags().GetBool("plan")
	local, _ := cmd.Flags().GetBool("local")

	p, err := newPipeline(cfg, local || planOnly)
	if err != nil {
		return err
	}
	req := pipeline.PrintRequest{
		Request: pipeline.Request{Data: data, Config: style, Progress: progressFor(cmd, "sheet "), Local: local},
		Layout:  layoutOverride(cmd),
		Format:  format,
	}

	if planOnly {
		plan, err := p.Plan(cmd.Context(), req)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "labels:   %d\n", len(plan.Cells))
		_, _ = fmt.Fprintf(out, "grid:     %d row(s) x up to %d column(s)\n", plan.Rows, plan.ColumnsPerRow)
		_, _ = fmt.Fprintf(out, "canvas:   %.1f x %.1f mm\n", plan.CanvasWidth, plan.CanvasHeight)
		return nil
	}

	res, err := p.Print(cmd.Context(), req)
	if err != nil {
		return err
	}
	if err := output.WriteFileAtomic(outPath, res.Document); err != nil {
		return err
	}
	attrs := []any{"path", outPath, "format", res.Format, "mode", res.Mode, "bytes", len(res.Document), "duration", res.Duration}
	if res.Sheet != nil {
		attrs = append(attrs, "rows", res.Sheet.Rows, "columns", res.Sheet.ColumnsPerRow,
			"width_mm", res.Sheet.WidthMM, "height_mm", res.Sheet.HeightMM)
	}
	slog.Info("Wrote print sheet", attrs...)
	return nil
}
