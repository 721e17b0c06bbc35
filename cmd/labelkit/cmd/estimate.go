package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// estimateCmd shows where a job would run and how long it might take.
var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Show the routing decision for a job without running it",
	Long: `Show whether a job of the given size would render locally or on the
remote server, together with rough duration estimates for both.

Examples:
  labelkit estimate --items 500
  labelkit estimate --items 50 --barcode-config '{"type":"qrcode","dualMode":true}' --json`,
	RunE: runEstimate,
}

func init() {
	rootCmd.AddCommand(estimateCmd)
	estimateCmd.Flags().IntP("items", "n", 0, "number of values in the job")
	estimateCmd.Flags().String("barcode-config", "", "label style as JSON, or @file to read it from a file")
	estimateCmd.Flags().StringP("type", "t", "", "barcode type, overrides the style's type")
	estimateCmd.Flags().Bool("json", false, "print the decision as JSON")
	_ = estimateCmd.MarkFlagRequired("items")
}

func runEstimate(cmd *cobra.Command, _ []string) error {
	cfg := GetConfig()
	items, _ := cmd.Flags().GetInt("items")
	style, err := readBarcodeConfig(cmd)
	if err != nil {
		return err
	}
	p, err := newPipeline(cfg, false)
	if err != nil {
		return err
	}
	d, err := p.Estimate(cmd.Context(), items, style)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}
	_, _ = fmt.Fprintf(out, "mode:        %s\n", d.Mode)
	_, _ = fmt.Fprintf(out, "reason:      %s\n", d.Reason)
	_, _ = fmt.Fprintf(out, "threshold:   %d (complexity x%.2f)\n", d.Threshold, d.ComplexityFactor)
	_, _ = fmt.Fprintf(out, "estimate:    %s\n", d.Estimate.Human)
	_, _ = fmt.Fprintf(out, "alternative: %s (%s)\n", d.Alternative.Human, d.Alternative.Mode)
	return nil
}
