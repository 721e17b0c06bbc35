package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fontsCmd = &cobra.Command{
	Use:   "fonts",
	Short: "List the font families available for label text",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := newPipeline(GetConfig(), true)
		if err != nil {
			return err
		}
		for _, f := range p.FontFamilies() {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), f)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fontsCmd)
}
