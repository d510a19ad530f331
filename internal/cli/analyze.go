package cli

import (
	"github.com/spf13/cobra"

	"github.com/Nik1855/CryptoMasterPro/internal/app"
)

var analyzePNGPath string

var analyzeCmd = &cobra.Command{
	Use:   "analyze SYMBOL",
	Short: "Run a one-off deep analysis for a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Analyze(cmd.Context(), app.AnalyzeOptions{
			Symbol:  args[0],
			PNGPath: analyzePNGPath,
		})
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzePNGPath, "png", "", "Path to write the chart (defaults under analysis.chart_dir)")
}
