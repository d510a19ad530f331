package cli

import (
	"github.com/spf13/cobra"
)

var improveCmd = &cobra.Command{
	Use:   "improve",
	Short: "Toggle the self-healing loop",
}

var improveOnCmd = &cobra.Command{
	Use:   "on",
	Short: "Enable automatic error fixing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SetAutoImprovement(true)
	},
}

var improveOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Disable automatic error fixing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SetAutoImprovement(false)
	},
}

func init() {
	improveCmd.AddCommand(improveOnCmd)
	improveCmd.AddCommand(improveOffCmd)
}
