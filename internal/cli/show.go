package cli

import (
	"github.com/spf13/cobra"

	"github.com/Nik1855/CryptoMasterPro/internal/app"
)

var whalesLimit int

var whalesCmd = &cobra.Command{
	Use:   "whales",
	Short: "Show recent whale transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ShowWhales(cmd.Context(), app.ShowWhalesOptions{Limit: whalesLimit})
	},
}

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Show the unresolved error backlog",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ShowErrors(cmd.Context())
	},
}

func init() {
	whalesCmd.Flags().IntVar(&whalesLimit, "limit", 20, "Maximum rows to show")
}
