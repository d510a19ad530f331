package cli

import (
	"github.com/spf13/cobra"
)

var (
	alertUserID    int64
	alertCondition string
	alertThreshold float64
)

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Manage price alerts",
}

var alertAddCmd = &cobra.Command{
	Use:   "add CURRENCY",
	Short: "Create or update a price alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().AddAlert(cmd.Context(), alertUserID, args[0], alertCondition, alertThreshold)
	},
}

var alertOffCmd = &cobra.Command{
	Use:   "off CURRENCY",
	Short: "Deactivate a price alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RemoveAlert(cmd.Context(), alertUserID, args[0], alertCondition)
	},
}

func init() {
	alertCmd.PersistentFlags().Int64Var(&alertUserID, "user-id", 0, "User the alert belongs to")
	alertCmd.PersistentFlags().StringVar(&alertCondition, "condition", "above", "Alert condition: above, below, or change_pct")
	_ = alertCmd.MarkPersistentFlagRequired("user-id")

	alertAddCmd.Flags().Float64Var(&alertThreshold, "threshold", 0, "Price or percentage threshold")
	_ = alertAddCmd.MarkFlagRequired("threshold")

	alertCmd.AddCommand(alertAddCmd)
	alertCmd.AddCommand(alertOffCmd)
}
