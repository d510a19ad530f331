package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var thresholdCmd = &cobra.Command{
	Use:   "threshold USD",
	Short: "Set the whale alert USD threshold",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		usd, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid threshold %q: %w", args[0], err)
		}
		return getApp().SetWhaleThreshold(usd)
	},
}
