package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var watchChatID int64

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage the whale watch list",
}

var watchAddCmd = &cobra.Command{
	Use:   "add CURRENCY",
	Short: "Start watching a currency for whale transfers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Watch(watchChatID, args[0], true)
	},
}

var watchRemoveCmd = &cobra.Command{
	Use:   "remove CURRENCY",
	Short: "Stop watching a currency",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Watch(watchChatID, args[0], false)
	},
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe CHAT_ID [on|off]",
	Short: "Opt a chat in or out of broadcast notifications",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		chatID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat id %q: %w", args[0], err)
		}
		on := true
		if len(args) == 2 {
			switch args[1] {
			case "on":
			case "off":
				on = false
			default:
				return fmt.Errorf("expected on or off, got %q", args[1])
			}
		}
		return getApp().Subscribe(chatID, on)
	},
}

func init() {
	watchCmd.PersistentFlags().Int64Var(&watchChatID, "chat-id", 0, "Chat the watch entry belongs to")
	_ = watchCmd.MarkPersistentFlagRequired("chat-id")

	watchCmd.AddCommand(watchAddCmd)
	watchCmd.AddCommand(watchRemoveCmd)
}
