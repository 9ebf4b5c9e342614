package cmd

import (
	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm [alarm_id]",
	Short: "Remove a scheduled alarm",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := newClient().RemoveAlarm(args[0]); err != nil {
			cmd.Printf("Failed to remove alarm: %v\n", err)
			return
		}
		cmd.Printf("🗑  Alarm %s removed\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
