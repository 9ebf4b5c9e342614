package cmd

import (
	"github.com/spf13/cobra"
)

var dismissCmd = &cobra.Command{
	Use:   "dismiss [alarm_id]",
	Short: "Stop a ringing alarm",
	Long:  `Stop the alarm that is ringing for alarm_id. Without an id, every ringing alarm is stopped.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := ""
		if len(args) == 1 {
			id = args[0]
		}

		if err := newClient().Dismiss(id); err != nil {
			cmd.Printf("Failed to dismiss: %v\n", err)
			return
		}
		if id == "" {
			cmd.Println("🔕 All ringing alarms dismissed")
			return
		}
		cmd.Printf("🔕 Alarm %s dismissed\n", id)
	},
}

func init() {
	rootCmd.AddCommand(dismissCmd)
}
