package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set [HH:MM]",
	Short: "Set a one-shot alarm",
	Long: `Schedule an alarm for the next time the clock shows HH:MM (24-hour).
A time that has already passed today rings tomorrow.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		hour, minute, err := parseClock(args[0])
		if err != nil {
			cmd.Printf("Invalid time %q: %v\n", args[0], err)
			return
		}
		label, _ := cmd.Flags().GetString("label")

		result, err := newClient().SetAlarm(hour, minute, label)
		if err != nil {
			cmd.Printf("Failed to set alarm: %v\n", err)
			return
		}

		cmd.Printf("⏰ Alarm set for %02d:%02d\nID: %s\n", hour, minute, result.ID)
	},
}

// parseClock parses "H:MM" or "HH:MM". Range checks are left to the server.
func parseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("expected HH:MM")
	}
	if hour, err = strconv.Atoi(h); err != nil {
		return 0, 0, fmt.Errorf("bad hour: %w", err)
	}
	if minute, err = strconv.Atoi(m); err != nil {
		return 0, 0, fmt.Errorf("bad minute: %w", err)
	}
	return hour, minute, nil
}

func init() {
	rootCmd.AddCommand(setCmd)
	setCmd.Flags().StringP("label", "l", "", "Label shown while the alarm rings")
}
