package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"helios/pkg/api"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled alarms",
	Run: func(cmd *cobra.Command, args []string) {
		alarms, err := newClient().ListAlarms()
		if err != nil {
			cmd.Printf("Failed to list alarms: %v\n", err)
			return
		}
		printAlarms(cmd.OutOrStdout(), alarms, time.Now())
	},
}

func printAlarms(out io.Writer, alarms []api.AlarmResponse, now time.Time) {
	if len(alarms) == 0 {
		fmt.Fprintln(out, "No alarms scheduled.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tRINGS\tLABEL")
	for _, a := range alarms {
		at := time.UnixMilli(a.TriggerTimeMillis)
		fmt.Fprintf(w, "%s\t%02d:%02d\t%s\t%s\n", a.ID, a.Hour, a.Minute, untilTime(now, at), a.Label)
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(listCmd)
}
