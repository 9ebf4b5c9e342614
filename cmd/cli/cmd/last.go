package cmd

import (
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var lastCmd = &cobra.Command{
	Use:   "last",
	Short: "Show the most recently fired alarm",
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()

		last, err := client.LastFired()
		var apiErr *APIError
		switch {
		case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
			cmd.Println("No alarm has fired yet.")
			return
		case err != nil:
			cmd.Printf("Failed to read last alarm: %v\n", err)
			return
		}

		cmd.Printf("%sLast Alarm%s\n", colorBold, colorReset)
		cmd.Println("──────────────────────────────")
		cmd.Printf("%sTime:%s        %02d:%02d\n", colorDim, colorReset, last.Hour, last.Minute)
		if last.Label != "" {
			cmd.Printf("%sLabel:%s       %s\n", colorDim, colorReset, last.Label)
		}
		cmd.Printf("%sFired:%s       %s\n", colorDim, colorReset, formatTimeWithRelative(last.FiredAt, time.Now()))

		sessions, err := client.Sessions()
		if err != nil {
			return
		}
		for _, s := range sessions {
			cmd.Printf("%s🔔 Ringing:%s   %s %s(%s)%s\n", colorYellow, colorReset, s.AlarmID, colorDim, s.State, colorReset)
		}
	},
}

func init() {
	rootCmd.AddCommand(lastCmd)
}
