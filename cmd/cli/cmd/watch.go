package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"helios/pkg/api"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the alarm list as it changes",
	Run: func(cmd *cobra.Command, args []string) {
		conn, err := newClient().Watch()
		if err != nil {
			cmd.Printf("Failed to watch alarms: %v\n", err)
			return
		}
		defer conn.Close()

		// Trap Ctrl+C to close the stream gracefully
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		go func() {
			<-sigChan
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
		}()

		for {
			var msg api.WatchMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					cmd.Printf("Stream ended: %v\n", err)
				}
				return
			}
			cmd.Printf("%s── %s ──%s\n", colorDim, time.Now().Format("15:04:05"), colorReset)
			printAlarms(cmd.OutOrStdout(), msg.Alarms, time.Now())
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
