package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "alarmctl",
	Short: "alarmctl is a command line tool for the helios alarm daemon",
	Long: `alarmctl is the command-line interface for helios, a one-shot alarm daemon.

An alarm is a time of day. helios schedules it for the next time the clock
shows that time, rings once, and forgets it.

Common workflows:

  Set an alarm:
    alarmctl set 06:45 --label "Wake up"

  See what is scheduled:
    alarmctl list

  Follow changes as they happen:
    alarmctl watch

  Stop a ringing alarm:
    alarmctl dismiss

  Remove an alarm before it fires:
    alarmctl rm <alarm-id>

Configuration:
  Set the daemon address via flag, environment variable or config file:
    HELIOS_URL    Control API endpoint (default: http://localhost:8080)`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".alarmctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".alarmctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "HELIOS_VARNAME"
	viper.SetEnvPrefix("HELIOS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.alarmctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:8080", "helios control API URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
}

func newClient() *AlarmClient {
	return NewAlarmClient(viper.GetString("url"))
}
