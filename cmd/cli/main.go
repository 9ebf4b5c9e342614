// Package main is the entry point for alarmctl, the terminal client for the
// helios control API.
package main

import (
	"os"

	"helios/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
