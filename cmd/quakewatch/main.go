package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quakewatch",
	Short: "Earthquake notifier for a Telegram channel",
	Long: `quakewatch polls the USGS earthquake feed, and for every new event at or
above the magnitude threshold posts a map and a short report to a Telegram
channel. Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
