package commands

import (
	"github.com/spf13/cobra"
)

var (
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "electricity-backend",
	Short: "NordPool day-ahead electricity price backend",
	Long: `Backend service for Baltic (lt, ee, lv, fi) day-ahead electricity
spot prices from the NordPool exchange via the Elering dashboard API.

Features:
• Scheduled price synchronization around the daily publication window
• Resumable historical backfill from July 2012
• Self-healing catch-up when stored data goes stale
• REST API for prices, sync controls and health`,
	Version: "1.0.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
