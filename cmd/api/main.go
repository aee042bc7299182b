package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "carecheck",
	Short: "Admin access gate for the patient check-in dashboard",
	Long: `carecheck serves the admin analytics surface of the check-in tablet.
The surface starts locked, unlocks on a throttled sign-in and locks again after the idle window.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	registerServeFlags(rootCmd)
	rootCmd.AddCommand(serveCmd, hashPasswordCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
