package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	statePath string
	rootCmd   = &cobra.Command{
		Use:   "focus",
		Short: "Pomodoro timer for the terminal",
		Long: `focus runs pomodoro work and break phases in the terminal.
Settings and completed work sessions are kept in a YAML state file
shared by every subcommand.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "", "state file path (default: user config dir)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
