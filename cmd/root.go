// Package cmd provides the command-line interface.
package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags
var (
	configFile string
	outputJSON bool
	noColor    bool
)

// NewRootCmd creates the root command with all subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "argus",
		Short: "Temporal sequence detection over security event streams",
		Long: `Argus matches ordered sequences of security events within time windows.

Rules declare a sequence of predicate steps, a correlation key and a time
window; events satisfying every step in order, within the window and sharing
the key, produce a match.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newTestCmd())
	rootCmd.AddCommand(newValidateCmd())

	return rootCmd
}
