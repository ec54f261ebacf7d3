// README: Cobra root command and shared flags.
package main

import (
	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "saferide-api",
	Short:        "Hazard-aware route estimation and driver dispatch",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json); env SAFERIDE_* overrides")
	rootCmd.AddCommand(serveCmd, estimateCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }
