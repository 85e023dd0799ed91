// Package commands implements the dispatchd CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "dispatchd",
	Short:         "Shared-subscription dispatch core demo",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to broker.yaml (defaults applied if omitted)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(seedCmd)
}
