// Package commands implements the dftl command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/dittoftl/cmd/dftl/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "dftl",
	Short: "dittoftl - FTL band lifecycle manager",
	Long: `dftl formats and opens flash translation layer devices.

A device is a base block device cut into fixed-size bands, plus a metadata
region recording the state of every band. Opening a device rebuilds the
in-memory band table from that region: bands are grouped into physical
reclaim units, resumed into their writers, and the free pool is counted
against the admission-control thresholds.

Use "dftl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/dittoftl/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(formatCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(config.Cmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
