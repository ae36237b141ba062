package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/dittoftl/internal/cli/output"
	"github.com/marmos91/dittoftl/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective configuration: file, environment and defaults merged.

Examples:
  # Show as YAML
  dftl config show

  # Show as JSON
  dftl config show --output json`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(configPath(cmd))
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		format = output.FormatYAML
	}

	return output.NewPrinter(cmd.OutOrStdout(), format).Print(cfg)
}
