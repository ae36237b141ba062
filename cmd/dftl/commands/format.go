package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoftl/internal/bytesize"
	"github.com/marmos91/dittoftl/internal/cli/output"
	"github.com/marmos91/dittoftl/pkg/config"
	"github.com/marmos91/dittoftl/pkg/ftl"
	"github.com/marmos91/dittoftl/pkg/ftl/mngt"
)

var (
	formatSize   string
	formatOutput string
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Format a device",
	Long: `Format the configured device.

Formatting opens the device in creation mode: every band is reset to FREE,
persisted, and the device is closed clean. A missing base file is created
with the configured size.

Examples:
  # Format the device of the default config
  dftl format

  # Create a 64 GiB base file
  dftl format --size 64Gi

  # Dry run: leave device.base_path empty and use the memory backend
  DITTOFTL_METADATA_BACKEND=memory dftl format --config dry-run.yaml`,
	RunE: runFormat,
}

func init() {
	formatCmd.Flags().StringVar(&formatSize, "size", "", "Base device size, e.g. 64Gi (default: device.size)")
	formatCmd.Flags().StringVarP(&formatOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// formatResult is the structured output of format.
type formatResult struct {
	Report   ftl.Report  `json:"report" yaml:"report"`
	Startup  mngt.Result `json:"startup" yaml:"startup"`
	Shutdown mngt.Result `json:"shutdown" yaml:"shutdown"`
}

func runFormat(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(formatOutput)
	if err != nil {
		return err
	}

	var override func(*config.Config) error
	if formatSize != "" {
		override = func(cfg *config.Config) error {
			size, err := bytesize.ParseByteSize(formatSize)
			if err != nil {
				return fmt.Errorf("invalid --size: %w", err)
			}
			cfg.Device.Size = size
			return nil
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := newSession(ctx, true, override)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	var res formatResult
	if res.Startup, err = s.startup(ctx); err != nil {
		printSteps(cmd, format, res.Startup)
		return err
	}
	res.Report = s.dev.Report()

	if res.Shutdown, err = s.shutdownDevice(ctx, false); err != nil {
		printSteps(cmd, format, res.Shutdown)
		return err
	}

	p := output.NewPrinter(cmd.OutOrStdout(), format)
	if format != output.FormatTable {
		return p.Print(res)
	}

	p.Printf("Formatted %s: %d usable bands of %s\n\n",
		res.Report.Device, res.Report.NumBands, s.cfg.Device.BandSize)
	return output.PrintSummary(cmd.OutOrStdout(), res.Report)
}

// printSteps shows where a failed process stopped. Structured formats
// leave the error to the caller.
func printSteps(cmd *cobra.Command, format output.Format, res mngt.Result) {
	if format != output.FormatTable || len(res.Steps) == 0 {
		return
	}
	_ = output.PrintTable(cmd.ErrOrStderr(), output.StepTable(res))
}
