package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoftl/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the dittoftl configuration file.

Checks for syntax errors, missing required fields, invalid values and a
band geometry the device cannot use.

Examples:
  # Validate default config
  dftl config validate

  # Validate specific config file
  dftl config validate --config /etc/dittoftl/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)

	cfg, err := config.MustLoad(path)
	if err != nil {
		return err
	}
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	geo, err := cfg.Device.Geometry()
	if err != nil {
		return err
	}

	var warnings []string
	if cfg.Device.BasePath == "" {
		warnings = append(warnings, "device.base_path not set - an in-memory device will be used")
	}
	if cfg.Metadata.Backend == "memory" {
		warnings = append(warnings, "memory metadata backend - band state is lost on close")
	}
	if rem := cfg.Device.Size.Uint64() % (geo.BlockSize * geo.BlocksPerBand); rem != 0 {
		warnings = append(warnings, fmt.Sprintf("device size is not a multiple of the band size - %d trailing bytes are unused", rem))
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", path)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Device:          %s (%s)\n", cfg.Device.Name, cfg.Device.Size)
	_, _ = fmt.Fprintf(out, "  Blocks per band: %d\n", geo.BlocksPerBand)
	_, _ = fmt.Fprintf(out, "  Tail metadata:   %d blocks\n", geo.TailMDBlocks)
	_, _ = fmt.Fprintf(out, "  Metadata:        %s %s\n", cfg.Metadata.Backend, cfg.Metadata.Path)
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)
	return nil
}
