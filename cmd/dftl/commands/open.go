package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoftl/internal/cli/output"
	"github.com/marmos91/dittoftl/internal/logger"
	"github.com/marmos91/dittoftl/pkg/api"
	"github.com/marmos91/dittoftl/pkg/config"
	"github.com/marmos91/dittoftl/pkg/ftl"
	"github.com/marmos91/dittoftl/pkg/ftl/mngt"
)

var (
	openDirty  bool
	openBands  bool
	openServe  bool
	openAddr   string
	openOutput string
)

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open a device and report its bands",
	Long: `Open the configured device, recover its band table and report it.

The band table is rebuilt from the metadata region: open and full bands are
handed back to their writers, the rest wait in the shut queue. The device is
closed clean afterwards unless --dirty is given, which leaves it as a crash
would.

With --serve the device stays open and a status server exposes /health,
/bands and /metrics until interrupted.

Examples:
  # Summary of the default device
  dftl open

  # Every band as JSON
  dftl open --bands --output json

  # Keep the device open and serve its state
  dftl open --serve --addr 127.0.0.1:9100`,
	RunE: runOpen,
}

func init() {
	openCmd.Flags().BoolVar(&openDirty, "dirty", false, "Close without marking the device clean")
	openCmd.Flags().BoolVar(&openBands, "bands", false, "List every band")
	openCmd.Flags().BoolVar(&openServe, "serve", false, "Serve the device state until interrupted")
	openCmd.Flags().StringVar(&openAddr, "addr", "", "Status server address (default: api.addr)")
	openCmd.Flags().StringVarP(&openOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// openResult is the structured output of open.
type openResult struct {
	Report  ftl.Report  `json:"report" yaml:"report"`
	Startup mngt.Result `json:"startup" yaml:"startup"`
}

func runOpen(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(openOutput)
	if err != nil {
		return err
	}

	var override func(*config.Config) error
	if openAddr != "" {
		override = func(cfg *config.Config) error {
			cfg.API.Addr = openAddr
			return nil
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := newSession(ctx, false, override)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	res := openResult{}
	if res.Startup, err = s.startup(ctx); err != nil {
		printSteps(cmd, format, res.Startup)
		return err
	}
	res.Report = s.dev.Report()

	if err := printOpen(cmd, format, res); err != nil {
		_, _ = s.shutdownDevice(ctx, openDirty)
		return err
	}

	if openServe {
		if err := serve(ctx, s); err != nil {
			_, _ = s.shutdownDevice(ctx, openDirty)
			return err
		}
	}

	if _, err := s.shutdownDevice(ctx, openDirty); err != nil {
		return fmt.Errorf("failed to close device: %w", err)
	}
	return nil
}

func printOpen(cmd *cobra.Command, format output.Format, res openResult) error {
	p := output.NewPrinter(cmd.OutOrStdout(), format)
	if format != output.FormatTable {
		if !openBands {
			res.Report.Bands = nil
		}
		return p.Print(res)
	}

	if err := output.PrintSummary(cmd.OutOrStdout(), res.Report); err != nil {
		return err
	}
	if !openBands {
		return nil
	}
	p.Printf("\n")
	return p.Print(output.BandTable(res.Report))
}

// serve runs the status server until SIGINT or SIGTERM.
func serve(ctx context.Context, s *session) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := api.NewServer(api.Config{
		Addr:         s.cfg.API.Addr,
		ReadTimeout:  s.cfg.API.ReadTimeout,
		WriteTimeout: s.cfg.API.WriteTimeout,
		IdleTimeout:  s.cfg.API.IdleTimeout,
	}, s.dev)

	logger.Info("Serving device state", logger.Device(s.dev.Name), "addr", s.cfg.API.Addr)
	return srv.Start(ctx)
}
