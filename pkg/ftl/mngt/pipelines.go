package mngt

import (
	"context"
	"fmt"

	"github.com/marmos91/dittoftl/internal/logger"
	"github.com/marmos91/dittoftl/internal/telemetry"
	"github.com/marmos91/dittoftl/pkg/ftl"
	"github.com/marmos91/dittoftl/pkg/ftl/bdev"
	"github.com/marmos91/dittoftl/pkg/ftl/md"
)

// Process names.
const (
	ProcessStartup  = "startup"
	ProcessShutdown = "shutdown"
)

// Step names that are not band lifecycle stages.
const (
	StepOpenBaseBdev  = "open_base_bdev"
	StepOpenBandMD    = "open_band_md"
	StepSetDirty      = "set_dirty"
	StepSetClean      = "set_clean"
	StepCloseBandMD   = "close_band_md"
	StepCloseBaseBdev = "close_base_bdev"
)

// Options locates the base device and the band metadata region.
type Options struct {
	// BasePath is the base device file. Empty selects an in-memory device
	// of Size bytes.
	BasePath string

	// Size is the base device size in bytes. In creation mode a missing
	// base file is created with this size.
	Size uint64

	// MDBackend and MDPath select the metadata region, see md.Open.
	MDBackend string
	MDPath    string
}

// Startup returns the process that opens a device:
//
//	open_base_bdev, open_band_md, init_bands, init_bands_md,
//	decorate_bands, finalize_init_bands, set_dirty
//
// A base device or region already attached to the device is used as is.
func Startup(opts Options) *Process {
	return &Process{
		Name: ProcessStartup,
		Steps: []Step{
			openBaseStep(opts),
			openRegionStep(opts),
			{
				Name:     ftl.StageInitBands,
				Action:   func(ctx context.Context, dev *ftl.Device) error { return dev.InitBands(ctx) },
				Rollback: func(ctx context.Context, dev *ftl.Device) error { return dev.DeinitBands(ctx) },
			},
			{
				Name:   ftl.StageInitBandsMD,
				Action: func(ctx context.Context, dev *ftl.Device) error { return dev.InitBandsMD(ctx) },
			},
			{
				Name: ftl.StageDecorateBands,
				Action: func(ctx context.Context, dev *ftl.Device) error {
					_, err := dev.DecorateBands(ctx)
					return err
				},
			},
			{
				Name: ftl.StageFinalizeInit,
				Action: func(ctx context.Context, dev *ftl.Device) error {
					_, err := dev.FinalizeInitBands(ctx)
					return err
				},
			},
			{
				// Until a clean shutdown, the next open must not trust
				// persisted write iterators.
				Name:   StepSetDirty,
				Action: func(_ context.Context, dev *ftl.Device) error { return dev.SetClean(false) },
			},
		},
	}
}

// ShutdownOptions configures Shutdown.
type ShutdownOptions struct {
	// LeaveDirty skips set_clean, leaving the device as a crash would.
	LeaveDirty bool
}

// Shutdown returns the process that closes a device:
//
//	set_clean, deinit_bands, close_band_md, close_base_bdev
func Shutdown(opts ShutdownOptions) *Process {
	var steps []Step
	if !opts.LeaveDirty {
		steps = append(steps, Step{
			Name:   StepSetClean,
			Action: func(_ context.Context, dev *ftl.Device) error { return dev.SetClean(true) },
		})
	}
	steps = append(steps,
		Step{
			Name:   ftl.StageDeinitBands,
			Action: func(ctx context.Context, dev *ftl.Device) error { return dev.DeinitBands(ctx) },
		},
		Step{Name: StepCloseBandMD, Action: closeRegion},
		Step{Name: StepCloseBaseBdev, Action: closeBase},
	)
	return &Process{Name: ProcessShutdown, Steps: steps}
}

// ============================================================================
// Base Device
// ============================================================================

func openBaseStep(opts Options) Step {
	var opened bool

	return Step{
		Name: StepOpenBaseBdev,
		Action: func(ctx context.Context, dev *ftl.Device) error {
			if dev.Base != nil {
				logger.DebugCtx(ctx, "base device already attached")
				return nil
			}

			b, err := openBase(opts, dev)
			if err != nil {
				return fmt.Errorf("open base device: %w", err)
			}
			if err := dev.SetBase(b); err != nil {
				_ = b.Close()
				return err
			}
			opened = true

			logger.InfoCtx(ctx, "base device opened",
				logger.Device(dev.Name), logger.Path(opts.BasePath),
				logger.Size(b.NumBlocks()*b.BlockSize()), logger.NumBands(dev.NumBands))
			return nil
		},
		Rollback: func(ctx context.Context, dev *ftl.Device) error {
			if !opened {
				return nil
			}
			opened = false
			return closeBase(ctx, dev)
		},
	}
}

func openBase(opts Options, dev *ftl.Device) (bdev.Device, error) {
	bs := dev.Geometry().BlockSize
	switch {
	case opts.BasePath == "":
		return bdev.NewMemory(opts.Size/bs, bs)
	case dev.Create() && opts.Size > 0:
		return bdev.CreateFile(opts.BasePath, opts.Size, bs)
	default:
		return bdev.OpenFile(opts.BasePath, bs)
	}
}

func closeBase(ctx context.Context, dev *ftl.Device) error {
	if dev.Base == nil {
		return nil
	}
	err := dev.Base.Close()
	dev.Base = nil
	if err != nil {
		return fmt.Errorf("close base device: %w", err)
	}
	logger.DebugCtx(ctx, "base device closed", logger.Device(dev.Name))
	return nil
}

// ============================================================================
// Metadata Region
// ============================================================================

func openRegionStep(opts Options) Step {
	var opened bool

	return Step{
		Name: StepOpenBandMD,
		Action: func(ctx context.Context, dev *ftl.Device) error {
			if dev.Region != nil {
				logger.DebugCtx(ctx, "band metadata region already attached")
				return nil
			}
			if dev.Base == nil {
				return fmt.Errorf("open band metadata: %w", ftl.ErrNotInitialized)
			}

			r, err := md.Open(md.Options{
				Backend:       opts.MDBackend,
				Path:          opts.MDPath,
				Create:        dev.Create(),
				NumBands:      dev.NumBands,
				BlocksPerBand: dev.Geometry().BlocksPerBand,
			})
			if err != nil {
				return fmt.Errorf("open band metadata: %w", err)
			}
			dev.SetRegion(r)
			opened = true

			telemetry.SetAttributes(ctx,
				telemetry.Backend(opts.MDBackend),
				telemetry.NumBands(r.NumRecords()),
				telemetry.BlocksPerBand(dev.Geometry().BlocksPerBand))

			logger.InfoCtx(ctx, "band metadata region opened",
				logger.Device(dev.Name), logger.Backend(opts.MDBackend), logger.Path(opts.MDPath),
				logger.Count(r.NumRecords()))
			return nil
		},
		Rollback: func(ctx context.Context, dev *ftl.Device) error {
			if !opened {
				return nil
			}
			opened = false
			return closeRegion(ctx, dev)
		},
	}
}

func closeRegion(ctx context.Context, dev *ftl.Device) error {
	if dev.Region == nil {
		return nil
	}
	err := dev.Region.Close()
	dev.SetRegion(nil)
	if err != nil {
		return fmt.Errorf("close band metadata: %w", err)
	}
	logger.DebugCtx(ctx, "band metadata region closed", logger.Device(dev.Name))
	return nil
}
