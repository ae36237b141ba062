// Package ftl implements the band lifecycle of a flash translation layer.
//
// A Device is the single context object every lifecycle stage operates on.
// Stages run strictly one after another, driven by the step sequencer in
// pkg/ftl/mngt:
//
//	InitBands         allocate the band table; every band starts shut
//	InitBandsMD       bind band i to metadata slot i
//	DecorateBands     assign addresses and physical groups, drop the remainder
//	FinalizeInitBands reconcile persisted state with queues and writers
//
// No stage is safe for concurrent use. Once FinalizeInitBands returns, bands
// belong to their writers and the data path takes over.
package ftl

import (
	"fmt"

	"github.com/marmos91/dittoftl/internal/logger"
	"github.com/marmos91/dittoftl/pkg/ftl/band"
	"github.com/marmos91/dittoftl/pkg/ftl/bdev"
	"github.com/marmos91/dittoftl/pkg/ftl/md"
	"github.com/marmos91/dittoftl/pkg/ftl/p2l"
	"github.com/marmos91/dittoftl/pkg/ftl/writer"
)

// Stage names, as reported in StageError and used as step names.
const (
	StageInitBands     = "init_bands"
	StageInitBandsMD   = "init_bands_md"
	StageDecorateBands = "decorate_bands"
	StageFinalizeInit  = "finalize_init_bands"
	StageDeinitBands   = "deinit_bands"
)

// Options configures a Device.
type Options struct {
	// Name identifies the device in logs and metrics.
	Name string

	// Geometry is the band layout. Zero means DefaultGeometry.
	Geometry Geometry

	// MaxOpenBands bounds the OPEN and FULL bands recovery may hand back to
	// writers, and sizes the P2L map pool. Zero means DefaultMaxOpenBands.
	MaxOpenBands int

	// Create selects creation mode: every band not found OPEN or FULL is
	// reset to FREE regardless of its persisted state.
	Create bool

	// Limits are the admission-control thresholds. Zero means
	// DefaultLimitThresholds.
	Limits LimitThresholds

	// Metrics receives accounting updates; nil disables them.
	Metrics Metrics
}

// Device is the band lifecycle context of one FTL instance.
type Device struct {
	Name string

	// Base is the base block device. Set with SetBase.
	Base bdev.Device

	// Region is the band metadata region. Set with SetRegion.
	Region md.Region

	// Bands is the band table; nil outside InitBands..DeinitBands.
	Bands *band.Table

	// NumBands is the number of usable logical bands. It is derived from
	// the base device and shrinks when grouping drops a remainder.
	NumBands uint64

	// UserWriter fills compaction bands, GCWriter fills GC bands. Both are
	// created with the device and outlive every band table.
	UserWriter *writer.Writer
	GCWriter   *writer.Writer

	// P2L hands out translation maps to bands resumed after a clean
	// shutdown.
	P2L *p2l.Pool

	Limits *Limits

	geo     Geometry
	create  bool
	maxOpen int
	metrics Metrics
}

// NewDevice creates a device with its writers. Bands do not exist until
// InitBands runs.
func NewDevice(opts Options) *Device {
	geo := opts.Geometry
	if geo == (Geometry{}) {
		geo = DefaultGeometry()
	}
	maxOpen := opts.MaxOpenBands
	if maxOpen <= 0 {
		maxOpen = DefaultMaxOpenBands
	}
	thresholds := opts.Limits
	if thresholds == (LimitThresholds{}) {
		thresholds = DefaultLimitThresholds()
	}
	name := opts.Name
	if name == "" {
		name = "ftl0"
	}

	return &Device{
		Name:       name,
		UserWriter: writer.New(writer.KindUser),
		GCWriter:   writer.New(writer.KindGC),
		P2L:        p2l.NewPool(maxOpen, geo.BlocksPerBand),
		Limits:     NewLimits(thresholds),
		geo:        geo,
		create:     opts.Create,
		maxOpen:    maxOpen,
		metrics:    opts.Metrics,
	}
}

// Geometry returns the device band layout.
func (d *Device) Geometry() Geometry {
	return d.geo
}

// Create reports whether the device is being opened in creation mode.
func (d *Device) Create() bool {
	return d.create
}

// MaxOpenBands returns the recovery bound on writer-owned bands.
func (d *Device) MaxOpenBands() int {
	return d.maxOpen
}

// SetBase attaches the base device and derives the logical band count.
func (d *Device) SetBase(b bdev.Device) error {
	if err := d.geo.check(); err != nil {
		return err
	}
	if b.BlockSize() != d.geo.BlockSize {
		return fmt.Errorf("base device block size %d, expected %d: %w",
			b.BlockSize(), d.geo.BlockSize, ErrInvalidGeometry)
	}
	n := b.NumBlocks() / d.geo.BlocksPerBand
	if n == 0 {
		return fmt.Errorf("base device of %d blocks holds no %d-block band: %w",
			b.NumBlocks(), d.geo.BlocksPerBand, ErrInvalidGeometry)
	}

	d.Base = b
	d.NumBands = n
	return nil
}

// SetRegion attaches the band metadata region.
func (d *Device) SetRegion(r md.Region) {
	d.Region = r
}

// Clean reports the superblock clean flag. A device without a region is
// never clean.
func (d *Device) Clean() bool {
	if d.Region == nil {
		return false
	}
	return d.Region.Superblock().Clean
}

// SetClean syncs band metadata and persists the superblock clean flag.
func (d *Device) SetClean(clean bool) error {
	if d.Region == nil {
		return fmt.Errorf("set clean: %w", ErrNotInitialized)
	}
	if err := d.Region.Sync(); err != nil {
		return fmt.Errorf("sync band metadata: %w", err)
	}
	if err := d.Region.SetClean(clean); err != nil {
		return fmt.Errorf("set clean=%t: %w", clean, err)
	}
	return nil
}

// writerFor resolves the writer that fills bands of type t.
func (d *Device) writerFor(t band.Type) (*writer.Writer, bool) {
	switch t {
	case band.TypeCompaction:
		return d.UserWriter, true
	case band.TypeGC:
		return d.GCWriter, true
	default:
		return nil, false
	}
}

// onBandFree runs every time a band enters the free queue.
func (d *Device) onBandFree() {
	d.applyLimits()
}

func (d *Device) applyLimits() Level {
	numFree := d.Bands.NumFree()
	prev := d.Limits.Level()
	lvl := d.Limits.Apply(numFree, d.NumBands)
	if lvl != prev {
		logger.Debug("admission level changed",
			logger.Device(d.Name), logger.LimitLevel(lvl.String()), logger.NumFree(numFree))
	}
	if d.metrics != nil {
		d.metrics.RecordLimit(d.Name, lvl, numFree)
	}
	return lvl
}

func (d *Device) stageError(stage string, err error) error {
	return &StageError{Stage: stage, Device: d.Name, Err: err}
}
