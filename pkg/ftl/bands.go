package ftl

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/dittoftl/internal/logger"
	"github.com/marmos91/dittoftl/internal/telemetry"
	"github.com/marmos91/dittoftl/pkg/ftl/band"
	"github.com/marmos91/dittoftl/pkg/ftl/writer"
)

// Grouping summarizes how DecorateBands laid out physical reclaim groups.
type Grouping struct {
	// Factor is the number of logical bands per physical group.
	Factor uint64

	// NumPhys is the number of complete physical groups.
	NumPhys uint64

	// Dropped is the number of trailing bands that could not form a group.
	Dropped uint64
}

// Reconciliation summarizes a FinalizeInitBands pass. The three counts
// always add up to the device's usable band count.
type Reconciliation struct {
	StillShut uint64
	Open      uint64
	Free      uint64
}

// ============================================================================
// Band Table
// ============================================================================

// InitBands allocates the band table. Every band starts in the shut queue;
// only recovery moves a band to the free queue.
func (d *Device) InitBands(ctx context.Context) error {
	if d.Base == nil {
		return d.stageError(StageInitBands, fmt.Errorf("no base device: %w", ErrNotInitialized))
	}

	tbl, err := band.NewTable(d.NumBands)
	if err != nil {
		return d.stageError(StageInitBands, fmt.Errorf("%w: %w", ErrNoMemory, err))
	}

	for id := uint64(0); id < tbl.Len(); id++ {
		tbl.Shut().PushBack(tbl.Band(id))
	}
	tbl.SetFreeHook(d.onBandFree)
	d.Bands = tbl

	logger.DebugCtx(ctx, "band table allocated", logger.Device(d.Name), logger.NumBands(d.NumBands))
	return nil
}

// DeinitBands drops the band table. Translation maps go back to the pool
// and the writers forget every band.
func (d *Device) DeinitBands(ctx context.Context) error {
	if d.Bands == nil {
		return nil
	}

	for id := uint64(0); id < d.Bands.Len(); id++ {
		d.Bands.Band(id).ReleaseP2LMap()
	}
	d.UserWriter.Reset()
	d.GCWriter.Reset()
	d.Bands = nil

	logger.DebugCtx(ctx, "band table released", logger.Device(d.Name))
	return nil
}

// ============================================================================
// Metadata Binding
// ============================================================================

// InitBandsMD binds band i to metadata slot i. The first slot the region
// cannot supply aborts the binding of every later band.
func (d *Device) InitBandsMD(ctx context.Context) error {
	if d.Bands == nil || d.Region == nil {
		return d.stageError(StageInitBandsMD, ErrNotInitialized)
	}

	for id := uint64(0); id < d.Bands.Len(); id++ {
		rec, err := d.Region.Record(id)
		if err != nil {
			logger.ErrorCtx(ctx, "failed to bind band metadata",
				logger.Device(d.Name), logger.BandID(id), logger.Err(err))
			return d.stageError(StageInitBandsMD, &BindError{BandID: id, Err: err})
		}
		d.Bands.Band(id).MD = rec
	}
	return nil
}

// ============================================================================
// Grouping
// ============================================================================

// DecorateBands assigns each usable band its block range and physical group.
//
// Bands are grouped DefaultGroupingFactor at a time, or a whole reclaim unit
// at a time on devices larger than the large-device threshold. Trailing
// bands that cannot fill a group are dropped for good: they leave the shut
// queue and stop counting towards NumBands.
//
// A reclaim unit that is not a whole number of bands, or is not smaller than
// a large device, is a configuration defect and panics.
func (d *Device) DecorateBands(ctx context.Context) (Grouping, error) {
	if d.Bands == nil || d.Base == nil {
		return Grouping{}, d.stageError(StageDecorateBands, ErrNotInitialized)
	}

	geo := d.geo
	if geo.ReclaimUnitBlocks == 0 || geo.ReclaimUnitBlocks%geo.BlocksPerBand != 0 {
		panic(fmt.Sprintf("reclaim unit of %d blocks is not a multiple of %d-block bands",
			geo.ReclaimUnitBlocks, geo.BlocksPerBand))
	}

	totalBlocks := d.Base.NumBlocks()
	factor := uint64(DefaultGroupingFactor)
	if totalBlocks > geo.LargeDeviceBlocks {
		if geo.ReclaimUnitBlocks >= totalBlocks {
			panic(fmt.Sprintf("reclaim unit of %d blocks does not fit a %d-block device",
				geo.ReclaimUnitBlocks, totalBlocks))
		}
		factor = geo.ReclaimUnitBlocks / geo.BlocksPerBand
	}

	numToDrop := d.NumBands % factor
	usable := d.NumBands - numToDrop

	for id := uint64(0); id < usable; id++ {
		b := d.Bands.Band(id)
		b.StartAddr = id * geo.BlocksPerBand
		b.TailMDAddr = b.StartAddr + geo.BlocksPerBand - geo.TailMDBlocks
		b.PhysID = id / factor
	}

	shut := d.Bands.Shut()
	for id := usable; id < d.NumBands; id++ {
		b := d.Bands.Band(id)
		if shut.Contains(b) {
			shut.Remove(b)
		}
		b.Dropped = true
	}
	d.NumBands = usable

	g := Grouping{Factor: factor, NumPhys: usable / factor, Dropped: numToDrop}
	telemetry.SetAttributes(ctx,
		telemetry.Factor(factor), telemetry.Dropped(numToDrop), telemetry.NumBands(usable))

	if numToDrop > 0 {
		logger.WarnCtx(ctx, "dropping unaligned bands",
			logger.Device(d.Name), logger.Dropped(numToDrop), logger.Factor(factor))
	}
	logger.InfoCtx(ctx, "bands decorated",
		logger.Device(d.Name), logger.NumBands(usable), logger.Factor(factor), logger.Dropped(numToDrop))

	if d.metrics != nil {
		d.metrics.RecordGrouping(d.Name, g)
	}
	return g, nil
}

// ============================================================================
// Recovery
// ============================================================================

// FinalizeInitBands reconciles persisted band state with queues and writers.
//
// Shut bands persisted OPEN or FULL are handed back to the writer of their
// type. In creation mode every other shut band is forced through CLOSED to
// FREE; otherwise it stays shut. When the superblock is clean, resumed bands
// also get a translation map and their write iterator back.
//
// The pass fails, with no attempt to undo what it already did, if the band
// metadata is inconsistent: too many writer-owned bands, an unknown band
// type, a trusted write offset past the band end, a band in the free queue that is not FREE, or counts that do not
// add up to NumBands.
func (d *Device) FinalizeInitBands(ctx context.Context) (Reconciliation, error) {
	if d.Bands == nil || d.Bands.Band(0).MD == nil {
		return Reconciliation{}, d.stageError(StageFinalizeInit, ErrNotInitialized)
	}

	clean := d.Clean()
	telemetry.SetAttributes(ctx, telemetry.Clean(clean))

	open, err := d.collectOpenBands(clean)
	if err != nil {
		logger.ErrorCtx(ctx, "band metadata rejected", logger.Device(d.Name), logger.Err(err))
		return Reconciliation{}, d.stageError(StageFinalizeInit, err)
	}

	var stillShut uint64
	shut := d.Bands.Shut()
	shut.Each(func(b *band.Band) bool {
		switch {
		case b.State().IsWriterOwned():
			shut.Remove(b)
		case d.create:
			shut.Remove(b)
			if s := b.State(); s != band.StateFree {
				logger.DebugCtx(ctx, "resetting stale band",
					logger.Device(d.Name), logger.BandID(b.ID), logger.State(s))
			}
			b.SetState(band.StateClosed)
			b.SetState(band.StateFree)
		default:
			stillShut++
		}
		return true
	})

	for _, b := range open {
		if err := d.resumeBand(ctx, b, clean); err != nil {
			return Reconciliation{}, d.stageError(StageFinalizeInit, err)
		}
	}

	numFree, err := d.RecountFree()
	if err != nil {
		return Reconciliation{}, d.stageError(StageFinalizeInit, err)
	}
	d.applyLimits()

	r := Reconciliation{StillShut: stillShut, Open: uint64(len(open)), Free: numFree}
	if r.StillShut+r.Open+r.Free != d.NumBands {
		logger.ErrorCtx(ctx, "inconsistent band list",
			logger.Device(d.Name), logger.StillShut(r.StillShut), logger.Open(r.Open),
			logger.NumFree(r.Free), logger.NumBands(d.NumBands))
		return Reconciliation{}, d.stageError(StageFinalizeInit, fmt.Errorf(
			"%d shut + %d open + %d free != %d bands: %w",
			r.StillShut, r.Open, r.Free, d.NumBands, ErrInconsistentBandList))
	}

	telemetry.SetAttributes(ctx,
		telemetry.StillShut(r.StillShut), telemetry.Open(r.Open), telemetry.NumFree(r.Free))
	logger.InfoCtx(ctx, "bands reconciled",
		logger.Device(d.Name), logger.StillShut(r.StillShut), logger.Open(r.Open),
		logger.NumFree(r.Free), logger.NumBands(d.NumBands))

	if d.metrics != nil {
		d.metrics.RecordReconciliation(d.Name, r)
	}
	return r, nil
}

// collectOpenBands returns the shut bands persisted OPEN or FULL, in ID
// order, after checking that all of them can be attached and, when the
// persisted iterators are to be trusted, that each offset lies inside its
// band. Nothing is modified.
func (d *Device) collectOpenBands(clean bool) ([]*band.Band, error) {
	var open []*band.Band
	openSlots := map[*writer.Writer]int{}
	var err error

	d.Bands.Shut().Each(func(b *band.Band) bool {
		s := b.State()
		if !s.IsWriterOwned() {
			return true
		}
		if len(open) == d.maxOpen {
			err = fmt.Errorf("band %d exceeds %d: %w", b.ID, d.maxOpen, ErrTooManyOpenBands)
			return false
		}
		w, ok := d.writerFor(b.Type())
		if !ok {
			err = fmt.Errorf("band %d has type %s: %w", b.ID, b.Type(), ErrInvalidBandType)
			return false
		}
		if off := b.MD.IterOffset(); clean && off > b.NumUserBlocks() {
			err = fmt.Errorf("band %d: offset %d > %d: %w", b.ID, off, b.NumUserBlocks(), band.ErrIterOutOfRange)
			return false
		}
		if s == band.StateOpen {
			openSlots[w]++
			if openSlots[w] > 2-w.OpenBands() {
				err = fmt.Errorf("band %d: %w", b.ID, writer.ErrWriterSlotsFull)
				return false
			}
		}
		open = append(open, b)
		return true
	})
	return open, err
}

// resumeBand attaches b to its writer and, after a clean shutdown, restores
// its translation map and write iterator. The iterator offset was checked
// by collectOpenBands.
func (d *Device) resumeBand(ctx context.Context, b *band.Band, clean bool) error {
	w, _ := d.writerFor(b.Type())
	if err := w.Attach(b); err != nil {
		return err
	}

	if clean {
		if err := b.AllocP2LMap(d.P2L); err != nil {
			return fmt.Errorf("%w: p2l map for band %d: %w", ErrNoMemory, b.ID, err)
		}

		offset := b.MD.IterOffset()
		b.IterInit()
		if err := b.IterSet(offset); err != nil {
			return err
		}
	}

	off, _ := b.Iter()
	telemetry.AddEvent(ctx, "band resumed", telemetry.BandID(b.ID))
	logger.DebugCtx(ctx, "band resumed",
		logger.Device(d.Name), logger.BandID(b.ID), logger.PhysID(b.PhysID),
		logger.State(b.State()), logger.BandType(b.Type()),
		logger.Writer(w.Kind.String()), logger.Offset(off))
	return nil
}

// RecountFree recomputes the free band count from the free queue.
// The persisted or cached counter is never trusted.
func (d *Device) RecountFree() (uint64, error) {
	if d.Bands == nil {
		return 0, ErrNotInitialized
	}
	n, err := d.Bands.RecountFree()
	if err != nil {
		if errors.Is(err, band.ErrNotFree) {
			return 0, fmt.Errorf("%w: %w", ErrFreeBandState, err)
		}
		return 0, err
	}
	return n, nil
}
