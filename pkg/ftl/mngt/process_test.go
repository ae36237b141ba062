package mngt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittoftl/pkg/ftl"
	"github.com/marmos91/dittoftl/pkg/ftl/band"
	"github.com/marmos91/dittoftl/pkg/ftl/bdev"
	"github.com/marmos91/dittoftl/pkg/ftl/md"
)

// ============================================================================
// Test Helpers
// ============================================================================

const bandSize = 64 << 10

func testGeometry(t *testing.T) ftl.Geometry {
	t.Helper()
	g, err := ftl.NewGeometry(4<<10, bandSize, 1<<20, 64<<20)
	require.NoError(t, err)
	return g
}

type observation struct {
	process, step string
	failed        bool
}

type fakeMetrics struct {
	observed []observation
}

func (m *fakeMetrics) ObserveStep(process, step string, _ time.Duration, err error) {
	m.observed = append(m.observed, observation{process, step, err != nil})
}

func stepNames(res Result) []string {
	names := make([]string, 0, len(res.Steps))
	for _, s := range res.Steps {
		names = append(names, s.Name)
	}
	return names
}

// recorder builds steps that log their action and rollback into a shared
// journal.
type recorder struct {
	journal []string
}

func (r *recorder) step(name string, fail error) Step {
	return Step{
		Name: name,
		Action: func(context.Context, *ftl.Device) error {
			r.journal = append(r.journal, "do:"+name)
			return fail
		},
		Rollback: func(context.Context, *ftl.Device) error {
			r.journal = append(r.journal, "undo:"+name)
			return nil
		},
	}
}

// ============================================================================
// Sequencer
// ============================================================================

func TestProcessRun(t *testing.T) {
	errBoom := errors.New("boom")

	t.Run("RunsInOrder", func(t *testing.T) {
		r := &recorder{}
		p := &Process{Name: "test", Steps: []Step{r.step("a", nil), r.step("b", nil), r.step("c", nil)}}

		res, err := p.Run(context.Background(), ftl.NewDevice(ftl.Options{}))
		require.NoError(t, err)

		assert.Equal(t, []string{"do:a", "do:b", "do:c"}, r.journal)
		assert.Equal(t, "test", res.Process)
		assert.Equal(t, []string{"a", "b", "c"}, stepNames(res))
		for _, s := range res.Steps {
			assert.NoError(t, s.Err)
			assert.False(t, s.RolledBack)
		}
	})

	t.Run("StopsAtFirstFailureAndRollsBackInReverse", func(t *testing.T) {
		r := &recorder{}
		p := &Process{Name: "test", Steps: []Step{
			r.step("a", nil),
			{Name: "b", Action: func(context.Context, *ftl.Device) error {
				r.journal = append(r.journal, "do:b")
				return nil
			}},
			r.step("c", nil),
			r.step("d", errBoom),
			r.step("e", nil),
		}}

		res, err := p.Run(context.Background(), ftl.NewDevice(ftl.Options{}))

		var se *StepError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "test", se.Process)
		assert.Equal(t, "d", se.Step)
		assert.ErrorIs(t, err, errBoom)

		assert.Equal(t, []string{"do:a", "do:b", "do:c", "do:d", "undo:c", "undo:a"}, r.journal)
		assert.Equal(t, []string{"a", "b", "c", "d"}, stepNames(res))
		assert.True(t, res.Steps[0].RolledBack)
		assert.False(t, res.Steps[1].RolledBack)
		assert.True(t, res.Steps[2].RolledBack)
		assert.ErrorIs(t, res.Steps[3].Err, errBoom)
	})

	t.Run("FailedRollbackDoesNotStopOthers", func(t *testing.T) {
		r := &recorder{}
		bad := r.step("b", nil)
		bad.Rollback = func(context.Context, *ftl.Device) error {
			r.journal = append(r.journal, "undo:b")
			return errBoom
		}
		p := &Process{Name: "test", Steps: []Step{r.step("a", nil), bad, r.step("c", errBoom)}}

		res, err := p.Run(context.Background(), ftl.NewDevice(ftl.Options{}))
		require.Error(t, err)

		assert.Equal(t, []string{"do:a", "do:b", "do:c", "undo:b", "undo:a"}, r.journal)
		assert.True(t, res.Steps[0].RolledBack)
		assert.False(t, res.Steps[1].RolledBack)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		r := &recorder{}
		p := &Process{Name: "test", Steps: []Step{r.step("a", nil)}}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := p.Run(ctx, ftl.NewDevice(ftl.Options{}))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, r.journal)
		assert.Empty(t, res.Steps)
	})

	t.Run("ObservesEveryStep", func(t *testing.T) {
		r := &recorder{}
		m := &fakeMetrics{}
		p := &Process{Name: "test", Metrics: m, Steps: []Step{r.step("a", nil), r.step("b", errBoom)}}

		_, err := p.Run(context.Background(), ftl.NewDevice(ftl.Options{}))
		require.Error(t, err)

		assert.Equal(t, []observation{{"test", "a", false}, {"test", "b", true}}, m.observed)
	})
}

func TestStepError(t *testing.T) {
	err := &StepError{Process: ProcessStartup, Step: ftl.StageInitBands, Err: ftl.ErrNoMemory}
	assert.Equal(t, "startup: step init_bands failed: out of memory", err.Error())
	assert.ErrorIs(t, err, ftl.ErrNoMemory)
}

// ============================================================================
// Pipelines
// ============================================================================

func TestStartup(t *testing.T) {
	t.Run("CreateInMemory", func(t *testing.T) {
		dev := ftl.NewDevice(ftl.Options{Geometry: testGeometry(t), Create: true})

		res, err := Startup(Options{Size: 10 * bandSize}).Run(context.Background(), dev)
		require.NoError(t, err)

		assert.Equal(t, []string{
			StepOpenBaseBdev, StepOpenBandMD,
			ftl.StageInitBands, ftl.StageInitBandsMD, ftl.StageDecorateBands, ftl.StageFinalizeInit,
			StepSetDirty,
		}, stepNames(res))
		assert.Equal(t, uint64(10), dev.NumBands)
		assert.Equal(t, uint64(10), dev.Bands.NumFree())
		assert.False(t, dev.Clean())
	})

	t.Run("ReopenMemoryRegionRollsBackBase", func(t *testing.T) {
		dev := ftl.NewDevice(ftl.Options{Geometry: testGeometry(t)})

		res, err := Startup(Options{Size: 4 * bandSize}).Run(context.Background(), dev)

		var se *StepError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, StepOpenBandMD, se.Step)
		assert.ErrorIs(t, err, md.ErrNotFound)
		assert.True(t, res.Steps[0].RolledBack)
		assert.Nil(t, dev.Base)
	})

	t.Run("CorruptMetadataRollsBackTable", func(t *testing.T) {
		geo := testGeometry(t)
		dev := ftl.NewDevice(ftl.Options{Geometry: geo, MaxOpenBands: 1})
		base, err := bdev.NewMemory(4*geo.BlocksPerBand, geo.BlockSize)
		require.NoError(t, err)
		require.NoError(t, dev.SetBase(base))

		region := md.NewMemoryRegion(4, geo.BlocksPerBand)
		for id := uint64(0); id < 2; id++ {
			rec, err := region.Record(id)
			require.NoError(t, err)
			rec.SetState(band.StateFull)
			rec.SetType(band.TypeGC)
		}
		dev.SetRegion(region)

		_, err = Startup(Options{}).Run(context.Background(), dev)

		var se *StepError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, ftl.StageFinalizeInit, se.Step)
		assert.ErrorIs(t, err, ftl.ErrTooManyOpenBands)

		assert.Nil(t, dev.Bands)
		assert.Same(t, base, dev.Base.(*bdev.Memory))
		assert.NotNil(t, dev.Region)
		assert.True(t, dev.Clean())
	})

	t.Run("ObservedByMetrics", func(t *testing.T) {
		m := &fakeMetrics{}
		dev := ftl.NewDevice(ftl.Options{Geometry: testGeometry(t), Create: true})
		p := Startup(Options{Size: 2 * bandSize})
		p.Metrics = m

		_, err := p.Run(context.Background(), dev)
		require.NoError(t, err)
		assert.Len(t, m.observed, 7)
	})
}

func TestShutdown(t *testing.T) {
	t.Run("Clean", func(t *testing.T) {
		dev := ftl.NewDevice(ftl.Options{Geometry: testGeometry(t), Create: true})
		_, err := Startup(Options{Size: 4 * bandSize}).Run(context.Background(), dev)
		require.NoError(t, err)
		region := dev.Region

		res, err := Shutdown(ShutdownOptions{}).Run(context.Background(), dev)
		require.NoError(t, err)

		assert.Equal(t, []string{StepSetClean, ftl.StageDeinitBands, StepCloseBandMD, StepCloseBaseBdev}, stepNames(res))
		assert.True(t, region.Superblock().Clean)
		assert.Nil(t, dev.Bands)
		assert.Nil(t, dev.Region)
		assert.Nil(t, dev.Base)
	})

	t.Run("LeaveDirty", func(t *testing.T) {
		dev := ftl.NewDevice(ftl.Options{Geometry: testGeometry(t), Create: true})
		_, err := Startup(Options{Size: 4 * bandSize}).Run(context.Background(), dev)
		require.NoError(t, err)
		region := dev.Region

		res, err := Shutdown(ShutdownOptions{LeaveDirty: true}).Run(context.Background(), dev)
		require.NoError(t, err)

		assert.NotContains(t, stepNames(res), StepSetClean)
		assert.False(t, region.Superblock().Clean)
	})

	t.Run("NothingAttached", func(t *testing.T) {
		_, err := Shutdown(ShutdownOptions{LeaveDirty: true}).Run(context.Background(), ftl.NewDevice(ftl.Options{}))
		assert.NoError(t, err)
	})
}

// TestLifecycle formats a file-backed device, persists an open band, and
// reopens it after a clean and after a dirty shutdown.
func TestLifecycle(t *testing.T) {
	backends := []string{md.BackendMmap, md.BackendBadger}

	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			opts := Options{
				BasePath:  filepath.Join(dir, "base.img"),
				Size:      8 * bandSize,
				MDBackend: backend,
				MDPath:    filepath.Join(dir, "md"),
			}
			geo := testGeometry(t)
			ctx := context.Background()

			// Format, then leave band 3 open at offset 4 as a writer would.
			dev := ftl.NewDevice(ftl.Options{Geometry: geo, Create: true})
			_, err := Startup(opts).Run(ctx, dev)
			require.NoError(t, err)
			assert.Equal(t, uint64(8), dev.Bands.NumFree())

			rec, err := dev.Region.Record(3)
			require.NoError(t, err)
			rec.SetState(band.StateOpen)
			rec.SetType(band.TypeCompaction)
			rec.SetIterOffset(4)

			_, err = Shutdown(ShutdownOptions{}).Run(ctx, dev)
			require.NoError(t, err)

			// Clean reopen resumes the band with its iterator.
			dev = ftl.NewDevice(ftl.Options{Geometry: geo})
			_, err = Startup(opts).Run(ctx, dev)
			require.NoError(t, err)

			require.NotNil(t, dev.UserWriter.Band)
			b := dev.UserWriter.Band
			assert.Equal(t, uint64(3), b.ID)
			off, addr := b.Iter()
			assert.Equal(t, uint64(4), off)
			assert.Equal(t, 3*geo.BlocksPerBand+4, addr)
			assert.NotNil(t, b.P2LMap())
			assert.Equal(t, uint64(7), dev.Bands.Shut().Len())
			assert.False(t, dev.Clean())

			_, err = Shutdown(ShutdownOptions{LeaveDirty: true}).Run(ctx, dev)
			require.NoError(t, err)

			// Dirty reopen attaches the band without trusting its iterator.
			dev = ftl.NewDevice(ftl.Options{Geometry: geo})
			_, err = Startup(opts).Run(ctx, dev)
			require.NoError(t, err)

			require.NotNil(t, dev.UserWriter.Band)
			assert.Equal(t, uint64(3), dev.UserWriter.Band.ID)
			assert.Nil(t, dev.UserWriter.Band.P2LMap())
			assert.Equal(t, 0, dev.P2L.InUse())

			_, err = Shutdown(ShutdownOptions{}).Run(ctx, dev)
			require.NoError(t, err)
		})
	}
}
