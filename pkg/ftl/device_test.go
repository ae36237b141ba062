package ftl

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittoftl/pkg/ftl/band"
	"github.com/marmos91/dittoftl/pkg/ftl/bdev"
)

func TestNewGeometry(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		g := DefaultGeometry()
		assert.Equal(t, uint64(4096), g.BlockSize)
		assert.Equal(t, uint64(262144), g.BlocksPerBand)
		assert.Equal(t, uint64(18874368), g.ReclaimUnitBlocks)
		assert.Equal(t, uint64(268435456), g.LargeDeviceBlocks)
		assert.Equal(t, uint64(512), g.TailMDBlocks)
		assert.Equal(t, uint64(262144-512), g.UserBlocksPerBand())
	})

	t.Run("TailMetadataRoundsUp", func(t *testing.T) {
		g, err := NewGeometry(512, 64<<10, 1<<20, 64<<20)
		require.NoError(t, err)
		// 128 blocks * 8 bytes = 1024 bytes = 2 blocks of 512.
		assert.Equal(t, uint64(128), g.BlocksPerBand)
		assert.Equal(t, uint64(2), g.TailMDBlocks)

		g, err = NewGeometry(4096, 8<<10, 64<<10, 1<<20)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), g.TailMDBlocks)
	})

	invalid := []struct {
		name                               string
		block, band, reclaim, largeDevice uint64
	}{
		{"ZeroBlock", 0, 1 << 20, 1 << 22, 1 << 30},
		{"BlockNotPowerOfTwo", 3000, 3000 * 64, 3000 * 256, 1 << 30},
		{"BandNotMultipleOfBlock", 4096, 4096*16 + 1, 1 << 22, 1 << 30},
		{"ReclaimNotMultipleOfBand", 4096, 1 << 20, 3 << 19, 1 << 30},
		{"ThresholdNotAboveReclaim", 4096, 1 << 20, 1 << 22, 1 << 22},
		{"BandAllTailMetadata", 4096, 4096, 1 << 20, 1 << 30},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGeometry(tt.block, tt.band, tt.reclaim, tt.largeDevice)
			assert.ErrorIs(t, err, ErrInvalidGeometry)
		})
	}
}

func TestDeviceBase(t *testing.T) {
	t.Run("DerivesBandCount", func(t *testing.T) {
		dev := NewDevice(Options{Geometry: smallGeometry(t)})
		base, err := bdev.NewMemory(16*7+5, 4096)
		require.NoError(t, err)

		require.NoError(t, dev.SetBase(base))
		assert.Equal(t, uint64(7), dev.NumBands)
	})

	t.Run("BlockSizeMismatch", func(t *testing.T) {
		dev := NewDevice(Options{Geometry: smallGeometry(t)})
		base, err := bdev.NewMemory(1024, 512)
		require.NoError(t, err)

		assert.ErrorIs(t, dev.SetBase(base), ErrInvalidGeometry)
		assert.Nil(t, dev.Base)
	})

	t.Run("SmallerThanOneBand", func(t *testing.T) {
		dev := NewDevice(Options{Geometry: smallGeometry(t)})
		base, err := bdev.NewMemory(15, 4096)
		require.NoError(t, err)

		assert.ErrorIs(t, dev.SetBase(base), ErrInvalidGeometry)
	})

	zeroed := []struct {
		name string
		geo  Geometry
	}{
		{"ZeroBlocksPerBand", Geometry{BlockSize: 4096, ReclaimUnitBlocks: 64, LargeDeviceBlocks: 1 << 20}},
		{"ZeroReclaimUnit", Geometry{BlockSize: 4096, BlocksPerBand: 16, LargeDeviceBlocks: 32, TailMDBlocks: 1}},
		{"AllTailMetadata", Geometry{BlockSize: 4096, BlocksPerBand: 16, ReclaimUnitBlocks: 64, LargeDeviceBlocks: 1 << 20, TailMDBlocks: 16}},
	}
	for _, tt := range zeroed {
		t.Run(tt.name, func(t *testing.T) {
			dev := NewDevice(Options{Geometry: tt.geo})
			base, err := bdev.NewMemory(1024, 4096)
			require.NoError(t, err)

			assert.ErrorIs(t, dev.SetBase(base), ErrInvalidGeometry)
			assert.Nil(t, dev.Base)
		})
	}

	t.Run("Defaults", func(t *testing.T) {
		dev := NewDevice(Options{})
		assert.Equal(t, "ftl0", dev.Name)
		assert.Equal(t, DefaultGeometry(), dev.Geometry())
		assert.Equal(t, DefaultMaxOpenBands, dev.MaxOpenBands())
		assert.Equal(t, DefaultMaxOpenBands, dev.P2L.Cap())
		assert.False(t, dev.Create())
		assert.Equal(t, "user_full_bands", dev.UserWriter.FullBands.Name())
		assert.Equal(t, "gc_full_bands", dev.GCWriter.FullBands.Name())
	})
}

func TestDeviceClean(t *testing.T) {
	t.Run("NoRegion", func(t *testing.T) {
		dev := NewDevice(Options{})
		assert.False(t, dev.Clean())
		assert.ErrorIs(t, dev.SetClean(true), ErrNotInitialized)
	})

	t.Run("Toggle", func(t *testing.T) {
		dev, region := newDevice(t, 2, Options{})
		assert.True(t, dev.Clean())

		require.NoError(t, dev.SetClean(false))
		assert.False(t, region.Superblock().Clean)
		assert.False(t, dev.Clean())

		require.NoError(t, dev.SetClean(true))
		assert.True(t, dev.Clean())
	})

	t.Run("ClosedRegion", func(t *testing.T) {
		dev, region := newDevice(t, 2, Options{})
		require.NoError(t, region.Close())
		assert.Error(t, dev.SetClean(true))
	})
}

func TestStageError(t *testing.T) {
	err := &StageError{Stage: StageInitBandsMD, Device: "ftl0", Err: &BindError{BandID: 3, Err: ErrNoMemory}}

	assert.ErrorIs(t, err, ErrNoMemory)
	assert.Contains(t, err.Error(), StageInitBandsMD)
	assert.Contains(t, err.Error(), "ftl0")
	assert.Contains(t, err.Error(), "band 3")
}

func TestReport(t *testing.T) {
	t.Run("BeforeInit", func(t *testing.T) {
		dev, _ := newDevice(t, 4, Options{Name: "nvme0"})
		r := dev.Report()

		assert.Equal(t, "nvme0", r.Device)
		assert.Equal(t, uint64(4), r.NumBands)
		assert.Equal(t, "none", r.Level)
		assert.Empty(t, r.Bands)
	})

	t.Run("AfterRecovery", func(t *testing.T) {
		dev, region := newDevice(t, 5, Options{})
		persist(t, region, 0, band.StateOpen, band.TypeCompaction, 2)
		persist(t, region, 1, band.StateOpen, band.TypeCompaction, 0)
		persist(t, region, 2, band.StateFull, band.TypeGC, 0)
		prepare(t, dev)
		_, err := dev.FinalizeInitBands(context.Background())
		require.NoError(t, err)

		r := dev.Report()
		assert.Equal(t, uint64(0), r.NumFree)
		assert.Equal(t, uint64(1), r.NumShut)
		assert.Equal(t, uint64(2), r.UserBands)
		assert.Equal(t, uint64(1), r.GCBands)
		assert.True(t, r.Clean)
		require.Len(t, r.Bands, 5)

		assert.Equal(t, BandInfo{
			ID: 0, PhysID: 0, State: "OPEN", Type: "COMPACTION",
			Owner: "user", Queue: "current", IterOffset: 2, StartAddr: 0,
		}, r.Bands[0])
		assert.Equal(t, "next", r.Bands[1].Queue)
		assert.Equal(t, "gc", r.Bands[2].Owner)
		assert.Equal(t, "gc_full_bands", r.Bands[2].Queue)
		assert.Equal(t, "shut_bands", r.Bands[3].Queue)
		assert.Empty(t, r.Bands[3].Owner)
		assert.True(t, r.Bands[4].Dropped)
		assert.Empty(t, r.Bands[4].Queue)
	})

	t.Run("JSON", func(t *testing.T) {
		dev, _ := newDevice(t, 2, Options{Create: true})
		prepare(t, dev)
		_, err := dev.FinalizeInitBands(context.Background())
		require.NoError(t, err)

		data, err := json.Marshal(dev.Report())
		require.NoError(t, err)
		assert.Contains(t, string(data), `"num_free":2`)
		assert.Contains(t, string(data), `"queue":"free_bands"`)
	})
}
