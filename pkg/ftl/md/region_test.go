package md

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittoftl/pkg/ftl/band"
)

// ============================================================================
// Shared Backend Behaviour
// ============================================================================

type regionFactory struct {
	name    string
	create  func(t *testing.T, dir string, n, bpb uint64) Region
	reopen  func(t *testing.T, dir string, n, bpb uint64) (Region, error)
	durable bool
}

func factories() []regionFactory {
	return []regionFactory{
		{
			name: "Memory",
			create: func(t *testing.T, _ string, n, bpb uint64) Region {
				return NewMemoryRegion(n, bpb)
			},
		},
		{
			name: "Mmap",
			create: func(t *testing.T, dir string, n, bpb uint64) Region {
				r, err := CreateMmapRegion(dir, n, bpb)
				require.NoError(t, err)
				return r
			},
			reopen: func(t *testing.T, dir string, n, bpb uint64) (Region, error) {
				return OpenMmapRegion(dir, n, bpb)
			},
			durable: true,
		},
		{
			name: "Badger",
			create: func(t *testing.T, dir string, n, bpb uint64) Region {
				r, err := CreateBadgerRegion(dir, n, bpb)
				require.NoError(t, err)
				return r
			},
			reopen: func(t *testing.T, dir string, n, bpb uint64) (Region, error) {
				return OpenBadgerRegion(dir, n, bpb)
			},
			durable: true,
		},
	}
}

func TestRegion(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			t.Run("FreshRegionIsCleanAndFree", func(t *testing.T) {
				r := f.create(t, t.TempDir(), 8, 1024)
				defer r.Close()

				assert.Equal(t, uint64(8), r.NumRecords())
				sb := r.Superblock()
				assert.True(t, sb.Clean)
				assert.Equal(t, uint64(8), sb.NumBands)
				assert.Equal(t, uint64(1024), sb.BlocksPerBand)

				for id := uint64(0); id < 8; id++ {
					rec, err := r.Record(id)
					require.NoError(t, err)
					assert.Equal(t, band.StateFree, rec.State())
					assert.Equal(t, band.Type(0), rec.Type())
					assert.Equal(t, uint64(0), rec.IterOffset())
				}
			})

			t.Run("SlotOutOfRange", func(t *testing.T) {
				r := f.create(t, t.TempDir(), 4, 16)
				defer r.Close()

				_, err := r.Record(4)
				assert.ErrorIs(t, err, ErrSlotOutOfRange)
			})

			t.Run("RecordIsLiveView", func(t *testing.T) {
				r := f.create(t, t.TempDir(), 4, 16)
				defer r.Close()

				a, err := r.Record(2)
				require.NoError(t, err)
				a.SetState(band.StateOpen)
				a.SetType(band.TypeGC)
				a.SetIterOffset(7)

				b, err := r.Record(2)
				require.NoError(t, err)
				assert.Equal(t, band.StateOpen, b.State())
				assert.Equal(t, band.TypeGC, b.Type())
				assert.Equal(t, uint64(7), b.IterOffset())

				other, err := r.Record(3)
				require.NoError(t, err)
				assert.Equal(t, band.StateFree, other.State())
			})

			t.Run("ClosedRegionRejectsAccess", func(t *testing.T) {
				r := f.create(t, t.TempDir(), 2, 16)
				require.NoError(t, r.Close())

				_, err := r.Record(0)
				assert.ErrorIs(t, err, ErrRegionClosed)
				assert.ErrorIs(t, r.SetClean(true), ErrRegionClosed)
				assert.ErrorIs(t, r.Sync(), ErrRegionClosed)
				assert.NoError(t, r.Close())
			})

			if !f.durable {
				return
			}

			t.Run("PersistsAcrossReopen", func(t *testing.T) {
				dir := t.TempDir()
				r := f.create(t, dir, 6, 32)
				uid := r.Superblock().UUID

				rec, err := r.Record(5)
				require.NoError(t, err)
				rec.SetState(band.StateFull)
				rec.SetType(band.TypeCompaction)
				rec.SetIterOffset(31)
				require.NoError(t, r.SetClean(false))
				require.NoError(t, r.Close())

				r2, err := f.reopen(t, dir, 6, 32)
				require.NoError(t, err)
				defer r2.Close()

				sb := r2.Superblock()
				assert.Equal(t, uid, sb.UUID)
				assert.False(t, sb.Clean)

				rec, err = r2.Record(5)
				require.NoError(t, err)
				assert.Equal(t, band.StateFull, rec.State())
				assert.Equal(t, band.TypeCompaction, rec.Type())
				assert.Equal(t, uint64(31), rec.IterOffset())
			})

			t.Run("GeometryMismatch", func(t *testing.T) {
				dir := t.TempDir()
				r := f.create(t, dir, 6, 32)
				require.NoError(t, r.Close())

				_, err := f.reopen(t, dir, 7, 32)
				assert.ErrorIs(t, err, ErrGeometryMismatch)

				_, err = f.reopen(t, dir, 6, 64)
				assert.ErrorIs(t, err, ErrGeometryMismatch)
			})

			t.Run("ZeroGeometrySkipsCheck", func(t *testing.T) {
				dir := t.TempDir()
				r := f.create(t, dir, 3, 8)
				require.NoError(t, r.Close())

				r2, err := f.reopen(t, dir, 0, 0)
				require.NoError(t, err)
				defer r2.Close()
				assert.Equal(t, uint64(3), r2.NumRecords())
			})
		})
	}
}

// ============================================================================
// Open Dispatch
// ============================================================================

func TestOpen(t *testing.T) {
	t.Run("MemoryCreate", func(t *testing.T) {
		r, err := Open(Options{Backend: BackendMemory, Create: true, NumBands: 2, BlocksPerBand: 4})
		require.NoError(t, err)
		defer r.Close()
		assert.IsType(t, &MemoryRegion{}, r)
	})

	t.Run("EmptyBackendIsMemory", func(t *testing.T) {
		r, err := Open(Options{Create: true, NumBands: 2, BlocksPerBand: 4})
		require.NoError(t, err)
		defer r.Close()
		assert.IsType(t, &MemoryRegion{}, r)
	})

	t.Run("MemoryCannotReopen", func(t *testing.T) {
		_, err := Open(Options{Backend: BackendMemory})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("BackendNameIsCaseInsensitive", func(t *testing.T) {
		r, err := Open(Options{Backend: "MMAP", Path: t.TempDir(), Create: true, NumBands: 2, BlocksPerBand: 4})
		require.NoError(t, err)
		defer r.Close()
		assert.IsType(t, &MmapRegion{}, r)
	})

	t.Run("Badger", func(t *testing.T) {
		dir := t.TempDir()
		r, err := Open(Options{Backend: BackendBadger, Path: dir, Create: true, NumBands: 2, BlocksPerBand: 4})
		require.NoError(t, err)
		require.NoError(t, r.Close())

		r, err = Open(Options{Backend: BackendBadger, Path: dir, NumBands: 2, BlocksPerBand: 4})
		require.NoError(t, err)
		defer r.Close()
		assert.IsType(t, &BadgerRegion{}, r)
	})

	t.Run("UnknownBackend", func(t *testing.T) {
		_, err := Open(Options{Backend: "tape", Create: true})
		assert.ErrorIs(t, err, ErrUnknownBackend)
	})
}

// ============================================================================
// Mmap Specifics
// ============================================================================

func TestMmapRegion(t *testing.T) {
	t.Run("MissingFile", func(t *testing.T) {
		_, err := OpenMmapRegion(t.TempDir(), 4, 16)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("BadMagic", func(t *testing.T) {
		dir := t.TempDir()
		r, err := CreateMmapRegion(dir, 4, 16)
		require.NoError(t, err)
		require.NoError(t, r.Close())

		path := filepath.Join(dir, mmapFileName)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		copy(data[0:4], "XXXX")
		require.NoError(t, os.WriteFile(path, data, 0644))

		_, err = OpenMmapRegion(dir, 4, 16)
		assert.ErrorIs(t, err, ErrCorrupted)
	})

	t.Run("VersionMismatch", func(t *testing.T) {
		dir := t.TempDir()
		r, err := CreateMmapRegion(dir, 4, 16)
		require.NoError(t, err)
		require.NoError(t, r.Close())

		path := filepath.Join(dir, mmapFileName)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		data[4] = 9
		require.NoError(t, os.WriteFile(path, data, 0644))

		_, err = OpenMmapRegion(dir, 4, 16)
		assert.ErrorIs(t, err, ErrVersionMismatch)
	})

	t.Run("TruncatedFile", func(t *testing.T) {
		dir := t.TempDir()
		r, err := CreateMmapRegion(dir, 4, 16)
		require.NoError(t, err)
		require.NoError(t, r.Close())

		path := filepath.Join(dir, mmapFileName)
		require.NoError(t, os.Truncate(path, mmapHeaderSize+2*RecordSize))

		_, err = OpenMmapRegion(dir, 4, 16)
		assert.ErrorIs(t, err, ErrCorrupted)
	})

	t.Run("ShortHeader", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, mmapFileName), []byte("DFTB"), 0644))

		_, err := OpenMmapRegion(dir, 4, 16)
		assert.ErrorIs(t, err, ErrCorrupted)
	})

	t.Run("CreateReplacesExisting", func(t *testing.T) {
		dir := t.TempDir()
		r, err := CreateMmapRegion(dir, 4, 16)
		require.NoError(t, err)
		rec, err := r.Record(1)
		require.NoError(t, err)
		rec.SetState(band.StateClosed)
		require.NoError(t, r.Close())

		r, err = CreateMmapRegion(dir, 4, 16)
		require.NoError(t, err)
		defer r.Close()
		rec, err = r.Record(1)
		require.NoError(t, err)
		assert.Equal(t, band.StateFree, rec.State())
	})
}

func TestBadgerRegion(t *testing.T) {
	t.Run("MissingSuperblock", func(t *testing.T) {
		_, err := OpenBadgerRegion(t.TempDir(), 4, 16)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("UnsyncedRecordsSurviveClose", func(t *testing.T) {
		dir := t.TempDir()
		r, err := CreateBadgerRegion(dir, 2, 16)
		require.NoError(t, err)

		rec, err := r.Record(0)
		require.NoError(t, err)
		rec.SetState(band.StateOpen)
		require.NoError(t, r.Close())

		r, err = OpenBadgerRegion(dir, 2, 16)
		require.NoError(t, err)
		defer r.Close()
		rec, err = r.Record(0)
		require.NoError(t, err)
		assert.Equal(t, band.StateOpen, rec.State())
	})

	t.Run("KeysSortByBandID", func(t *testing.T) {
		assert.Less(t, string(keyBand(1)), string(keyBand(2)))
		assert.Less(t, string(keyBand(255)), string(keyBand(256)))
	})
}
