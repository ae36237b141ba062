package ftl

import (
	"fmt"

	"github.com/marmos91/dittoftl/pkg/ftl/p2l"
)

// Default geometry.
const (
	DefaultBlockSize            = 4 << 10  // 4 KiB
	DefaultBandSize             = 1 << 30  // 1 GiB
	DefaultReclaimUnitSize      = 72 << 30 // 72 GiB
	DefaultLargeDeviceThreshold = 1 << 40  // 1 TiB
	DefaultGroupingFactor       = 2
	DefaultMaxOpenBands         = 4
)

// Geometry is the block-level layout shared by every band of a device.
type Geometry struct {
	// BlockSize is the base device block size in bytes.
	BlockSize uint64

	// BlocksPerBand is the band size in blocks, tail metadata included.
	BlocksPerBand uint64

	// ReclaimUnitBlocks is the physical reclaim unit in blocks.
	ReclaimUnitBlocks uint64

	// LargeDeviceBlocks is the device size, in blocks, above which bands
	// are grouped by whole reclaim units instead of DefaultGroupingFactor.
	LargeDeviceBlocks uint64

	// TailMDBlocks is the size of a band's tail metadata: one P2L entry
	// per block, rounded up to whole blocks.
	TailMDBlocks uint64
}

// NewGeometry derives a geometry from byte sizes.
func NewGeometry(blockSize, bandSize, reclaimUnitSize, largeDeviceThreshold uint64) (Geometry, error) {
	if blockSize == 0 || blockSize&(blockSize-1) != 0 {
		return Geometry{}, fmt.Errorf("block size %d is not a power of two: %w", blockSize, ErrInvalidGeometry)
	}
	if bandSize == 0 || bandSize%blockSize != 0 {
		return Geometry{}, fmt.Errorf("band size %d is not a multiple of block size %d: %w",
			bandSize, blockSize, ErrInvalidGeometry)
	}
	if reclaimUnitSize == 0 || reclaimUnitSize%bandSize != 0 {
		return Geometry{}, fmt.Errorf("reclaim unit %d is not a multiple of band size %d: %w",
			reclaimUnitSize, bandSize, ErrInvalidGeometry)
	}
	if largeDeviceThreshold <= reclaimUnitSize {
		return Geometry{}, fmt.Errorf("large device threshold %d must exceed reclaim unit %d: %w",
			largeDeviceThreshold, reclaimUnitSize, ErrInvalidGeometry)
	}

	g := Geometry{
		BlockSize:         blockSize,
		BlocksPerBand:     bandSize / blockSize,
		ReclaimUnitBlocks: reclaimUnitSize / blockSize,
		LargeDeviceBlocks: largeDeviceThreshold / blockSize,
	}
	g.TailMDBlocks = tailMDBlocks(g.BlocksPerBand, blockSize)

	if g.TailMDBlocks >= g.BlocksPerBand {
		return Geometry{}, fmt.Errorf("band of %d blocks leaves no room after %d tail metadata blocks: %w",
			g.BlocksPerBand, g.TailMDBlocks, ErrInvalidGeometry)
	}
	return g, nil
}

// DefaultGeometry returns the geometry of the default sizes.
func DefaultGeometry() Geometry {
	g, err := NewGeometry(DefaultBlockSize, DefaultBandSize, DefaultReclaimUnitSize, DefaultLargeDeviceThreshold)
	if err != nil {
		panic(err)
	}
	return g
}

func tailMDBlocks(blocksPerBand, blockSize uint64) uint64 {
	bytes := blocksPerBand * p2l.EntrySize
	return (bytes + blockSize - 1) / blockSize
}

// check rejects a hand-built geometry that would divide by zero or leave a
// band without user blocks. Geometries from NewGeometry always pass.
func (g Geometry) check() error {
	switch {
	case g.BlockSize == 0:
		return fmt.Errorf("zero block size: %w", ErrInvalidGeometry)
	case g.BlocksPerBand == 0:
		return fmt.Errorf("zero blocks per band: %w", ErrInvalidGeometry)
	case g.ReclaimUnitBlocks == 0:
		return fmt.Errorf("zero reclaim unit: %w", ErrInvalidGeometry)
	case g.TailMDBlocks >= g.BlocksPerBand:
		return fmt.Errorf("band of %d blocks leaves no room after %d tail metadata blocks: %w",
			g.BlocksPerBand, g.TailMDBlocks, ErrInvalidGeometry)
	}
	return nil
}

// UserBlocksPerBand returns the blocks of a band available for data.
func (g Geometry) UserBlocksPerBand() uint64 {
	return g.BlocksPerBand - g.TailMDBlocks
}
