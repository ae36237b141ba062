// Package md implements the persisted band-metadata region.
//
// The region is a fixed-size array of per-band records addressed by band ID,
// preceded by the device superblock. Three backends share the same record
// layout:
//
//   - memory: a plain byte slice, lost on close (tests, dry runs)
//   - mmap:   a shared memory-mapped file; the OS writes dirty pages back
//   - badger: one key per record in a BadgerDB instance
//
// Record Format (16 bytes, little endian):
//
//	Offset  Size  Field
//	0       1     state (band.State)
//	1       1     type  (band.Type)
//	2       6     reserved
//	8       8     write iterator offset, in blocks from band start
package md

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RecordSize is the persisted size of one band record.
const RecordSize = 16

const (
	recStateOff = 0
	recTypeOff  = 1
	recIterOff  = 8
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendMmap   = "mmap"
	BackendBadger = "badger"
)

var (
	// ErrRegionClosed is returned when a closed region is accessed.
	ErrRegionClosed = errors.New("band metadata region is closed")

	// ErrCorrupted is returned when the region header cannot be parsed.
	ErrCorrupted = errors.New("band metadata region corrupted")

	// ErrVersionMismatch is returned when the region was written by an
	// incompatible format version.
	ErrVersionMismatch = errors.New("band metadata region version mismatch")

	// ErrGeometryMismatch is returned when an existing region was formatted
	// for a different band count or band size.
	ErrGeometryMismatch = errors.New("band metadata region geometry mismatch")

	// ErrSlotOutOfRange is returned for a band ID the region has no slot for.
	ErrSlotOutOfRange = errors.New("band metadata slot out of range")

	// ErrNotFound is returned when reopening a region that was never created.
	ErrNotFound = errors.New("band metadata region not found")

	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown band metadata backend")
)

// Superblock holds the device-wide persisted fields stored with the region.
type Superblock struct {
	UUID          uuid.UUID `json:"uuid"`
	NumBands      uint64    `json:"num_bands"`
	BlocksPerBand uint64    `json:"blocks_per_band"`
	Clean         bool      `json:"clean"`
}

// Region is the persisted per-band metadata store.
//
// Regions are not safe for concurrent use; the device-open sequence owns the
// region exclusively while band state is reconciled.
type Region interface {
	// NumRecords returns the number of band slots.
	NumRecords() uint64

	// Record returns the slot for band id. The returned record is a live
	// view: writes through it are persisted by the next Sync.
	Record(id uint64) (*Record, error)

	// Superblock returns a copy of the superblock.
	Superblock() Superblock

	// SetClean updates and persists the superblock clean flag.
	SetClean(clean bool) error

	// Sync flushes records and superblock to the backing store.
	Sync() error

	// Close syncs and releases the region.
	Close() error
}

// Options selects and sizes a region.
type Options struct {
	// Backend is one of BackendMemory, BackendMmap, BackendBadger.
	Backend string

	// Path is the directory holding the region files (ignored for memory).
	Path string

	// Create formats a fresh region, discarding any previous content.
	Create bool

	// NumBands and BlocksPerBand describe the expected geometry. On create
	// they size the region; on reopen they are checked against the
	// superblock.
	NumBands      uint64
	BlocksPerBand uint64
}

// Open creates or reopens a region with the given options.
func Open(opts Options) (Region, error) {
	switch strings.ToLower(opts.Backend) {
	case BackendMemory, "":
		if !opts.Create {
			return nil, fmt.Errorf("memory region cannot be reopened: %w", ErrNotFound)
		}
		return NewMemoryRegion(opts.NumBands, opts.BlocksPerBand), nil
	case BackendMmap:
		if opts.Create {
			return CreateMmapRegion(opts.Path, opts.NumBands, opts.BlocksPerBand)
		}
		return OpenMmapRegion(opts.Path, opts.NumBands, opts.BlocksPerBand)
	case BackendBadger:
		if opts.Create {
			return CreateBadgerRegion(opts.Path, opts.NumBands, opts.BlocksPerBand)
		}
		return OpenBadgerRegion(opts.Path, opts.NumBands, opts.BlocksPerBand)
	default:
		return nil, fmt.Errorf("%q: %w", opts.Backend, ErrUnknownBackend)
	}
}

// newSuperblock returns the superblock of a freshly formatted region.
// A fresh region is clean: every band is FREE and nothing is in flight.
func newSuperblock(numBands, blocksPerBand uint64) Superblock {
	return Superblock{
		UUID:          uuid.New(),
		NumBands:      numBands,
		BlocksPerBand: blocksPerBand,
		Clean:         true,
	}
}

// checkGeometry compares a reopened superblock with the expected geometry.
// Zero expectations are not checked.
func checkGeometry(sb Superblock, numBands, blocksPerBand uint64) error {
	if numBands != 0 && sb.NumBands != numBands {
		return fmt.Errorf("region has %d bands, device has %d: %w", sb.NumBands, numBands, ErrGeometryMismatch)
	}
	if blocksPerBand != 0 && sb.BlocksPerBand != blocksPerBand {
		return fmt.Errorf("region has %d blocks per band, device has %d: %w",
			sb.BlocksPerBand, blocksPerBand, ErrGeometryMismatch)
	}
	return nil
}

// records is the shared fixed-size record array used by every backend.
type records struct {
	buf []byte
}

func (r *records) len() uint64 {
	return uint64(len(r.buf) / RecordSize)
}

func (r *records) record(id uint64) (*Record, error) {
	if id >= r.len() {
		return nil, fmt.Errorf("band %d of %d: %w", id, r.len(), ErrSlotOutOfRange)
	}
	off := id * RecordSize
	return &Record{buf: r.buf[off : off+RecordSize : off+RecordSize]}, nil
}
