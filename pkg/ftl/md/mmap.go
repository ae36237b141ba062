// mmap.go provides a memory-mapped file backing for the band metadata region.
//
// Records are written in place through the mapping, so a band state change is
// visible in the page cache as soon as it happens and reaches the file when
// the OS writes the page back (or on Sync/Close).
//
// File Format (bands.md):
//
//	Header (64 bytes):
//	  - Magic: "DFTB" (4 bytes)
//	  - Version: uint16 (2 bytes)
//	  - Clean: uint8 (1 byte)
//	  - Reserved: 1 byte
//	  - Band count: uint64 (8 bytes)
//	  - Blocks per band: uint64 (8 bytes)
//	  - Device UUID: 16 bytes
//	  - Reserved: 24 bytes
//
//	Records (band count × 16 bytes), indexed by band ID.

package md

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

const (
	mmapMagic      = "DFTB" // DittoFTL Bands
	mmapVersion    = uint16(1)
	mmapHeaderSize = 64
	mmapFileName   = "bands.md"
)

// MmapRegion implements Region over a shared memory-mapped file.
type MmapRegion struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	data   []byte
	recs   records
	sb     Superblock
	closed bool
}

// CreateMmapRegion formats a new region file in dir, replacing any existing one.
func CreateMmapRegion(dir string, numBands, blocksPerBand uint64) (*MmapRegion, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	filePath := filepath.Join(dir, mmapFileName)
	f, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	size := int64(mmapHeaderSize + numBands*RecordSize)
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncate file: %w", err)
	}

	r, err := mapRegion(f, filePath, size)
	if err != nil {
		return nil, err
	}

	r.sb = newSuperblock(numBands, blocksPerBand)
	r.writeHeader()

	if err := unix.Msync(r.data, unix.MS_SYNC); err != nil {
		r.closeLocked()
		return nil, fmt.Errorf("msync: %w", err)
	}

	return r, nil
}

// OpenMmapRegion opens an existing region file in dir and validates its
// header against the expected geometry.
func OpenMmapRegion(dir string, numBands, blocksPerBand uint64) (*MmapRegion, error) {
	filePath := filepath.Join(dir, mmapFileName)
	f, err := os.OpenFile(filePath, os.O_RDWR, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", filePath, ErrNotFound)
		}
		return nil, fmt.Errorf("open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.Size() < mmapHeaderSize {
		f.Close()
		return nil, ErrCorrupted
	}

	r, err := mapRegion(f, filePath, info.Size())
	if err != nil {
		return nil, err
	}

	if err := r.readHeader(); err != nil {
		r.closeLocked()
		return nil, err
	}
	if err := checkGeometry(r.sb, numBands, blocksPerBand); err != nil {
		r.closeLocked()
		return nil, err
	}

	return r, nil
}

func mapRegion(f *os.File, path string, size int64) (*MmapRegion, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap: %w", err)
	}

	return &MmapRegion{
		path: path,
		file: f,
		data: data,
	}, nil
}

// readHeader parses and validates the header, then binds the record area.
func (r *MmapRegion) readHeader() error {
	if string(r.data[0:4]) != mmapMagic {
		return ErrCorrupted
	}
	if v := binary.LittleEndian.Uint16(r.data[4:6]); v != mmapVersion {
		return fmt.Errorf("version %d: %w", v, ErrVersionMismatch)
	}

	r.sb.Clean = r.data[6] != 0
	r.sb.NumBands = binary.LittleEndian.Uint64(r.data[8:16])
	r.sb.BlocksPerBand = binary.LittleEndian.Uint64(r.data[16:24])
	id, err := uuid.FromBytes(r.data[24:40])
	if err != nil {
		return fmt.Errorf("device uuid: %w", ErrCorrupted)
	}
	r.sb.UUID = id

	end := uint64(mmapHeaderSize) + r.sb.NumBands*RecordSize
	if end > uint64(len(r.data)) {
		return fmt.Errorf("file holds fewer than %d records: %w", r.sb.NumBands, ErrCorrupted)
	}
	r.recs = records{buf: r.data[mmapHeaderSize:end]}
	return nil
}

// writeHeader writes the superblock into the mapping and binds the records.
func (r *MmapRegion) writeHeader() {
	copy(r.data[0:4], mmapMagic)
	binary.LittleEndian.PutUint16(r.data[4:6], mmapVersion)
	r.writeClean()
	binary.LittleEndian.PutUint64(r.data[8:16], r.sb.NumBands)
	binary.LittleEndian.PutUint64(r.data[16:24], r.sb.BlocksPerBand)
	copy(r.data[24:40], r.sb.UUID[:])

	r.recs = records{buf: r.data[mmapHeaderSize : mmapHeaderSize+r.sb.NumBands*RecordSize]}
}

func (r *MmapRegion) writeClean() {
	if r.sb.Clean {
		r.data[6] = 1
	} else {
		r.data[6] = 0
	}
}

func (r *MmapRegion) NumRecords() uint64 {
	return r.recs.len()
}

func (r *MmapRegion) Record(id uint64) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegionClosed
	}
	return r.recs.record(id)
}

func (r *MmapRegion) Superblock() Superblock {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sb
}

// SetClean updates the clean flag and flushes it synchronously: the flag
// is what tells the next open whether the records can be trusted.
func (r *MmapRegion) SetClean(clean bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegionClosed
	}

	r.sb.Clean = clean
	r.writeClean()

	if err := unix.Msync(r.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync: %w", err)
	}
	return nil
}

// Sync schedules dirty pages for write-back.
func (r *MmapRegion) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegionClosed
	}

	if err := unix.Msync(r.data, unix.MS_ASYNC); err != nil {
		return fmt.Errorf("msync: %w", err)
	}
	return nil
}

// Close syncs and unmaps the region.
func (r *MmapRegion) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.closeLocked()
}

// closeLocked closes the region (caller must hold lock).
func (r *MmapRegion) closeLocked() error {
	if r.closed {
		return nil
	}

	r.closed = true
	r.recs = records{}

	if r.data != nil {
		_ = unix.Msync(r.data, unix.MS_SYNC)

		if err := unix.Munmap(r.data); err != nil {
			return fmt.Errorf("munmap: %w", err)
		}
		r.data = nil
	}

	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return fmt.Errorf("close file: %w", err)
		}
		r.file = nil
	}

	return nil
}

var _ Region = (*MmapRegion)(nil)
