// Package bdev provides the base block device the FTL lays bands out on.
//
// Only capacity is consumed at device open: the band grouper needs the total
// block count to pick a grouping factor. Data I/O is the data path's concern.
package bdev

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrInvalidBlockSize is returned for a zero or non power-of-two block size.
	ErrInvalidBlockSize = errors.New("invalid block size")

	// ErrTooSmall is returned when the device holds less than one block.
	ErrTooSmall = errors.New("base device smaller than one block")
)

// Device is the base block device.
type Device interface {
	// NumBlocks returns the total addressable block count.
	NumBlocks() uint64

	// BlockSize returns the block size in bytes.
	BlockSize() uint64

	// Close releases the device.
	Close() error
}

func checkBlockSize(bs uint64) error {
	if bs == 0 || bs&(bs-1) != 0 {
		return fmt.Errorf("%d: %w", bs, ErrInvalidBlockSize)
	}
	return nil
}

// ============================================================================
// Memory
// ============================================================================

// Memory is a capacity-only device with no backing storage.
type Memory struct {
	numBlocks uint64
	blockSize uint64
}

// NewMemory returns a device of numBlocks blocks of blockSize bytes.
func NewMemory(numBlocks, blockSize uint64) (*Memory, error) {
	if err := checkBlockSize(blockSize); err != nil {
		return nil, err
	}
	if numBlocks == 0 {
		return nil, ErrTooSmall
	}
	return &Memory{numBlocks: numBlocks, blockSize: blockSize}, nil
}

func (m *Memory) NumBlocks() uint64 { return m.numBlocks }
func (m *Memory) BlockSize() uint64 { return m.blockSize }
func (m *Memory) Close() error      { return nil }

// ============================================================================
// File
// ============================================================================

// File is a device backed by a regular file or block special file.
type File struct {
	f         *os.File
	path      string
	numBlocks uint64
	blockSize uint64
}

// CreateFile creates (or grows) a sparse file of size bytes at path and
// opens it as a device. An existing larger file is left as is.
func CreateFile(path string, size, blockSize uint64) (*File, error) {
	if err := checkBlockSize(blockSize); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("create base device: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat base device: %w", err)
	}
	if uint64(info.Size()) < size {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, fmt.Errorf("size base device: %w", err)
		}
	}
	f.Close()

	return OpenFile(path, blockSize)
}

// OpenFile opens an existing file at path as a device. A trailing partial
// block is not addressable.
func OpenFile(path string, blockSize uint64) (*File, error) {
	if err := checkBlockSize(blockSize); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open base device: %w", err)
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("size base device: %w", err)
	}

	n := uint64(size) / blockSize
	if n == 0 {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrTooSmall)
	}

	return &File{f: f, path: path, numBlocks: n, blockSize: blockSize}, nil
}

// Path returns the path the device was opened from.
func (d *File) Path() string { return d.path }

func (d *File) NumBlocks() uint64 { return d.numBlocks }
func (d *File) BlockSize() uint64 { return d.blockSize }

func (d *File) Close() error {
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

var (
	_ Device = (*Memory)(nil)
	_ Device = (*File)(nil)
)
