package md

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"
)

// ============================================================================
// Key Namespace
// ============================================================================
//
// Data Type     Prefix  Key Format              Value
// =========================================================================
// Band record   "b:"    b:<id uint64 BE>        16-byte record
// Superblock    "sb:"   sb:                     Superblock (JSON)
//
// Big-endian IDs keep a prefix scan in band order.

const (
	prefixBand       = "b:"
	keySuperblockStr = "sb:"
)

func keyBand(id uint64) []byte {
	key := make([]byte, len(prefixBand)+8)
	copy(key, prefixBand)
	binary.BigEndian.PutUint64(key[len(prefixBand):], id)
	return key
}

func keySuperblock() []byte {
	return []byte(keySuperblockStr)
}

// BadgerRegion keeps band records in BadgerDB.
//
// Records are loaded into memory on open and written back as a batch on
// Sync; between syncs BadgerDB holds the last synced snapshot.
type BadgerRegion struct {
	mu     sync.Mutex
	db     *badgerdb.DB
	recs   records
	sb     Superblock
	closed bool
}

func openBadger(dir string) (*badgerdb.DB, error) {
	opts := badgerdb.DefaultOptions(dir).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return db, nil
}

// CreateBadgerRegion formats a fresh region in the BadgerDB at dir.
func CreateBadgerRegion(dir string, numBands, blocksPerBand uint64) (*BadgerRegion, error) {
	db, err := openBadger(dir)
	if err != nil {
		return nil, err
	}

	if err := db.DropAll(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to drop previous region: %w", err)
	}

	r := &BadgerRegion{
		db:   db,
		recs: records{buf: make([]byte, numBands*RecordSize)},
		sb:   newSuperblock(numBands, blocksPerBand),
	}

	if err := r.syncLocked(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// OpenBadgerRegion loads an existing region from the BadgerDB at dir.
func OpenBadgerRegion(dir string, numBands, blocksPerBand uint64) (*BadgerRegion, error) {
	db, err := openBadger(dir)
	if err != nil {
		return nil, err
	}

	r := &BadgerRegion{db: db}
	if err := r.load(); err != nil {
		db.Close()
		return nil, err
	}
	if err := checkGeometry(r.sb, numBands, blocksPerBand); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *BadgerRegion) load() error {
	return r.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keySuperblock())
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		err = item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &r.sb); err != nil {
				return fmt.Errorf("decode superblock: %w", ErrCorrupted)
			}
			return nil
		})
		if err != nil {
			return err
		}

		r.recs = records{buf: make([]byte, r.sb.NumBands*RecordSize)}

		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixBand)
		it := txn.NewIterator(opts)
		defer it.Close()

		var n uint64
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := binary.BigEndian.Uint64(item.Key()[len(prefixBand):])
			if id >= r.sb.NumBands {
				return fmt.Errorf("record for band %d beyond %d bands: %w", id, r.sb.NumBands, ErrCorrupted)
			}
			err := item.Value(func(val []byte) error {
				if len(val) != RecordSize {
					return fmt.Errorf("record for band %d is %d bytes: %w", id, len(val), ErrCorrupted)
				}
				copy(r.recs.buf[id*RecordSize:], val)
				return nil
			})
			if err != nil {
				return err
			}
			n++
		}
		if n != r.sb.NumBands {
			return fmt.Errorf("found %d of %d band records: %w", n, r.sb.NumBands, ErrCorrupted)
		}
		return nil
	})
}

func (r *BadgerRegion) NumRecords() uint64 {
	return r.recs.len()
}

func (r *BadgerRegion) Record(id uint64) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegionClosed
	}
	return r.recs.record(id)
}

func (r *BadgerRegion) Superblock() Superblock {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sb
}

func (r *BadgerRegion) SetClean(clean bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegionClosed
	}

	r.sb.Clean = clean
	return r.db.Update(func(txn *badgerdb.Txn) error {
		return putSuperblock(txn, &r.sb)
	})
}

func putSuperblock(txn *badgerdb.Txn, sb *Superblock) error {
	data, err := json.Marshal(sb)
	if err != nil {
		return fmt.Errorf("failed to encode superblock: %w", err)
	}
	if err := txn.Set(keySuperblock(), data); err != nil {
		return fmt.Errorf("failed to store superblock: %w", err)
	}
	return nil
}

// Sync writes every record and the superblock in one batch.
func (r *BadgerRegion) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegionClosed
	}
	return r.syncLocked()
}

func (r *BadgerRegion) syncLocked() error {
	wb := r.db.NewWriteBatch()
	defer wb.Cancel()

	for id := uint64(0); id < r.recs.len(); id++ {
		val := make([]byte, RecordSize)
		copy(val, r.recs.buf[id*RecordSize:])
		if err := wb.Set(keyBand(id), val); err != nil {
			return fmt.Errorf("failed to store band %d record: %w", id, err)
		}
	}

	sbData, err := json.Marshal(&r.sb)
	if err != nil {
		return fmt.Errorf("failed to encode superblock: %w", err)
	}
	if err := wb.Set(keySuperblock(), sbData); err != nil {
		return fmt.Errorf("failed to store superblock: %w", err)
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to flush band records: %w", err)
	}
	return nil
}

// Close syncs and closes the database.
func (r *BadgerRegion) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	syncErr := r.syncLocked()
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	return syncErr
}

var _ Region = (*BadgerRegion)(nil)
