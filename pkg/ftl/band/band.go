// Package band defines the band descriptor, the band table, and the
// index-threaded queues bands move between during their lifecycle.
//
// A band is the FTL's unit of physical allocation and reclamation. The table
// is allocated once per device open and never resized; only band state,
// ownership and queue membership change afterwards.
package band

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittoftl/pkg/ftl/p2l"
)

// MaxTableSize bounds the number of descriptors a table may hold.
const MaxTableSize = 1 << 24

var (
	// ErrEmptyTable is returned when a table is requested for zero bands.
	ErrEmptyTable = errors.New("band table must hold at least one band")

	// ErrTableTooLarge is returned when the band count exceeds MaxTableSize.
	ErrTableTooLarge = errors.New("band table too large")

	// ErrIterOutOfRange is returned when a write iterator offset lies past the
	// band's user-data area.
	ErrIterOutOfRange = errors.New("band iterator offset out of range")

	// ErrNotFree is returned by a free-count recount when a band in the free
	// queue is not in StateFree.
	ErrNotFree = errors.New("band in free queue is not free")
)

// Metadata is a band's persisted slot in the band-metadata region.
type Metadata interface {
	State() State
	SetState(State)
	Type() Type
	SetType(Type)
	IterOffset() uint64
	SetIterOffset(uint64)
}

// Owner is notified after every state transition of a band it holds.
type Owner interface {
	BandStateChange(b *Band)
}

// Band is one erasable allocation unit.
type Band struct {
	// ID is the logical band index, stable for the table lifetime.
	ID uint64

	// PhysID is the physical reclaim group the band belongs to.
	PhysID uint64

	// StartAddr is the first block of the band on the base device.
	StartAddr uint64

	// TailMDAddr is the first block of the band's tail metadata.
	TailMDAddr uint64

	// MD is the band's bound metadata slot; nil until metadata binding runs.
	MD Metadata

	// Dropped marks trailing bands that could not form a complete physical
	// group. Dropped bands never take part in allocation again.
	Dropped bool

	owner    Owner
	p2lMap   *p2l.Map
	p2lPool  *p2l.Pool
	iterAddr uint64

	tbl  *Table
	link link
}

// State returns the persisted band state.
func (b *Band) State() State {
	return b.MD.State()
}

// Type returns the persisted band type.
func (b *Band) Type() Type {
	return b.MD.Type()
}

// Queue returns the queue the band is currently linked into, or nil.
func (b *Band) Queue() *Queue {
	return b.link.in
}

// Owner returns the writer currently holding the band, or nil.
func (b *Band) Owner() Owner {
	return b.owner
}

// SetOwner installs o as the band's owner.
func (b *Band) SetOwner(o Owner) {
	if b.owner != nil && b.owner != o {
		panic(fmt.Sprintf("band %d already owned", b.ID))
	}
	b.owner = o
}

// ClearOwner drops the owner back-reference held by o.
func (b *Band) ClearOwner(o Owner) {
	if b.owner != o {
		panic(fmt.Sprintf("band %d cleared by a non-owner", b.ID))
	}
	b.owner = nil
}

// NumUserBlocks returns the number of blocks available for data, excluding
// tail metadata. Zero until the band has been given an address range.
func (b *Band) NumUserBlocks() uint64 {
	return b.TailMDAddr - b.StartAddr
}

// SetState moves the band to state s, persisting it in the metadata slot.
//
// Entering StateFree requires StateClosed and links the band into the free
// queue. Entering StateClosed releases the band's P2L map. The owner, if any,
// is notified after the new state is persisted.
func (b *Band) SetState(s State) {
	cur := b.MD.State()

	switch s {
	case StateFree:
		if cur != StateClosed {
			panic(fmt.Sprintf("band %d: FREE entered from %s", b.ID, cur))
		}
	case StateClosed:
		if cur != StateClosed {
			b.ReleaseP2LMap()
		}
	}

	b.MD.SetState(s)

	if s == StateFree {
		b.tbl.markFree(b)
	}

	if b.owner != nil {
		b.owner.BandStateChange(b)
	}
}

// AllocP2LMap takes a translation map from pool for this band.
func (b *Band) AllocP2LMap(pool *p2l.Pool) error {
	if b.p2lMap != nil {
		return nil
	}
	m, err := pool.Get()
	if err != nil {
		return err
	}
	b.p2lMap = m
	b.p2lPool = pool
	return nil
}

// ReleaseP2LMap returns the band's translation map to its pool.
func (b *Band) ReleaseP2LMap() {
	if b.p2lMap == nil {
		return
	}
	b.p2lPool.Put(b.p2lMap)
	b.p2lMap = nil
	b.p2lPool = nil
}

// P2LMap returns the band's translation map, or nil if none is allocated.
func (b *Band) P2LMap() *p2l.Map {
	return b.p2lMap
}

// IterInit rewinds the write iterator to the start of the band.
func (b *Band) IterInit() {
	b.MD.SetIterOffset(0)
	b.iterAddr = b.StartAddr
}

// IterSet advances the write iterator to offset blocks past the band start.
func (b *Band) IterSet(offset uint64) error {
	if offset > b.NumUserBlocks() {
		return fmt.Errorf("band %d: offset %d > %d: %w", b.ID, offset, b.NumUserBlocks(), ErrIterOutOfRange)
	}
	b.MD.SetIterOffset(offset)
	b.iterAddr = b.StartAddr + offset
	return nil
}

// Iter returns the write iterator as a block offset and absolute address.
func (b *Band) Iter() (offset, addr uint64) {
	return b.MD.IterOffset(), b.iterAddr
}

// Table is the fixed-size array of band descriptors plus the device-wide
// free and shut queues.
type Table struct {
	bands   []Band
	free    *Queue
	shut    *Queue
	numFree uint64
	onFree  func()
}

// NewTable allocates n descriptors with IDs 0..n-1. Bands are not queued.
func NewTable(n uint64) (*Table, error) {
	if n == 0 {
		return nil, ErrEmptyTable
	}
	if n > MaxTableSize {
		return nil, fmt.Errorf("%d bands: %w", n, ErrTableTooLarge)
	}

	t := &Table{
		bands: make([]Band, n),
		free:  NewQueue("free_bands"),
		shut:  NewQueue("shut_bands"),
	}
	for i := range t.bands {
		b := &t.bands[i]
		b.ID = uint64(i)
		b.tbl = t
		b.link = link{prev: noBand, next: noBand}
	}
	return t, nil
}

// Len returns the number of descriptors, including dropped bands.
func (t *Table) Len() uint64 {
	return uint64(len(t.bands))
}

// Band returns the descriptor with the given ID.
func (t *Table) Band(id uint64) *Band {
	return &t.bands[id]
}

// Free returns the free-bands queue.
func (t *Table) Free() *Queue {
	return t.free
}

// Shut returns the shut-bands queue.
func (t *Table) Shut() *Queue {
	return t.shut
}

// NumFree returns the free-band counter.
func (t *Table) NumFree() uint64 {
	return t.numFree
}

// SetFreeHook registers fn to run each time a band becomes free.
func (t *Table) SetFreeHook(fn func()) {
	t.onFree = fn
}

// RecountFree recomputes the free counter by walking the free queue. Every
// queued band must be in StateFree.
func (t *Table) RecountFree() (uint64, error) {
	var n uint64
	var err error
	t.free.Each(func(b *Band) bool {
		if s := b.State(); s != StateFree {
			err = fmt.Errorf("band %d is %s: %w", b.ID, s, ErrNotFree)
			return false
		}
		n++
		return true
	})
	if err != nil {
		return 0, err
	}
	t.numFree = n
	return n, nil
}

func (t *Table) markFree(b *Band) {
	t.free.PushBack(b)
	t.numFree++
	if t.onFree != nil {
		t.onFree()
	}
}
