// Package p2l provides the per-band physical-to-logical translation maps.
//
// A P2L map records, for every block of a band, the logical block address
// that was written there. Maps are only needed while a band is open (or is
// being resumed after a clean shutdown), so they come from a bounded pool
// sized to the maximum number of concurrently open bands.
//
// # Reuse
//
// Released maps are recycled through a sync.Pool so that reopening bands does
// not allocate a fresh multi-megabyte slice every time. The pool bound is
// enforced separately with a counter: sync.Pool alone cannot refuse an
// allocation.
//
// # Thread Safety
//
// Get and Put are safe for concurrent use.
package p2l

import (
	"errors"
	"sync"
)

// InvalidLBA marks a P2L entry whose block has not been written.
const InvalidLBA = ^uint64(0)

// EntrySize is the on-media size of one P2L entry in bytes.
const EntrySize = 8

// ErrExhausted is returned by Get when every map in the pool is in use.
var ErrExhausted = errors.New("p2l map pool exhausted")

// Map is a translation map for a single band.
type Map struct {
	entries []uint64
}

// Len returns the number of entries (blocks per band).
func (m *Map) Len() uint64 {
	return uint64(len(m.entries))
}

// Set records the logical address written at block offset off.
func (m *Map) Set(off, lba uint64) {
	m.entries[off] = lba
}

// Get returns the logical address recorded at block offset off.
func (m *Map) Get(off uint64) uint64 {
	return m.entries[off]
}

func (m *Map) reset() {
	for i := range m.entries {
		m.entries[i] = InvalidLBA
	}
}

// Pool hands out at most a fixed number of P2L maps at a time.
type Pool struct {
	mu      sync.Mutex
	free    sync.Pool
	entries uint64
	max     int
	inUse   int
}

// NewPool creates a pool of at most max maps with entriesPerMap entries each.
func NewPool(max int, entriesPerMap uint64) *Pool {
	p := &Pool{
		entries: entriesPerMap,
		max:     max,
	}
	p.free.New = func() any {
		return &Map{entries: make([]uint64, p.entries)}
	}
	return p
}

// Get returns a cleared map, or ErrExhausted if max maps are outstanding.
func (p *Pool) Get() (*Map, error) {
	p.mu.Lock()
	if p.inUse >= p.max {
		p.mu.Unlock()
		return nil, ErrExhausted
	}
	p.inUse++
	p.mu.Unlock()

	m := p.free.Get().(*Map)
	m.reset()
	return m, nil
}

// Put returns m to the pool. Put(nil) is a no-op.
func (p *Pool) Put(m *Map) {
	if m == nil {
		return
	}

	p.mu.Lock()
	if p.inUse > 0 {
		p.inUse--
	}
	p.mu.Unlock()

	p.free.Put(m)
}

// InUse returns the number of outstanding maps.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// Cap returns the maximum number of outstanding maps.
func (p *Pool) Cap() int {
	return p.max
}

// EntriesPerMap returns the number of entries in every map.
func (p *Pool) EntriesPerMap() uint64 {
	return p.entries
}
