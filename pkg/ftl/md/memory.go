package md

// MemoryRegion keeps band metadata in process memory only.
type MemoryRegion struct {
	recs   records
	sb     Superblock
	closed bool
}

// NewMemoryRegion returns a freshly formatted in-memory region. Every record
// starts zeroed, which decodes as a FREE band with no type.
func NewMemoryRegion(numBands, blocksPerBand uint64) *MemoryRegion {
	return &MemoryRegion{
		recs: records{buf: make([]byte, numBands*RecordSize)},
		sb:   newSuperblock(numBands, blocksPerBand),
	}
}

func (m *MemoryRegion) NumRecords() uint64 {
	return m.recs.len()
}

func (m *MemoryRegion) Record(id uint64) (*Record, error) {
	if m.closed {
		return nil, ErrRegionClosed
	}
	return m.recs.record(id)
}

func (m *MemoryRegion) Superblock() Superblock {
	return m.sb
}

func (m *MemoryRegion) SetClean(clean bool) error {
	if m.closed {
		return ErrRegionClosed
	}
	m.sb.Clean = clean
	return nil
}

func (m *MemoryRegion) Sync() error {
	if m.closed {
		return ErrRegionClosed
	}
	return nil
}

func (m *MemoryRegion) Close() error {
	m.closed = true
	return nil
}

var _ Region = (*MemoryRegion)(nil)
