package band

// MemMetadata is an in-memory Metadata implementation for tests and tools
// that do not need persistence.
type MemMetadata struct {
	St     State
	Ty     Type
	Offset uint64
}

func (m *MemMetadata) State() State { return m.St }

func (m *MemMetadata) SetState(s State) { m.St = s }

func (m *MemMetadata) Type() Type { return m.Ty }

func (m *MemMetadata) SetType(t Type) { m.Ty = t }

func (m *MemMetadata) IterOffset() uint64 { return m.Offset }

func (m *MemMetadata) SetIterOffset(o uint64) { m.Offset = o }

var _ Metadata = (*MemMetadata)(nil)
