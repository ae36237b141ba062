package md

import (
	"encoding/binary"

	"github.com/marmos91/dittoftl/pkg/ftl/band"
)

// Record is a live view of one band's persisted slot.
type Record struct {
	buf []byte
}

// State returns the persisted band state.
func (r *Record) State() band.State {
	return band.State(r.buf[recStateOff])
}

// SetState persists the band state.
func (r *Record) SetState(s band.State) {
	r.buf[recStateOff] = uint8(s)
}

// Type returns the persisted band type.
func (r *Record) Type() band.Type {
	return band.Type(r.buf[recTypeOff])
}

// SetType persists the band type.
func (r *Record) SetType(t band.Type) {
	r.buf[recTypeOff] = uint8(t)
}

// IterOffset returns the persisted write iterator offset.
func (r *Record) IterOffset() uint64 {
	return binary.LittleEndian.Uint64(r.buf[recIterOff:])
}

// SetIterOffset persists the write iterator offset.
func (r *Record) SetIterOffset(off uint64) {
	binary.LittleEndian.PutUint64(r.buf[recIterOff:], off)
}

var _ band.Metadata = (*Record)(nil)
