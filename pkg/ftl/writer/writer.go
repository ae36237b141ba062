// Package writer holds the writer handles that own bands once the device is
// open: one for user data and compaction, one for garbage collection.
//
// A writer holds at most one current band and one preallocated next band.
// Every other band it owns sits in its full-bands queue until reclaimed.
// Writers are created before the band table and outlive it.
package writer

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittoftl/pkg/ftl/band"
)

// Kind identifies the role a writer plays.
type Kind uint8

const (
	// KindUser writes user data and compaction output.
	KindUser Kind = iota

	// KindGC writes data relocated by garbage collection.
	KindGC
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindGC:
		return "gc"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// BandType returns the band type this writer fills.
func (k Kind) BandType() band.Type {
	if k == KindGC {
		return band.TypeGC
	}
	return band.TypeCompaction
}

// ErrWriterSlotsFull is returned when an OPEN band is attached to a writer
// whose current and next slots are both taken.
var ErrWriterSlotsFull = errors.New("writer has no free open-band slot")

// Writer is a band consumer.
type Writer struct {
	Kind Kind

	// Band is the band being written, or nil.
	Band *band.Band

	// NextBand is the preallocated successor, or nil.
	NextBand *band.Band

	// FullBands holds completed bands awaiting reclamation.
	FullBands *band.Queue

	// NumBands counts every band the writer owns.
	NumBands uint64
}

// New returns an idle writer of the given kind.
func New(kind Kind) *Writer {
	return &Writer{
		Kind:      kind,
		FullBands: band.NewQueue(kind.String() + "_full_bands"),
	}
}

// Attach hands b to the writer. A FULL band joins the full queue; an OPEN
// band takes the current slot, or the next slot if current is occupied.
func (w *Writer) Attach(b *band.Band) error {
	switch s := b.State(); s {
	case band.StateFull:
		w.FullBands.PushBack(b)
	case band.StateOpen:
		switch {
		case w.Band == nil:
			w.Band = b
		case w.NextBand == nil:
			w.NextBand = b
		default:
			return fmt.Errorf("%s writer, band %d: %w", w.Kind, b.ID, ErrWriterSlotsFull)
		}
	default:
		panic(fmt.Sprintf("band %d attached to %s writer in state %s", b.ID, w.Kind, s))
	}

	w.NumBands++
	b.SetOwner(w)
	return nil
}

// BandStateChange keeps the writer's slots in step with its bands.
//
// A band becoming FULL leaves the current slot for the full queue and the
// next band is promoted. A band becoming CLOSED leaves the writer entirely.
func (w *Writer) BandStateChange(b *band.Band) {
	switch b.State() {
	case band.StateFull:
		switch b {
		case w.Band:
			w.Band, w.NextBand = w.NextBand, nil
		case w.NextBand:
			w.NextBand = nil
		}
		if !w.FullBands.Contains(b) {
			w.FullBands.PushBack(b)
		}
	case band.StateClosed:
		switch {
		case w.FullBands.Contains(b):
			w.FullBands.Remove(b)
		case b == w.Band:
			w.Band, w.NextBand = w.NextBand, nil
		case b == w.NextBand:
			w.NextBand = nil
		}
		w.NumBands--
		b.ClearOwner(w)
	}
}

// OpenBands returns the number of occupied open slots.
func (w *Writer) OpenBands() int {
	n := 0
	if w.Band != nil {
		n++
	}
	if w.NextBand != nil {
		n++
	}
	return n
}

// Reset drops every band reference. The bands themselves are untouched.
func (w *Writer) Reset() {
	w.Band = nil
	w.NextBand = nil
	w.FullBands.Reset()
	w.NumBands = 0
}

var _ band.Owner = (*Writer)(nil)
