package band

import "fmt"

// State is the persisted lifecycle state of a band.
//
// The numeric values are part of the metadata region format and must not be
// reordered.
type State uint8

const (
	// StateFree means the band is erased and may be handed to a writer.
	StateFree State = iota

	// StatePrep is used by the data path while a band is being prepared
	// for writing. The lifecycle stages never produce it.
	StatePrep

	// StateOpen means the band is accepting writes from exactly one writer.
	StateOpen

	// StateFull means every block has been written; the band is still owned
	// by the writer that filled it and awaits reclamation.
	StateFull

	// StateClosed is transient: the band is being reclaimed or erased.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "FREE"
	case StatePrep:
		return "PREP"
	case StateOpen:
		return "OPEN"
	case StateFull:
		return "FULL"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

// IsWriterOwned reports whether a band in this state survives recovery as
// work in progress attached to a writer.
func (s State) IsWriterOwned() bool {
	return s == StateOpen || s == StateFull
}

// Type identifies which writer fills a band. Persisted as a single byte.
type Type uint8

const (
	// TypeCompaction bands receive user data.
	TypeCompaction Type = 1

	// TypeGC bands receive data relocated by garbage collection.
	TypeGC Type = 2
)

func (t Type) String() string {
	switch t {
	case TypeCompaction:
		return "COMPACTION"
	case TypeGC:
		return "GC"
	default:
		return fmt.Sprintf("INVALID(%d)", uint8(t))
	}
}

// Valid reports whether t names a known writer.
func (t Type) Valid() bool {
	return t == TypeCompaction || t == TypeGC
}
