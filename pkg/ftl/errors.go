package ftl

import (
	"errors"
	"fmt"
)

// Band lifecycle errors. Every one of them aborts the device open: the step
// sequencer stops at the failing stage and the device is not usable.
var (
	// ErrNoMemory indicates the band table or a band translation map could
	// not be allocated.
	ErrNoMemory = errors.New("out of memory")

	// ErrInvalidGeometry indicates the configured block, band and reclaim
	// unit sizes cannot describe a device.
	ErrInvalidGeometry = errors.New("invalid device geometry")

	// ErrNotInitialized indicates a stage ran before the stage it depends on.
	ErrNotInitialized = errors.New("device stage not initialized")

	// ErrTooManyOpenBands indicates recovery found more OPEN or FULL bands
	// than can be in flight at once. The band metadata is corrupt.
	ErrTooManyOpenBands = errors.New("too many open bands")

	// ErrInvalidBandType indicates a writer-owned band carries a type no
	// writer fills. The band metadata is corrupt.
	ErrInvalidBandType = errors.New("invalid band type")

	// ErrFreeBandState indicates the free queue holds a band that is not FREE.
	ErrFreeBandState = errors.New("free queue holds a non-free band")

	// ErrInconsistentBandList indicates the reconciled band counts do not add
	// up to the number of usable bands.
	ErrInconsistentBandList = errors.New("inconsistent band list")
)

// StageError wraps the failure of one lifecycle stage.
//
//	err := &StageError{Stage: StageInitBands, Err: ErrNoMemory}
//	errors.Is(err, ErrNoMemory) // true
type StageError struct {
	// Stage is the stage name, one of the Stage* constants.
	Stage string

	// Device is the device name, for log correlation.
	Device string

	// Err is the underlying error.
	Err error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s (device=%s)", e.Stage, e.Err, e.Device)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// BindError reports the band whose metadata slot could not be bound.
// Bands after BandID are left unbound.
type BindError struct {
	BandID uint64
	Err    error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind metadata for band %d: %s", e.BandID, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}
