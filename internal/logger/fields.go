package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so band lifecycle
// events can be aggregated and queried by band, device and step.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Device
	// ========================================================================
	KeyDevice  = "device"  // Device name
	KeyPath    = "path"    // File or directory path
	KeyBackend = "backend" // Metadata region backend: memory, mmap, badger
	KeySize    = "size"    // Size in bytes

	// ========================================================================
	// Band
	// ========================================================================
	KeyBandID   = "band_id"   // Logical band index
	KeyPhysID   = "phys_id"   // Physical reclaim group index
	KeyState    = "state"     // Band state: FREE, OPEN, FULL, CLOSED
	KeyBandType = "band_type" // Band type: compaction, gc
	KeyOffset   = "offset"    // Write iterator offset in blocks
	KeyWriter   = "writer"    // Writer kind: user, gc

	// ========================================================================
	// Band Accounting
	// ========================================================================
	KeyCount     = "count"      // Generic count
	KeyNumBands  = "num_bands"  // Usable logical bands
	KeyNumFree   = "num_free"   // Bands in the free queue
	KeyStillShut = "still_shut" // Bands left in the shut queue after recovery
	KeyOpen      = "open"       // Writer-owned bands found during recovery
	KeyFactor    = "factor"     // Logical bands per physical reclaim group
	KeyDropped   = "dropped"    // Trailing bands excluded by grouping
	KeyLevel     = "level"      // Admission-control level

	// ========================================================================
	// Management Process
	// ========================================================================
	KeyProcess    = "process"     // Management process: startup, shutdown
	KeyStep       = "step"        // Management step name
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
)

// ============================================================================
// Field constructors for type safety
// These functions provide type-safe construction of slog.Attr values.
// ============================================================================

// ----------------------------------------------------------------------------
// Distributed Tracing
// ----------------------------------------------------------------------------

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// ----------------------------------------------------------------------------
// Device
// ----------------------------------------------------------------------------

func Device(name string) slog.Attr {
	return slog.String(KeyDevice, name)
}

func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

func Backend(name string) slog.Attr {
	return slog.String(KeyBackend, name)
}

func Size(s uint64) slog.Attr {
	return slog.Uint64(KeySize, s)
}

// ----------------------------------------------------------------------------
// Band
// ----------------------------------------------------------------------------

// BandID returns a slog.Attr for a logical band index
func BandID(id uint64) slog.Attr {
	return slog.Uint64(KeyBandID, id)
}

// PhysID returns a slog.Attr for a physical reclaim group index
func PhysID(id uint64) slog.Attr {
	return slog.Uint64(KeyPhysID, id)
}

// State returns a slog.Attr for a band state. Accepts anything with a
// String method so callers can pass band.State directly.
func State(s interface{ String() string }) slog.Attr {
	return slog.String(KeyState, s.String())
}

// BandType returns a slog.Attr for a band type
func BandType(t interface{ String() string }) slog.Attr {
	return slog.String(KeyBandType, t.String())
}

// Offset returns a slog.Attr for a write iterator offset
func Offset(off uint64) slog.Attr {
	return slog.Uint64(KeyOffset, off)
}

// Writer returns a slog.Attr for a writer kind
func Writer(kind string) slog.Attr {
	return slog.String(KeyWriter, kind)
}

// ----------------------------------------------------------------------------
// Band Accounting
// ----------------------------------------------------------------------------

func Count(c uint64) slog.Attr {
	return slog.Uint64(KeyCount, c)
}

func NumBands(n uint64) slog.Attr {
	return slog.Uint64(KeyNumBands, n)
}

func NumFree(n uint64) slog.Attr {
	return slog.Uint64(KeyNumFree, n)
}

func StillShut(n uint64) slog.Attr {
	return slog.Uint64(KeyStillShut, n)
}

func Open(n uint64) slog.Attr {
	return slog.Uint64(KeyOpen, n)
}

func Factor(n uint64) slog.Attr {
	return slog.Uint64(KeyFactor, n)
}

func Dropped(n uint64) slog.Attr {
	return slog.Uint64(KeyDropped, n)
}

// LimitLevel returns a slog.Attr for an admission-control level
func LimitLevel(name string) slog.Attr {
	return slog.String(KeyLevel, name)
}

// ----------------------------------------------------------------------------
// Management Process
// ----------------------------------------------------------------------------

// Process returns a slog.Attr for a management process name
func Process(name string) slog.Attr {
	return slog.String(KeyProcess, name)
}

// Step returns a slog.Attr for a management step name
func Step(name string) slog.Attr {
	return slog.String(KeyStep, name)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
