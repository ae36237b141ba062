package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for band lifecycle spans.
const (
	// ========================================================================
	// Device attributes
	// ========================================================================
	AttrDevice        = "ftl.device"
	AttrBackend       = "ftl.md.backend"
	AttrNumBands      = "ftl.bands.total"
	AttrBlocksPerBand = "ftl.bands.blocks_per_band"
	AttrCreate        = "ftl.create"
	AttrClean         = "ftl.superblock.clean"

	// ========================================================================
	// Band accounting attributes
	// ========================================================================
	AttrNumFree   = "ftl.bands.free"
	AttrStillShut = "ftl.bands.still_shut"
	AttrOpen      = "ftl.bands.open"
	AttrFactor    = "ftl.group.factor"
	AttrDropped   = "ftl.group.dropped"

	// ========================================================================
	// Management attributes
	// ========================================================================
	AttrProcess = "mngt.process"
	AttrStep    = "mngt.step"
	AttrBandID  = "ftl.band.id"
)

// Span name prefixes.
// Format: mngt.<process> for a whole management process,
// mngt.<process>.<step> for a single step.
const (
	SpanMngt = "mngt"
)

// Device returns an attribute for the device name
func Device(name string) attribute.KeyValue {
	return attribute.String(AttrDevice, name)
}

// Backend returns an attribute for the metadata region backend
func Backend(name string) attribute.KeyValue {
	return attribute.String(AttrBackend, name)
}

// NumBands returns an attribute for the usable band count
func NumBands(n uint64) attribute.KeyValue {
	return attribute.Int64(AttrNumBands, int64(n))
}

// BlocksPerBand returns an attribute for the band size in blocks
func BlocksPerBand(n uint64) attribute.KeyValue {
	return attribute.Int64(AttrBlocksPerBand, int64(n))
}

// Create returns an attribute for the create-mode flag
func Create(create bool) attribute.KeyValue {
	return attribute.Bool(AttrCreate, create)
}

// Clean returns an attribute for the superblock clean flag
func Clean(clean bool) attribute.KeyValue {
	return attribute.Bool(AttrClean, clean)
}

func NumFree(n uint64) attribute.KeyValue {
	return attribute.Int64(AttrNumFree, int64(n))
}

func StillShut(n uint64) attribute.KeyValue {
	return attribute.Int64(AttrStillShut, int64(n))
}

func Open(n uint64) attribute.KeyValue {
	return attribute.Int64(AttrOpen, int64(n))
}

func Factor(n uint64) attribute.KeyValue {
	return attribute.Int64(AttrFactor, int64(n))
}

func Dropped(n uint64) attribute.KeyValue {
	return attribute.Int64(AttrDropped, int64(n))
}

// BandID returns an attribute for a logical band index
func BandID(id uint64) attribute.KeyValue {
	return attribute.Int64(AttrBandID, int64(id))
}

// Process returns an attribute for a management process name
func Process(name string) attribute.KeyValue {
	return attribute.String(AttrProcess, name)
}

// Step returns an attribute for a management step name
func Step(name string) attribute.KeyValue {
	return attribute.String(AttrStep, name)
}

// StartProcessSpan starts the root span of a management process.
func StartProcessSpan(ctx context.Context, process string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{Process(process)}, attrs...)
	return StartSpan(ctx, SpanMngt+"."+process, trace.WithAttributes(allAttrs...))
}

// StartStepSpan starts a span for one step of a management process.
func StartStepSpan(ctx context.Context, process, step string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{Process(process), Step(step)}, attrs...)
	return StartSpan(ctx, SpanMngt+"."+process+"."+step, trace.WithAttributes(allAttrs...))
}
