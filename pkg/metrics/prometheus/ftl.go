// Package prometheus implements the metrics interfaces of pkg/ftl and
// pkg/ftl/mngt with Prometheus collectors. Importing it registers the
// constructors used by pkg/metrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittoftl/pkg/ftl"
	"github.com/marmos91/dittoftl/pkg/ftl/mngt"
	"github.com/marmos91/dittoftl/pkg/metrics"
)

func init() {
	metrics.RegisterFTLMetricsConstructor(func() ftl.Metrics {
		return NewFTLMetrics(metrics.GetRegistry())
	})
	metrics.RegisterStepMetricsConstructor(func() mngt.Metrics {
		return NewStepMetrics(metrics.GetRegistry())
	})
}

// ============================================================================
// Band Accounting
// ============================================================================

// FTLMetrics is the Prometheus implementation of ftl.Metrics.
type FTLMetrics struct {
	bands           *prometheus.GaugeVec
	groupFactor     *prometheus.GaugeVec
	physGroups      *prometheus.GaugeVec
	droppedBands    *prometheus.GaugeVec
	reconciliations *prometheus.CounterVec
	limitLevel      *prometheus.GaugeVec
	freeBands       *prometheus.GaugeVec
	limitHits       *prometheus.CounterVec
}

// NewFTLMetrics registers the band accounting collectors with reg.
func NewFTLMetrics(reg prometheus.Registerer) *FTLMetrics {
	f := promauto.With(reg)

	return &FTLMetrics{
		bands: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittoftl_bands",
				Help: "Bands by reconciliation outcome after the last device open",
			},
			[]string{"device", "state"}, // "shut", "open", "free"
		),
		groupFactor: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittoftl_group_factor",
				Help: "Logical bands per physical reclaim group",
			},
			[]string{"device"},
		),
		physGroups: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittoftl_physical_groups",
				Help: "Number of complete physical reclaim groups",
			},
			[]string{"device"},
		),
		droppedBands: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittoftl_dropped_bands",
				Help: "Trailing bands dropped because they cannot fill a physical group",
			},
			[]string{"device"},
		),
		reconciliations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoftl_reconciliations_total",
				Help: "Total number of successful band recovery passes",
			},
			[]string{"device"},
		),
		limitLevel: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittoftl_limit_level",
				Help: "Current admission-control level (0=crit, 1=high, 2=low, 3=start, 4=none)",
			},
			[]string{"device"},
		),
		freeBands: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittoftl_free_bands",
				Help: "Bands in the free queue",
			},
			[]string{"device"},
		),
		limitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoftl_limit_hits_total",
				Help: "Number of times each admission-control level was selected",
			},
			[]string{"device", "level"},
		),
	}
}

// RecordGrouping records the physical layout chosen for a device.
func (m *FTLMetrics) RecordGrouping(device string, g ftl.Grouping) {
	if m == nil {
		return
	}
	m.groupFactor.WithLabelValues(device).Set(float64(g.Factor))
	m.physGroups.WithLabelValues(device).Set(float64(g.NumPhys))
	m.droppedBands.WithLabelValues(device).Set(float64(g.Dropped))
}

// RecordReconciliation records the outcome of a recovery pass.
func (m *FTLMetrics) RecordReconciliation(device string, r ftl.Reconciliation) {
	if m == nil {
		return
	}
	m.bands.WithLabelValues(device, "shut").Set(float64(r.StillShut))
	m.bands.WithLabelValues(device, "open").Set(float64(r.Open))
	m.bands.WithLabelValues(device, "free").Set(float64(r.Free))
	m.reconciliations.WithLabelValues(device).Inc()
}

// RecordLimit records a recomputed admission-control level.
func (m *FTLMetrics) RecordLimit(device string, level ftl.Level, numFree uint64) {
	if m == nil {
		return
	}
	m.limitLevel.WithLabelValues(device).Set(float64(level))
	m.freeBands.WithLabelValues(device).Set(float64(numFree))
	if level != ftl.LevelNone {
		m.limitHits.WithLabelValues(device, level.String()).Inc()
	}
}

var _ ftl.Metrics = (*FTLMetrics)(nil)

// ============================================================================
// Management Steps
// ============================================================================

// StepMetrics is the Prometheus implementation of mngt.Metrics.
type StepMetrics struct {
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

// NewStepMetrics registers the step collectors with reg.
func NewStepMetrics(reg prometheus.Registerer) *StepMetrics {
	f := promauto.With(reg)

	return &StepMetrics{
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittoftl_mngt_step_duration_milliseconds",
				Help: "Duration of management steps in milliseconds",
				Buckets: []float64{
					0.1,   // 100us - in-memory stages
					1,     // 1ms
					10,    // 10ms
					100,   // 100ms - region sync
					1000,  // 1s
					10000, // 10s - large band tables
				},
			},
			[]string{"process", "step"},
		),
		failures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoftl_mngt_step_failures_total",
				Help: "Total number of failed management steps",
			},
			[]string{"process", "step"},
		),
	}
}

// ObserveStep records one step execution.
func (m *StepMetrics) ObserveStep(process, step string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(process, step).Observe(float64(d.Microseconds()) / 1000.0)
	if err != nil {
		m.failures.WithLabelValues(process, step).Inc()
	}
}

var _ mngt.Metrics = (*StepMetrics)(nil)
