package metrics

import (
	"github.com/marmos91/dittoftl/pkg/ftl"
	"github.com/marmos91/dittoftl/pkg/ftl/mngt"
)

// NewFTLMetrics creates a Prometheus-backed ftl.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called) or no
// implementation has been registered. Note the return is an untyped nil
// interface, so ftl.Options.Metrics stays disabled.
//
//	dev := ftl.NewDevice(ftl.Options{Metrics: metrics.NewFTLMetrics()})
func NewFTLMetrics() ftl.Metrics {
	if !IsEnabled() || newPrometheusFTLMetrics == nil {
		return nil
	}
	return newPrometheusFTLMetrics()
}

// NewStepMetrics creates a Prometheus-backed mngt.Metrics instance, or nil
// when metrics are disabled.
//
//	p := mngt.Startup(opts)
//	p.Metrics = metrics.NewStepMetrics()
func NewStepMetrics() mngt.Metrics {
	if !IsEnabled() || newPrometheusStepMetrics == nil {
		return nil
	}
	return newPrometheusStepMetrics()
}

// Constructors are implemented in pkg/metrics/prometheus/ftl.go. This
// indirection keeps this package free of implementation imports.
var (
	newPrometheusFTLMetrics  func() ftl.Metrics
	newPrometheusStepMetrics func() mngt.Metrics
)

// RegisterFTLMetricsConstructor registers the Prometheus ftl.Metrics
// constructor. Called by pkg/metrics/prometheus during initialization.
func RegisterFTLMetricsConstructor(constructor func() ftl.Metrics) {
	newPrometheusFTLMetrics = constructor
}

// RegisterStepMetricsConstructor registers the Prometheus mngt.Metrics
// constructor. Called by pkg/metrics/prometheus during initialization.
func RegisterStepMetricsConstructor(constructor func() mngt.Metrics) {
	newPrometheusStepMetrics = constructor
}
