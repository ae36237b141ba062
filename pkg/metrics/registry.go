// Package metrics provides the opt-in Prometheus registry and the
// constructors of every metrics implementation.
//
// Metrics are disabled until InitRegistry is called. While disabled, every
// constructor returns nil and callers pass nil down, which turns collection
// into a no-op with zero overhead.
//
// Implementations live in pkg/metrics/prometheus and register themselves
// here on import:
//
//	import _ "github.com/marmos91/dittoftl/pkg/metrics/prometheus"
//
//	metrics.InitRegistry()
//	dev := ftl.NewDevice(ftl.Options{Metrics: metrics.NewFTLMetrics()})
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry enables metrics with a fresh registry holding the Go runtime
// and process collectors. Calling it again replaces the registry.
func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mu.Lock()
	registry = reg
	mu.Unlock()
	return reg
}

// GetRegistry returns the active registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}

// Disable drops the registry. Constructors return nil again afterwards.
func Disable() {
	mu.Lock()
	registry = nil
	mu.Unlock()
}

// Handler serves the active registry in the Prometheus exposition format.
// It responds 404 while metrics are disabled.
func Handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
