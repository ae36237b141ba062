// Package handlers implements the status API endpoints.
package handlers

import (
	"net/http"

	"github.com/marmos91/dittoftl/pkg/ftl"
)

// ReportSource provides device reports. *ftl.Device implements it; reads
// are safe while no management process runs.
type ReportSource interface {
	Report() ftl.Report
}

// HealthHandler handles the health probes.
type HealthHandler struct {
	src ReportSource
}

// NewHealthHandler creates a health handler. src may be nil, in which case
// the device is never ready.
func NewHealthHandler(src ReportSource) *HealthHandler {
	return &HealthHandler{src: src}
}

// Liveness handles GET /health. It succeeds while the server responds.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "dittoftl",
	}))
}

// Readiness handles GET /health/ready. The device is ready once its band
// table is initialized; the free band level is reported either way.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.src == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("no device attached"))
		return
	}

	rep := h.src.Report()
	if len(rep.Bands) == 0 {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("band table not initialized"))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"device":    rep.Device,
		"num_bands": rep.NumBands,
		"num_free":  rep.NumFree,
		"level":     rep.Level,
	}))
}
