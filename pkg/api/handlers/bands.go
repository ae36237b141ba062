package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// BandsHandler serves the band report.
type BandsHandler struct {
	src ReportSource
}

// NewBandsHandler creates a bands handler.
func NewBandsHandler(src ReportSource) *BandsHandler {
	return &BandsHandler{src: src}
}

// List handles GET /bands.
func (h *BandsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.src == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse("no device attached"))
		return
	}
	writeJSON(w, http.StatusOK, okResponse(h.src.Report()))
}

// Get handles GET /bands/{id}. Dropped bands are reported too.
func (h *BandsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.src == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse("no device attached"))
		return
	}

	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid band id"))
		return
	}

	rep := h.src.Report()
	if id >= uint64(len(rep.Bands)) {
		writeJSON(w, http.StatusNotFound, errorResponse(fmt.Sprintf("band %d not found", id)))
		return
	}
	writeJSON(w, http.StatusOK, okResponse(rep.Bands[id]))
}
