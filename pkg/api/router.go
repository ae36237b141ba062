package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/dittoftl/internal/logger"
	"github.com/marmos91/dittoftl/pkg/api/handlers"
	"github.com/marmos91/dittoftl/pkg/metrics"
)

// NewRouter creates the chi router of the status server.
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Band table initialized
//   - GET /bands - Device report, all bands
//   - GET /bands/{id} - One band
//   - GET /metrics - Prometheus metrics (404 when metrics are disabled)
func NewRouter(src handlers.ReportSource) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	health := handlers.NewHealthHandler(src)
	bands := handlers.NewBandsHandler(src)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", health.Liveness)
		r.Get("/ready", health.Readiness)
	})

	r.Route("/bands", func(r chi.Router) {
		r.Get("/", bands.List)
		r.Get("/{id}", bands.Get)
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/bands", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger logs every request with the internal logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Debug("API request completed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.DurationMs(logger.Duration(start)),
		)
	})
}
