package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Sensor readings
		r.Route("/readings", func(r chi.Router) {
			r.Get("/", s.handleListReadings)
			r.Get("/latest", s.handleLatestReading)
			r.Get("/stats", s.handleReadingStats)
		})

		// Threshold classification of the latest reading
		r.Get("/status", s.handleStatus)

		r.Route("/thresholds", func(r chi.Router) {
			r.Get("/", s.handleGetThresholds)
			r.Put("/", s.handlePutThresholds)
		})

		// LED control
		r.Route("/control", func(r chi.Router) {
			r.Get("/status", s.handleControlStatus)
			r.Post("/{device}", s.handleSendCommand)
		})

		// Action history
		r.Route("/actions", func(r chi.Router) {
			r.Get("/", s.handleListActions)
			r.Get("/stats", s.handleActionStats)
		})
	})

	return r
}
