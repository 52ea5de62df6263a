package api

import (
	"context"
	"net/http"
	"time"
)

// componentCheckTimeout bounds each dependency probe so a stuck
// component cannot hang the health endpoint.
const componentCheckTimeout = 2 * time.Second

// handleHealth reports the server status and the health of each
// dependency. The endpoint itself always answers 200; the payload
// carries the degraded details.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{
		"database": s.checkComponent(r.Context(), s.dbCheck),
		"mqtt":     s.checkComponent(r.Context(), s.mqttCheck),
		"influxdb": s.checkComponent(r.Context(), s.influxCheck),
	}

	overall := "ok"
	for _, st := range components {
		if st != "ok" && st != "disabled" {
			overall = "degraded"
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     overall,
		"version":    s.version,
		"time":       time.Now().UTC().Format(time.RFC3339),
		"components": components,
	})
}

// checkFunc probes one dependency. A nil return from the outer lookup
// means the dependency is not wired in this deployment.
type checkFunc func(ctx context.Context) error

func (s *Server) checkComponent(ctx context.Context, lookup func() checkFunc) string {
	check := lookup()
	if check == nil {
		return "disabled"
	}

	ctx, cancel := context.WithTimeout(ctx, componentCheckTimeout)
	defer cancel()

	if err := check(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}

func (s *Server) dbCheck() checkFunc {
	if s.db == nil {
		return nil
	}
	return s.db.HealthCheck
}

func (s *Server) mqttCheck() checkFunc {
	if s.mqtt == nil {
		return nil
	}
	return s.mqtt.HealthCheck
}

func (s *Server) influxCheck() checkFunc {
	if s.influx == nil {
		return nil
	}
	return s.influx.HealthCheck
}
