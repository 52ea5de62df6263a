package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/PhucHuwu/iot-core/internal/status"
	"github.com/PhucHuwu/iot-core/internal/telemetry"
)

// handleStatus classifies the latest reading against the stored
// thresholds.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.status.Current(r.Context())
	if errors.Is(err, telemetry.ErrNotFound) {
		writeNotFound(w, "no readings recorded yet")
		return
	}
	if err != nil {
		s.logger.Error("classifying latest reading failed", "error", err)
		writeInternalError(w, "failed to classify latest reading")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// handleGetThresholds returns the full threshold set.
func (s *Server) handleGetThresholds(w http.ResponseWriter, r *http.Request) {
	thresholds, err := s.thresholds.Get(r.Context())
	if err != nil {
		s.logger.Error("fetching thresholds failed", "error", err)
		writeInternalError(w, "failed to fetch thresholds")
		return
	}

	writeJSON(w, http.StatusOK, thresholds)
}

// handlePutThresholds replaces the full threshold set.
func (s *Server) handlePutThresholds(w http.ResponseWriter, r *http.Request) {
	var thresholds status.Thresholds
	if err := json.NewDecoder(r.Body).Decode(&thresholds); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	if err := s.thresholds.Update(r.Context(), &thresholds); err != nil {
		if errors.Is(err, status.ErrInvalidBand) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		s.logger.Error("updating thresholds failed", "error", err)
		writeInternalError(w, "failed to update thresholds")
		return
	}

	writeJSON(w, http.StatusOK, thresholds)
}
