package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/PhucHuwu/iot-core/internal/control"
	"github.com/PhucHuwu/iot-core/internal/timeexpr"
)

// commandRequest is the body of POST /api/v1/control/{device}.
type commandRequest struct {
	Action string `json:"action"`
}

// commandResponse reports whether a command was accepted for delivery.
// Accepted never means the device has acted; confirmation arrives
// asynchronously and shows up in /control/status.
type commandResponse struct {
	Accepted bool   `json:"accepted"`
	Device   string `json:"device"`
	Action   string `json:"action,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// handleSendCommand publishes an ON/OFF command for one device.
func (s *Server) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	device := chi.URLParam(r, "device")

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	accepted, err := s.controller.SendCommand(device, req.Action)
	switch {
	case errors.Is(err, control.ErrUnknownDevice):
		writeNotFound(w, "unknown device: "+device)
		return
	case errors.Is(err, control.ErrInvalidAction):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "action must be ON or OFF")
		return
	case err != nil:
		s.logger.Error("command publish failed", "device", device, "error", err)
		writeJSON(w, http.StatusBadGateway, commandResponse{
			Accepted: false,
			Device:   device,
			Reason:   "publish failed",
		})
		return
	}

	if !accepted {
		writeJSON(w, http.StatusServiceUnavailable, commandResponse{
			Accepted: false,
			Device:   device,
			Reason:   "broker connection down",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, commandResponse{
		Accepted: true,
		Device:   device,
		Action:   req.Action,
	})
}

// handleControlStatus returns the last confirmed state and pending flag
// for one device, or for every configured device.
func (s *Server) handleControlStatus(w http.ResponseWriter, r *http.Request) {
	device := r.URL.Query().Get("device")

	statuses, err := s.controller.Status(device)
	if errors.Is(err, control.ErrUnknownDevice) {
		writeNotFound(w, "unknown device: "+device)
		return
	}
	if err != nil {
		s.logger.Error("fetching control status failed", "error", err)
		writeInternalError(w, "failed to fetch control status")
		return
	}

	writeJSON(w, http.StatusOK, statuses)
}

// handleListActions returns the paginated action history.
func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, perPage, err := parsePagination(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	filter := control.Filter{
		Device:  q.Get("device"),
		SortAsc: q.Get("order") == "asc",
		Limit:   perPage,
		Offset:  (page - 1) * perPage,
	}

	if rawState := q.Get("state"); rawState != "" {
		state, err := control.NormalizeState(rawState)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "state must be ON or OFF")
			return
		}
		filter.State = state
	}

	if search := q.Get("search"); search != "" {
		// Malformed temporal literals degrade to the substring
		// fallback; search never fails the request.
		rng, err := s.resolver.Parse(search, time.Now())
		if err == nil {
			filter.Start = &rng.Start
			filter.End = &rng.End
		} else {
			if errors.Is(err, timeexpr.ErrInvalidExpression) {
				s.logger.Warn("degrading malformed temporal search to substring",
					"search", search,
					"error", err,
				)
			}
			filter.Substring = search
		}
	}

	result, err := s.actions.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing actions failed", "error", err)
		writeInternalError(w, "failed to list actions")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleActionStats returns per-device ON counts for one civil day,
// today unless a date literal is given.
func (s *Server) handleActionStats(w http.ResponseWriter, r *http.Request) {
	var (
		stats *control.ToggleStats
		err   error
	)

	if rawDate := r.URL.Query().Get("date"); rawDate != "" {
		rng, parseErr := s.resolver.Parse(rawDate, time.Now())
		if parseErr != nil {
			writeBadRequest(w, "invalid date: expected DD/M/YYYY")
			return
		}
		stats, err = s.toggles.ForDay(r.Context(), rng.Start.In(s.resolver.Location()))
	} else {
		stats, err = s.toggles.Today(r.Context())
	}

	if err != nil {
		s.logger.Error("computing toggle stats failed", "error", err)
		writeInternalError(w, "failed to compute toggle stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
