package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/PhucHuwu/iot-core/internal/telemetry"
	"github.com/PhucHuwu/iot-core/internal/timeexpr"
)

// handleListReadings returns a paginated, filterable list of sensor readings.
//
// The search parameter is resolved in three steps: a temporal literal
// becomes a time-range query, a plain number matches any sensor field,
// and anything else falls back to a substring match on the stored
// timestamp text.
func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	filter, err := s.buildReadingFilter(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := s.readings.List(r.Context(), *filter)
	if err != nil {
		s.logger.Error("listing readings failed", "error", err)
		writeInternalError(w, "failed to list readings")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleLatestReading returns the most recent sensor reading.
func (s *Server) handleLatestReading(w http.ResponseWriter, r *http.Request) {
	reading, err := s.readings.Latest(r.Context())
	if errors.Is(err, telemetry.ErrNotFound) {
		writeNotFound(w, "no readings recorded yet")
		return
	}
	if err != nil {
		s.logger.Error("fetching latest reading failed", "error", err)
		writeInternalError(w, "failed to fetch latest reading")
		return
	}

	writeJSON(w, http.StatusOK, reading)
}

// handleReadingStats returns aggregate statistics over an optional
// RFC3339 time range.
func (s *Server) handleReadingStats(w http.ResponseWriter, r *http.Request) {
	start, err := parseTimeParam(r, "start")
	if err != nil {
		writeBadRequest(w, "invalid start: must be RFC3339")
		return
	}
	end, err := parseTimeParam(r, "end")
	if err != nil {
		writeBadRequest(w, "invalid end: must be RFC3339")
		return
	}

	stats, err := s.readings.Stats(r.Context(), start, end)
	if err != nil {
		s.logger.Error("aggregating readings failed", "error", err)
		writeInternalError(w, "failed to aggregate readings")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// buildReadingFilter assembles a telemetry filter from query parameters.
func (s *Server) buildReadingFilter(r *http.Request) (*telemetry.Filter, error) {
	q := r.URL.Query()

	page, perPage, err := parsePagination(r)
	if err != nil {
		return nil, err
	}

	filter := &telemetry.Filter{
		DeviceID:  q.Get("device"),
		SortField: q.Get("sort"),
		SortAsc:   q.Get("order") == "asc",
		Limit:     perPage,
		Offset:    (page - 1) * perPage,
	}

	if filter.Start, err = parseTimeParam(r, "start"); err != nil {
		return nil, errors.New("invalid start: must be RFC3339")
	}
	if filter.End, err = parseTimeParam(r, "end"); err != nil {
		return nil, errors.New("invalid end: must be RFC3339")
	}

	bounds := []struct {
		param string
		dest  **float64
	}{
		{"temperature_min", &filter.TemperatureMin},
		{"temperature_max", &filter.TemperatureMax},
		{"humidity_min", &filter.HumidityMin},
		{"humidity_max", &filter.HumidityMax},
		{"light_min", &filter.LightMin},
		{"light_max", &filter.LightMax},
	}
	for _, b := range bounds {
		raw := q.Get(b.param)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errors.New("invalid " + b.param + ": must be a number")
		}
		*b.dest = &v
	}

	if search := q.Get("search"); search != "" {
		s.applySearch(filter, search)
	}

	return filter, nil
}

// applySearch resolves a free-form search term into filter conditions.
//
// A malformed temporal literal (month 13, hour 24) degrades to the
// substring fallback like any unrecognised shape; search never fails
// the request.
func (s *Server) applySearch(filter *telemetry.Filter, search string) {
	rng, err := s.resolver.Parse(search, time.Now())
	if err == nil {
		filter.Start = &rng.Start
		filter.End = &rng.End
		return
	}
	if errors.Is(err, timeexpr.ErrInvalidExpression) {
		s.logger.Warn("degrading malformed temporal search to substring",
			"search", search,
			"error", err,
		)
	}

	if v, numErr := strconv.ParseFloat(search, 64); numErr == nil {
		filter.FieldValue = &v
		return
	}

	filter.Substring = search
}

// parsePagination reads page and per_page with sane defaults.
func parsePagination(r *http.Request) (page, perPage int, err error) {
	q := r.URL.Query()

	page = 1
	if raw := q.Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, errors.New("invalid page: must be a positive integer")
		}
	}

	perPage = 50 // mirror the repository default so offset math holds
	if raw := q.Get("per_page"); raw != "" {
		perPage, err = strconv.Atoi(raw)
		if err != nil || perPage < 1 {
			return 0, 0, errors.New("invalid per_page: must be a positive integer")
		}
	}

	return page, perPage, nil
}

// parseTimeParam reads an optional RFC3339 query parameter.
func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil //nolint:nilnil // absent parameter, not an error
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
