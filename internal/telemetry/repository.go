package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Pagination bounds for reading queries.
const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// sortColumns whitelists the ORDER BY fields. Anything else falls back
// to timestamp; column names never come from user input.
var sortColumns = map[string]string{
	"timestamp":   "timestamp",
	"temperature": "temperature",
	"humidity":    "humidity",
	"light":       "light",
	"device_id":   "device_id",
}

// Filter controls which readings to return.
type Filter struct {
	DeviceID string // optional: filter by reporting device

	// Start/End bound the timestamp (half-open, End exclusive).
	// Set by the API layer after resolving a time literal.
	Start *time.Time
	End   *time.Time

	// Substring matches against the stored timestamp text. Used as the
	// fallback when a search term resolves to no time shape.
	Substring string

	// FieldValue matches readings where any sensor field equals the
	// value. Used when a search term is numeric.
	FieldValue *float64

	// Per-field bounds, all optional.
	TemperatureMin *float64
	TemperatureMax *float64
	HumidityMin    *float64
	HumidityMax    *float64
	LightMin       *float64
	LightMax       *float64

	SortField string // timestamp (default), temperature, humidity, light, device_id
	SortAsc   bool   // default false (most recent first)
	Limit     int    // default 50, max 200
	Offset    int    // pagination offset
}

// ListResult contains the paginated reading results.
type ListResult struct {
	Readings []Reading `json:"readings"`
	Total    int       `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

// Stats aggregates readings over an optional time range.
type Stats struct {
	Count       int        `json:"count"`
	Temperature FieldStats `json:"temperature"`
	Humidity    FieldStats `json:"humidity"`
	Light       FieldStats `json:"light"`
	First       *time.Time `json:"first,omitempty"`
	Last        *time.Time `json:"last,omitempty"`
}

// FieldStats holds min/max/avg for one sensor field.
type FieldStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// Repository defines the interface for reading persistence.
type Repository interface {
	Create(ctx context.Context, r *Reading) error
	Latest(ctx context.Context) (*Reading, error)
	List(ctx context.Context, filter Filter) (*ListResult, error)
	Stats(ctx context.Context, start, end *time.Time) (*Stats, error)
}

// SQLiteRepository stores readings in the sensor_readings table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new reading repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a validated reading. The ID is generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, reading *Reading) error {
	if reading.ID == "" {
		reading.ID = "rdg-" + uuid.NewString()[:8]
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sensor_readings (id, temperature, humidity, light, device_id, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		reading.ID, reading.Temperature, reading.Humidity, reading.Light,
		reading.DeviceID,
		reading.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}

	return nil
}

// Latest returns the most recent reading, or ErrNotFound when the table
// is empty.
func (r *SQLiteRepository) Latest(ctx context.Context) (*Reading, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, temperature, humidity, light, device_id, timestamp
		 FROM sensor_readings ORDER BY timestamp DESC LIMIT 1`,
	)

	reading, err := scanReading(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return reading, nil
}

// List returns readings matching the filter.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) { //nolint:gocognit // dynamic query builder: WHERE clause assembly from filter fields
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	where, args := buildConditions(filter)

	// Get total count.
	// WHERE clause is built from parameterised conditions (? placeholders) — no user input in SQL string.
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM sensor_readings %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting readings: %w", err)
	}

	// Resolve sort column from the whitelist.
	sortCol, ok := sortColumns[filter.SortField]
	if !ok {
		sortCol = "timestamp"
	}
	direction := "DESC"
	if filter.SortAsc {
		direction = "ASC"
	}

	query := fmt.Sprintf( //nolint:gosec // sort column resolved from whitelist, WHERE parameterised
		"SELECT id, temperature, humidity, light, device_id, timestamp FROM sensor_readings %s ORDER BY %s %s LIMIT ? OFFSET ?",
		where, sortCol, direction,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, *reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}

	if readings == nil {
		readings = []Reading{}
	}

	return &ListResult{
		Readings: readings,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}, nil
}

// Stats aggregates count, min/max/avg per field, and the first/last
// timestamps over an optional range.
func (r *SQLiteRepository) Stats(ctx context.Context, start, end *time.Time) (*Stats, error) {
	where, args := buildConditions(Filter{Start: start, End: end})

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT COUNT(*),
		        COALESCE(MIN(temperature), 0), COALESCE(MAX(temperature), 0), COALESCE(AVG(temperature), 0),
		        COALESCE(MIN(humidity), 0), COALESCE(MAX(humidity), 0), COALESCE(AVG(humidity), 0),
		        COALESCE(MIN(light), 0), COALESCE(MAX(light), 0), COALESCE(AVG(light), 0),
		        MIN(timestamp), MAX(timestamp)
		 FROM sensor_readings %s`, where,
	)

	var s Stats
	var first, last sql.NullString
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&s.Count,
		&s.Temperature.Min, &s.Temperature.Max, &s.Temperature.Avg,
		&s.Humidity.Min, &s.Humidity.Max, &s.Humidity.Avg,
		&s.Light.Min, &s.Light.Max, &s.Light.Avg,
		&first, &last,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregating readings: %w", err)
	}

	if first.Valid {
		if t, err := parseTimestamp(first.String); err == nil {
			s.First = &t
		}
	}
	if last.Valid {
		if t, err := parseTimestamp(last.String); err == nil {
			s.Last = &t
		}
	}

	return &s, nil
}

// buildConditions assembles the parameterised WHERE clause for a filter.
func buildConditions(filter Filter) (where string, args []any) {
	var conditions []string

	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Start != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.Start.UTC().Format(time.RFC3339))
	}
	if filter.End != nil {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, filter.End.UTC().Format(time.RFC3339))
	}
	if filter.Substring != "" {
		conditions = append(conditions, "timestamp LIKE ?")
		args = append(args, "%"+filter.Substring+"%")
	}
	if filter.FieldValue != nil {
		conditions = append(conditions, "(temperature = ? OR humidity = ? OR light = ?)")
		args = append(args, *filter.FieldValue, *filter.FieldValue, *filter.FieldValue)
	}

	bounds := []struct {
		col string
		min *float64
		max *float64
	}{
		{"temperature", filter.TemperatureMin, filter.TemperatureMax},
		{"humidity", filter.HumidityMin, filter.HumidityMax},
		{"light", filter.LightMin, filter.LightMax},
	}
	for _, b := range bounds {
		if b.min != nil {
			conditions = append(conditions, b.col+" >= ?")
			args = append(args, *b.min)
		}
		if b.max != nil {
			conditions = append(conditions, b.col+" <= ?")
			args = append(args, *b.max)
		}
	}

	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

// rowScanner lets scanReading work with both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanReading reads one row into a Reading.
func scanReading(row rowScanner) (*Reading, error) {
	var reading Reading
	var timestamp string

	if err := row.Scan(&reading.ID, &reading.Temperature, &reading.Humidity,
		&reading.Light, &reading.DeviceID, &timestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning reading: %w", err)
	}

	t, err := parseTimestamp(timestamp)
	if err != nil {
		return nil, fmt.Errorf("parsing reading timestamp %q: %w", timestamp, err)
	}
	reading.Timestamp = t

	return &reading, nil
}

// parseTimestamp parses the stored RFC3339 text, tolerating a legacy
// zone-less format from early imports.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05", s)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t.UTC(), nil
}
