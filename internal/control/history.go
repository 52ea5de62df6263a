package control

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Actuator states and record types as they appear on the wire and in
// the action_history table.
const (
	StateOn  = "ON"
	StateOff = "OFF"

	RecordTypeLEDStatus = "led_status"
)

// Pagination bounds for history queries.
const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Entry is one stored device status record. Every confirmation the
// fleet publishes lands here, including unknown record types.
type Entry struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Device      string    `json:"device,omitempty"`
	State       string    `json:"state,omitempty"`
	Description string    `json:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Filter controls which history entries to return.
type Filter struct {
	Device string // optional: filter by device identifier
	State  string // optional: ON or OFF (use NormalizeState on user input)

	// Start/End bound the timestamp (half-open, End exclusive).
	Start *time.Time
	End   *time.Time

	// Substring matches against the stored timestamp text.
	Substring string

	SortAsc bool // default false (most recent first)
	Limit   int  // default 50, max 200
	Offset  int  // pagination offset
}

// ListResult contains the paginated history results.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// HistoryRepository defines the interface for action history operations.
type HistoryRepository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
	CountOn(ctx context.Context, start, end time.Time) (map[string]int, error)
}

// SQLiteHistoryRepository stores entries in the action_history table.
type SQLiteHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteHistoryRepository creates a new history repository.
func NewSQLiteHistoryRepository(db *sql.DB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db}
}

// NormalizeState maps user input onto the canonical ON/OFF values.
// Accepts the usual synonyms (on/1/true, off/0/false).
func NormalizeState(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "1", "true":
		return StateOn, nil
	case "off", "0", "false":
		return StateOff, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
}

// Create inserts a new history entry. The ID and Timestamp are
// generated if empty.
func (r *SQLiteHistoryRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "act-" + uuid.NewString()[:8]
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO action_history (id, type, device, state, description, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Type,
		nullableString(e.Device), nullableString(e.State), nullableString(e.Description),
		e.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting history entry: %w", err)
	}

	return nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns history entries matching the filter.
func (r *SQLiteHistoryRepository) List(ctx context.Context, filter Filter) (*ListResult, error) { //nolint:gocognit // dynamic query builder: WHERE clause assembly from filter fields
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

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.Device != "" {
		conditions = append(conditions, "device = ?")
		args = append(args, filter.Device)
	}
	if filter.State != "" {
		conditions = append(conditions, "state = ?")
		args = append(args, filter.State)
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

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Get total count.
	// WHERE clause is built from parameterised conditions (? placeholders) — no user input in SQL string.
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM action_history %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting history entries: %w", err)
	}

	direction := "DESC"
	if filter.SortAsc {
		direction = "ASC"
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, type, device, state, description, timestamp FROM action_history %s ORDER BY timestamp %s LIMIT ? OFFSET ?",
		where, direction,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var device, state, description sql.NullString
		var timestamp string

		if err := rows.Scan(&e.ID, &e.Type, &device, &state, &description, &timestamp); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}

		if device.Valid {
			e.Device = device.String
		}
		if state.Valid {
			e.State = state.String
		}
		if description.Valid {
			e.Description = description.String
		}

		t, err := time.Parse(time.RFC3339, timestamp)
		if err != nil {
			return nil, fmt.Errorf("parsing history timestamp %q: %w", timestamp, err)
		}
		e.Timestamp = t.UTC()

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history entries: %w", err)
	}

	if entries == nil {
		entries = []Entry{}
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// CountOn returns per-device counts of ON confirmations inside the
// half-open [start, end) range. Devices with no confirmations are
// absent from the map; callers fill in zeros for their configured set.
func (r *SQLiteHistoryRepository) CountOn(ctx context.Context, start, end time.Time) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT device, COUNT(*) FROM action_history
		 WHERE type = ? AND state = ? AND device IS NOT NULL
		   AND timestamp >= ? AND timestamp < ?
		 GROUP BY device`,
		RecordTypeLEDStatus, StateOn,
		start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("counting toggles: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var device string
		var n int
		if err := rows.Scan(&device, &n); err != nil {
			return nil, fmt.Errorf("scanning toggle count: %w", err)
		}
		counts[device] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating toggle counts: %w", err)
	}

	return counts, nil
}
