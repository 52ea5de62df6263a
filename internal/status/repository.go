package status

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository defines the interface for threshold persistence.
type Repository interface {
	Get(ctx context.Context) (*Thresholds, error)
	Update(ctx context.Context, t *Thresholds) error
	Seed(ctx context.Context, defaults Thresholds) error
}

// SQLiteRepository stores bands in the thresholds table, one row per
// metric.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new threshold repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Seed inserts the default band for any metric that has no row yet.
// Existing rows are left alone so runtime tuning survives restarts.
func (r *SQLiteRepository) Seed(ctx context.Context, defaults Thresholds) error {
	now := time.Now().UTC().Format(time.RFC3339)
	for metric, band := range map[string]Band{
		MetricTemperature: defaults.Temperature,
		MetricHumidity:    defaults.Humidity,
		MetricLight:       defaults.Light,
	} {
		_, err := r.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO thresholds (metric, normal_min, normal_max, warning_min, warning_max, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			metric, band.NormalMin, band.NormalMax, band.WarningMin, band.WarningMax, now,
		)
		if err != nil {
			return fmt.Errorf("seeding %s thresholds: %w", metric, err)
		}
	}
	return nil
}

// Get loads the full threshold set.
func (r *SQLiteRepository) Get(ctx context.Context) (*Thresholds, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT metric, normal_min, normal_max, warning_min, warning_max FROM thresholds`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying thresholds: %w", err)
	}
	defer rows.Close()

	var t Thresholds
	for rows.Next() {
		var metric string
		var band Band
		if err := rows.Scan(&metric, &band.NormalMin, &band.NormalMax, &band.WarningMin, &band.WarningMax); err != nil {
			return nil, fmt.Errorf("scanning threshold row: %w", err)
		}

		switch metric {
		case MetricTemperature:
			t.Temperature = band
		case MetricHumidity:
			t.Humidity = band
		case MetricLight:
			t.Light = band
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating thresholds: %w", err)
	}

	return &t, nil
}

// Update replaces every band. The set is validated before any write.
func (r *SQLiteRepository) Update(ctx context.Context, t *Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning threshold update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	now := time.Now().UTC().Format(time.RFC3339)
	for metric, band := range map[string]Band{
		MetricTemperature: t.Temperature,
		MetricHumidity:    t.Humidity,
		MetricLight:       t.Light,
	} {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO thresholds (metric, normal_min, normal_max, warning_min, warning_max, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(metric) DO UPDATE SET
			   normal_min = excluded.normal_min,
			   normal_max = excluded.normal_max,
			   warning_min = excluded.warning_min,
			   warning_max = excluded.warning_max,
			   updated_at = excluded.updated_at`,
			metric, band.NormalMin, band.NormalMax, band.WarningMin, band.WarningMax, now,
		)
		if err != nil {
			return fmt.Errorf("updating %s thresholds: %w", metric, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing threshold update: %w", err)
	}
	return nil
}
