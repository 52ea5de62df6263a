// Package status classifies sensor readings against configurable
// threshold bands.
//
// Each metric has a normal band nested inside a warning band. Values
// inside the normal band are healthy, values between the two bands are
// warnings, and anything outside the warning band is danger. Bands are
// persisted in SQLite so the dashboard can tune them at runtime; the
// config defaults seed the table on first start.
package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/PhucHuwu/iot-core/internal/infrastructure/config"
	"github.com/PhucHuwu/iot-core/internal/telemetry"
)

// Level is the classification outcome for a value or reading.
type Level string

// Classification levels, ordered from healthy to critical.
const (
	LevelNormal  Level = "normal"
	LevelWarning Level = "warning"
	LevelDanger  Level = "danger"
)

// Metric identifiers as stored in the thresholds table.
const (
	MetricTemperature = "temperature"
	MetricHumidity    = "humidity"
	MetricLight       = "light"
)

var (
	// ErrInvalidBand is returned when a threshold band is not properly
	// nested.
	ErrInvalidBand = errors.New("status: invalid threshold band")

	// ErrUnknownMetric is returned for metric names outside the fixed set.
	ErrUnknownMetric = errors.New("status: unknown metric")
)

// Band defines the normal and warning ranges for one metric.
type Band struct {
	NormalMin  float64 `json:"normal_min"`
	NormalMax  float64 `json:"normal_max"`
	WarningMin float64 `json:"warning_min"`
	WarningMax float64 `json:"warning_max"`
}

// Validate checks that the normal band nests inside the warning band.
func (b Band) Validate() error {
	if b.NormalMin > b.NormalMax {
		return fmt.Errorf("%w: normal_min %v > normal_max %v", ErrInvalidBand, b.NormalMin, b.NormalMax)
	}
	if b.WarningMin > b.NormalMin || b.WarningMax < b.NormalMax {
		return fmt.Errorf("%w: warning band [%v, %v] must contain normal band [%v, %v]",
			ErrInvalidBand, b.WarningMin, b.WarningMax, b.NormalMin, b.NormalMax)
	}
	return nil
}

// Classify places a value in the band.
func (b Band) Classify(value float64) Level {
	switch {
	case value >= b.NormalMin && value <= b.NormalMax:
		return LevelNormal
	case value >= b.WarningMin && value <= b.WarningMax:
		return LevelWarning
	default:
		return LevelDanger
	}
}

// Thresholds holds the band for every metric.
type Thresholds struct {
	Temperature Band `json:"temperature"`
	Humidity    Band `json:"humidity"`
	Light       Band `json:"light"`
}

// Validate checks every band.
func (t Thresholds) Validate() error {
	for metric, band := range map[string]Band{
		MetricTemperature: t.Temperature,
		MetricHumidity:    t.Humidity,
		MetricLight:       t.Light,
	} {
		if err := band.Validate(); err != nil {
			return fmt.Errorf("%s: %w", metric, err)
		}
	}
	return nil
}

// FromConfig converts the config defaults into a threshold set.
func FromConfig(cfg config.ThresholdsConfig) Thresholds {
	return Thresholds{
		Temperature: Band(cfg.Temperature),
		Humidity:    Band(cfg.Humidity),
		Light:       Band(cfg.Light),
	}
}

// Report is the classification of one reading, field by field.
type Report struct {
	Reading     *telemetry.Reading `json:"reading"`
	Temperature Level              `json:"temperature"`
	Humidity    Level              `json:"humidity"`
	Light       Level              `json:"light"`
	Overall     Level              `json:"overall"`
}

// severity orders levels for the overall verdict.
var severity = map[Level]int{
	LevelNormal:  0,
	LevelWarning: 1,
	LevelDanger:  2,
}

func worst(levels ...Level) Level {
	out := LevelNormal
	for _, l := range levels {
		if severity[l] > severity[out] {
			out = l
		}
	}
	return out
}

// Service classifies the latest reading against the stored thresholds.
type Service struct {
	thresholds Repository
	readings   telemetry.Repository
}

// NewService creates a classification service.
func NewService(thresholds Repository, readings telemetry.Repository) *Service {
	return &Service{thresholds: thresholds, readings: readings}
}

// Current classifies the most recent reading. Returns
// telemetry.ErrNotFound when no readings exist yet.
func (s *Service) Current(ctx context.Context) (*Report, error) {
	reading, err := s.readings.Latest(ctx)
	if err != nil {
		return nil, err
	}

	thresholds, err := s.thresholds.Get(ctx)
	if err != nil {
		return nil, err
	}

	return s.classify(reading, thresholds), nil
}

func (s *Service) classify(reading *telemetry.Reading, t *Thresholds) *Report {
	report := &Report{
		Reading:     reading,
		Temperature: t.Temperature.Classify(reading.Temperature),
		Humidity:    t.Humidity.Classify(reading.Humidity),
		Light:       t.Light.Classify(reading.Light),
	}
	report.Overall = worst(report.Temperature, report.Humidity, report.Light)
	return report
}
