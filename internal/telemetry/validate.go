package telemetry

import "fmt"

// Physical sensor ranges. Values outside these bounds indicate sensor
// faults or corrupt payloads, never real environmental conditions.
const (
	TemperatureMin = -50.0
	TemperatureMax = 100.0
	HumidityMin    = 0.0
	HumidityMax    = 100.0
	LightMin       = 0.0
	LightMax       = 100.0
)

// Validate checks a decoded reading against the sensor ranges.
// Boundary values are valid; the ranges are closed intervals.
//
// Returns:
//   - error: wrapping ErrInvalidReading naming the offending field, or nil
func Validate(r *Reading) error {
	if r == nil {
		return fmt.Errorf("%w: nil reading", ErrInvalidReading)
	}
	if r.Temperature < TemperatureMin || r.Temperature > TemperatureMax {
		return fmt.Errorf("%w: temperature %.2f outside [%.0f, %.0f]",
			ErrInvalidReading, r.Temperature, TemperatureMin, TemperatureMax)
	}
	if r.Humidity < HumidityMin || r.Humidity > HumidityMax {
		return fmt.Errorf("%w: humidity %.2f outside [%.0f, %.0f]",
			ErrInvalidReading, r.Humidity, HumidityMin, HumidityMax)
	}
	if r.Light < LightMin || r.Light > LightMax {
		return fmt.Errorf("%w: light %.2f outside [%.0f, %.0f]",
			ErrInvalidReading, r.Light, LightMin, LightMax)
	}
	return nil
}
