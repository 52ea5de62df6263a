package telemetry

import "errors"

// Sentinel errors for telemetry operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidReading is returned when a payload is malformed, missing
	// a sensor field, or outside the physical sensor ranges.
	ErrInvalidReading = errors.New("telemetry: invalid reading")

	// ErrNotFound is returned when no reading matches a query.
	ErrNotFound = errors.New("telemetry: reading not found")
)
