package timeexpr

import "errors"

// Sentinel errors for literal resolution.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidExpression is returned when a literal matches a shape but
	// contains impossible components (month 13, hour 24, 31/4).
	ErrInvalidExpression = errors.New("timeexpr: invalid time expression")

	// ErrNoMatch is returned when a literal fits none of the recognised
	// shapes. Callers fall back to substring matching on timestamp text.
	ErrNoMatch = errors.New("timeexpr: expression matches no time shape")
)
