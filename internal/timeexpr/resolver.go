// Package timeexpr resolves human time literals into UTC query ranges.
//
// Users search readings and action history with short civil-time literals
// like "14:30", "25/12/2025", or "14:30:05 25/12/2025". The deployment
// runs on a fixed UTC offset rather than a tz database zone, so literals
// are interpreted in that offset and converted to UTC for storage queries.
//
// Five shapes are recognised, checked in priority order:
//
//	"HH:MM:SS DD/M/YYYY"  exact second on a date
//	"HH:MM:SS"            exact second today
//	"HH:MM"               minute today
//	"DD/M/YYYY"           whole day
//	"HH:MM DD/M/YYYY"     minute on a date
//
// A literal that matches a shape but has impossible components (month 13,
// hour 24) is an error; a literal matching no shape at all returns
// ErrNoMatch and callers fall back to substring matching on the stored
// timestamp text.
package timeexpr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Literal shape patterns, checked in order. The first match wins, so the
// combined second+date form is checked before the bare time forms.
var (
	reSecondDate = regexp.MustCompile(`^\d{1,2}:\d{2}:\d{2} \d{1,2}/\d{1,2}/\d{4}$`)
	reSecond     = regexp.MustCompile(`^\d{1,2}:\d{2}:\d{2}$`)
	reMinute     = regexp.MustCompile(`^\d{1,2}:\d{2}$`)
	reDate       = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
	reMinuteDate = regexp.MustCompile(`^\d{1,2}:\d{2} \d{1,2}/\d{1,2}/\d{4}$`)
)

// displayLayout renders timestamps in the civil calendar for API output.
const displayLayout = "15:04:05 02/01/2006"

// Range is a half-open UTC interval [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// Resolver interprets time literals in a fixed UTC offset.
type Resolver struct {
	loc *time.Location
}

// NewResolver creates a resolver for the given fixed offset location.
func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{loc: loc}
}

// Parse resolves a literal into a UTC query range.
//
// Date-less literals resolve against today in the resolver's offset,
// derived from now.
//
// Returns:
//   - Range: half-open UTC interval covering the literal
//   - error: ErrInvalidExpression for impossible components,
//     ErrNoMatch when the literal fits no shape
func (r *Resolver) Parse(expr string, now time.Time) (Range, error) {
	expr = strings.TrimSpace(expr)
	today := now.In(r.loc)

	switch {
	case reSecondDate.MatchString(expr):
		timePart, datePart, _ := strings.Cut(expr, " ")
		t, err := r.buildTime(timePart, datePart)
		if err != nil {
			return Range{}, err
		}
		return Range{Start: t.UTC(), End: t.Add(time.Second).UTC()}, nil

	case reSecond.MatchString(expr):
		t, err := r.buildTime(expr, dateLiteral(today))
		if err != nil {
			return Range{}, err
		}
		return Range{Start: t.UTC(), End: t.Add(time.Second).UTC()}, nil

	case reMinute.MatchString(expr):
		t, err := r.buildTime(expr+":00", dateLiteral(today))
		if err != nil {
			return Range{}, err
		}
		return Range{Start: t.UTC(), End: t.Add(time.Minute).UTC()}, nil

	case reDate.MatchString(expr):
		t, err := r.buildTime("00:00:00", expr)
		if err != nil {
			return Range{}, err
		}
		return Range{Start: t.UTC(), End: t.AddDate(0, 0, 1).UTC()}, nil

	case reMinuteDate.MatchString(expr):
		timePart, datePart, _ := strings.Cut(expr, " ")
		t, err := r.buildTime(timePart+":00", datePart)
		if err != nil {
			return Range{}, err
		}
		return Range{Start: t.UTC(), End: t.Add(time.Minute).UTC()}, nil
	}

	return Range{}, ErrNoMatch
}

// FormatLocal renders a timestamp in the civil calendar as
// "HH:MM:SS DD/MM/YYYY". The output round-trips through Parse.
func (r *Resolver) FormatLocal(t time.Time) string {
	return t.In(r.loc).Format(displayLayout)
}

// Location returns the resolver's fixed offset location.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// buildTime assembles a time from "HH:MM:SS" and "DD/M/YYYY" parts,
// validating each component instead of letting time.Date normalise
// overflow (month 13 must be an error, not next January).
func (r *Resolver) buildTime(timePart, datePart string) (time.Time, error) {
	hour, minute, sec, err := splitClock(timePart)
	if err != nil {
		return time.Time{}, err
	}
	day, month, year, err := splitDate(datePart)
	if err != nil {
		return time.Time{}, err
	}

	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, r.loc)
	// time.Date normalises out-of-range days (31/4 becomes 1/5); a
	// round-trip mismatch means the day was impossible for that month.
	if t.Day() != day || t.Month() != time.Month(month) || t.Year() != year {
		return time.Time{}, fmt.Errorf("%w: no such date %q", ErrInvalidExpression, datePart)
	}
	return t, nil
}

// splitClock parses "HH:MM:SS" with range validation.
func splitClock(s string) (hour, minute, sec int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("%w: malformed time %q", ErrInvalidExpression, s)
	}
	hour, _ = strconv.Atoi(parts[0])
	minute, _ = strconv.Atoi(parts[1])
	sec, _ = strconv.Atoi(parts[2])
	if hour > 23 || minute > 59 || sec > 59 {
		return 0, 0, 0, fmt.Errorf("%w: time out of range %q", ErrInvalidExpression, s)
	}
	return hour, minute, sec, nil
}

// splitDate parses "DD/M/YYYY" with range validation.
func splitDate(s string) (day, month, year int, err error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("%w: malformed date %q", ErrInvalidExpression, s)
	}
	day, _ = strconv.Atoi(parts[0])
	month, _ = strconv.Atoi(parts[1])
	year, _ = strconv.Atoi(parts[2])
	if day < 1 || day > 31 || month < 1 || month > 12 || year < 1 {
		return 0, 0, 0, fmt.Errorf("%w: date out of range %q", ErrInvalidExpression, s)
	}
	return day, month, year, nil
}

// dateLiteral renders a civil date as "D/M/YYYY" for date-less literals.
func dateLiteral(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d", t.Day(), int(t.Month()), t.Year())
}
