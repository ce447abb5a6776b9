// Package recurrence decides when recurring task definitions spawn new task
// instances and materializes them through a storage collaborator.
package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Pattern is the unit a recurring definition repeats on.
type Pattern string

const (
	Daily   Pattern = "daily"
	Weekly  Pattern = "weekly"
	Monthly Pattern = "monthly"
)

// Patterns lists the supported patterns.
var Patterns = []Pattern{Daily, Weekly, Monthly}

var (
	// ErrInvalidPattern is returned for a pattern outside Patterns.
	ErrInvalidPattern = errors.New("invalid recurrence pattern")
	// ErrInvalidFrequency is returned for a frequency below one.
	ErrInvalidFrequency = errors.New("invalid recurrence frequency")
)

// ParsePattern normalizes s into a Pattern.
func ParsePattern(s string) (Pattern, error) {
	p := Pattern(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case Daily, Weekly, Monthly:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPattern, s)
}

// NextOccurrence returns the occurrence that follows anchor, repeating every
// frequency units of pattern.
//
// Monthly steps keep the day of month. When that day does not exist in the
// target month the result is clamped to the month's last day, so Jan 31 plus
// one month is Feb 28 (Feb 29 in leap years). Wall-clock time and location of
// the anchor are preserved for every pattern.
func NextOccurrence(anchor time.Time, pattern Pattern, frequency int) (time.Time, error) {
	if frequency <= 0 {
		return time.Time{}, fmt.Errorf("%w: %d", ErrInvalidFrequency, frequency)
	}

	switch pattern {
	case Daily:
		return anchor.AddDate(0, 0, frequency), nil
	case Weekly:
		return anchor.AddDate(0, 0, 7*frequency), nil
	case Monthly:
		return addMonthsClamped(anchor, frequency), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	month := int(t.Month()) + months
	year := t.Year() + (month-1)/12
	month = (month-1)%12 + 1

	day := t.Day()
	if last := daysIn(year, time.Month(month), t.Location()); day > last {
		day = last
	}
	return time.Date(year, time.Month(month), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in month of year.
func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
