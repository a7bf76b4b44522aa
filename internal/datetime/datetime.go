// Package datetime holds the timestamp helpers shared by the recurrence
// expander and the priority scorer.
package datetime

import (
	"errors"
	"math"
	"strings"
	"time"
)

// Day is the fixed 24h unit used for due-date distances.
const Day = 24 * time.Hour

// ErrInvalidDate is returned by Parse for unparseable input.
var ErrInvalidDate = errors.New("invalid date; expected ISO 8601")

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Parse accepts RFC 3339 timestamps as well as the zone-less forms the
// dashboard sends from date pickers. Zone-less input is read as UTC.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// Valid reports whether s parses.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Format renders t as an ISO 8601 UTC timestamp with millisecond precision.
func Format(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// AddDays moves t by n calendar days, preserving wall-clock time in t's
// location across month, year and DST boundaries.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// StartOfDay returns midnight of t's date in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysUntil returns ceil((due - now) / 24h). Negative values mean due is in
// the past.
func DaysUntil(due, now time.Time) int {
	d := due.Sub(now)
	days := math.Ceil(float64(d) / float64(Day))
	if days == 0 {
		// normalizes -0
		return 0
	}
	return int(days)
}
