package model

import (
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used for day keys.
const DateLayout = "2006-01-02"

// ParseDate parses an ISO YYYY-MM-DD date as midnight UTC. Impossible
// calendar dates (2025-02-30) are rejected.
func ParseDate(field, value string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, NewValidationError(field, value, "expected YYYY-MM-DD")
	}
	return d, nil
}

// FormatDate renders the calendar date of t in its own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateOf truncates t to the calendar date in its own location, returned as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Days returns every calendar date in [from, to], inclusive on both ends.
// An inverted range yields nothing.
func Days(from, to time.Time) []time.Time {
	start := DateOf(from)
	end := DateOf(to)
	if end.Before(start) {
		return nil
	}
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
