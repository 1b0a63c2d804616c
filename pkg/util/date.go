package util

import (
	"strconv"
	"time"
)

// DayLayout is the calendar-day format used in API payloads and artifacts.
const DayLayout = "2006-01-02"

// ParseTime tries RFC3339, RFC3339Nano, a bare calendar day, and unix
// seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(DayLayout, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDay renders t as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// NextDays returns n consecutive calendar days starting the day after last.
// Weekends and holidays are not skipped.
func NextDays(last time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	start := Day(last)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i+1)
	}
	return out
}
