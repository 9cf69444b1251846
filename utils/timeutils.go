package utils

import "time"

// Iso8601 formats t in UTC, or "" for the zero time.
func Iso8601(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// FromUnixMillis converts epoch milliseconds, returning the zero time for 0.
func FromUnixMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// FromUnixSeconds converts epoch seconds, returning the zero time for 0.
func FromUnixSeconds(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
