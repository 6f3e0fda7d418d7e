package services

import (
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are tried in order by NormalizeTimestamp.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizeTimestamp parses raw as a point in time and returns it in UTC,
// truncated to microseconds so values survive a round trip through
// PostgreSQL unchanged. Integers (optionally signed) are read as Unix
// milliseconds. Absent, blank or unparseable input returns fallback.
func NormalizeTimestamp(raw string, fallback time.Time) time.Time {
	if t, ok := parseTimestamp(raw); ok {
		return t
	}
	return fallback
}

func parseTimestamp(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC().Truncate(time.Microsecond), true
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(time.Microsecond), true
		}
	}
	return time.Time{}, false
}
