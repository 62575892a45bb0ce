// Package version derives stable dataset version identifiers from
// source-reported update timestamps. The version string is the idempotency
// key for staging: identical timestamps within the same granularity window
// always produce the identical version.
package version

import (
	"fmt"
	"time"
)

// Granularity controls how far a source timestamp is truncated.
type Granularity string

const (
	GranularityDate Granularity = "date"
	GranularityHour Granularity = "hour"
)

// Version is a date-granular dataset version identifier.
type Version struct {
	value string
	ts    time.Time
}

func (v Version) String() string { return v.value }

// Date returns the version's day at UTC midnight.
func (v Version) Date() time.Time {
	return time.Date(v.ts.Year(), v.ts.Month(), v.ts.Day(), 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether the version was never derived.
func (v Version) IsZero() bool { return v.value == "" }

// Codec truncates ISO8601 timestamps to a configured granularity.
type Codec struct {
	Granularity Granularity
}

// NewCodec builds a codec, defaulting to date granularity.
func NewCodec(g Granularity) *Codec {
	if g == "" {
		g = GranularityDate
	}
	return &Codec{Granularity: g}
}

// ToVersion derives the version string for an ISO8601 update timestamp.
func (c *Codec) ToVersion(timestamp string) (Version, error) {
	ts, err := parseTimestamp(timestamp)
	if err != nil {
		return Version{}, fmt.Errorf("parse update timestamp %q: %w", timestamp, err)
	}
	ts = ts.UTC()

	switch c.Granularity {
	case GranularityHour:
		return Version{value: ts.Format("2006-01-02T15"), ts: ts}, nil
	default:
		return Version{value: ts.Format("2006-01-02"), ts: ts}, nil
	}
}

// Parse reconstructs a Version from a previously derived version string.
func Parse(value string) (Version, error) {
	for _, layout := range []string{"2006-01-02", "2006-01-02T15"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return Version{value: value, ts: ts.UTC()}, nil
		}
	}
	return Version{}, fmt.Errorf("malformed version string %q", value)
}

// parseTimestamp accepts RFC3339 with or without sub-second precision.
func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, s)
}
