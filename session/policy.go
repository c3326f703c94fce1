package session

import (
	"strconv"
	"strings"
	"time"
)

// Package defaults applied when a duration setting is absent or malformed.
const (
	// DefaultDuration is the session validity window (15 minutes).
	DefaultDuration = 900 * time.Second

	// DefaultRotationInterval is the period between identifier
	// rotations (4 minutes).
	DefaultRotationInterval = 240 * time.Second
)

// NormalizeDuration converts a loosely typed duration setting into a
// time.Duration. It accepts a native time.Duration, an int/int64 count of
// seconds, or a decimal string of seconds. Nil, unrecognized types, and
// unparsable strings resolve to fallback. Normalization happens once per
// record; the result is memoized on the Session.
func NormalizeDuration(v any, fallback time.Duration) time.Duration {
	switch d := v.(type) {
	case time.Duration:
		return d
	case int:
		return time.Duration(d) * time.Second
	case int64:
		return time.Duration(d) * time.Second
	case string:
		secs, err := strconv.ParseInt(strings.TrimSpace(d), 10, 64)
		if err != nil {
			return fallback
		}
		return time.Duration(secs) * time.Second
	default:
		return fallback
	}
}

// ExpiresAt returns the expiry instant for a session refreshed at now.
func ExpiresAt(now time.Time, d time.Duration) time.Time {
	return now.Add(d)
}

// NextRotationAt returns the instant of the next scheduled id rotation.
func NextRotationAt(now time.Time, interval time.Duration) time.Time {
	return now.Add(interval)
}

// IsExpired reports whether now is strictly after expiresAt. A session is
// still valid exactly at its expiry instant.
func IsExpired(now, expiresAt time.Time) bool {
	return now.After(expiresAt)
}

// ShouldRotate reports whether now is strictly after nextRotationAt.
func ShouldRotate(now, nextRotationAt time.Time) bool {
	return now.After(nextRotationAt)
}
