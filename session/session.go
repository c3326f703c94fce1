package session

import (
	"crypto/rand"
	"encoding/hex"
	"maps"
	"time"
)

// Session is a server-held bundle of key/value state tied to one client over
// a bounded time window. All mutations go through Set and Delete so the dirty
// flag is never missed; stores skip persistence entirely for clean records.
//
// A Session value is owned by the request handling it. It is not safe for
// concurrent use; cross-request races on the same id are resolved by the
// store's atomic upsert (last writer wins).
type Session struct {
	// ID is the opaque session identifier: 64 hex characters, 256 bits of
	// entropy. Assigned exactly once per record value; rotation produces a
	// new record rather than mutating ID in place.
	ID string

	// IP and UserAgent are captured at creation and carried through
	// serialization. They are metadata for a future security model, not
	// enforced by this package.
	IP        string
	UserAgent string

	// SecurityModel and FieldStore are passthrough configuration. The
	// lifecycle engine stores and returns them without interpretation.
	SecurityModel []string
	FieldStore    string

	// Duration and RotationInterval are the normalized forms of whatever
	// the caller configured (native duration, integer seconds, or string
	// seconds), converted once and reused thereafter.
	Duration         time.Duration
	RotationInterval time.Duration

	// ExpiresAt invalidates the record strictly after this instant.
	ExpiresAt time.Time

	// NextRotationAt triggers identifier rotation once passed.
	NextRotationAt time.Time

	data        map[string]any
	dirty       bool
	clearClient bool
}

// Params carries the inputs for creating a fresh session. Duration and
// RotationInterval accept a time.Duration, an int/int64/string count of
// seconds, or nil for the package defaults.
type Params struct {
	IP               string
	UserAgent        string
	Duration         any
	RotationInterval any
	SecurityModel    []string
	FieldStore       string
}

// New creates a fresh session with a generated id, empty data, and expiry
// stamps derived from the normalized durations. The record is dirty and
// ready to be persisted.
func New(params Params) *Session {
	d := NormalizeDuration(params.Duration, DefaultDuration)
	interval := NormalizeDuration(params.RotationInterval, DefaultRotationInterval)

	now := time.Now()
	return &Session{
		ID:               newID(),
		IP:               params.IP,
		UserAgent:        params.UserAgent,
		SecurityModel:    params.SecurityModel,
		FieldStore:       params.FieldStore,
		Duration:         d,
		RotationInterval: interval,
		ExpiresAt:        ExpiresAt(now, d),
		NextRotationAt:   NextRotationAt(now, interval),
		data:             make(map[string]any),
		dirty:            true,
	}
}

// Get returns the value stored under key and whether it was present.
func (s *Session) Get(key string) (any, bool) {
	v, ok := s.data[key]
	return v, ok
}

// Set stores value under key and marks the session dirty.
func (s *Session) Set(key string, value any) {
	s.data[key] = value
	s.dirty = true
}

// Delete removes key from the session data. Removing an absent key still
// marks the session dirty, mirroring the map contract of the data payload.
func (s *Session) Delete(key string) {
	delete(s.data, key)
	s.dirty = true
}

// Keys returns the stored keys in unspecified order.
func (s *Session) Keys() []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of stored keys.
func (s *Session) Len() int {
	return len(s.data)
}

// IsDirty reports whether the session has unsaved mutations. Stores treat
// Save on a clean session as a no-op.
func (s *Session) IsDirty() bool {
	return s.dirty
}

// MarkSaved clears the dirty flag. Store implementations call it after a
// successful persist; application code normally has no reason to.
func (s *Session) MarkSaved() {
	s.dirty = false
}

// IsExpired reports whether the session is invalid at the given instant.
// A session is valid exactly at its expiry time.
func (s *Session) IsExpired(now time.Time) bool {
	return IsExpired(now, s.ExpiresAt)
}

// ShouldRotate reports whether the identifier rotation is due.
func (s *Session) ShouldRotate(now time.Time) bool {
	return ShouldRotate(now, s.NextRotationAt)
}

// Invalidated reports whether the session was destroyed and the client-side
// credential should be cleared instead of refreshed.
func (s *Session) Invalidated() bool {
	return s.clearClient
}

// Refresh extends the session validity from now using the memoized duration
// and marks the record dirty so the next save persists it.
func (s *Session) Refresh() {
	s.ExpiresAt = ExpiresAt(time.Now(), s.Duration)
	s.dirty = true
}

// rotated returns a new record value with a fresh id and rotation schedule,
// preserving the data payload and metadata. The old record keeps its id;
// deleting its persisted entry is the caller's job.
func (s *Session) rotated() *Session {
	now := time.Now()
	next := *s
	next.ID = newID()
	next.ExpiresAt = ExpiresAt(now, s.Duration)
	next.NextRotationAt = NextRotationAt(now, s.RotationInterval)
	next.data = maps.Clone(s.data)
	if next.data == nil {
		next.data = make(map[string]any)
	}
	next.dirty = true
	next.clearClient = false
	return &next
}

// invalidate marks the record for client-side credential removal.
func (s *Session) invalidate() {
	s.clearClient = true
}

// idLength is the hex-encoded identifier length: 32 random bytes.
const idLength = 64

// newID returns a 256-bit session identifier in hex. crypto/rand failure is
// unrecoverable at process level, so there is no error path.
func newID() string {
	b := make([]byte, idLength/2)
	if _, err := rand.Read(b); err != nil {
		panic("session: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// ValidID reports whether id has the shape produced by this package:
// fixed-length lowercase hex. Stores that derive file names or keys from
// client-supplied ids use it to reject malformed input early.
func ValidID(id string) bool {
	if len(id) != idLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
