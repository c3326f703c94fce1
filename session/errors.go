package session

import "errors"

var (
	// ErrNotFound is returned by Store.Load when no usable entry exists
	// for the id: absent key, corrupted payload, or a transport failure
	// on the read path. Callers treat it uniformly as "no prior session."
	ErrNotFound = errors.New("session not found")

	// ErrSaveSession wraps backend failures while persisting a session.
	ErrSaveSession = errors.New("failed to save session")

	// ErrDeleteSession wraps backend failures while deleting a session.
	ErrDeleteSession = errors.New("failed to delete session")

	// ErrSweepUnsupported is returned by DeleteExpired on media with
	// native per-key expiry, where the store itself removes entries at
	// their expiry instant. It signals "already guaranteed by the
	// medium," not a failure.
	ErrSweepUnsupported = errors.New("expired session sweep is handled by the storage medium")

	// ErrUnsupportedStorage is returned when the selected storage kind
	// has no registered backend, or a backend is handed an incompatible
	// connection handle. Fatal at setup time.
	ErrUnsupportedStorage = errors.New("unsupported session storage")
)
