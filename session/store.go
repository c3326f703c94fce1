package session

import (
	"context"
	"time"
)

// Store is the persistence contract every storage backend satisfies.
// Implementations key entries by Session.ID with upsert semantics and must
// be atomic with respect to concurrent readers: a reader observes either
// the fully-prior or the fully-new value, never a partial write.
type Store interface {
	// Save durably persists the session, overwriting any prior entry for
	// the same id. Saving a clean session (IsDirty false) is a no-op.
	// A successful save clears the dirty flag.
	Save(ctx context.Context, sess *Session) error

	// Load reconstructs the session stored under id. It returns
	// ErrNotFound for a missing entry, a corrupted payload, or any
	// transport failure on the read path.
	Load(ctx context.Context, id string) (*Session, error)

	// Delete removes the entry if present. Deleting an absent id is not
	// an error.
	Delete(ctx context.Context, id string) error

	// DeleteExpired removes every entry whose expiry is strictly before
	// now and returns the number removed. Media with native per-key
	// expiry return ErrSweepUnsupported instead.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
