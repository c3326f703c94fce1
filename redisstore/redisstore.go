// Package redisstore persists sessions in Redis, one key per session. The
// value is the encoded payload joined with the expiry epoch, IP, and
// User-Agent by colons; the payload's base64 alphabet cannot contain the
// delimiter, so the payload is always recoverable with a single split.
// Keys are SET with a TTL derived from the session expiry, so Redis itself
// removes stale entries and the sweep operation is unsupported.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/sessionstore/session"
)

// delimiter joins the value fields: payload:expiry:ip:user-agent.
const delimiter = ":"

func init() {
	session.Register(session.KindRedis, func(handle any) (session.Store, error) {
		client, ok := handle.(redis.Cmdable)
		if !ok {
			return nil, fmt.Errorf("%w: redis storage expects a redis client, got %T",
				session.ErrUnsupportedStorage, handle)
		}
		return New(client), nil
	})
}

// Store is the key/value storage backend.
type Store struct {
	client         redis.Cmdable
	backgroundSave bool
}

// Option configures a Store.
type Option func(*Store)

// WithBackgroundSave requests a BGSAVE checkpoint after every save and
// delete. The checkpoint is best-effort: Redis may refuse it (one may
// already be running) and that never fails the logical operation.
func WithBackgroundSave() Option {
	return func(s *Store) {
		s.backgroundSave = true
	}
}

// New creates a Redis session store over an already-connected client.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save writes the session under its id with a TTL ending at the session
// expiry. Saving an already-expired session fails rather than writing a key
// Redis would discard immediately. Clean sessions are a no-op.
func (s *Store) Save(ctx context.Context, sess *session.Session) error {
	if !sess.IsDirty() {
		return nil
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return errors.Join(session.ErrSaveSession,
			fmt.Errorf("session %s already expired", sess.ID))
	}

	payload, err := session.Encode(sess)
	if err != nil {
		return errors.Join(session.ErrSaveSession, err)
	}
	value := strings.Join([]string{
		payload,
		strconv.FormatInt(sess.ExpiresAt.Unix(), 10),
		sess.IP,
		sess.UserAgent,
	}, delimiter)

	if err := s.client.Set(ctx, sess.ID, value, ttl).Err(); err != nil {
		return errors.Join(session.ErrSaveSession, err)
	}
	s.checkpoint(ctx)

	sess.MarkSaved()
	return nil
}

// Load reconstructs the session stored under id. Missing keys, expired
// keys (already evicted by Redis), and corrupted values all surface as
// ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (*session.Session, error) {
	value, err := s.client.Get(ctx, id).Result()
	if err != nil {
		return nil, session.ErrNotFound
	}

	payload, _, _ := strings.Cut(value, delimiter)
	sess, err := session.Decode(payload)
	if err != nil {
		return nil, session.ErrNotFound
	}
	return sess, nil
}

// Delete removes the session key. Absent ids are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, id).Err(); err != nil {
		return errors.Join(session.ErrDeleteSession, err)
	}
	s.checkpoint(ctx)
	return nil
}

// DeleteExpired returns ErrSweepUnsupported: every key carries a TTL
// matching its session expiry, so Redis removes stale entries itself and a
// sweep has nothing to do. Callers must treat this as behavior already
// guaranteed by the medium.
func (s *Store) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, session.ErrSweepUnsupported
}

// checkpoint triggers a best-effort background persistence snapshot.
func (s *Store) checkpoint(ctx context.Context) {
	if s.backgroundSave {
		_ = s.client.BgSave(ctx).Err()
	}
}
