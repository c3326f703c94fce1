package session

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Metadata carries the client attributes the request-handling collaborator
// extracts for a new session.
type Metadata struct {
	IP        string
	UserAgent string
}

// ClientWriter is the pair of capabilities the caller supplies so the
// lifecycle engine can manage the client-side session credential without
// touching cookies or headers itself.
type ClientWriter interface {
	// SetClientSessionID issues (or re-issues) the session id to the client.
	SetClientSessionID(id string)

	// ClearClientSessionID removes the session credential from the client.
	ClearClientSessionID()
}

// Manager orchestrates the session lifecycle over a Store: load-or-create,
// expiry checks, scheduled identifier rotation, and invalidation. It is the
// only type request handlers interact with directly.
type Manager struct {
	store            Store
	duration         time.Duration
	rotationInterval time.Duration
	securityModel    []string
	fieldStore       string
	log              *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithDuration sets the session validity window. Accepts a time.Duration,
// an int/int64/string count of seconds, or nil for the default.
func WithDuration(v any) Option {
	return func(m *Manager) {
		m.duration = NormalizeDuration(v, DefaultDuration)
	}
}

// WithRotationInterval sets the period between identifier rotations. The
// same loose typing as WithDuration applies.
func WithRotationInterval(v any) Option {
	return func(m *Manager) {
		m.rotationInterval = NormalizeDuration(v, DefaultRotationInterval)
	}
}

// WithSecurityModel sets the passthrough security model carried on every
// session this manager creates. The engine never interprets it.
func WithSecurityModel(model ...string) Option {
	return func(m *Manager) {
		m.securityModel = model
	}
}

// WithFieldStore sets the passthrough field-store blob carried on every
// session this manager creates.
func WithFieldStore(fieldStore string) Option {
	return func(m *Manager) {
		m.fieldStore = fieldStore
	}
}

// WithLogger sets the logger used for degraded read paths and sweeps.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewManager creates a lifecycle manager over the given store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:            store,
		duration:         DefaultDuration,
		rotationInterval: DefaultRotationInterval,
		log:              slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Duration returns the configured session validity window.
func (m *Manager) Duration() time.Duration {
	return m.duration
}

// Resolve returns the usable session for the given client-carried id. A
// loadable, unexpired record is restored as-is. Everything else — no id,
// unknown id, corrupted payload, backend read failure, or an expired record
// — degrades to a fresh session that is persisted immediately. An expired
// record is simply superseded, not deleted here; sweeps are the cleanup
// mechanism. The only error surfaced is a persist failure on the fresh path.
func (m *Manager) Resolve(ctx context.Context, id string, meta Metadata) (*Session, error) {
	if id != "" {
		sess, err := m.store.Load(ctx, id)
		switch {
		case err != nil:
			if !errors.Is(err, ErrNotFound) {
				m.log.WarnContext(ctx, "session load failed, starting fresh",
					slog.String("session_id", id), slog.Any("error", err))
			}
		case sess.IsExpired(time.Now()):
			// superseded below
		default:
			return sess, nil
		}
	}

	sess := New(Params{
		IP:               meta.IP,
		UserAgent:        meta.UserAgent,
		Duration:         m.duration,
		RotationInterval: m.rotationInterval,
		SecurityModel:    m.securityModel,
		FieldStore:       m.fieldStore,
	})
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, errors.Join(ErrSaveSession, err)
	}
	return sess, nil
}

// Finish completes a request's session handling. An invalidated session
// only clears the client credential. Otherwise the session is rotated if
// the rotation schedule has passed (new id, data preserved, old entry
// deleted) or refreshed in place, persisted, and the client id re-issued —
// extending the session and making in-request mutations durable in one
// step. It returns the session the client now holds, which differs from
// sess after a rotation.
func (m *Manager) Finish(ctx context.Context, sess *Session, client ClientWriter) (*Session, error) {
	if sess.Invalidated() {
		if client != nil {
			client.ClearClientSessionID()
		}
		return sess, nil
	}

	if sess.ShouldRotate(time.Now()) {
		rotated, err := m.Rotate(ctx, sess)
		if err != nil {
			return sess, err
		}
		sess = rotated
	} else {
		sess.Refresh()
		if err := m.store.Save(ctx, sess); err != nil {
			return sess, errors.Join(ErrSaveSession, err)
		}
	}

	if client != nil {
		client.SetClientSessionID(sess.ID)
	}
	return sess, nil
}

// Rotate replaces the session identifier while preserving its data: the old
// persisted entry is deleted and a new record value with a fresh id, expiry,
// and rotation schedule is persisted. Exported for flows that rotate outside
// the schedule, such as privilege changes on login.
func (m *Manager) Rotate(ctx context.Context, sess *Session) (*Session, error) {
	if err := m.store.Delete(ctx, sess.ID); err != nil {
		return nil, errors.Join(ErrDeleteSession, err)
	}

	rotated := sess.rotated()
	if err := m.store.Save(ctx, rotated); err != nil {
		return nil, errors.Join(ErrSaveSession, err)
	}
	return rotated, nil
}

// Refresh prolongs the session validity and persists it. A non-nil duration
// overrides the session's memoized duration from here on (the same loose
// typing as WithDuration), so this session may outlive the global setting.
func (m *Manager) Refresh(ctx context.Context, sess *Session, duration any) error {
	if duration != nil {
		sess.Duration = NormalizeDuration(duration, m.duration)
	}
	sess.Refresh()
	if err := m.store.Save(ctx, sess); err != nil {
		return errors.Join(ErrSaveSession, err)
	}
	return nil
}

// Invalidate destroys the session server-side and marks it so Finish clears
// the client credential instead of re-issuing it. Use on logout.
func (m *Manager) Invalidate(ctx context.Context, sess *Session) error {
	if err := m.store.Delete(ctx, sess.ID); err != nil {
		return errors.Join(ErrDeleteSession, err)
	}
	sess.invalidate()
	return nil
}

// SweepExpired removes every stored session whose expiry is strictly before
// now. The engine never schedules sweeps itself; run this from a periodic
// job. Media with native expiry return ErrSweepUnsupported.
func (m *Manager) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	count, err := m.store.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	m.log.InfoContext(ctx, "expired sessions swept", slog.Int64("count", count))
	return count, nil
}
