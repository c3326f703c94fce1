// Package pgstore persists sessions in a single Postgres table, one row per
// session, keyed by id. Saves are single-statement upserts, so concurrent
// writers resolve to last-writer-wins without partial rows. The table is
// created lazily on first use; connection setup belongs to the caller.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/sessionstore/session"
)

// DB is the slice of pgx both *pgxpool.Pool and *pgx.Conn satisfy. Tests
// substitute a fake.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DefaultTable is the session table name unless WithTable overrides it.
const DefaultTable = "sessions"

// identifier restricts table names to plain SQL identifiers, since the name
// is interpolated into DDL and DML.
var identifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func init() {
	session.Register(session.KindPostgres, func(handle any) (session.Store, error) {
		switch db := handle.(type) {
		case DB:
			return New(db), nil
		default:
			return nil, fmt.Errorf("%w: postgres storage expects a *pgxpool.Pool or *pgx.Conn, got %T",
				session.ErrUnsupportedStorage, handle)
		}
	})
}

// compile-time interface checks for the supported handle types
var (
	_ DB = (*pgxpool.Pool)(nil)
	_ DB = (*pgx.Conn)(nil)
)

// Store is the relational storage backend.
type Store struct {
	db    DB
	table string

	setupOnce sync.Once
	setupErr  error
}

// Option configures a Store.
type Option func(*Store)

// WithTable overrides the session table name. Names that are not plain SQL
// identifiers are ignored.
func WithTable(name string) Option {
	return func(s *Store) {
		if identifier.MatchString(name) {
			s.table = name
		}
	}
}

// New creates a relational session store over an already-open connection or
// pool. No query runs until the first operation.
func New(db DB, opts ...Option) *Store {
	s := &Store{db: db, table: DefaultTable}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ensureTable creates the session table on the first operation. The result
// is memoized: a failed setup fails every subsequent operation the same way.
func (s *Store) ensureTable(ctx context.Context) error {
	s.setupOnce.Do(func() {
		_, s.setupErr = s.db.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			session_id varchar(64) PRIMARY KEY,
			data text NOT NULL,
			expires bigint NOT NULL,
			ip_address text,
			user_agent text
		)`, s.table))
	})
	return s.setupErr
}

// Save upserts the session's row in one statement. Clean sessions are a
// no-op.
func (s *Store) Save(ctx context.Context, sess *session.Session) error {
	if !sess.IsDirty() {
		return nil
	}
	if err := s.ensureTable(ctx); err != nil {
		return errors.Join(session.ErrSaveSession, err)
	}

	payload, err := session.Encode(sess)
	if err != nil {
		return errors.Join(session.ErrSaveSession, err)
	}

	_, err = s.db.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (session_id, data, expires, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO UPDATE SET
			data = EXCLUDED.data,
			expires = EXCLUDED.expires,
			ip_address = EXCLUDED.ip_address,
			user_agent = EXCLUDED.user_agent`, s.table),
		sess.ID, payload, sess.ExpiresAt.Unix(), sess.IP, sess.UserAgent)
	if err != nil {
		return errors.Join(session.ErrSaveSession, err)
	}

	sess.MarkSaved()
	return nil
}

// Load reconstructs the session stored under id. Missing rows, corrupted
// payloads, and query failures all surface as ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (*session.Session, error) {
	if err := s.ensureTable(ctx); err != nil {
		return nil, session.ErrNotFound
	}

	var payload string
	err := s.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT data FROM %s WHERE session_id = $1`, s.table), id,
	).Scan(&payload)
	if err != nil {
		return nil, session.ErrNotFound
	}

	sess, err := session.Decode(payload)
	if err != nil {
		return nil, session.ErrNotFound
	}
	return sess, nil
}

// Delete removes the session's row. Absent ids are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.ensureTable(ctx); err != nil {
		return errors.Join(session.ErrDeleteSession, err)
	}
	_, err := s.db.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE session_id = $1`, s.table), id)
	if err != nil {
		return errors.Join(session.ErrDeleteSession, err)
	}
	return nil
}

// DeleteExpired removes every row whose stored expiry is strictly before
// now and returns the number removed.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := s.ensureTable(ctx); err != nil {
		return 0, errors.Join(session.ErrDeleteSession, err)
	}
	tag, err := s.db.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE expires < $1`, s.table), now.Unix())
	if err != nil {
		return 0, errors.Join(session.ErrDeleteSession, err)
	}
	return tag.RowsAffected(), nil
}
