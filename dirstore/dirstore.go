// Package dirstore persists one session per file, named <id>.session, in a
// single directory. Saves write a temp file in the same directory and
// rename it over the target, giving O(1) atomic save/load/delete; sweeping
// scans the directory. Each file holds one CSV row:
// session_id, payload, expiry-epoch-seconds, ip_address, user_agent.
package dirstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrymomot/sessionstore/session"
)

// suffix distinguishes session files from anything else in the directory.
const suffix = ".session"

func init() {
	session.Register(session.KindDir, func(handle any) (session.Store, error) {
		dir, ok := handle.(string)
		if !ok {
			return nil, fmt.Errorf("%w: dir storage expects a directory path, got %T",
				session.ErrUnsupportedStorage, handle)
		}
		return New(dir)
	})
}

// Store is the directory storage backend.
type Store struct {
	dir string
}

// New opens the session directory, creating it if absent.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Save writes the session's row to a temp file in the session directory and
// renames it to <id>.session. Clean sessions are a no-op.
func (s *Store) Save(_ context.Context, sess *session.Session) error {
	if !sess.IsDirty() {
		return nil
	}

	payload, err := session.Encode(sess)
	if err != nil {
		return errors.Join(session.ErrSaveSession, err)
	}

	tmp, err := os.CreateTemp(s.dir, "session-*.tmp")
	if err != nil {
		return errors.Join(session.ErrSaveSession, err)
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	w := csv.NewWriter(tmp)
	if err := w.Write([]string{
		sess.ID,
		payload,
		strconv.FormatInt(sess.ExpiresAt.Unix(), 10),
		sess.IP,
		sess.UserAgent,
	}); err != nil {
		tmp.Close()
		return errors.Join(session.ErrSaveSession, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return errors.Join(session.ErrSaveSession, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Join(session.ErrSaveSession, err)
	}
	if err := os.Rename(tmp.Name(), s.file(sess.ID)); err != nil {
		return errors.Join(session.ErrSaveSession, err)
	}

	sess.MarkSaved()
	return nil
}

// Load reconstructs the session stored in <id>.session. Ids that could not
// have been produced by this package are rejected before touching the
// filesystem, so a hostile id cannot escape the session directory.
func (s *Store) Load(_ context.Context, id string) (*session.Session, error) {
	if !session.ValidID(id) {
		return nil, session.ErrNotFound
	}

	rec, err := readRow(s.file(id))
	if err != nil || len(rec) < 2 {
		return nil, session.ErrNotFound
	}
	sess, err := session.Decode(rec[1])
	if err != nil {
		return nil, session.ErrNotFound
	}
	return sess, nil
}

// Delete removes the session file. Absent ids are not an error.
func (s *Store) Delete(_ context.Context, id string) error {
	if !session.ValidID(id) {
		return nil
	}
	if err := os.Remove(s.file(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Join(session.ErrDeleteSession, err)
	}
	return nil
}

// DeleteExpired scans the directory and removes every session file whose
// stored expiry is strictly before now. Unreadable files are left alone.
func (s *Store) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, errors.Join(session.ErrDeleteSession, err)
	}

	var count int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		name := filepath.Join(s.dir, entry.Name())
		rec, err := readRow(name)
		if err != nil || len(rec) < 3 {
			continue
		}
		expires, err := strconv.ParseInt(rec[2], 10, 64)
		if err != nil || expires >= now.Unix() {
			continue
		}
		if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return count, errors.Join(session.ErrDeleteSession, err)
		}
		count++
	}
	return count, nil
}

func (s *Store) file(id string) string {
	return filepath.Join(s.dir, id+suffix)
}

func readRow(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.Read()
}
