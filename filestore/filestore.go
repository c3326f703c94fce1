// Package filestore persists all sessions in one shared CSV file. Every
// operation reads the whole file and atomically rewrites it through a temp
// file and rename, which is crash-safe but O(total sessions) per call —
// acceptable only for low session counts. Row layout:
// session_id, payload, expiry-epoch-seconds, ip_address, user_agent.
package filestore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dmitrymomot/sessionstore/session"
)

func init() {
	session.Register(session.KindFile, func(handle any) (session.Store, error) {
		path, ok := handle.(string)
		if !ok {
			return nil, fmt.Errorf("%w: file storage expects a file path, got %T",
				session.ErrUnsupportedStorage, handle)
		}
		return New(path)
	})
}

// Store is the single-file storage backend.
type Store struct {
	path string
}

// New opens (creating if absent) the shared session file. The process needs
// read and write access to the file and its directory.
func New(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open session file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return &Store{path: path}, nil
}

// Save upserts the session's row and rewrites the file atomically. Clean
// sessions are a no-op.
func (s *Store) Save(_ context.Context, sess *session.Session) error {
	if !sess.IsDirty() {
		return nil
	}

	payload, err := session.Encode(sess)
	if err != nil {
		return errors.Join(session.ErrSaveSession, err)
	}
	row := []string{
		sess.ID,
		payload,
		strconv.FormatInt(sess.ExpiresAt.Unix(), 10),
		sess.IP,
		sess.UserAgent,
	}

	err = s.rewrite(func(w *csv.Writer, rows [][]string) error {
		found := false
		for _, rec := range rows {
			if len(rec) > 0 && rec[0] == sess.ID {
				if err := w.Write(row); err != nil {
					return err
				}
				found = true
				continue
			}
			if err := w.Write(rec); err != nil {
				return err
			}
		}
		if !found {
			return w.Write(row)
		}
		return nil
	})
	if err != nil {
		return errors.Join(session.ErrSaveSession, err)
	}

	sess.MarkSaved()
	return nil
}

// Load scans the file for the session's row and reconstructs the record.
// Missing ids, unreadable files, and corrupted payloads all surface as
// ErrNotFound.
func (s *Store) Load(_ context.Context, id string) (*session.Session, error) {
	rows, err := s.readAll()
	if err != nil {
		return nil, session.ErrNotFound
	}
	for _, rec := range rows {
		if len(rec) >= 2 && rec[0] == id {
			sess, err := session.Decode(rec[1])
			if err != nil {
				return nil, session.ErrNotFound
			}
			return sess, nil
		}
	}
	return nil, session.ErrNotFound
}

// Delete drops the session's row. Absent ids are not an error.
func (s *Store) Delete(_ context.Context, id string) error {
	err := s.rewrite(func(w *csv.Writer, rows [][]string) error {
		for _, rec := range rows {
			if len(rec) > 0 && rec[0] == id {
				continue
			}
			if err := w.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Join(session.ErrDeleteSession, err)
	}
	return nil
}

// DeleteExpired drops every row whose stored expiry is strictly before now
// and returns the number removed. Rows it cannot parse are kept.
func (s *Store) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var count int64
	err := s.rewrite(func(w *csv.Writer, rows [][]string) error {
		for _, rec := range rows {
			if len(rec) >= 3 {
				expires, err := strconv.ParseInt(rec[2], 10, 64)
				if err == nil && expires < now.Unix() {
					count++
					continue
				}
			}
			if err := w.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, errors.Join(session.ErrDeleteSession, err)
	}
	return count, nil
}

func (s *Store) readAll() ([][]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

// rewrite reads every row, lets fn emit the replacement rows, and swaps the
// result in with a rename so concurrent readers see either the prior or the
// new file, never a partial write. The temp file lives in the same
// directory to keep the rename on one filesystem.
func (s *Store) rewrite(fn func(w *csv.Writer, rows [][]string) error) error {
	rows, err := s.readAll()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "sessions-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	w := csv.NewWriter(tmp)
	if err := fn(w, rows); err != nil {
		tmp.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
