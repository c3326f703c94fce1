package pgstore_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionstore/pgstore"
	"github.com/dmitrymomot/sessionstore/session"
)

type storedRow struct {
	payload string
	expires int64
}

// fakeDB emulates the handful of statements the store issues, keyed on
// statement shape rather than a real SQL engine.
type fakeDB struct {
	rows    map[string]storedRow
	execSQL []string
	execErr error
	rowErr  error
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: make(map[string]storedRow)}
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.execSQL = append(db.execSQL, sql)
	if db.execErr != nil {
		return pgconn.CommandTag{}, db.execErr
	}

	switch {
	case strings.Contains(sql, "CREATE TABLE"):
		return pgconn.NewCommandTag("CREATE TABLE"), nil
	case strings.Contains(sql, "INSERT INTO"):
		id := args[0].(string)
		db.rows[id] = storedRow{payload: args[1].(string), expires: args[2].(int64)}
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.Contains(sql, "WHERE session_id"):
		id := args[0].(string)
		n := 0
		if _, ok := db.rows[id]; ok {
			delete(db.rows, id)
			n = 1
		}
		return pgconn.NewCommandTag(fmt.Sprintf("DELETE %d", n)), nil
	case strings.Contains(sql, "WHERE expires"):
		now := args[0].(int64)
		n := 0
		for id, row := range db.rows {
			if row.expires < now {
				delete(db.rows, id)
				n++
			}
		}
		return pgconn.NewCommandTag(fmt.Sprintf("DELETE %d", n)), nil
	}
	return pgconn.CommandTag{}, fmt.Errorf("unexpected statement: %s", sql)
}

func (db *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	if db.rowErr != nil {
		return fakeRow{err: db.rowErr}
	}
	row, ok := db.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{payload: row.payload}
}

type fakeRow struct {
	payload string
	err     error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.payload
	return nil
}

func (db *fakeDB) countCreates() int {
	n := 0
	for _, sql := range db.execSQL {
		if strings.Contains(sql, "CREATE TABLE") {
			n++
		}
	}
	return n
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	db := newFakeDB()
	store := pgstore.New(db)
	ctx := context.Background()

	sess := session.New(session.Params{IP: "203.0.113.7", UserAgent: "Mozilla/5.0"})
	sess.Set("theme", "dark")

	require.NoError(t, store.Save(ctx, sess))
	assert.False(t, sess.IsDirty())

	loaded, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, sess.IP, loaded.IP)
	theme, ok := loaded.Get("theme")
	require.True(t, ok)
	assert.Equal(t, "dark", theme)
}

func TestSave_TableCreatedLazilyOnce(t *testing.T) {
	db := newFakeDB()
	store := pgstore.New(db)
	ctx := context.Background()

	assert.Empty(t, db.execSQL, "no query before the first operation")

	sess := session.New(session.Params{})
	require.NoError(t, store.Save(ctx, sess))
	sess.Set("k", "v")
	require.NoError(t, store.Save(ctx, sess))
	_, _ = store.Load(ctx, sess.ID)

	assert.Equal(t, 1, db.countCreates(), "DDL runs exactly once")
	assert.Contains(t, db.execSQL[0], "CREATE TABLE IF NOT EXISTS sessions")
}

func TestSave_UpsertStatement(t *testing.T) {
	db := newFakeDB()
	store := pgstore.New(db)
	ctx := context.Background()

	sess := session.New(session.Params{})
	require.NoError(t, store.Save(ctx, sess))
	sess.Set("k", "v")
	require.NoError(t, store.Save(ctx, sess))

	assert.Len(t, db.rows, 1, "upsert, never duplicate keys")
	upsert := db.execSQL[1]
	assert.Contains(t, upsert, "INSERT INTO sessions")
	assert.Contains(t, upsert, "ON CONFLICT (session_id) DO UPDATE")
}

func TestSave_CleanSessionIsNoop(t *testing.T) {
	db := newFakeDB()
	store := pgstore.New(db)
	ctx := context.Background()

	sess := session.New(session.Params{})
	require.NoError(t, store.Save(ctx, sess))
	queries := len(db.execSQL)

	require.NoError(t, store.Save(ctx, sess))
	assert.Equal(t, queries, len(db.execSQL), "clean session issues no statement")
}

func TestSave_SetupFailureIsSticky(t *testing.T) {
	db := newFakeDB()
	db.execErr = errors.New("permission denied for schema public")
	store := pgstore.New(db)
	ctx := context.Background()

	sess := session.New(session.Params{})
	err := store.Save(ctx, sess)
	require.ErrorIs(t, err, session.ErrSaveSession)

	sess2 := session.New(session.Params{})
	err = store.Save(ctx, sess2)
	require.ErrorIs(t, err, session.ErrSaveSession)
	assert.Equal(t, 1, db.countCreates(), "failed setup is not retried")
}

func TestLoad_Missing(t *testing.T) {
	store := pgstore.New(newFakeDB())

	_, err := store.Load(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestLoad_QueryFailure(t *testing.T) {
	db := newFakeDB()
	store := pgstore.New(db)
	ctx := context.Background()

	sess := session.New(session.Params{})
	require.NoError(t, store.Save(ctx, sess))

	db.rowErr = errors.New("connection reset")
	_, err := store.Load(ctx, sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound, "transport failures on the read path are NotFound")
}

func TestDelete(t *testing.T) {
	db := newFakeDB()
	store := pgstore.New(db)
	ctx := context.Background()

	sess := session.New(session.Params{})
	require.NoError(t, store.Save(ctx, sess))

	require.NoError(t, store.Delete(ctx, sess.ID))
	_, err := store.Load(ctx, sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	assert.NoError(t, store.Delete(ctx, sess.ID), "deleting an absent id is not an error")
}

func TestDeleteExpired(t *testing.T) {
	db := newFakeDB()
	store := pgstore.New(db)
	ctx := context.Background()

	expired1 := session.New(session.Params{Duration: -60})
	expired2 := session.New(session.Params{Duration: -1})
	live := session.New(session.Params{Duration: 900})
	for _, s := range []*session.Session{expired1, expired2, live} {
		require.NoError(t, store.Save(ctx, s))
	}

	count, err := store.DeleteExpired(ctx, time.Now())

	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Len(t, db.rows, 1)
}

func TestWithTable(t *testing.T) {
	db := newFakeDB()
	store := pgstore.New(db, pgstore.WithTable("app_sessions"))
	ctx := context.Background()

	sess := session.New(session.Params{})
	require.NoError(t, store.Save(ctx, sess))

	assert.Contains(t, db.execSQL[0], "CREATE TABLE IF NOT EXISTS app_sessions")
	assert.Contains(t, db.execSQL[1], "INSERT INTO app_sessions")
}

func TestWithTable_RejectsUnsafeName(t *testing.T) {
	db := newFakeDB()
	store := pgstore.New(db, pgstore.WithTable(`sessions"; DROP TABLE users; --`))
	ctx := context.Background()

	sess := session.New(session.Params{})
	require.NoError(t, store.Save(ctx, sess))

	assert.Contains(t, db.execSQL[0], "CREATE TABLE IF NOT EXISTS sessions", "unsafe names fall back to the default")
}

func TestRegistry(t *testing.T) {
	store, err := session.Open(session.KindPostgres, newFakeDB())
	require.NoError(t, err)
	assert.NotNil(t, store)

	_, err = session.Open(session.KindPostgres, "not a db")
	assert.ErrorIs(t, err, session.ErrUnsupportedStorage)
}
