package redisstore_test

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionstore/redisstore"
	"github.com/dmitrymomot/sessionstore/session"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redisstore.Store) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, redisstore.New(client)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	_, store := setupRedis(t)
	ctx := context.Background()

	sess := session.New(session.Params{IP: "198.51.100.4", UserAgent: "curl/8.5.0"})
	sess.Set("cart", []any{"sku-1", "sku-2"})

	require.NoError(t, store.Save(ctx, sess))
	assert.False(t, sess.IsDirty())

	loaded, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, sess.UserAgent, loaded.UserAgent)
	cart, ok := loaded.Get("cart")
	require.True(t, ok)
	assert.Len(t, cart, 2)
}

func TestSave_ValueLayout(t *testing.T) {
	mr, store := setupRedis(t)
	ctx := context.Background()

	sess := session.New(session.Params{IP: "198.51.100.4", UserAgent: "curl/8.5.0"})
	require.NoError(t, store.Save(ctx, sess))

	value, err := mr.Get(sess.ID)
	require.NoError(t, err)

	parts := strings.SplitN(value, ":", 4)
	require.Len(t, parts, 4, "payload:expiry:ip:user-agent")
	assert.Equal(t, strconv.FormatInt(sess.ExpiresAt.Unix(), 10), parts[1])
	assert.Equal(t, "198.51.100.4", parts[2])
	assert.Equal(t, "curl/8.5.0", parts[3])

	decoded, err := session.Decode(parts[0])
	require.NoError(t, err)
	assert.Equal(t, sess.ID, decoded.ID)
}

func TestSave_KeyCarriesTTL(t *testing.T) {
	mr, store := setupRedis(t)
	ctx := context.Background()

	sess := session.New(session.Params{Duration: 900})
	require.NoError(t, store.Save(ctx, sess))

	ttl := mr.TTL(sess.ID)
	assert.Greater(t, ttl, 890*time.Second)
	assert.LessOrEqual(t, ttl, 900*time.Second)
}

func TestSave_ExpiredSessionRejected(t *testing.T) {
	mr, store := setupRedis(t)
	ctx := context.Background()

	sess := session.New(session.Params{Duration: -30})
	err := store.Save(ctx, sess)

	require.ErrorIs(t, err, session.ErrSaveSession)
	assert.False(t, mr.Exists(sess.ID))
	assert.True(t, sess.IsDirty(), "failed save keeps the session dirty")
}

func TestSave_CleanSessionIsNoop(t *testing.T) {
	mr, store := setupRedis(t)
	ctx := context.Background()

	sess := session.New(session.Params{})
	require.NoError(t, store.Save(ctx, sess))
	require.NoError(t, mr.Set(sess.ID, "sentinel"))

	require.NoError(t, store.Save(ctx, sess))

	value, err := mr.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "sentinel", value, "clean session writes nothing")
}

func TestLoad_Missing(t *testing.T) {
	_, store := setupRedis(t)

	_, err := store.Load(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestLoad_EvictedByTTL(t *testing.T) {
	mr, store := setupRedis(t)
	ctx := context.Background()

	sess := session.New(session.Params{Duration: 10})
	require.NoError(t, store.Save(ctx, sess))

	mr.FastForward(11 * time.Second)

	_, err := store.Load(ctx, sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestLoad_CorruptedValue(t *testing.T) {
	mr, store := setupRedis(t)

	require.NoError(t, mr.Set("broken", "%%%garbage%%%:123:ip:ua"))

	_, err := store.Load(context.Background(), "broken")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestDelete(t *testing.T) {
	mr, store := setupRedis(t)
	ctx := context.Background()

	sess := session.New(session.Params{})
	require.NoError(t, store.Save(ctx, sess))

	require.NoError(t, store.Delete(ctx, sess.ID))
	assert.False(t, mr.Exists(sess.ID))

	assert.NoError(t, store.Delete(ctx, sess.ID), "deleting an absent id is not an error")
}

func TestDeleteExpired_Unsupported(t *testing.T) {
	_, store := setupRedis(t)

	count, err := store.DeleteExpired(context.Background(), time.Now())

	assert.ErrorIs(t, err, session.ErrSweepUnsupported)
	assert.Zero(t, count)
}

func TestRegistry(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := session.Open(session.KindRedis, client)
	require.NoError(t, err)
	assert.NotNil(t, store)

	_, err = session.Open(session.KindRedis, 42)
	assert.ErrorIs(t, err, session.ErrUnsupportedStorage)
}
