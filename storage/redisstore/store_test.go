package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/core/session"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewStore(client), mr
}

func guestRow(id string) session.Row {
	return session.Row{
		ID:             id,
		Realm:          session.RealmUser,
		IPAddress:      "203.0.113.7",
		UserAgent:      "test-agent/1.0",
		LastActivityAt: time.Now().UTC().Truncate(time.Second),
		Variables:      map[string]any{},
	}
}

func TestInsertAndFetch(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()

	row := guestRow("a1b2")
	row.Variables = map[string]any{"step": float64(2)}
	require.NoError(t, store.Insert(ctx, row))

	got, err := store.FetchByID(ctx, session.RealmUser, "a1b2")
	require.NoError(t, err)
	assert.Equal(t, row.ID, got.ID)
	assert.Equal(t, session.RealmUser, got.Realm)
	assert.Equal(t, row.IPAddress, got.IPAddress)
	assert.True(t, row.LastActivityAt.Equal(got.LastActivityAt))
	assert.Equal(t, float64(2), got.Variables["step"])
}

func TestFetchMissing(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	_, err := store.FetchByID(context.Background(), session.RealmUser, "missing")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestFetchCorruptValue(t *testing.T) {
	t.Parallel()

	store, mr := newTestStore(t)

	require.NoError(t, mr.Set(sessionKey(session.RealmUser, "bad"), "{not json"))

	_, err := store.FetchByID(context.Background(), session.RealmUser, "bad")
	assert.ErrorIs(t, err, session.ErrCorruptVariables)
}

func TestTTLFollowsUserClass(t *testing.T) {
	t.Parallel()

	store, mr := newTestStore(t)
	ctx := context.Background()

	guest := guestRow("guest1")
	require.NoError(t, store.Insert(ctx, guest))
	assert.Equal(t, session.GuestSessionLifetime, mr.TTL(sessionKey(session.RealmUser, "guest1")))

	authed := guestRow("user1")
	authed.UserID = 42
	require.NoError(t, store.Insert(ctx, authed))
	assert.Equal(t, session.UserSessionLifetime, mr.TTL(sessionKey(session.RealmUser, "user1")))

	admin := guestRow("adm1")
	admin.Realm = session.RealmAdmin
	admin.UserID = 1
	require.NoError(t, store.Insert(ctx, admin))
	assert.Equal(t, session.AdminSessionLifetime, mr.TTL(sessionKey(session.RealmAdmin, "adm1")))
}

func TestSessionsExpire(t *testing.T) {
	t.Parallel()

	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, guestRow("g1")))

	mr.FastForward(session.GuestSessionLifetime + time.Minute)

	_, err := store.FetchByID(ctx, session.RealmUser, "g1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestUpdateActivityResetsTTL(t *testing.T) {
	t.Parallel()

	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, guestRow("g1")))
	mr.FastForward(time.Hour)

	at := time.Now().UTC()
	require.NoError(t, store.UpdateActivity(ctx, session.RealmUser, "g1", "198.51.100.1", "other-agent", at))

	assert.Equal(t, session.GuestSessionLifetime, mr.TTL(sessionKey(session.RealmUser, "g1")))

	got, err := store.FetchByID(ctx, session.RealmUser, "g1")
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.1", got.IPAddress)
	assert.Equal(t, "other-agent", got.UserAgent)
}

func TestUpdateVariables(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, guestRow("g1")))
	require.NoError(t, store.UpdateVariables(ctx, session.RealmUser, "g1", map[string]any{"k": "v"}))

	got, err := store.FetchByID(ctx, session.RealmUser, "g1")
	require.NoError(t, err)
	assert.Equal(t, "v", got.Variables["k"])

	err = store.UpdateVariables(ctx, session.RealmUser, "missing", nil)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestUpdateUserMovesIndexAndExtendsTTL(t *testing.T) {
	t.Parallel()

	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, guestRow("g1")))
	require.NoError(t, store.UpdateUser(ctx, session.RealmUser, "g1", 42))

	assert.Equal(t, session.UserSessionLifetime, mr.TTL(sessionKey(session.RealmUser, "g1")))

	rows, err := store.ListByUser(ctx, session.RealmUser, 42)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint32(42), rows[0].UserID)
}

func TestDeleteByID(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()

	row := guestRow("u1")
	row.UserID = 42
	require.NoError(t, store.Insert(ctx, row))
	require.NoError(t, store.DeleteByID(ctx, session.RealmUser, "u1"))

	_, err := store.FetchByID(ctx, session.RealmUser, "u1")
	assert.ErrorIs(t, err, session.ErrNotFound)

	rows, err := store.ListByUser(ctx, session.RealmUser, 42)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDeleteByUserKeepsException(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"s1", "s2", "s3"} {
		row := guestRow(id)
		row.UserID = 42
		require.NoError(t, store.Insert(ctx, row))
	}

	require.NoError(t, store.DeleteByUser(ctx, session.RealmUser, 42, "s2"))

	rows, err := store.ListByUser(ctx, session.RealmUser, 42)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "s2", rows[0].ID)
}

func TestListByUserPrunesExpiredIndexMembers(t *testing.T) {
	t.Parallel()

	store, mr := newTestStore(t)
	ctx := context.Background()

	row := guestRow("s1")
	row.UserID = 42
	require.NoError(t, store.Insert(ctx, row))

	// Simulate TTL eviction that leaves the index member behind.
	mr.Del(sessionKey(session.RealmUser, "s1"))

	rows, err := store.ListByUser(ctx, session.RealmUser, 42)
	require.NoError(t, err)
	assert.Empty(t, rows)

	members, err := store.client.SMembers(ctx, userIndexKey(session.RealmUser, 42)).Result()
	require.NoError(t, err)
	assert.Empty(t, members, "stale index member removed")
}
