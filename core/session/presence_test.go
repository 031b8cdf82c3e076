package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/core/presence"
	"github.com/dmitrymomot/sessionkit/core/session"
	"github.com/dmitrymomot/sessionkit/pkg/spider"
)

// memPresence is an in-memory presence.Store keyed by session id.
type memPresence struct {
	mu   sync.Mutex
	recs map[string]presence.Record
}

func newMemPresence() *memPresence {
	return &memPresence{recs: make(map[string]presence.Record)}
}

func (s *memPresence) FindByUser(_ context.Context, userID uint32) (presence.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.recs {
		if rec.UserID == userID && userID != 0 {
			return rec, nil
		}
	}
	return presence.Record{}, presence.ErrNotFound
}

func (s *memPresence) FindBySessionOrSpider(_ context.Context, sessionID, spiderID string) (presence.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.recs {
		if rec.UserID != 0 {
			continue
		}
		if rec.SessionID == sessionID || (spiderID != "" && rec.SpiderID == spiderID) {
			return rec, nil
		}
	}
	return presence.Record{}, presence.ErrNotFound
}

func (s *memPresence) Upsert(_ context.Context, rec presence.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.SessionID] = rec
	return nil
}

func (s *memPresence) DeleteBySession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, sessionID)
	return nil
}

func (s *memPresence) DeleteByUser(_ context.Context, userID uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, rec := range s.recs {
		if rec.UserID == userID {
			delete(s.recs, k)
		}
	}
	return nil
}

func (s *memPresence) DeleteIdleSince(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, rec := range s.recs {
		if rec.LastActivityAt.Before(cutoff) {
			delete(s.recs, k)
			n++
		}
	}
	return n, nil
}

func (s *memPresence) all() []presence.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]presence.Record, 0, len(s.recs))
	for _, rec := range s.recs {
		out = append(out, rec)
	}
	return out
}

func TestLoadCreatesPresenceRecord(t *testing.T) {
	t.Parallel()

	ps := newMemPresence()
	env := newTestEnv(t, session.RealmUser, session.WithPresence(presence.NewBridge(ps)))

	b, _ := env.load(t)
	require.NoError(t, b.Flush(context.Background()))

	recs := ps.all()
	require.Len(t, recs, 1)
	assert.Equal(t, b.Session().ID, recs[0].SessionID)
	assert.Zero(t, recs[0].UserID)
	assert.Equal(t, "/dashboard", recs[0].RequestURI)
	assert.Equal(t, http.MethodGet, recs[0].RequestMethod)
}

func TestDisableTrackingSkipsPresenceRefresh(t *testing.T) {
	t.Parallel()

	ps := newMemPresence()
	env := newTestEnv(t, session.RealmUser, session.WithPresence(presence.NewBridge(ps)))

	b, _ := env.load(t)
	createdAt := env.clock.Now()

	env.clock.Advance(10 * time.Minute)
	b.DisableTracking()
	require.NoError(t, b.Flush(context.Background()))

	recs := ps.all()
	require.Len(t, recs, 1)
	assert.Equal(t, createdAt, recs[0].LastActivityAt, "record untouched by flush")
}

func TestLoginMovesPresenceToUserRecord(t *testing.T) {
	t.Parallel()

	users := mapUsers{42: {ID: 42}}
	ps := newMemPresence()
	env := newTestEnv(t, session.RealmUser,
		session.WithUsers(users),
		session.WithPresence(presence.NewBridge(ps)),
	)
	ctx := context.Background()

	b, _ := env.load(t)
	guestSessionID := b.Session().ID

	require.NoError(t, b.ChangeUser(ctx, users[42]))
	require.NoError(t, b.Flush(ctx))

	recs := ps.all()
	require.Len(t, recs, 1)
	assert.NotEqual(t, guestSessionID, recs[0].SessionID)
	assert.Equal(t, uint32(42), recs[0].UserID)
}

func TestLogoutRemovesUserPresence(t *testing.T) {
	t.Parallel()

	users := mapUsers{42: {ID: 42}}
	ps := newMemPresence()
	env := newTestEnv(t, session.RealmUser,
		session.WithUsers(users),
		session.WithPresence(presence.NewBridge(ps)),
	)
	ctx := context.Background()

	b, _ := env.load(t)
	require.NoError(t, b.ChangeUser(ctx, users[42]))
	require.NoError(t, b.ChangeUser(ctx, session.Guest))

	// Both the user record and the guest record of the replaced session are
	// gone; presence reappears with the next request's fresh session.
	assert.Empty(t, ps.all())
}

func TestDeleteSessionsExceptKeepsPresence(t *testing.T) {
	t.Parallel()

	users := mapUsers{42: {ID: 42}}
	ps := newMemPresence()
	env := newTestEnv(t, session.RealmUser,
		session.WithUsers(users),
		session.WithPresence(presence.NewBridge(ps)),
	)
	ctx := context.Background()

	var keepID string
	for range 2 {
		b, _ := env.load(t)
		require.NoError(t, b.ChangeUser(ctx, users[42]))
		require.NoError(t, b.Flush(ctx))
		keepID = b.Session().ID
	}

	// The kept session is still online, so its presence record survives.
	require.NoError(t, env.handler.DeleteSessionsExcept(ctx, 42, keepID))
	recs := ps.all()
	require.Len(t, recs, 1)
	assert.Equal(t, uint32(42), recs[0].UserID)

	// Logging out everywhere takes the presence record with it.
	require.NoError(t, env.handler.DeleteSessionsExcept(ctx, 42, ""))
	assert.Empty(t, ps.all())
}

func TestCrawlerSessionsShareOnePresenceRecord(t *testing.T) {
	t.Parallel()

	ps := newMemPresence()
	env := newTestEnv(t, session.RealmUser,
		session.WithPresence(presence.NewBridge(ps)),
		session.WithSpiderDirectory(spider.DefaultDirectory()),
	)

	for range 3 {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")
		r.RemoteAddr = "203.0.113.9:40000"
		w := httptest.NewRecorder()
		b, err := env.handler.Load(w, r)
		require.NoError(t, err)
		assert.NotEmpty(t, b.SpiderID())
	}

	assert.Len(t, ps.all(), 1, "concurrent crawler sessions collapse to one record")
}

func TestPrunePresence(t *testing.T) {
	t.Parallel()

	ps := newMemPresence()
	env := newTestEnv(t, session.RealmUser, session.WithPresence(presence.NewBridge(ps)))
	ctx := context.Background()

	b, _ := env.load(t)
	require.NoError(t, b.Flush(ctx))

	env.clock.Advance(presence.Window + time.Minute)
	require.NoError(t, env.handler.Prune(ctx))

	assert.Empty(t, ps.all())
}
