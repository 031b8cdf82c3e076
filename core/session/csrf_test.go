package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/core/session"
)

func xsrfCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == "XSRF-TOKEN" {
			return c
		}
	}
	return nil
}

func TestSecurityTokenIsStable(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, session.RealmUser)
	b, _ := env.load(t)

	token := b.SecurityToken()
	require.NotEmpty(t, token)
	assert.Equal(t, token, b.SecurityToken())
	assert.True(t, b.ValidateSecurityToken(token))
	assert.False(t, b.ValidateSecurityToken("forged"))
	assert.False(t, b.ValidateSecurityToken(""))
}

func TestSecurityTokenSurvivesRequests(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, session.RealmUser)

	first, w := env.load(t)
	token := first.SecurityToken()
	require.NoError(t, first.Flush(context.Background()))

	second, _ := env.load(t, sessionCookie(t, w, session.RealmUser))
	assert.Equal(t, token, second.SecurityToken())
}

func TestXSRFCookieIssuedOnLoad(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, session.RealmUser)
	b, w := env.load(t)

	c := xsrfCookie(w)
	require.NotNil(t, c)
	assert.False(t, c.HttpOnly, "the token must be readable by scripts")
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Equal(t, c.Value, b.XSRFToken())

	assert.True(t, b.ValidateXSRFToken(c.Value))
	assert.False(t, b.ValidateXSRFToken(c.Value[:len(c.Value)-2]+"xx"))
	assert.False(t, b.ValidateXSRFToken(b.SecurityToken()), "unsigned token must not pass")
}

func TestXSRFCookieNotReissuedWhenValid(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, session.RealmUser)

	first, w := env.load(t)
	require.NoError(t, first.Flush(context.Background()))
	xsrf := xsrfCookie(w)
	require.NotNil(t, xsrf)

	second, w2 := env.load(t, sessionCookie(t, w, session.RealmUser), xsrf)
	assert.Nil(t, xsrfCookie(w2), "valid cookie left untouched")
	assert.Equal(t, xsrf.Value, second.XSRFToken())
}

func TestXSRFCookieSameSiteRelaxedForSharedDomain(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, session.RealmUser, session.WithCookieDomain("example.com"))
	_, w := env.load(t)

	c := xsrfCookie(w)
	require.NotNil(t, c)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "example.com", c.Domain)
}

func TestChangeUserRotatesSecurityToken(t *testing.T) {
	t.Parallel()

	users := mapUsers{42: {ID: 42}}
	env := newTestEnv(t, session.RealmUser, session.WithUsers(users))

	b, w := env.load(t)
	before := b.SecurityToken()

	require.NoError(t, b.ChangeUser(context.Background(), users[42]))

	after := b.SecurityToken()
	assert.NotEqual(t, before, after)
	assert.False(t, b.ValidateSecurityToken(before))

	// The response must carry the replacement XSRF cookie.
	var last *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "XSRF-TOKEN" {
			last = c
		}
	}
	require.NotNil(t, last)
	assert.True(t, b.ValidateXSRFToken(last.Value))
}
