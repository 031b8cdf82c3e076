package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/sessionkit/core/cookie"
	"github.com/dmitrymomot/sessionkit/core/permission"
	"github.com/dmitrymomot/sessionkit/core/presence"
	"github.com/dmitrymomot/sessionkit/core/sessioncookie"
	"github.com/dmitrymomot/sessionkit/pkg/clientip"
)

// userCookieMaxAge is the Max-Age of the user-realm session cookie for
// authenticated users. Guests and admin sessions get session cookies.
const userCookieMaxAge = int(UserSessionLifetime / time.Second)

// SpiderDirectory identifies recognized crawlers by User-Agent.
type SpiderDirectory interface {
	Identify(userAgent string) (string, bool)
}

// Handler owns session handling for one realm. It is immutable after
// construction and safe for concurrent use; per-request state lives in the
// Binding returned by Load.
type Handler struct {
	realm    Realm
	store    Store
	codec    sessioncookie.Codec
	envelope *sessioncookie.Envelope
	cookies  *cookie.Manager
	users    UserProvider
	perms    *permission.Cache
	presence *presence.Bridge
	spiders  SpiderDirectory
	activity UserActivityRecorder
	log      *slog.Logger
	now      func() time.Time

	cookiePrefix string
	cookieDomain string
	secure       bool
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithUsers sets the user provider. Without one, every session stays a guest
// session.
func WithUsers(users UserProvider) HandlerOption {
	return func(h *Handler) {
		if users != nil {
			h.users = users
		}
	}
}

// WithPermissions sets the permission cache consulted by Binding.Permission.
func WithPermissions(perms *permission.Cache) HandlerOption {
	return func(h *Handler) {
		h.perms = perms
	}
}

// WithPresence sets the online-presence bridge. Ignored for the admin realm,
// which never creates presence records.
func WithPresence(bridge *presence.Bridge) HandlerOption {
	return func(h *Handler) {
		h.presence = bridge
	}
}

// WithSpiderDirectory sets the crawler directory used to collapse crawler
// presence records.
func WithSpiderDirectory(spiders SpiderDirectory) HandlerOption {
	return func(h *Handler) {
		h.spiders = spiders
	}
}

// WithActivityRecorder sets the hook notified about identity-level side
// effects of Delete.
func WithActivityRecorder(rec UserActivityRecorder) HandlerOption {
	return func(h *Handler) {
		h.activity = rec
	}
}

// WithCookiePrefix sets the deployment's cookie name prefix.
func WithCookiePrefix(prefix string) HandlerOption {
	return func(h *Handler) {
		h.cookiePrefix = prefix
	}
}

// WithCookieDomain marks the deployment as multi-domain and sets the shared
// cookie domain. Multi-domain deployments cannot use SameSite=Strict on the
// XSRF cookie; the two modes are mutually exclusive.
func WithCookieDomain(domain string) HandlerOption {
	return func(h *Handler) {
		h.cookieDomain = domain
	}
}

// WithSecureCookies restricts all issued cookies to HTTPS. Enabled by
// default; disable only for local development.
func WithSecureCookies(secure bool) HandlerOption {
	return func(h *Handler) {
		h.secure = secure
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler creates a session handler for the given realm.
func NewHandler(realm Realm, store Store, codec sessioncookie.Codec, opts ...HandlerOption) *Handler {
	h := &Handler{
		realm:  realm,
		store:  store,
		codec:  codec,
		users:  guestOnlyProvider{},
		log:    slog.New(slog.DiscardHandler),
		now:    time.Now,
		secure: true,
	}

	for _, opt := range opts {
		opt(h)
	}

	// The XSRF token shares the signing secrets of the session cookie.
	if signed, ok := codec.(*sessioncookie.SignedCodec); ok {
		h.envelope = signed.Envelope()
	}

	// Presence is a user-realm concept only.
	if h.realm == RealmAdmin {
		h.presence = nil
	}

	h.cookies = cookie.New(cookie.WithSecure(h.secure))

	return h
}

// Realm returns the realm this handler serves.
func (h *Handler) Realm() Realm {
	return h.realm
}

// Load binds a session to the current request: it decodes the realm cookie,
// looks up the matching row, and falls back to a freshly created guest
// session on any cookie or lookup miss. Cookie corruption is deliberately
// indistinguishable from "no cookie"; only storage failures return an error.
func (h *Handler) Load(w http.ResponseWriter, r *http.Request) (*Binding, error) {
	ctx := r.Context()

	b := &Binding{
		h:         h,
		w:         w,
		r:         r,
		ipAddress: clientip.GetIP(r),
		userAgent: r.UserAgent(),
	}
	if h.spiders != nil {
		b.spiderID, _ = h.spiders.Identify(b.userAgent)
	}

	if value, err := h.cookies.Get(r, h.realm.CookieName(h.cookiePrefix)); err == nil {
		if payload, ok := h.codec.Decode(value); ok {
			bound, err := h.fetchExisting(ctx, b, payload.SessionID)
			if err != nil {
				return nil, err
			}
			if bound {
				b.hasValidCookie = true
				h.issueXSRFToken(b)
				return b, nil
			}
		} else {
			cookieDecodeFailures.WithLabelValues(h.realm.String()).Inc()
			h.log.DebugContext(ctx, "discarding invalid session cookie", slog.String("realm", h.realm.String()))
		}
	}

	if err := h.create(ctx, b); err != nil {
		return nil, err
	}
	h.issueXSRFToken(b)
	return b, nil
}

// fetchExisting tries to bind the request to the stored session. It reports
// false, without an error, when the session is missing, expired, corrupt,
// or references a vanished user; the caller then creates a fresh session.
func (h *Handler) fetchExisting(ctx context.Context, b *Binding, sessionID string) (bool, error) {
	row, err := h.store.FetchByID(ctx, h.realm, sessionID)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrCorruptVariables):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("fetch session: %w", err)
	}

	now := h.now()
	if now.Sub(row.LastActivityAt) > h.realm.Lifetime(row.UserID) {
		return false, nil
	}

	user := Guest
	if row.UserID != 0 {
		user, err = h.users.ByID(ctx, row.UserID)
		if errors.Is(err, ErrUnknownUser) {
			// The account was removed while the session was idle.
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("resolve session user: %w", err)
		}
	}

	b.sess = fromRow(row)
	b.sess.IPAddress = b.ipAddress
	b.sess.UserAgent = b.userAgent
	b.sess.LastActivityAt = now
	b.user = user

	// Keep the long-lived cookie of authenticated users fresh so it does not
	// outlive its Max-Age mid-session. Admin cookies stay session cookies.
	if h.realm == RealmUser && row.UserID != 0 {
		if err := h.setSessionCookie(b, row.UserID, userCookieMaxAge); err != nil {
			return false, err
		}
	}

	if err := h.ensurePresence(ctx, b); err != nil {
		return false, err
	}

	return true, nil
}

// create starts a fresh guest session, issues its cookie, and creates the
// paired presence record in the user realm.
func (h *Handler) create(ctx context.Context, b *Binding) error {
	now := h.now()
	row := Row{
		ID:             newSessionID(),
		Realm:          h.realm,
		IPAddress:      b.ipAddress,
		UserAgent:      b.userAgent,
		LastActivityAt: now,
		Variables:      make(map[string]any),
	}

	if err := h.store.Insert(ctx, row); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	b.sess = fromRow(row)
	b.user = Guest
	b.firstVisit = true
	b.presenceRec = nil

	if err := h.setSessionCookie(b, 0, 0); err != nil {
		return err
	}

	sessionsCreated.WithLabelValues(h.realm.String()).Inc()

	return h.ensurePresence(ctx, b)
}

// ensurePresence loads or lazily creates the presence record paired with the
// bound session. No-op outside the user realm.
func (h *Handler) ensurePresence(ctx context.Context, b *Binding) error {
	if h.presence == nil {
		return nil
	}

	rec, err := h.presence.Ensure(ctx, b.sess.ID, b.sess.UserID, b.spiderID, presence.Activity{
		IPAddress:     b.ipAddress,
		UserAgent:     b.userAgent,
		RequestURI:    b.r.RequestURI,
		RequestMethod: b.r.Method,
		At:            h.now(),
	})
	if err != nil {
		return err
	}

	b.presenceRec = &rec
	return nil
}

// setSessionCookie issues the realm session cookie for the given user id.
// maxAge 0 produces a session cookie.
func (h *Handler) setSessionCookie(b *Binding, userID uint32, maxAge int) error {
	value, err := h.codec.Encode(b.sess.ID, userID)
	if err != nil {
		return fmt.Errorf("encode session cookie: %w", err)
	}

	opts := []cookie.Option{cookie.WithMaxAge(maxAge)}
	if h.cookieDomain != "" {
		opts = append(opts, cookie.WithDomain(h.cookieDomain))
	}

	return b.h.cookies.Set(b.w, h.realm.CookieName(h.cookiePrefix), value, opts...)
}

// Sessions returns all stored sessions of a registered user in this realm,
// e.g. for a "manage your devices" view.
func (h *Handler) Sessions(ctx context.Context, userID uint32) ([]Row, error) {
	if userID == 0 {
		return nil, ErrNotApplicable
	}
	return h.store.ListByUser(ctx, h.realm, userID)
}

// DeleteSessionsExcept removes all sessions of a registered user except the
// one with keepSessionID ("log out everywhere else"). An empty or unknown
// keepSessionID removes every session of the user.
func (h *Handler) DeleteSessionsExcept(ctx context.Context, userID uint32, keepSessionID string) error {
	if userID == 0 {
		return ErrNotApplicable
	}

	if err := h.store.DeleteByUser(ctx, h.realm, userID, keepSessionID); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}

	// When a session is kept the user is still online through it, so the
	// presence record must survive.
	if h.presence != nil && keepSessionID == "" {
		if err := h.presence.Forget(ctx, "", userID); err != nil {
			return err
		}
	}

	return nil
}

// Prune removes expired session rows for this realm and, in the user realm,
// presence records past their own shorter window. Prune is delete-by-
// predicate only and therefore safe to run repeatedly and concurrently.
func (h *Handler) Prune(ctx context.Context) error {
	now := h.now()

	guestCutoff := now.Add(-GuestSessionLifetime)
	userCutoff := now.Add(-UserSessionLifetime)
	if h.realm == RealmAdmin {
		guestCutoff = now.Add(-AdminSessionLifetime)
		userCutoff = guestCutoff
	}

	n, err := h.store.DeleteExpired(ctx, h.realm, guestCutoff, userCutoff)
	if err != nil {
		return fmt.Errorf("prune sessions: %w", err)
	}
	sessionsPruned.WithLabelValues(h.realm.String()).Add(float64(n))

	if h.presence != nil {
		if _, err := h.presence.Prune(ctx, now); err != nil {
			return err
		}
	}

	if n > 0 {
		h.log.InfoContext(ctx, "pruned expired sessions",
			slog.String("realm", h.realm.String()),
			slog.Int64("count", n),
		)
	}

	return nil
}

// bindingContextKey is an unexported key type to avoid context collisions.
type bindingContextKey struct{}

// WithBinding returns a context carrying the request's session binding.
func WithBinding(ctx context.Context, b *Binding) context.Context {
	return context.WithValue(ctx, bindingContextKey{}, b)
}

// BindingFromContext extracts the session binding stored with WithBinding.
func BindingFromContext(ctx context.Context) (*Binding, bool) {
	b, ok := ctx.Value(bindingContextKey{}).(*Binding)
	return b, ok
}
