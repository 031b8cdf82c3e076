package session

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/text/language"

	"github.com/dmitrymomot/sessionkit/core/permission"
	"github.com/dmitrymomot/sessionkit/core/presence"
)

// Session variable keys used by the typed preference accessors.
const (
	varLanguage = "language"
	varStyleID  = "styleID"
)

// Binding is the per-request view of a session. It is created by
// Handler.Load, carries request-scoped state (identity, tokens, memoized
// permissions), and persists accumulated changes when Flush is called at the
// end of the request. A Binding must not be shared across requests.
type Binding struct {
	h *Handler
	w http.ResponseWriter
	r *http.Request

	sess *Session
	user User

	ipAddress string
	userAgent string
	spiderID  string

	firstVisit      bool
	hasValidCookie  bool
	doNotUpdate     bool
	disableTracking bool
	flushed         bool

	securityToken string
	xsrfToken     string

	presenceRec *presence.Record
	page        presence.PageLocation

	groupData         permission.Mapping
	groupDataResolved bool
}

// Session returns the bound session.
func (b *Binding) Session() *Session {
	return b.sess
}

// User returns the bound identity. The zero value is the guest.
func (b *Binding) User() User {
	return b.user
}

// UserID returns the bound user id, 0 for guests.
func (b *Binding) UserID() uint32 {
	return b.user.ID
}

// IsGuest reports whether no registered user is bound.
func (b *Binding) IsGuest() bool {
	return b.user.IsGuest()
}

// SpiderID returns the identifier of the recognized crawler, if any.
func (b *Binding) SpiderID() string {
	return b.spiderID
}

// IsFirstVisit reports whether the session was created by this request.
func (b *Binding) IsFirstVisit() bool {
	return b.firstVisit
}

// HasValidCookie reports whether the request arrived with a well-formed,
// correctly signed session cookie that matched a live session.
func (b *Binding) HasValidCookie() bool {
	return b.hasValidCookie
}

// Var returns the value of a session variable.
func (b *Binding) Var(key string) (any, bool) {
	return b.sess.Var(key)
}

// SetVar registers a session variable. The change is persisted on Flush.
func (b *Binding) SetVar(key string, value any) {
	b.sess.SetVar(key, value)
}

// UnsetVar removes a session variable. The change is persisted on Flush.
func (b *Binding) UnsetVar(key string) {
	b.sess.UnsetVar(key)
}

// DisableUpdate suppresses the activity and variable write-back of Flush for
// this request. Use it for background polling endpoints that must not keep
// a session alive forever.
func (b *Binding) DisableUpdate() {
	b.doNotUpdate = true
}

// DisableTracking suppresses the presence refresh of Flush for this request.
func (b *Binding) DisableTracking() {
	b.disableTracking = true
}

// SetPage records the visited page hierarchy for the presence refresh.
func (b *Binding) SetPage(page presence.PageLocation) {
	b.page = page
}

// Flush persists the request's accumulated session changes: the activity
// metadata, dirty variables, and the presence record. It must be called once
// at the end of the request; later calls are no-ops.
func (b *Binding) Flush(ctx context.Context) error {
	if b.flushed {
		return nil
	}

	if !b.doNotUpdate {
		if err := b.h.store.UpdateActivity(ctx, b.sess.Realm, b.sess.ID, b.ipAddress, b.userAgent, b.sess.LastActivityAt); err != nil {
			return fmt.Errorf("update session activity: %w", err)
		}
		if b.sess.IsDirty() {
			if err := b.h.store.UpdateVariables(ctx, b.sess.Realm, b.sess.ID, b.sess.Variables()); err != nil {
				return fmt.Errorf("persist session variables: %w", err)
			}
			b.sess.clearDirty()
		}
	}

	if !b.disableTracking && b.h.presence != nil && b.presenceRec != nil {
		err := b.h.presence.Refresh(ctx, *b.presenceRec, presence.Activity{
			UserID:        b.sess.UserID,
			IPAddress:     b.ipAddress,
			UserAgent:     b.userAgent,
			RequestURI:    b.r.RequestURI,
			RequestMethod: b.r.Method,
			Page:          b.page,
			At:            b.h.now(),
		})
		if err != nil {
			return err
		}
	}

	b.flushed = true
	return nil
}

// ChangeUser rebinds the session to the given identity. The session id is
// rotated and all session variables are dropped, so nothing accumulated
// before authentication leaks across the privilege boundary. Passing Guest
// logs the current user out.
//
// Users that require a second factor cannot be bound directly; register a
// pending user change and apply it once the challenge succeeds.
func (b *Binding) ChangeUser(ctx context.Context, user User) error {
	if !user.IsGuest() && user.RequiresMultifactor {
		return ErrMultifactorRequired
	}
	return b.changeUser(ctx, user)
}

// changeUser performs the identity switch without the multifactor guard. It
// is shared by ChangeUser, Authenticate and ApplyPendingUserChange.
//
// Binding a real user rotates the session id: the old row is deleted and a
// brand-new one inserted, so neither the id nor any variable survives the
// privilege boundary. Logging out deletes the row without a replacement; the
// next request starts a clean guest session.
func (b *Binding) changeUser(ctx context.Context, user User) error {
	oldUserID := b.sess.UserID
	oldSessionID := b.sess.ID
	now := b.h.now()

	if err := b.h.store.DeleteByID(ctx, b.sess.Realm, oldSessionID); err != nil {
		return fmt.Errorf("delete replaced session: %w", err)
	}

	if b.h.presence != nil {
		if err := b.h.presence.ForgetSession(ctx, oldSessionID); err != nil {
			return err
		}
		if oldUserID != 0 && user.IsGuest() {
			if err := b.h.presence.Forget(ctx, "", oldUserID); err != nil {
				return err
			}
		}
	}

	if oldUserID != 0 && user.IsGuest() && b.h.activity != nil {
		if err := b.h.activity.TouchLastActivity(ctx, oldUserID, now); err != nil {
			return err
		}
		if err := b.h.activity.ResetCaches(ctx, oldUserID); err != nil {
			return err
		}
	}

	b.user = user
	b.presenceRec = nil
	b.groupData = permission.Mapping{}
	b.groupDataResolved = false
	b.securityToken = ""

	if user.IsGuest() {
		// No replacement row is allocated on logout. The binding degrades to
		// an unbacked guest identity and stops persisting; the retracted
		// cookie makes the next request create a fresh session.
		b.sess = fromRow(Row{
			ID:             newSessionID(),
			Realm:          b.h.realm,
			IPAddress:      b.ipAddress,
			UserAgent:      b.userAgent,
			LastActivityAt: now,
		})
		b.flushed = true
		b.h.cookies.Delete(b.w, b.h.realm.CookieName(b.h.cookiePrefix))

		b.xsrfToken = ""
		b.h.issueXSRFToken(b)
		return nil
	}

	row := Row{
		ID:             newSessionID(),
		Realm:          b.h.realm,
		IPAddress:      b.ipAddress,
		UserAgent:      b.userAgent,
		LastActivityAt: now,
		Variables:      make(map[string]any),
	}
	if err := b.h.store.Insert(ctx, row); err != nil {
		return fmt.Errorf("insert rotated session: %w", err)
	}
	if err := b.h.store.UpdateUser(ctx, row.Realm, row.ID, user.ID); err != nil {
		return fmt.Errorf("bind user to session: %w", err)
	}
	row.UserID = user.ID
	b.sess = fromRow(row)

	maxAge := 0
	if b.h.realm == RealmUser {
		maxAge = userCookieMaxAge
	}
	if err := b.h.setSessionCookie(b, user.ID, maxAge); err != nil {
		return err
	}

	if err := b.h.ensurePresence(ctx, b); err != nil {
		return err
	}

	// The security token lived in the replaced session's variables, so a new
	// one must be minted and mirrored into the XSRF cookie.
	b.xsrfToken = ""
	b.h.issueXSRFToken(b)
	return nil
}

// ChangeUserTransient rebinds the identity for the remainder of this request
// only. The persisted row, the cookie and the presence records keep the
// previously bound user; permissions are resolved for the new identity.
// Lifecycle flows (account activation, administrative impersonation checks)
// use this to act as a user without touching their session state.
func (b *Binding) ChangeUserTransient(user User) error {
	if !user.IsGuest() && user.RequiresMultifactor {
		return ErrMultifactorRequired
	}

	b.user = user
	b.groupData = permission.Mapping{}
	b.groupDataResolved = false
	return nil
}

// Authenticate binds a verified user to the session, or records a pending
// user change when the account still requires a second factor. It reports
// whether a multifactor challenge is now pending.
func (b *Binding) Authenticate(ctx context.Context, user User) (bool, error) {
	if user.IsGuest() {
		return false, ErrNotApplicable
	}
	if user.RequiresMultifactor {
		if err := b.RegisterPendingUserChange(user); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, b.changeUser(ctx, user)
}

// Delete destroys the session and its cookie without a replacement. The
// binding must not be used afterwards except to be discarded; Flush becomes
// a no-op.
func (b *Binding) Delete(ctx context.Context) error {
	now := b.h.now()

	if b.sess.UserID != 0 && b.h.activity != nil {
		if err := b.h.activity.TouchLastActivity(ctx, b.sess.UserID, now); err != nil {
			return err
		}
		if err := b.h.activity.ResetCaches(ctx, b.sess.UserID); err != nil {
			return err
		}
	}

	if err := b.h.store.DeleteByID(ctx, b.sess.Realm, b.sess.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if b.h.presence != nil {
		if err := b.h.presence.Forget(ctx, b.sess.ID, b.sess.UserID); err != nil {
			return err
		}
	}

	b.h.cookies.Delete(b.w, b.h.realm.CookieName(b.h.cookiePrefix))
	b.flushed = true
	return nil
}

// DeleteIfNew discards the session if it was created by this request and is
// still a guest session, retracting its cookie. Endpoints serving cookie-less
// clients use this to avoid piling up single-request sessions. No-op for
// established sessions and for sessions that authenticated during the
// request.
func (b *Binding) DeleteIfNew(ctx context.Context) error {
	if !b.firstVisit || !b.user.IsGuest() {
		return nil
	}

	if err := b.h.store.DeleteByID(ctx, b.sess.Realm, b.sess.ID); err != nil {
		return fmt.Errorf("delete new session: %w", err)
	}

	if b.h.presence != nil {
		if err := b.h.presence.ForgetSession(ctx, b.sess.ID); err != nil {
			return err
		}
	}

	b.h.cookies.Delete(b.w, b.h.realm.CookieName(b.h.cookiePrefix))
	b.flushed = true
	return nil
}

// permissions resolves and memoizes the merged permission mapping for the
// bound identity's groups.
func (b *Binding) permissions(ctx context.Context) (permission.Mapping, error) {
	if b.groupDataResolved {
		return b.groupData, nil
	}
	if b.h.perms == nil {
		return permission.Mapping{}, ErrNotApplicable
	}

	mapping, err := b.h.perms.Resolve(ctx, b.user.GroupIDs)
	if err != nil {
		return permission.Mapping{}, err
	}

	b.groupData = mapping
	b.groupDataResolved = true
	return mapping, nil
}

// Permission returns the effective value of a permission for the bound
// identity. Guests always receive false for users-only permissions.
func (b *Binding) Permission(ctx context.Context, name string) (any, error) {
	mapping, err := b.permissions(ctx)
	if err != nil {
		return nil, err
	}
	return b.h.perms.Get(ctx, b.IsGuest(), mapping, name), nil
}

// HasPermission reports whether the permission resolves truthy for the bound
// identity.
func (b *Binding) HasPermission(ctx context.Context, name string) (bool, error) {
	mapping, err := b.permissions(ctx)
	if err != nil {
		return false, err
	}
	if b.IsGuest() && b.h.perms.UsersOnly(name) {
		return false, nil
	}
	if b.h.perms.Never(mapping, name) {
		return false, nil
	}
	return mapping.Granted(name), nil
}

// CheckPermissions verifies that every named permission is granted, returning
// ErrPermissionDenied wrapped with the first failing name.
func (b *Binding) CheckPermissions(ctx context.Context, names ...string) error {
	for _, name := range names {
		ok, err := b.HasPermission(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%q: %w", name, permission.ErrPermissionDenied)
		}
	}
	return nil
}

// Language returns the effective interface language: the session override if
// one is set, then the bound user's preference, then the undefined tag.
func (b *Binding) Language() language.Tag {
	if v, ok := b.sess.Var(varLanguage); ok {
		if s, ok := v.(string); ok {
			if tag, err := language.Parse(s); err == nil {
				return tag
			}
		}
	}
	return b.user.Language
}

// SetLanguage stores a session-scoped interface language override. Guests use
// this to browse in a language other than the deployment default.
func (b *Binding) SetLanguage(tag language.Tag) {
	b.sess.SetVar(varLanguage, tag.String())
}

// StyleID returns the effective style: the session override if one is set,
// then the bound user's preference, then 0 for the default style.
func (b *Binding) StyleID() uint32 {
	if v, ok := b.sess.Var(varStyleID); ok {
		if id, ok := asInt64(v); ok && id >= 0 {
			return uint32(id)
		}
	}
	return b.user.StyleID
}

// SetStyleID stores a session-scoped style override.
func (b *Binding) SetStyleID(id uint32) {
	b.sess.SetVar(varStyleID, int64(id))
}

// asInt64 coerces a session variable to int64. Variables round-trip through
// JSON in some stores, so numbers may come back as float64.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
