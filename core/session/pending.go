package session

import (
	"context"
	"time"
)

// Timing of the deferred-authentication protocols. A pending user change is
// the window between a successful password check and the completed second
// factor. Reauthentication guards security-sensitive areas: after the soft
// limit the user is periodically re-challenged, after the hard limit always.
const (
	PendingChangeLifetime = 15 * time.Minute

	ReauthenticationHardLimit   = 12 * time.Hour
	ReauthenticationSoftLimit   = 2 * time.Hour
	ReauthenticationGracePeriod = 15 * time.Minute
)

// Session variable keys of the deferred-authentication protocols. The "__"
// prefix keeps them out of the application's namespace.
const (
	varPendingUserID = "__pendingUserChangeUserID"
	varPendingAt     = "__pendingUserChangeAt"
	varReauthAt      = "__reauthenticationAt"
	varReauthCheckAt = "__reauthenticationCheckAt"
)

// RegisterPendingUserChange records that the given user passed the password
// check but still owes a second factor. The session stays a guest session;
// the recorded intent expires after PendingChangeLifetime.
func (b *Binding) RegisterPendingUserChange(user User) error {
	if user.IsGuest() {
		return ErrNotApplicable
	}
	b.sess.SetVar(varPendingUserID, int64(user.ID))
	b.sess.SetVar(varPendingAt, b.h.now().Unix())
	return nil
}

// PendingUserChangeID returns the user id of the live pending change, or 0
// when none exists or the recorded one expired.
func (b *Binding) PendingUserChangeID() uint32 {
	id, at, ok := b.pendingChange()
	if !ok {
		return 0
	}
	if b.h.now().Sub(time.Unix(at, 0)) > PendingChangeLifetime {
		return 0
	}
	return id
}

// PendingUser resolves the live pending change to an identity. The second
// return is false when no change is pending, the recorded one expired, or the
// referenced account no longer exists.
func (b *Binding) PendingUser(ctx context.Context) (User, bool) {
	id := b.PendingUserChangeID()
	if id == 0 || b.h.users == nil {
		return Guest, false
	}
	user, err := b.h.users.ByID(ctx, id)
	if err != nil {
		return Guest, false
	}
	return user, true
}

// ApplyPendingUserChange completes the multifactor flow: it verifies that the
// stored pending change targets the expected user and then binds that user to
// the session. The pending change is single-use and is cleared even when the
// expected user does not match.
//
// A missing or expired pending change returns ErrNoPendingChange, also when
// the expected user would not have matched anyway.
func (b *Binding) ApplyPendingUserChange(ctx context.Context, expected User) error {
	id, at, ok := b.pendingChange()
	b.clearPendingUserChange()

	if !ok || b.h.now().Sub(time.Unix(at, 0)) > PendingChangeLifetime {
		return ErrNoPendingChange
	}
	if expected.IsGuest() || expected.ID != id {
		return ErrPendingChangeMismatch
	}

	return b.changeUser(ctx, expected)
}

func (b *Binding) pendingChange() (userID uint32, at int64, ok bool) {
	rawID, okID := b.sess.Var(varPendingUserID)
	rawAt, okAt := b.sess.Var(varPendingAt)
	if !okID || !okAt {
		return 0, 0, false
	}

	id, okID := asInt64(rawID)
	ts, okAt := asInt64(rawAt)
	if !okID || !okAt || id <= 0 {
		return 0, 0, false
	}
	return uint32(id), ts, true
}

func (b *Binding) clearPendingUserChange() {
	b.sess.UnsetVar(varPendingUserID)
	b.sess.UnsetVar(varPendingAt)
}

// NeedsReauthentication reports whether the bound user must confirm their
// password again before entering a security-sensitive area. Calling it for a
// guest is a programming error and returns ErrNotApplicable; guests
// authenticate, they do not reauthenticate.
//
// Accounts that only exist at an external identity provider never
// reauthenticate locally. For everyone else: a session that never recorded
// an authentication needs one, past the hard limit always, and past the soft
// limit whenever the last successful check happened more than the grace
// period ago. A false result refreshes the check timestamp, so an active
// user inside the soft window is not interrupted.
func (b *Binding) NeedsReauthentication() (bool, error) {
	if b.user.IsGuest() {
		return false, ErrNotApplicable
	}
	if b.user.ExternalAuth {
		return false, nil
	}

	now := b.h.now()

	rawAuth, ok := b.sess.Var(varReauthAt)
	if !ok {
		return true, nil
	}
	authAt, ok := asInt64(rawAuth)
	if !ok {
		return true, nil
	}

	age := now.Sub(time.Unix(authAt, 0))
	if age > ReauthenticationHardLimit {
		return true, nil
	}

	if age > ReauthenticationSoftLimit {
		checkAt, ok := b.lastReauthenticationCheck()
		if !ok || now.Sub(time.Unix(checkAt, 0)) > ReauthenticationGracePeriod {
			return true, nil
		}
	}

	b.sess.SetVar(varReauthCheckAt, now.Unix())
	return false, nil
}

// RegisterReauthentication records a successful password confirmation for the
// bound user, starting a fresh reauthentication window.
func (b *Binding) RegisterReauthentication() error {
	if b.user.IsGuest() || b.user.ExternalAuth {
		return ErrNotApplicable
	}
	now := b.h.now().Unix()
	b.sess.SetVar(varReauthAt, now)
	b.sess.SetVar(varReauthCheckAt, now)
	return nil
}

// ClearReauthentication drops the recorded authentication window, forcing the
// next NeedsReauthentication to return true for local accounts.
func (b *Binding) ClearReauthentication() {
	b.sess.UnsetVar(varReauthAt)
	b.sess.UnsetVar(varReauthCheckAt)
}

func (b *Binding) lastReauthenticationCheck() (int64, bool) {
	raw, ok := b.sess.Var(varReauthCheckAt)
	if !ok {
		return 0, false
	}
	return asInt64(raw)
}
