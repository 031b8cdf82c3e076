package session

import "time"

// Session lifetimes per realm and user class. The values are idle timeouts
// measured against the last recorded activity.
const (
	AdminSessionLifetime = 2 * time.Hour
	GuestSessionLifetime = 2 * time.Hour
	UserSessionLifetime  = 14 * 24 * time.Hour
)

// Realm is the authentication context a session belongs to. Each realm has
// its own lifetime policy and storage partition; a session never changes
// realm after creation.
type Realm uint8

const (
	// RealmUser is the ordinary user-facing application.
	RealmUser Realm = iota

	// RealmAdmin is the administrative control panel.
	RealmAdmin
)

// String returns the realm's storage partition name.
func (r Realm) String() string {
	if r == RealmAdmin {
		return "admin"
	}
	return "user"
}

// CookieName returns the realm's session cookie name with the deployment's
// cookie prefix applied.
func (r Realm) CookieName(prefix string) string {
	if r == RealmAdmin {
		return prefix + "acp_session"
	}
	return prefix + "user_session"
}

// Lifetime returns the idle timeout for a session of this realm bound to the
// given user id (0 = guest). Admin sessions use a fixed short window
// regardless of authentication.
func (r Realm) Lifetime(userID uint32) time.Duration {
	switch {
	case r == RealmAdmin:
		return AdminSessionLifetime
	case userID != 0:
		return UserSessionLifetime
	default:
		return GuestSessionLifetime
	}
}
