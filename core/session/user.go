package session

import (
	"context"
	"time"

	"golang.org/x/text/language"
)

// User is the identity view the session layer needs. The zero value is the
// guest identity.
type User struct {
	// ID of the registered user, 0 for guests.
	ID uint32

	// GroupIDs the user belongs to, in resolution order.
	GroupIDs []uint32

	// Language is the user's preferred interface language.
	Language language.Tag

	// Languages lists all content languages the user subscribed to.
	Languages []language.Tag

	// StyleID is the user's preferred style, 0 for the default.
	StyleID uint32

	// RequiresMultifactor is true when a password login must be completed
	// with a second factor before the user may be bound to a session.
	RequiresMultifactor bool

	// ExternalAuth is true when the account authenticates exclusively
	// through a delegated identity provider. Such accounts cannot
	// reauthenticate locally.
	ExternalAuth bool
}

// Guest is the anonymous identity.
var Guest = User{}

// IsGuest reports whether this is the anonymous identity.
func (u User) IsGuest() bool {
	return u.ID == 0
}

// UserProvider resolves user ids to identities. Implementations return
// ErrUnknownUser for ids that no longer exist.
type UserProvider interface {
	ByID(ctx context.Context, id uint32) (User, error)
}

// guestOnlyProvider is the default provider for deployments that never bind
// users (e.g. the setup flow).
type guestOnlyProvider struct{}

func (guestOnlyProvider) ByID(context.Context, uint32) (User, error) {
	return User{}, ErrUnknownUser
}

// UserActivityRecorder receives notifications about identity-level side
// effects of session operations: cached per-user data must be dropped when a
// user's sessions end, and the user's public last-activity timestamp is
// frozen at logout time.
type UserActivityRecorder interface {
	// ResetCaches drops cached per-user session data (group ids, language
	// ids) for the given user.
	ResetCaches(ctx context.Context, userID uint32) error

	// TouchLastActivity records the user's last activity timestamp.
	TouchLastActivity(ctx context.Context, userID uint32, at time.Time) error
}
