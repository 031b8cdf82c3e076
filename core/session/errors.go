package session

import "errors"

var (
	// ErrNotFound is returned by stores when no session row matches the id.
	ErrNotFound = errors.New("session not found")

	// ErrCorruptVariables is returned by stores when a session row exists but
	// its variables fail to deserialize. The handler treats this exactly like
	// a missing session.
	ErrCorruptVariables = errors.New("session variables are corrupt")

	// ErrUnknownUser is returned by a UserProvider when the id does not
	// resolve to a registered user.
	ErrUnknownUser = errors.New("unknown user")

	// ErrNoPendingChange is returned by ApplyPendingUserChange when no
	// pending user change exists. This is a programmer error: the multifactor
	// form must only be reachable while a pending change is stored.
	ErrNoPendingChange = errors.New("no pending user change")

	// ErrPendingChangeMismatch is returned by ApplyPendingUserChange when the
	// expected user does not match the stored pending change.
	ErrPendingChangeMismatch = errors.New("pending user change does not match expected user")

	// ErrNotApplicable is returned when a registered-users-only operation
	// (reauthentication, session listing) is invoked for a guest.
	ErrNotApplicable = errors.New("operation not applicable to guest sessions")

	// ErrMultifactorRequired is returned by ChangeUser when the target user
	// must complete a second factor first. Callers register a pending user
	// change instead and apply it after the challenge succeeds.
	ErrMultifactorRequired = errors.New("user requires multifactor authentication")
)
