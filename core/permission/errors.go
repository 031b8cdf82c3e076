package permission

import "errors"

var (
	// ErrPermissionDenied is returned when a required permission is not
	// granted to the active session. It is an authorization failure, distinct
	// from any session error.
	ErrPermissionDenied = errors.New("permission denied")
)
