package sessioncookie

import "errors"

var (
	// ErrMalformedPayload is returned when a cookie payload has an unexpected
	// length or an unsupported version byte.
	ErrMalformedPayload = errors.New("malformed session cookie payload")

	// ErrInvalidSessionID is returned when a session id is not a 40-character
	// lowercase hex string.
	ErrInvalidSessionID = errors.New("session id must be 40 hex characters")

	// ErrNoSecret indicates no signing secret was provided for the envelope.
	ErrNoSecret = errors.New("no secret provided for cookie envelope")

	// ErrSecretTooShort indicates the signing secret doesn't meet the minimum
	// length requirement.
	ErrSecretTooShort = errors.New("secret must be at least 32 characters long")
)
