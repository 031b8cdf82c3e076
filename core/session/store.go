package session

import (
	"context"
	"time"
)

// Row is the storage representation of a session.
type Row struct {
	ID             string
	Realm          Realm
	UserID         uint32
	IPAddress      string
	UserAgent      string
	LastActivityAt time.Time
	Variables      map[string]any
}

// Store persists session rows, partitioned by realm.
//
// FetchByID returns ErrNotFound for missing rows and ErrCorruptVariables when
// the row exists but its variables cannot be deserialized; both are treated
// as a session miss by the handler. Every other error propagates unmodified.
type Store interface {
	// Insert creates a new session row.
	Insert(ctx context.Context, row Row) error

	// FetchByID loads a row by session id.
	FetchByID(ctx context.Context, realm Realm, id string) (Row, error)

	// UpdateActivity refreshes the request metadata of an existing row.
	UpdateActivity(ctx context.Context, realm Realm, id, ipAddress, userAgent string, at time.Time) error

	// UpdateVariables replaces the stored variables of an existing row.
	UpdateVariables(ctx context.Context, realm Realm, id string, vars map[string]any) error

	// UpdateUser rebinds an existing row to the given user id.
	UpdateUser(ctx context.Context, realm Realm, id string, userID uint32) error

	// DeleteByID removes the row with the given session id.
	DeleteByID(ctx context.Context, realm Realm, id string) error

	// DeleteByUser removes all rows of a registered user, optionally keeping
	// the row with exceptID. An empty exceptID removes everything.
	DeleteByUser(ctx context.Context, realm Realm, userID uint32, exceptID string) error

	// ListByUser returns all rows of a registered user.
	ListByUser(ctx context.Context, realm Realm, userID uint32) ([]Row, error)

	// DeleteExpired removes guest rows idle since guestCutoff and registered
	// rows idle since userCutoff, returning the number of deleted rows. The
	// operation is a single delete-by-predicate with no read-then-write
	// window, so concurrent prune runs are safe.
	DeleteExpired(ctx context.Context, realm Realm, guestCutoff, userCutoff time.Time) (int64, error)
}
