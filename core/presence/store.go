package presence

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no presence record matches a lookup.
var ErrNotFound = errors.New("presence record not found")

// Store persists presence records.
//
// Upsert must be race-free by construction (insert-or-update keyed by session
// id) so that two concurrent requests creating the same record never surface
// a duplicate-key error to the caller.
type Store interface {
	// FindByUser returns any presence record of the given registered user.
	FindByUser(ctx context.Context, userID uint32) (Record, error)

	// FindBySessionOrSpider returns the record matching the anonymous
	// session id, or any record of the same spider when spiderID is
	// non-empty. Only guest records (userID == 0) are considered.
	FindBySessionOrSpider(ctx context.Context, sessionID, spiderID string) (Record, error)

	// Upsert inserts the record or replaces the existing one with the same
	// session id.
	Upsert(ctx context.Context, rec Record) error

	// DeleteBySession removes the record bound to the session id.
	DeleteBySession(ctx context.Context, sessionID string) error

	// DeleteByUser removes all records of the registered user.
	DeleteByUser(ctx context.Context, userID uint32) error

	// DeleteIdleSince removes records whose last activity precedes cutoff.
	DeleteIdleSince(ctx context.Context, cutoff time.Time) (int64, error)
}
