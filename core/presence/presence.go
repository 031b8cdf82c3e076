package presence

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Window is how long a presence record stays alive without activity.
// Records are cheap to re-create, so this is much shorter than the
// registered-user session lifetime.
const Window = 2 * time.Hour

// maxRequestMethodLen bounds the stored request method.
const maxRequestMethodLen = 7

// PageLocation is the last visited page hierarchy of an online identity.
// Zero ids mean "not set".
type PageLocation struct {
	PageID             int64
	PageObjectID       int64
	ParentPageID       int64
	ParentPageObjectID int64
}

// Record is one online identity: a registered user, an anonymous session,
// or a recognized crawler.
type Record struct {
	SessionID      string
	UserID         uint32 // 0 = guest
	SpiderID       string // non-empty only for guest records
	IPAddress      string
	UserAgent      string
	RequestURI     string
	RequestMethod  string
	LastActivityAt time.Time
	Page           PageLocation
}

// Activity is the per-request metadata applied to a record on refresh.
type Activity struct {
	UserID        uint32
	IPAddress     string
	UserAgent     string
	RequestURI    string
	RequestMethod string
	Page          PageLocation
	At            time.Time
}

// Bridge keeps presence records in sync with the active sessions.
type Bridge struct {
	store Store
}

// NewBridge creates a presence bridge on top of the given store.
func NewBridge(store Store) *Bridge {
	return &Bridge{store: store}
}

// Ensure returns the presence record for the given identity, creating it if
// none exists. Registered users are looked up by user id; guests by session
// id or spider id, so concurrent crawler sessions share one record.
func (b *Bridge) Ensure(ctx context.Context, sessionID string, userID uint32, spiderID string, act Activity) (Record, error) {
	var (
		rec Record
		err error
	)
	if userID != 0 {
		rec, err = b.store.FindByUser(ctx, userID)
	} else {
		rec, err = b.store.FindBySessionOrSpider(ctx, sessionID, spiderID)
	}

	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, ErrNotFound):
		return b.create(ctx, sessionID, userID, spiderID, act)
	default:
		return Record{}, fmt.Errorf("lookup presence: %w", err)
	}
}

func (b *Bridge) create(ctx context.Context, sessionID string, userID uint32, spiderID string, act Activity) (Record, error) {
	rec := Record{
		SessionID:      sessionID,
		UserID:         userID,
		SpiderID:       spiderID,
		IPAddress:      act.IPAddress,
		UserAgent:      act.UserAgent,
		RequestURI:     act.RequestURI,
		RequestMethod:  truncateMethod(act.RequestMethod),
		LastActivityAt: act.At,
	}

	if err := b.store.Upsert(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("create presence: %w", err)
	}

	return rec, nil
}

// Refresh applies the latest request metadata to an existing record.
func (b *Bridge) Refresh(ctx context.Context, rec Record, act Activity) error {
	rec.UserID = act.UserID
	rec.IPAddress = act.IPAddress
	rec.UserAgent = act.UserAgent
	rec.RequestURI = act.RequestURI
	rec.RequestMethod = truncateMethod(act.RequestMethod)
	rec.LastActivityAt = act.At
	rec.Page = act.Page

	if err := b.store.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("refresh presence: %w", err)
	}
	return nil
}

// Forget removes the presence of an identity: by user id for registered
// users, otherwise by session id.
func (b *Bridge) Forget(ctx context.Context, sessionID string, userID uint32) error {
	if userID != 0 {
		return b.store.DeleteByUser(ctx, userID)
	}
	return b.store.DeleteBySession(ctx, sessionID)
}

// ForgetSession removes only the record bound to the given session id.
func (b *Bridge) ForgetSession(ctx context.Context, sessionID string) error {
	return b.store.DeleteBySession(ctx, sessionID)
}

// Prune removes records idle for longer than Window.
func (b *Bridge) Prune(ctx context.Context, now time.Time) (int64, error) {
	return b.store.DeleteIdleSince(ctx, now.Add(-Window))
}

func truncateMethod(method string) string {
	if len(method) > maxRequestMethodLen {
		return method[:maxRequestMethodLen]
	}
	return method
}
