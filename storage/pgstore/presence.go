package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/sessionkit/core/presence"
	"github.com/dmitrymomot/sessionkit/integration/database/pg"
)

// PresenceStore implements presence.Store on a pgx connection pool.
type PresenceStore struct {
	pool *pgxpool.Pool
}

// NewPresenceStore creates a presence store backed by the given pool.
func NewPresenceStore(pool *pgxpool.Pool) *PresenceStore {
	return &PresenceStore{pool: pool}
}

func (s *PresenceStore) q(ctx context.Context) querier {
	if tx, ok := pg.TxFromContext(ctx); ok {
		return tx
	}
	return s.pool
}

const presenceColumns = `session_id, user_id, spider_id, ip_address, user_agent,
	request_uri, request_method, last_activity_at,
	page_id, page_object_id, parent_page_id, parent_page_object_id`

func scanPresence(row interface{ Scan(...any) error }) (presence.Record, error) {
	var (
		rec    presence.Record
		userID int64
	)
	err := row.Scan(
		&rec.SessionID, &userID, &rec.SpiderID, &rec.IPAddress, &rec.UserAgent,
		&rec.RequestURI, &rec.RequestMethod, &rec.LastActivityAt,
		&rec.Page.PageID, &rec.Page.PageObjectID, &rec.Page.ParentPageID, &rec.Page.ParentPageObjectID,
	)
	if err != nil {
		return presence.Record{}, err
	}
	rec.UserID = uint32(userID)
	return rec, nil
}

func (s *PresenceStore) FindByUser(ctx context.Context, userID uint32) (presence.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM online_presence WHERE user_id = $1 LIMIT 1`, presenceColumns)

	rec, err := scanPresence(s.q(ctx).QueryRow(ctx, query, int64(userID)))
	if pg.IsNotFoundError(err) {
		return presence.Record{}, presence.ErrNotFound
	}
	if err != nil {
		return presence.Record{}, fmt.Errorf("find presence by user: %w", err)
	}
	return rec, nil
}

func (s *PresenceStore) FindBySessionOrSpider(ctx context.Context, sessionID, spiderID string) (presence.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM online_presence
		WHERE user_id = 0 AND (session_id = $1 OR (spider_id <> '' AND spider_id = $2))
		LIMIT 1`, presenceColumns)

	rec, err := scanPresence(s.q(ctx).QueryRow(ctx, query, sessionID, spiderID))
	if pg.IsNotFoundError(err) {
		return presence.Record{}, presence.ErrNotFound
	}
	if err != nil {
		return presence.Record{}, fmt.Errorf("find presence: %w", err)
	}
	return rec, nil
}

// Upsert writes the record, replacing any existing one for the same session.
// The conflict clause makes concurrent first requests of one session converge
// on a single row instead of racing on insert.
func (s *PresenceStore) Upsert(ctx context.Context, rec presence.Record) error {
	query := `
		INSERT INTO online_presence (session_id, user_id, spider_id, ip_address, user_agent,
			request_uri, request_method, last_activity_at,
			page_id, page_object_id, parent_page_id, parent_page_object_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (session_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			spider_id = EXCLUDED.spider_id,
			ip_address = EXCLUDED.ip_address,
			user_agent = EXCLUDED.user_agent,
			request_uri = EXCLUDED.request_uri,
			request_method = EXCLUDED.request_method,
			last_activity_at = EXCLUDED.last_activity_at,
			page_id = EXCLUDED.page_id,
			page_object_id = EXCLUDED.page_object_id,
			parent_page_id = EXCLUDED.parent_page_id,
			parent_page_object_id = EXCLUDED.parent_page_object_id`

	_, err := s.q(ctx).Exec(ctx, query,
		rec.SessionID, int64(rec.UserID), rec.SpiderID, rec.IPAddress, rec.UserAgent,
		rec.RequestURI, rec.RequestMethod, rec.LastActivityAt,
		rec.Page.PageID, rec.Page.PageObjectID, rec.Page.ParentPageID, rec.Page.ParentPageObjectID,
	)
	if err != nil {
		return fmt.Errorf("upsert presence: %w", err)
	}
	return nil
}

func (s *PresenceStore) DeleteBySession(ctx context.Context, sessionID string) error {
	if _, err := s.q(ctx).Exec(ctx, `DELETE FROM online_presence WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete presence: %w", err)
	}
	return nil
}

func (s *PresenceStore) DeleteByUser(ctx context.Context, userID uint32) error {
	if _, err := s.q(ctx).Exec(ctx, `DELETE FROM online_presence WHERE user_id = $1`, int64(userID)); err != nil {
		return fmt.Errorf("delete presence by user: %w", err)
	}
	return nil
}

func (s *PresenceStore) DeleteIdleSince(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.q(ctx).Exec(ctx, `DELETE FROM online_presence WHERE last_activity_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune presence: %w", err)
	}
	return tag.RowsAffected(), nil
}
