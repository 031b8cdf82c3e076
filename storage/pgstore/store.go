package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/sessionkit/core/session"
	"github.com/dmitrymomot/sessionkit/integration/database/pg"
)

// querier is the subset of pgx shared by pools and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements session.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a session store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) q(ctx context.Context) querier {
	if tx, ok := pg.TxFromContext(ctx); ok {
		return tx
	}
	return s.pool
}

// tableName maps a realm to its session table. Each realm has its own table
// so the short-lived admin rows never contend with the user partition.
func tableName(realm session.Realm) string {
	if realm == session.RealmAdmin {
		return "admin_sessions"
	}
	return "user_sessions"
}

// encodeVariables serializes session variables for the JSONB column.
func encodeVariables(vars map[string]any) ([]byte, error) {
	if vars == nil {
		vars = map[string]any{}
	}
	data, err := json.Marshal(vars)
	if err != nil {
		return nil, fmt.Errorf("encode session variables: %w", err)
	}
	return data, nil
}

// decodeVariables deserializes the JSONB column. Undecodable data maps to
// session.ErrCorruptVariables so the handler treats the row as a miss instead
// of failing the request.
func decodeVariables(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var vars map[string]any
	if err := json.Unmarshal(data, &vars); err != nil {
		return nil, session.ErrCorruptVariables
	}
	if vars == nil {
		vars = map[string]any{}
	}
	return vars, nil
}

func (s *Store) Insert(ctx context.Context, row session.Row) error {
	vars, err := encodeVariables(row.Variables)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, ip_address, user_agent, last_activity_at, variables)
		VALUES ($1, $2, $3, $4, $5, $6)`, tableName(row.Realm))

	_, err = s.q(ctx).Exec(ctx, query, row.ID, int64(row.UserID), row.IPAddress, row.UserAgent, row.LastActivityAt, vars)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Store) FetchByID(ctx context.Context, realm session.Realm, id string) (session.Row, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, ip_address, user_agent, last_activity_at, variables
		FROM %s WHERE id = $1`, tableName(realm))

	var (
		row     session.Row
		userID  int64
		rawVars []byte
	)
	err := s.q(ctx).QueryRow(ctx, query, id).Scan(
		&row.ID, &userID, &row.IPAddress, &row.UserAgent, &row.LastActivityAt, &rawVars,
	)
	if pg.IsNotFoundError(err) {
		return session.Row{}, session.ErrNotFound
	}
	if err != nil {
		return session.Row{}, fmt.Errorf("fetch session: %w", err)
	}

	row.Realm = realm
	row.UserID = uint32(userID)
	row.Variables, err = decodeVariables(rawVars)
	if err != nil {
		return session.Row{}, err
	}
	return row, nil
}

func (s *Store) UpdateActivity(ctx context.Context, realm session.Realm, id, ipAddress, userAgent string, at time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s SET ip_address = $2, user_agent = $3, last_activity_at = $4
		WHERE id = $1`, tableName(realm))

	tag, err := s.q(ctx).Exec(ctx, query, id, ipAddress, userAgent, at)
	if err != nil {
		return fmt.Errorf("update session activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateVariables(ctx context.Context, realm session.Realm, id string, vars map[string]any) error {
	data, err := encodeVariables(vars)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET variables = $2 WHERE id = $1`, tableName(realm))

	tag, err := s.q(ctx).Exec(ctx, query, id, data)
	if err != nil {
		return fmt.Errorf("update session variables: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateUser(ctx context.Context, realm session.Realm, id string, userID uint32) error {
	query := fmt.Sprintf(`UPDATE %s SET user_id = $2 WHERE id = $1`, tableName(realm))

	tag, err := s.q(ctx).Exec(ctx, query, id, int64(userID))
	if err != nil {
		return fmt.Errorf("update session user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, realm session.Realm, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, tableName(realm))
	if _, err := s.q(ctx).Exec(ctx, query, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Store) DeleteByUser(ctx context.Context, realm session.Realm, userID uint32, exceptID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND id <> $2`, tableName(realm))
	if _, err := s.q(ctx).Exec(ctx, query, int64(userID), exceptID); err != nil {
		return fmt.Errorf("delete sessions by user: %w", err)
	}
	return nil
}

func (s *Store) ListByUser(ctx context.Context, realm session.Realm, userID uint32) ([]session.Row, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, ip_address, user_agent, last_activity_at, variables
		FROM %s WHERE user_id = $1
		ORDER BY last_activity_at DESC`, tableName(realm))

	rows, err := s.q(ctx).Query(ctx, query, int64(userID))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []session.Row
	for rows.Next() {
		var (
			row     session.Row
			uid     int64
			rawVars []byte
		)
		if err := rows.Scan(&row.ID, &uid, &row.IPAddress, &row.UserAgent, &row.LastActivityAt, &rawVars); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		row.Realm = realm
		row.UserID = uint32(uid)
		if row.Variables, err = decodeVariables(rawVars); err != nil {
			// One corrupt row must not hide the user's other sessions.
			row.Variables = map[string]any{}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) DeleteExpired(ctx context.Context, realm session.Realm, guestCutoff, userCutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE (user_id = 0 AND last_activity_at < $1)
		   OR (user_id <> 0 AND last_activity_at < $2)`, tableName(realm))

	tag, err := s.q(ctx).Exec(ctx, query, guestCutoff, userCutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
