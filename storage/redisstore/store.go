package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/sessionkit/core/session"
)

// keyPrefix namespaces all keys written by this store.
const keyPrefix = "sessionkit"

// Store implements session.Store on a Redis client. Expiry is delegated to
// Redis key TTLs derived from the realm's idle timeout.
type Store struct {
	client *redis.Client
}

// NewStore creates a session store backed by the given client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// storedRow is the JSON shape of a session value.
type storedRow struct {
	ID             string         `json:"id"`
	UserID         uint32         `json:"user_id"`
	IPAddress      string         `json:"ip_address"`
	UserAgent      string         `json:"user_agent"`
	LastActivityAt time.Time      `json:"last_activity_at"`
	Variables      map[string]any `json:"variables"`
}

func sessionKey(realm session.Realm, id string) string {
	return keyPrefix + ":" + realm.String() + ":sess:" + id
}

func userIndexKey(realm session.Realm, userID uint32) string {
	return keyPrefix + ":" + realm.String() + ":user:" + strconv.FormatUint(uint64(userID), 10)
}

func (s *Store) write(ctx context.Context, realm session.Realm, row storedRow) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	ttl := realm.Lifetime(row.UserID)
	if err := s.client.Set(ctx, sessionKey(realm, row.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *Store) read(ctx context.Context, realm session.Realm, id string) (storedRow, error) {
	data, err := s.client.Get(ctx, sessionKey(realm, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return storedRow{}, session.ErrNotFound
	}
	if err != nil {
		return storedRow{}, fmt.Errorf("read session: %w", err)
	}

	var row storedRow
	if err := json.Unmarshal(data, &row); err != nil {
		return storedRow{}, session.ErrCorruptVariables
	}
	if row.Variables == nil {
		row.Variables = map[string]any{}
	}
	return row, nil
}

func (s *Store) Insert(ctx context.Context, row session.Row) error {
	stored := storedRow{
		ID:             row.ID,
		UserID:         row.UserID,
		IPAddress:      row.IPAddress,
		UserAgent:      row.UserAgent,
		LastActivityAt: row.LastActivityAt,
		Variables:      row.Variables,
	}
	if err := s.write(ctx, row.Realm, stored); err != nil {
		return err
	}

	if row.UserID != 0 {
		if err := s.client.SAdd(ctx, userIndexKey(row.Realm, row.UserID), row.ID).Err(); err != nil {
			return fmt.Errorf("index session: %w", err)
		}
	}
	return nil
}

func (s *Store) FetchByID(ctx context.Context, realm session.Realm, id string) (session.Row, error) {
	row, err := s.read(ctx, realm, id)
	if err != nil {
		return session.Row{}, err
	}
	return session.Row{
		ID:             row.ID,
		Realm:          realm,
		UserID:         row.UserID,
		IPAddress:      row.IPAddress,
		UserAgent:      row.UserAgent,
		LastActivityAt: row.LastActivityAt,
		Variables:      row.Variables,
	}, nil
}

func (s *Store) UpdateActivity(ctx context.Context, realm session.Realm, id, ipAddress, userAgent string, at time.Time) error {
	row, err := s.read(ctx, realm, id)
	if err != nil {
		return err
	}
	row.IPAddress = ipAddress
	row.UserAgent = userAgent
	row.LastActivityAt = at
	// Rewriting resets the TTL, which is exactly the sliding idle timeout.
	return s.write(ctx, realm, row)
}

func (s *Store) UpdateVariables(ctx context.Context, realm session.Realm, id string, vars map[string]any) error {
	row, err := s.read(ctx, realm, id)
	if err != nil {
		return err
	}
	row.Variables = vars
	return s.write(ctx, realm, row)
}

func (s *Store) UpdateUser(ctx context.Context, realm session.Realm, id string, userID uint32) error {
	row, err := s.read(ctx, realm, id)
	if err != nil {
		return err
	}

	oldUserID := row.UserID
	row.UserID = userID
	if err := s.write(ctx, realm, row); err != nil {
		return err
	}

	if oldUserID != 0 && oldUserID != userID {
		if err := s.client.SRem(ctx, userIndexKey(realm, oldUserID), id).Err(); err != nil {
			return fmt.Errorf("unindex session: %w", err)
		}
	}
	if userID != 0 {
		if err := s.client.SAdd(ctx, userIndexKey(realm, userID), id).Err(); err != nil {
			return fmt.Errorf("index session: %w", err)
		}
	}
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, realm session.Realm, id string) error {
	row, err := s.read(ctx, realm, id)
	if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrCorruptVariables) {
		return s.client.Del(ctx, sessionKey(realm, id)).Err()
	}
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(realm, id))
	if row.UserID != 0 {
		pipe.SRem(ctx, userIndexKey(realm, row.UserID), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Store) DeleteByUser(ctx context.Context, realm session.Realm, userID uint32, exceptID string) error {
	ids, err := s.client.SMembers(ctx, userIndexKey(realm, userID)).Result()
	if err != nil {
		return fmt.Errorf("list indexed sessions: %w", err)
	}

	pipe := s.client.TxPipeline()
	queued := 0
	for _, id := range ids {
		if id == exceptID {
			continue
		}
		pipe.Del(ctx, sessionKey(realm, id))
		pipe.SRem(ctx, userIndexKey(realm, userID), id)
		queued++
	}
	if queued == 0 {
		return nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete sessions by user: %w", err)
	}
	return nil
}

func (s *Store) ListByUser(ctx context.Context, realm session.Realm, userID uint32) ([]session.Row, error) {
	ids, err := s.client.SMembers(ctx, userIndexKey(realm, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list indexed sessions: %w", err)
	}

	var out []session.Row
	for _, id := range ids {
		row, err := s.FetchByID(ctx, realm, id)
		switch {
		case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrCorruptVariables):
			// The value expired but the index member survived; drop it.
			if err := s.client.SRem(ctx, userIndexKey(realm, userID), id).Err(); err != nil {
				return nil, fmt.Errorf("prune session index: %w", err)
			}
			continue
		case err != nil:
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// DeleteExpired is a no-op: Redis evicts sessions through key TTLs, and stale
// index members are removed lazily by ListByUser.
func (s *Store) DeleteExpired(context.Context, session.Realm, time.Time, time.Time) (int64, error) {
	return 0, nil
}
