package session

import (
	"crypto/rand"
	"encoding/hex"
	"maps"
	"time"
)

// rawSessionIDLen is the entropy of a session id in bytes. Ids are exposed
// externally as 40-character lowercase hex strings.
const rawSessionIDLen = 20

// Session is one server-side session row bound to a browser cookie.
//
// The id and realm are fixed for the session's lifetime. Variables are the
// only application-visible mutable state; every write through SetVar/UnsetVar
// marks the session dirty so the handler knows to persist them on Flush.
type Session struct {
	// ID is the hex-encoded session identifier (40 lowercase chars).
	ID string

	// Realm the session was created in; determines lifetime and storage
	// partition.
	Realm Realm

	// UserID of the bound user, 0 for guests.
	UserID uint32

	// IPAddress and UserAgent of the last observed request.
	IPAddress string
	UserAgent string

	// LastActivityAt is monotonically non-decreasing; refreshed on every
	// successful lookup.
	LastActivityAt time.Time

	vars  map[string]any
	dirty bool
}

// newSessionID generates a fresh random session id.
func newSessionID() string {
	raw := make([]byte, rawSessionIDLen)
	// crypto/rand.Read only fails if the platform entropy source is broken,
	// in which case nothing in this package is safe to use anyway.
	if _, err := rand.Read(raw); err != nil {
		panic(err)
	}
	return hex.EncodeToString(raw)
}

// fromRow builds an in-memory session from a stored row.
func fromRow(row Row) *Session {
	vars := row.Variables
	if vars == nil {
		vars = make(map[string]any)
	}
	return &Session{
		ID:             row.ID,
		Realm:          row.Realm,
		UserID:         row.UserID,
		IPAddress:      row.IPAddress,
		UserAgent:      row.UserAgent,
		LastActivityAt: row.LastActivityAt,
		vars:           vars,
	}
}

// row converts the session back to its storage representation.
func (s *Session) row() Row {
	return Row{
		ID:             s.ID,
		Realm:          s.Realm,
		UserID:         s.UserID,
		IPAddress:      s.IPAddress,
		UserAgent:      s.UserAgent,
		LastActivityAt: s.LastActivityAt,
		Variables:      s.vars,
	}
}

// IsGuest reports whether no registered user is bound to the session.
func (s *Session) IsGuest() bool {
	return s.UserID == 0
}

// Var returns the value of a session variable.
func (s *Session) Var(key string) (any, bool) {
	v, ok := s.vars[key]
	return v, ok
}

// SetVar registers a session variable and marks the session dirty.
func (s *Session) SetVar(key string, value any) {
	s.vars[key] = value
	s.dirty = true
}

// UnsetVar removes a session variable. The session is only marked dirty when
// the key was actually present, so speculative clears do not force a
// write-back on Flush.
func (s *Session) UnsetVar(key string) {
	if _, ok := s.vars[key]; !ok {
		return
	}
	delete(s.vars, key)
	s.dirty = true
}

// Variables returns a copy of all session variables.
func (s *Session) Variables() map[string]any {
	return maps.Clone(s.vars)
}

// IsDirty reports whether the variables changed since the last persist.
func (s *Session) IsDirty() bool {
	return s.dirty
}

func (s *Session) clearDirty() {
	s.dirty = false
}
