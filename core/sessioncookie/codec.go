package sessioncookie

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	version1 = 1

	// payloadLenV1 is the exact size of a version 1 payload:
	// 1 (version) + 20 (session id) + 1 (time step) + 4 (user id).
	payloadLenV1 = 26

	rawSessionIDLen = 20

	// timestepInterval is the width of one cookie time step.
	timestepInterval = 6 * time.Hour
)

// Payload is the decoded content of a session cookie.
type Payload struct {
	// SessionID is the hex-encoded session identifier (40 lowercase chars).
	SessionID string

	// UserID is the user id embedded at encode time, 0 for guests.
	UserID uint32

	// Timestep is the 6-hour epoch counter the cookie was minted in.
	Timestep byte
}

// Codec encodes a session binding into an opaque cookie value and back.
type Codec interface {
	// Encode produces the outgoing cookie value for the given session.
	Encode(sessionID string, userID uint32) (string, error)

	// Decode parses an incoming cookie value. The boolean is false for any
	// malformed, unsigned, or otherwise untrusted value; such values are
	// indistinguishable from a missing cookie.
	Decode(value string) (Payload, bool)
}

// Timestep returns the coarse 6-hour epoch counter for the given time.
// It rolls over every 256 steps (64 days) which is fine: the counter only
// forces periodic cookie value changes and carries no meaning on its own.
func Timestep(now time.Time) byte {
	return byte(now.Unix() / int64(timestepInterval.Seconds()))
}

// EncodePayload packs a version 1 binary payload.
func EncodePayload(sessionID string, userID uint32, now time.Time) ([]byte, error) {
	raw, err := hex.DecodeString(sessionID)
	if err != nil || len(raw) != rawSessionIDLen {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	}

	buf := make([]byte, 0, payloadLenV1)
	buf = append(buf, version1)
	buf = append(buf, raw...)
	buf = append(buf, Timestep(now))
	buf = binary.BigEndian.AppendUint32(buf, userID)

	return buf, nil
}

// ParsePayload unpacks a binary payload, validating length and version.
func ParsePayload(data []byte) (Payload, error) {
	if len(data) < 1 {
		return Payload{}, fmt.Errorf("%w: expected at least 1 byte, got %d", ErrMalformedPayload, len(data))
	}

	version := data[0]
	if version != version1 {
		return Payload{}, fmt.Errorf("%w: unknown version %d", ErrMalformedPayload, version)
	}

	if len(data) != payloadLenV1 {
		return Payload{}, fmt.Errorf("%w: expected exactly %d bytes, got %d", ErrMalformedPayload, payloadLenV1, len(data))
	}

	return Payload{
		SessionID: hex.EncodeToString(data[1 : 1+rawSessionIDLen]),
		Timestep:  data[1+rawSessionIDLen],
		UserID:    binary.BigEndian.Uint32(data[1+rawSessionIDLen+1:]),
	}, nil
}

// SignedCodec is the production codec: binary payload wrapped in the signed
// envelope. The zero value is not usable; construct it with NewSignedCodec.
type SignedCodec struct {
	envelope *Envelope
	now      func() time.Time
}

// NewSignedCodec creates a codec signing with the given secrets.
func NewSignedCodec(secrets ...string) (*SignedCodec, error) {
	env, err := NewEnvelope(secrets...)
	if err != nil {
		return nil, err
	}
	return &SignedCodec{envelope: env, now: time.Now}, nil
}

// NewSignedCodecWithClock is like NewSignedCodec with an injectable clock,
// used by tests that assert on the embedded time step.
func NewSignedCodecWithClock(now func() time.Time, secrets ...string) (*SignedCodec, error) {
	c, err := NewSignedCodec(secrets...)
	if err != nil {
		return nil, err
	}
	c.now = now
	return c, nil
}

// Envelope exposes the underlying signed-string envelope so that other
// cookie-borne tokens (e.g. the XSRF token) can share the same secrets.
func (c *SignedCodec) Envelope() *Envelope {
	return c.envelope
}

// Encode implements Codec.
func (c *SignedCodec) Encode(sessionID string, userID uint32) (string, error) {
	payload, err := EncodePayload(sessionID, userID, c.now())
	if err != nil {
		return "", err
	}
	return c.envelope.Sign(payload), nil
}

// Decode implements Codec.
func (c *SignedCodec) Decode(value string) (Payload, bool) {
	payload, ok := c.envelope.Verify(value)
	if !ok {
		return Payload{}, false
	}

	parsed, err := ParsePayload(payload)
	if err != nil {
		return Payload{}, false
	}

	return parsed, true
}

// PlainCodec passes the hex session id through without signing. It exists
// only for bootstrap flows that run before a signing secret is configured
// and must never be used once one is available.
type PlainCodec struct{}

// Encode implements Codec.
func (PlainCodec) Encode(sessionID string, _ uint32) (string, error) {
	if _, err := hex.DecodeString(sessionID); err != nil || len(sessionID) != 2*rawSessionIDLen {
		return "", fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	}
	return sessionID, nil
}

// Decode implements Codec.
func (PlainCodec) Decode(value string) (Payload, bool) {
	if len(value) != 2*rawSessionIDLen {
		return Payload{}, false
	}
	if _, err := hex.DecodeString(value); err != nil {
		return Payload{}, false
	}
	return Payload{SessionID: value}, true
}
