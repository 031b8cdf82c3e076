package sessioncookie_test

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/core/sessioncookie"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func randomSessionID(t *testing.T) string {
	t.Helper()
	raw := make([]byte, 20)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	return hex.EncodeToString(raw)
}

func TestPayloadRoundtrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		userID uint32
	}{
		{"guest", 0},
		{"user", 1337},
		{"max user id", ^uint32(0)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			sessionID := randomSessionID(t)
			now := time.Now()

			payload, err := sessioncookie.EncodePayload(sessionID, tc.userID, now)
			require.NoError(t, err)
			require.Len(t, payload, 26)

			parsed, err := sessioncookie.ParsePayload(payload)
			require.NoError(t, err)
			assert.Equal(t, sessionID, parsed.SessionID)
			assert.Equal(t, tc.userID, parsed.UserID)
			assert.Equal(t, sessioncookie.Timestep(now), parsed.Timestep)
		})
	}
}

func TestParsePayload_Malformed(t *testing.T) {
	t.Parallel()

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		_, err := sessioncookie.ParsePayload(nil)
		require.ErrorIs(t, err, sessioncookie.ErrMalformedPayload)
	})

	t.Run("unknown version", func(t *testing.T) {
		t.Parallel()

		data := make([]byte, 26)
		data[0] = 2
		_, err := sessioncookie.ParsePayload(data)
		require.ErrorIs(t, err, sessioncookie.ErrMalformedPayload)
	})

	t.Run("short payload", func(t *testing.T) {
		t.Parallel()

		data := make([]byte, 25)
		data[0] = 1
		_, err := sessioncookie.ParsePayload(data)
		require.ErrorIs(t, err, sessioncookie.ErrMalformedPayload)
	})

	t.Run("long payload", func(t *testing.T) {
		t.Parallel()

		data := make([]byte, 27)
		data[0] = 1
		_, err := sessioncookie.ParsePayload(data)
		require.ErrorIs(t, err, sessioncookie.ErrMalformedPayload)
	})
}

func TestEncodePayload_InvalidSessionID(t *testing.T) {
	t.Parallel()

	_, err := sessioncookie.EncodePayload("not-hex", 1, time.Now())
	require.ErrorIs(t, err, sessioncookie.ErrInvalidSessionID)

	// Valid hex but wrong length.
	_, err = sessioncookie.EncodePayload("abcdef", 1, time.Now())
	require.ErrorIs(t, err, sessioncookie.ErrInvalidSessionID)
}

func TestSignedCodec_Roundtrip(t *testing.T) {
	t.Parallel()

	codec, err := sessioncookie.NewSignedCodec(testSecret)
	require.NoError(t, err)

	sessionID := randomSessionID(t)

	value, err := codec.Encode(sessionID, 42)
	require.NoError(t, err)

	payload, ok := codec.Decode(value)
	require.True(t, ok)
	assert.Equal(t, sessionID, payload.SessionID)
	assert.Equal(t, uint32(42), payload.UserID)
}

func TestSignedCodec_RejectsTampering(t *testing.T) {
	t.Parallel()

	codec, err := sessioncookie.NewSignedCodec(testSecret)
	require.NoError(t, err)

	value, err := codec.Encode(randomSessionID(t), 42)
	require.NoError(t, err)

	t.Run("flipped signature bit", func(t *testing.T) {
		t.Parallel()

		tampered := []byte(value)
		last := len(tampered) - 2
		if tampered[last] == 'A' {
			tampered[last] = 'B'
		} else {
			tampered[last] = 'A'
		}

		_, ok := codec.Decode(string(tampered))
		assert.False(t, ok)
	})

	t.Run("missing separator", func(t *testing.T) {
		t.Parallel()

		_, ok := codec.Decode(strings.ReplaceAll(value, "|", ""))
		assert.False(t, ok)
	})

	t.Run("garbage input", func(t *testing.T) {
		t.Parallel()

		_, ok := codec.Decode("definitely-not-a-cookie")
		assert.False(t, ok)
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		_, ok := codec.Decode("")
		assert.False(t, ok)
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()

		other, err := sessioncookie.NewSignedCodec("another-secret-another-secret-32")
		require.NoError(t, err)

		_, ok := other.Decode(value)
		assert.False(t, ok)
	})
}

func TestSignedCodec_KeyRotation(t *testing.T) {
	t.Parallel()

	oldSecret := "old-secret-old-secret-old-secret"
	newSecret := "new-secret-new-secret-new-secret"

	oldCodec, err := sessioncookie.NewSignedCodec(oldSecret)
	require.NoError(t, err)

	value, err := oldCodec.Encode(randomSessionID(t), 7)
	require.NoError(t, err)

	// A codec with the new secret first still accepts cookies signed
	// with the old secret.
	rotated, err := sessioncookie.NewSignedCodec(newSecret, oldSecret)
	require.NoError(t, err)

	payload, ok := rotated.Decode(value)
	require.True(t, ok)
	assert.Equal(t, uint32(7), payload.UserID)
}

func TestNewSignedCodec_SecretValidation(t *testing.T) {
	t.Parallel()

	_, err := sessioncookie.NewSignedCodec()
	require.ErrorIs(t, err, sessioncookie.ErrNoSecret)

	_, err = sessioncookie.NewSignedCodec("")
	require.ErrorIs(t, err, sessioncookie.ErrNoSecret)

	_, err = sessioncookie.NewSignedCodec("too-short")
	require.ErrorIs(t, err, sessioncookie.ErrSecretTooShort)
}

func TestPlainCodec(t *testing.T) {
	t.Parallel()

	codec := sessioncookie.PlainCodec{}
	sessionID := randomSessionID(t)

	value, err := codec.Encode(sessionID, 99)
	require.NoError(t, err)
	assert.Equal(t, sessionID, value, "plain codec must not transform the session id")

	payload, ok := codec.Decode(value)
	require.True(t, ok)
	assert.Equal(t, sessionID, payload.SessionID)
	assert.Zero(t, payload.UserID, "plain codec does not carry a user id")

	_, ok = codec.Decode("short")
	assert.False(t, ok)

	_, ok = codec.Decode(strings.Repeat("z", 40))
	assert.False(t, ok)
}

func TestTimestep(t *testing.T) {
	t.Parallel()

	base := time.Unix(1_600_000_000, 0)

	assert.Equal(t, sessioncookie.Timestep(base), sessioncookie.Timestep(base.Add(time.Hour)))
	assert.NotEqual(t, sessioncookie.Timestep(base), sessioncookie.Timestep(base.Add(6*time.Hour)))
}
