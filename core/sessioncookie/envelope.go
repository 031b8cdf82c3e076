package sessioncookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"slices"
	"strings"
)

// minSecretLength matches the minimum entropy required for HMAC-SHA256 keys.
const minSecretLength = 32

// Envelope wraps arbitrary payloads in an HMAC-SHA256 signature so that
// clients cannot forge or modify them. Multiple secrets are supported for
// key rotation: the first secret signs, all secrets verify.
type Envelope struct {
	secrets []string
}

// NewEnvelope creates an envelope from one or more signing secrets.
// Empty secrets are discarded; every remaining secret must be at least
// 32 characters long.
func NewEnvelope(secrets ...string) (*Envelope, error) {
	secrets = slices.DeleteFunc(slices.Clone(secrets), func(s string) bool { return s == "" })
	if len(secrets) == 0 {
		return nil, ErrNoSecret
	}

	for i := range secrets {
		if len(secrets[i]) < minSecretLength {
			return nil, fmt.Errorf("%w: secret %d has %d chars, need at least %d",
				ErrSecretTooShort, i, len(secrets[i]), minSecretLength)
		}
	}

	return &Envelope{secrets: secrets}, nil
}

// Sign returns the payload wrapped in an opaque signed string.
func (e *Envelope) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(e.secrets[0]))
	mac.Write(payload)
	signature := base64.URLEncoding.EncodeToString(mac.Sum(nil))
	return base64.URLEncoding.EncodeToString(payload) + "|" + signature
}

// Verify checks the signature and returns the embedded payload. The boolean
// is false for any structural or signature failure; the caller must treat
// that exactly like an absent value.
func (e *Envelope) Verify(signed string) ([]byte, bool) {
	encodedPayload, signature, ok := strings.Cut(signed, "|")
	if !ok {
		return nil, false
	}

	payload, err := base64.URLEncoding.DecodeString(encodedPayload)
	if err != nil {
		return nil, false
	}

	// Try all secrets for key rotation support.
	validIndex := slices.IndexFunc(e.secrets, func(secret string) bool {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(payload)
		expectedSig := base64.URLEncoding.EncodeToString(mac.Sum(nil))
		return subtle.ConstantTimeCompare([]byte(signature), []byte(expectedSig)) == 1
	})

	if validIndex < 0 {
		return nil, false
	}

	return payload, true
}
