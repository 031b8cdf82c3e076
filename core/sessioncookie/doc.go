// Package sessioncookie implements the compact binary payload carried by the
// session cookies, together with the tamper-evident envelope that wraps it.
//
// # Payload Format
//
// Version 1 payloads are exactly 26 bytes:
//
//	| offset | size | field                                        |
//	|--------|------|----------------------------------------------|
//	| 0      | 1    | version (must be 1)                          |
//	| 1      | 20   | raw session id bytes                         |
//	| 21     | 1    | time step (6-hour epoch counter, mod 256)    |
//	| 22     | 4    | user id, big-endian uint32 (0 = guest)       |
//
// The time step only exists so that repeated cookie values change a few times
// a day without leaking a precise timestamp.
//
// # Envelope
//
// The payload is wrapped in a generic signed-string envelope:
//
//	env, err := sessioncookie.NewEnvelope(secrets)
//	signed := env.Sign(payload)
//	payload, ok := env.Verify(signed)
//
// Verification failures are indistinguishable from an absent cookie by design;
// callers receive a boolean, never a detailed error, to avoid oracle behavior.
//
// # Codecs
//
// SignedCodec combines payload packing with the envelope and is the codec used
// in production. PlainCodec passes the hex session id through unmodified and
// exists only for first-time setup, before a signing secret is available.
package sessioncookie
