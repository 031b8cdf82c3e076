// Package presence maintains the coarse "who is online" records that sit next
// to the per-browser sessions.
//
// A presence record is keyed by identity rather than by browser: one record
// per registered user regardless of how many devices they have open, and one
// record per anonymous session, with recognized crawlers collapsing onto a
// single record per spider. Records carry the last visited page hierarchy and
// are pruned on a much shorter window (2 hours) than user sessions; they are
// lazily re-created on demand.
//
// Presence exists only for the user-facing realm. Admin sessions never create
// presence records.
package presence
