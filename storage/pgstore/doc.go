// Package pgstore persists sessions and online presence in PostgreSQL.
//
// Sessions live in one table per realm (user_sessions, admin_sessions) with
// their variables stored as JSONB. Presence records live in online_presence,
// keyed by session id with an upsert so concurrent requests for the same
// identity cannot race into duplicate rows.
//
// Migrate applies the embedded goose migrations. All queries join a
// caller-managed transaction when one is attached with pg.WithTx.
package pgstore
