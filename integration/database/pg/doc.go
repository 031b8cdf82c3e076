// Package pg provides PostgreSQL connection management with retry logic and
// health checking.
//
// Connect creates a pgx connection pool, verifies connectivity with a ping,
// and retries with exponential backoff to ride out transient network issues
// during startup:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer pool.Close()
//
// Healthcheck returns a probe function suitable for readiness endpoints. The
// error classification helpers (IsNotFoundError, IsDuplicateKeyError, ...)
// give callers stable checks for common PostgreSQL failure modes.
//
// WithTx and TxFromContext propagate a pgx.Tx through context so that storage
// implementations can join a caller-managed transaction.
package pg
