// Package redisstore persists sessions in Redis.
//
// Each session is one JSON value whose TTL matches the realm's idle timeout,
// so Redis expires sessions by itself and DeleteExpired has nothing to do. A
// per-user set indexes the sessions of registered users for listing and bulk
// deletion; stale index members left behind by TTL expiry are dropped
// lazily on read.
package redisstore
