// Package permission resolves group memberships into an effective permission
// mapping for the active session.
//
// The package does not own any permission data. An external Provider merges
// the mapping across a set of group ids; this package adds the two policy
// layers that sit on top of raw group data:
//
//   - users-only permissions resolve to false for guests before the provider
//     is even consulted, so a shared default group can never leak a
//     registered-user privilege to anonymous visitors;
//   - "never" overrides, which force a permission to false regardless of any
//     grant layered on top elsewhere (e.g. per-object ACLs). Callers must
//     check Never in addition to Get, not instead of it.
//
// Resolved mappings are cached per request binding by the session handler and
// invalidated whenever the bound user changes.
package permission
