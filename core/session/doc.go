// Package session implements the server side of cookie-bound sessions for
// two security realms: the user-facing application and the admin panel.
//
// A Handler is constructed once per realm and shared across requests; all
// per-request state lives in the Binding returned by Handler.Load. There is
// deliberately no process-wide singleton: the Binding is passed by reference
// through the request-handling call chain.
//
//	handler := session.NewHandler(session.RealmUser, store, codec,
//		session.WithUsers(users),
//		session.WithPresence(bridge),
//	)
//
//	func middleware(next http.Handler) http.Handler {
//		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//			b, err := handler.Load(w, r)
//			if err != nil {
//				http.Error(w, "internal error", http.StatusInternalServerError)
//				return
//			}
//			defer b.Flush(r.Context())
//
//			next.ServeHTTP(w, r.WithContext(session.WithBinding(r.Context(), b)))
//		})
//	}
//
// Load never fails on a bad cookie: decode failures, expired sessions and
// corrupt variables all degrade to a fresh guest session. Only storage
// failures propagate.
//
// # Lifetimes
//
// Admin sessions expire after 2 hours of inactivity. In the user realm,
// guests get 2 hours and registered users 14 days. Expired rows are removed
// by Prune, which is idempotent and safe to run concurrently from several
// processes.
//
// # Identity changes
//
// ChangeUser is the only way to move between guest and authenticated state.
// Logging in discards the old session row and binds a brand-new session id,
// so no variable state (and no fixated session id) ever crosses an identity
// boundary. Logging out deletes the row without allocating a replacement;
// the next request starts a clean guest session.
// The multifactor flow defers this switch behind a short-lived
// pending-change marker; reauthentication enforces a time-windowed re-proof
// of identity for sensitive areas independent of session validity.
package session
