// Package cookie provides HTTP cookie transport with secure defaults and
// per-call option overrides.
//
// The manager only moves values between http.Request / http.ResponseWriter and
// the Set-Cookie header; signing and payload encoding live in
// core/sessioncookie. Keeping transport and cryptography separate lets the
// session handler issue several differently-scoped cookies (realm session
// cookies, the XSRF-TOKEN cookie) through one manager.
//
// # Usage
//
//	manager := cookie.New(
//		cookie.WithSecure(true),
//		cookie.WithSameSite(http.SameSiteLaxMode),
//	)
//
//	// Write a cookie with per-call overrides.
//	err := manager.Set(w, "user_session", value,
//		cookie.WithMaxAge(14*86400),
//	)
//
//	// Read it back.
//	value, err := manager.Get(r, "user_session")
//
// Defaults are Path=/, HttpOnly and SameSite=Lax; individual cookies override
// them per call (the XSRF-TOKEN cookie, for example, must not be HttpOnly).
package cookie
