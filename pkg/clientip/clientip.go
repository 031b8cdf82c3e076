// Package clientip extracts the real client IP address from HTTP requests.
//
// Proxy headers are checked in priority order before falling back to the
// connection's remote address:
//
//  1. CF-Connecting-IP (Cloudflare)
//  2. X-Forwarded-For (leftmost entry)
//  3. X-Real-IP
//  4. RemoteAddr
//
// Every candidate is parsed and normalized; invalid values and the
// unspecified address 0.0.0.0 are skipped.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// GetIP returns the best-effort client IP for the request. The empty string
// is returned only if no candidate parses as a valid address.
func GetIP(r *http.Request) string {
	if ip := normalize(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}

	// X-Forwarded-For may contain "client, proxy1, proxy2"; the leftmost
	// entry is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := normalize(first); ip != "" {
			return ip
		}
	}

	if ip := normalize(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return normalize(host)
}

// normalize validates the candidate and returns it in canonical form, or the
// empty string if it is not a usable address.
func normalize(candidate string) string {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return ""
	}

	ip := net.ParseIP(candidate)
	if ip == nil || ip.IsUnspecified() {
		return ""
	}

	return ip.String()
}
