package session

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/sessionkit/core/cookie"
)

// xsrfCookieName is fixed and unprefixed so that off-the-shelf frontend
// libraries pick the token up without configuration.
const xsrfCookieName = "XSRF-TOKEN"

// varSecurityToken holds the per-session anti-CSRF secret.
const varSecurityToken = "__securityToken"

// SecurityToken returns the session's anti-CSRF token, generating and storing
// one on first use. The token survives for the lifetime of the session and is
// rotated together with the session id on ChangeUser.
func (b *Binding) SecurityToken() string {
	if b.securityToken != "" {
		return b.securityToken
	}

	if v, ok := b.sess.Var(varSecurityToken); ok {
		if s, ok := v.(string); ok && s != "" {
			b.securityToken = s
			return s
		}
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	b.sess.SetVar(varSecurityToken, token)
	b.securityToken = token
	return token
}

// ValidateSecurityToken reports whether the submitted token matches the
// session's security token, in constant time.
func (b *Binding) ValidateSecurityToken(token string) bool {
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(b.SecurityToken()), []byte(token)) == 1
}

// XSRFToken returns the value written to the XSRF-TOKEN cookie: the signed
// form of the security token when the cookie codec signs, the raw token
// otherwise.
func (b *Binding) XSRFToken() string {
	return b.xsrfToken
}

// ValidateXSRFToken verifies a token submitted back from the XSRF-TOKEN
// cookie, unwrapping the signature when one is present.
func (b *Binding) ValidateXSRFToken(value string) bool {
	if b.h.envelope != nil {
		payload, ok := b.h.envelope.Verify(value)
		if !ok {
			return false
		}
		return b.ValidateSecurityToken(string(payload))
	}
	return b.ValidateSecurityToken(value)
}

// issueXSRFToken mirrors the security token into the XSRF-TOKEN cookie so
// that JavaScript can echo it in request headers. The cookie is readable by
// scripts on purpose; its value is signed so a forged cookie cannot pass
// verification.
func (h *Handler) issueXSRFToken(b *Binding) {
	token := b.SecurityToken()

	value := token
	if h.envelope != nil {
		value = h.envelope.Sign([]byte(token))
	}

	if current, err := h.cookies.Get(b.r, xsrfCookieName); err == nil {
		if b.ValidateXSRFToken(current) {
			b.xsrfToken = current
			return
		}
	}

	// Multi-domain deployments share the cookie across origins and therefore
	// cannot use Strict.
	sameSite := http.SameSiteStrictMode
	if h.cookieDomain != "" {
		sameSite = http.SameSiteLaxMode
	}

	opts := []cookie.Option{
		cookie.WithHTTPOnly(false),
		cookie.WithSameSite(sameSite),
	}
	if h.cookieDomain != "" {
		opts = append(opts, cookie.WithDomain(h.cookieDomain))
	}

	if err := h.cookies.Set(b.w, xsrfCookieName, value, opts...); err != nil {
		h.log.Debug("failed to issue anti-CSRF cookie", "error", err)
		return
	}
	b.xsrfToken = value
}
