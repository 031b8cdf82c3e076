package session

import (
	"github.com/dmitrymomot/sessionkit/core/sessioncookie"
)

// Config holds the environment-driven session settings.
type Config struct {
	// Secrets sign the session and XSRF cookies. List the newest secret
	// first; older secrets remain valid for verification until rotated out.
	Secrets []string `env:"SESSION_SECRETS,required" envSeparator:","`

	// CookiePrefix namespaces the session cookie names of one deployment.
	CookiePrefix string `env:"SESSION_COOKIE_PREFIX" envDefault:""`

	// CookieDomain, when set, marks the deployment as multi-domain and shares
	// the cookies across the given domain.
	CookieDomain string `env:"SESSION_COOKIE_DOMAIN" envDefault:""`

	// SecureCookies restricts all cookies to HTTPS. Disable only for local
	// development.
	SecureCookies bool `env:"SESSION_COOKIE_SECURE" envDefault:"true"`
}

// Codec builds the signed cookie codec from the configured secrets.
func (c Config) Codec() (*sessioncookie.SignedCodec, error) {
	return sessioncookie.NewSignedCodec(c.Secrets...)
}

// HandlerOptions translates the config into handler options.
func (c Config) HandlerOptions() []HandlerOption {
	opts := []HandlerOption{
		WithCookiePrefix(c.CookiePrefix),
		WithSecureCookies(c.SecureCookies),
	}
	if c.CookieDomain != "" {
		opts = append(opts, WithCookieDomain(c.CookieDomain))
	}
	return opts
}
