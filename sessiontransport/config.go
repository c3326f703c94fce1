package sessiontransport

import (
	"github.com/caarlos0/env/v11"

	"github.com/dmitrymomot/sessionstore/session"
)

// CookieConfig provides environment-based configuration for the cookie
// transport.
type CookieConfig struct {
	// Name is the session cookie name.
	Name string `env:"SESSION_COOKIE_NAME" envDefault:"session_id"`

	// Path is the cookie path attribute.
	Path string `env:"SESSION_COOKIE_PATH" envDefault:"/"`

	// Domain is the cookie domain attribute (empty means host-only).
	Domain string `env:"SESSION_COOKIE_DOMAIN" envDefault:""`

	// Secret signs cookie values. Required, no default.
	Secret string `env:"SESSION_COOKIE_SECRET"`

	// Secure controls the cookie Secure attribute.
	Secure bool `env:"SESSION_COOKIE_SECURE" envDefault:"true"`
}

// LoadCookieConfig reads CookieConfig from the environment.
func LoadCookieConfig() (CookieConfig, error) {
	return env.ParseAs[CookieConfig]()
}

// NewCookieFromConfig creates a cookie transport from configuration. The
// session.Manager is provided by the caller.
func NewCookieFromConfig(cfg CookieConfig, manager *session.Manager) (*Cookie, error) {
	opts := []CookieOption{
		WithName(cfg.Name),
		WithPath(cfg.Path),
		WithDomain(cfg.Domain),
	}
	if !cfg.Secure {
		opts = append(opts, WithoutSecure())
	}
	return NewCookie(manager, cfg.Secret, opts...)
}
