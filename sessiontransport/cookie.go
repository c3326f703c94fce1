package sessiontransport

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net"
	"net/http"
	"strings"

	"github.com/dmitrymomot/sessionstore/session"
)

// minSecretLength keeps the HMAC key at 256 bits.
const minSecretLength = 32

// Cookie is the HTTP transport that connects a session.Manager to the
// client's cookie. The cookie value is the session id, HMAC-SHA256 signed
// so a tampered id is indistinguishable from no cookie at all.
type Cookie struct {
	manager *session.Manager
	secret  []byte
	name    string
	path    string
	domain  string
	secure  bool
}

// NewCookie creates a cookie transport for the given manager. The secret
// signs cookie values and must be at least 32 bytes.
func NewCookie(manager *session.Manager, secret string, opts ...CookieOption) (*Cookie, error) {
	if len(secret) < minSecretLength {
		return nil, ErrSecretTooShort
	}

	c := &Cookie{
		manager: manager,
		secret:  []byte(secret),
		name:    "session_id",
		path:    "/",
		secure:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CookieOption configures a Cookie transport.
type CookieOption func(*Cookie)

// WithName sets the session cookie name (default "session_id").
func WithName(name string) CookieOption {
	return func(c *Cookie) {
		if name != "" {
			c.name = name
		}
	}
}

// WithPath sets the cookie path attribute (default "/").
func WithPath(path string) CookieOption {
	return func(c *Cookie) {
		if path != "" {
			c.path = path
		}
	}
}

// WithDomain sets the cookie domain attribute (default host-only).
func WithDomain(domain string) CookieOption {
	return func(c *Cookie) {
		c.domain = domain
	}
}

// WithoutSecure drops the Secure attribute for plain-HTTP development.
func WithoutSecure() CookieOption {
	return func(c *Cookie) {
		c.secure = false
	}
}

// Load resolves the request's session. A missing cookie, a bad signature,
// or an unusable stored session all degrade to a fresh session, so the
// returned session is always usable; the only error is a persistence
// failure creating a fresh one.
func (c *Cookie) Load(r *http.Request) (*session.Session, error) {
	var id string
	if ck, err := r.Cookie(c.name); err == nil {
		if v, err := c.verify(ck.Value); err == nil {
			id = v
		}
	}

	return c.manager.Resolve(r.Context(), id, session.Metadata{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
}

// Finish completes the request's session handling: refresh or rotate
// server-side, then re-issue (or clear) the client cookie accordingly. Call
// it once before writing the response body. The returned session is the one
// the client now holds.
func (c *Cookie) Finish(w http.ResponseWriter, r *http.Request, sess *session.Session) (*session.Session, error) {
	return c.manager.Finish(r.Context(), sess, c.writer(w))
}

// Invalidate destroys the session and clears the cookie immediately. Use on
// logout; a later Finish on the same session only re-clears the cookie.
func (c *Cookie) Invalidate(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	if err := c.manager.Invalidate(r.Context(), sess); err != nil {
		return err
	}
	c.writer(w).ClearClientSessionID()
	return nil
}

func (c *Cookie) writer(w http.ResponseWriter) session.ClientWriter {
	return &cookieWriter{transport: c, w: w}
}

// cookieWriter adapts one response writer into the two client-credential
// capabilities the lifecycle engine needs.
type cookieWriter struct {
	transport *Cookie
	w         http.ResponseWriter
}

func (cw *cookieWriter) SetClientSessionID(id string) {
	c := cw.transport
	http.SetCookie(cw.w, &http.Cookie{
		Name:     c.name,
		Value:    c.sign(id),
		Path:     c.path,
		Domain:   c.domain,
		MaxAge:   int(c.manager.Duration().Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (cw *cookieWriter) ClearClientSessionID() {
	c := cw.transport
	http.SetCookie(cw.w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     c.path,
		Domain:   c.domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sign produces base64(value) + "|" + base64(hmac-sha256(value)).
func (c *Cookie) sign(value string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(value))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return base64.RawURLEncoding.EncodeToString([]byte(value)) + "|" + sig
}

// verify checks the signature and returns the embedded value.
func (c *Cookie) verify(signed string) (string, error) {
	encoded, sig, ok := strings.Cut(signed, "|")
	if !ok {
		return "", ErrInvalidCookie
	}
	value, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidCookie
	}

	mac := hmac.New(sha256.New, c.secret)
	mac.Write(value)
	expected := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
		return "", ErrInvalidCookie
	}
	return string(value), nil
}

// clientIP extracts the originating client address, preferring proxy
// headers over the socket peer.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
