package sessiontransport

import "errors"

var (
	// ErrSecretTooShort is returned when the cookie signing secret is
	// shorter than 32 bytes.
	ErrSecretTooShort = errors.New("sessiontransport: signing secret must be at least 32 bytes")

	// ErrInvalidCookie is returned when a cookie value has the wrong
	// format or a bad signature. Load treats it as no cookie at all.
	ErrInvalidCookie = errors.New("sessiontransport: invalid session cookie")
)
