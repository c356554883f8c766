package kaijuauth

import "errors"

var (
	// ErrNotAuthorized is the uniform client-visible authentication failure.
	// The underlying reason (bad password, bad signature, unknown key id,
	// expired token) is logged server-side and never distinguished here, so
	// error text cannot be used as an oracle.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrInvalidToken is returned for structurally malformed tokens that
	// cannot be parsed at all. HTTP-facing handling is identical to
	// ErrNotAuthorized; the distinction exists for server-side logging.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMethodNotAllowed is returned when a basic-auth or token-auth flow
	// is invoked while that mode is administratively disabled.
	ErrMethodNotAllowed = errors.New("authentication method not allowed")
	// ErrServiceNotReady is returned when a Service is used before Build
	// wired its collaborators.
	ErrServiceNotReady = errors.New("auth service not ready")
)
