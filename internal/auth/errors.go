package auth

import "errors"

var (
	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password so callers cannot tell which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
	ErrMalformedToken   = errors.New("malformed token")
	ErrMissingClaim     = errors.New("token is missing a required claim")

	// ErrUnauthorized is returned when verified claims lack the role an
	// operation requires.
	ErrUnauthorized = errors.New("unauthorized")
)

// IsUnauthenticated reports whether err is one of the token verification
// failures.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrMissingClaim)
}
