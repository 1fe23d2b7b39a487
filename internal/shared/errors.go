package shared

import "errors"

var (
	// ErrUnauthenticated indicates a missing or unusable bearer token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidToken indicates a bearer token that failed verification.
	ErrInvalidToken = errors.New("invalid token")
)
