package shared

import "errors"

var (
	// ErrInvalidToken indicates a bearer token that failed verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingToken occurs when a protected route receives no bearer token.
	ErrMissingToken = errors.New("missing bearer token")
)
