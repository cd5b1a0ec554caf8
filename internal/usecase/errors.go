package usecase

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("resource not found")
	// ErrUnauthorized is returned by identity providers for rejected credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrIdentityAbsent means the request carries no usable identity and must go to login.
	ErrIdentityAbsent = errors.New("identity absent")
	// ErrDependencyUnavailable marks a backend outage; it is never turned into a redirect.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
