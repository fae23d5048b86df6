package domain

import "errors"

// Failure kinds raised by the core. Layers wrap these with context and callers match with errors.Is.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrDuplicateIdentity  = errors.New("identity already exists")
	ErrMalformedRequest   = errors.New("malformed request")
	ErrConflict           = errors.New("conflicting write")
)
