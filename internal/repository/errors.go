package repository

import "github.com/splax/tasktracker/internal/domain"

var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = domain.ErrNotFound
	// ErrConflict indicates a uniqueness constraint rejected the write.
	ErrConflict = domain.ErrConflict
	// ErrInvalidArgument indicates the store refused malformed input.
	ErrInvalidArgument = domain.ErrMalformedRequest
)
