package domain

import (
	"strings"
	"time"
)

// Role is the coarse authorization level of an identity.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole normalizes raw into a Role, defaulting to RoleUser.
func ParseRole(raw string) Role {
	if Role(strings.ToUpper(strings.TrimSpace(raw))) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// Identity represents a registered account. Email is the natural key and never changes.
type Identity struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the identity carries the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// EmailKey is the case-insensitive uniqueness and lookup key of an email.
// Identities keep the email exactly as registered; only the key is folded.
func EmailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
