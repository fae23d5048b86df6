package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/splax/tasktracker/internal/domain"
	"github.com/splax/tasktracker/internal/repository"
	jwtpkg "github.com/splax/tasktracker/pkg/jwt"
)

var (
	ErrUnauthenticated  = domain.ErrUnauthenticated
	ErrIdentityNotFound = domain.ErrIdentityNotFound
	ErrAccessDenied     = domain.ErrAccessDenied
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string, now time.Time) (*jwtpkg.Claims, error)
}

// Guard resolves callers from bearer tokens.
type Guard struct {
	tokens     TokenVerifier
	identities repository.IdentityStore
	now        func() time.Time
}

// New constructs a Guard.
func New(tokens TokenVerifier, identities repository.IdentityStore) Guard {
	return Guard{tokens: tokens, identities: identities, now: time.Now}
}

// WithClock returns a copy of g reading time from now.
func (g Guard) WithClock(now func() time.Time) Guard {
	g.now = now
	return g
}

// ResolveCaller verifies token and loads the identity named by its subject.
func (g Guard) ResolveCaller(ctx context.Context, token string) (*domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := g.tokens.Verify(token, g.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	identity, err := g.identities.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return identity, nil
}

// AssertOwnership fails with ErrAccessDenied unless caller owns resource.
func AssertOwnership(resource domain.Owned, caller *domain.Identity) error {
	if caller == nil {
		return ErrUnauthenticated
	}
	if resource == nil || resource.Owner() != caller.ID {
		return ErrAccessDenied
	}
	return nil
}

// RequireRole fails with ErrAccessDenied unless caller carries role.
func RequireRole(caller *domain.Identity, role domain.Role) error {
	if caller == nil {
		return ErrUnauthenticated
	}
	if caller.Role != role {
		return ErrAccessDenied
	}
	return nil
}
