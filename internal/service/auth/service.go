package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/splax/tasktracker/internal/domain"
	"github.com/splax/tasktracker/internal/repository"
	"github.com/splax/tasktracker/internal/service/guard"
)

var (
	ErrDuplicateIdentity  = domain.ErrDuplicateIdentity
	ErrIdentityNotFound   = domain.ErrIdentityNotFound
	ErrInvalidCredentials = domain.ErrInvalidCredentials
	ErrMalformedRequest   = domain.ErrMalformedRequest
	ErrConflict           = domain.ErrConflict
)

// PasswordHasher hashes and verifies credentials.
type PasswordHasher interface {
	Hash(plain string) ([]byte, error)
	Verify(hash []byte, plain string) bool
}

// TokenIssuer signs identity tokens.
type TokenIssuer interface {
	Issue(subject, role string, now time.Time) (string, error)
	TTL() time.Duration
}

// Service handles authentication workflows.
type Service struct {
	identities repository.IdentityStore
	hasher     PasswordHasher
	tokens     TokenIssuer
	logger     *slog.Logger
	now        func() time.Time
}

// New constructs a Service.
func New(identities repository.IdentityStore, hasher PasswordHasher, tokens TokenIssuer, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{identities: identities, hasher: hasher, tokens: tokens, logger: logger, now: time.Now}
}

// WithClock returns a copy of s reading time from now.
func (s Service) WithClock(now func() time.Time) Service {
	s.now = now
	return s
}

// RegisterInput carries the fields of a signup.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	Identity  *domain.Identity
}

// Register creates a USER identity and issues a token for it. The email is
// stored as given; a case variant of an existing email is a duplicate.
func (s Service) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	email := strings.TrimSpace(in.Email)
	if !strings.Contains(email, "@") {
		return AuthResult{}, fmt.Errorf("%w: email is invalid", ErrMalformedRequest)
	}
	if in.Password == "" {
		return AuthResult{}, fmt.Errorf("%w: password is required", ErrMalformedRequest)
	}

	if _, err := s.identities.FindByEmail(ctx, email); err == nil {
		return AuthResult{}, ErrDuplicateIdentity
	} else if !errors.Is(err, repository.ErrNotFound) {
		return AuthResult{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	identity := &domain.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.identities.Save(ctx, identity); err != nil {
		return AuthResult{}, fmt.Errorf("save identity: %w", err)
	}

	result, err := s.issue(identity, now)
	if err != nil {
		return AuthResult{}, err
	}
	s.logger.Info("identity registered", "identity_id", identity.ID)
	return result, nil
}

// Login verifies credentials and issues a token. Unknown emails and wrong
// passwords fail with distinct errors.
func (s Service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	identity, err := s.identities.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return AuthResult{}, ErrIdentityNotFound
		}
		return AuthResult{}, err
	}
	if !s.hasher.Verify(identity.PasswordHash, password) {
		return AuthResult{}, ErrInvalidCredentials
	}
	result, err := s.issue(identity, s.now().UTC())
	if err != nil {
		return AuthResult{}, err
	}
	s.logger.Info("identity logged in", "identity_id", identity.ID)
	return result, nil
}

// Profile returns the stored state of caller.
func (s Service) Profile(ctx context.Context, caller *domain.Identity) (*domain.Identity, error) {
	if caller == nil {
		return nil, guard.ErrUnauthenticated
	}
	identity, err := s.identities.FindByID(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return identity, nil
}

// ProfileInput carries the editable profile fields. Email is immutable.
type ProfileInput struct {
	FirstName string
	LastName  string
}

// UpdateProfile renames caller.
func (s Service) UpdateProfile(ctx context.Context, caller *domain.Identity, in ProfileInput) (*domain.Identity, error) {
	identity, err := s.Profile(ctx, caller)
	if err != nil {
		return nil, err
	}
	identity.FirstName = strings.TrimSpace(in.FirstName)
	identity.LastName = strings.TrimSpace(in.LastName)
	identity.UpdatedAt = s.now().UTC()
	if err := s.identities.Save(ctx, identity); err != nil {
		return nil, fmt.Errorf("save identity: %w", err)
	}
	s.logger.Info("profile updated", "identity_id", identity.ID)
	return identity, nil
}

// ChangePassword replaces caller's password after verifying the current one.
func (s Service) ChangePassword(ctx context.Context, caller *domain.Identity, current, next string) error {
	if next == "" {
		return fmt.Errorf("%w: new password is required", ErrMalformedRequest)
	}
	identity, err := s.Profile(ctx, caller)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(identity.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	identity.PasswordHash = hash
	identity.UpdatedAt = s.now().UTC()
	if err := s.identities.Save(ctx, identity); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	s.logger.Info("password changed", "identity_id", identity.ID)
	return nil
}

// ListIdentities returns every identity. Admin only.
func (s Service) ListIdentities(ctx context.Context, caller *domain.Identity) ([]domain.Identity, error) {
	if err := guard.RequireRole(caller, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.identities.FindAll(ctx)
}

// issue signs a token for identity. The reported expiry is truncated to the
// second so it matches the exp claim.
func (s Service) issue(identity *domain.Identity, now time.Time) (AuthResult, error) {
	now = now.Truncate(time.Second)
	token, err := s.tokens.Issue(identity.Email, string(identity.Role), now)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	return AuthResult{Token: token, ExpiresAt: now.Add(s.tokens.TTL()), Identity: identity}, nil
}
