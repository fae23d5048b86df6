package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/splax/tasktracker/internal/domain"
	"github.com/splax/tasktracker/internal/repository"
	"github.com/splax/tasktracker/internal/repository/memory"
	"github.com/splax/tasktracker/pkg/crypto"
	jwtpkg "github.com/splax/tasktracker/pkg/jwt"
	"github.com/splax/tasktracker/pkg/logger"
)

const testSecret = "auth-test-secret-auth-test-secret"

var testNow = time.Date(2024, 5, 10, 8, 30, 0, 0, time.UTC)

func newService(store repository.IdentityStore) (Service, jwtpkg.Codec) {
	codec := jwtpkg.NewCodec(testSecret, 0)
	svc := New(store, crypto.NewHasher(4), codec, logger.Discard()).
		WithClock(func() time.Time { return testNow })
	return svc, codec
}

func TestRegisterThenLogin(t *testing.T) {
	tests := []struct {
		name       string
		email      string
		loginEmail string
	}{
		{name: "lowercase", email: "jane@x.com", loginEmail: "jane@x.com"},
		{name: "mixed case", email: "Jane.Doe@X.com", loginEmail: "Jane.Doe@X.com"},
		{name: "login with other case", email: "Jane.Doe@X.com", loginEmail: "jane.doe@x.COM"},
		{name: "surrounding spaces", email: " Jane@x.com ", loginEmail: "jane@x.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New().Set().Identities
			svc, codec := newService(store)
			ctx := context.Background()
			registeredEmail := strings.TrimSpace(tt.email)

			registered, err := svc.Register(ctx, RegisterInput{FirstName: "Jane", LastName: "Doe", Email: tt.email, Password: "pw1"})
			if err != nil {
				t.Fatalf("register: %v", err)
			}
			if registered.Identity.Role != domain.RoleUser {
				t.Fatalf("expected USER role, got %q", registered.Identity.Role)
			}
			if registered.Identity.Email != registeredEmail {
				t.Fatalf("expected stored email %q, got %q", registeredEmail, registered.Identity.Email)
			}
			if !registered.ExpiresAt.Equal(testNow.Add(24 * time.Hour)) {
				t.Fatalf("unexpected expiry %v", registered.ExpiresAt)
			}
			claims, err := codec.Verify(registered.Token, testNow.Add(time.Minute))
			if err != nil {
				t.Fatalf("verify register token: %v", err)
			}
			if claims.Subject != registeredEmail {
				t.Fatalf("register token subject %q, want %q", claims.Subject, registeredEmail)
			}

			if _, err := svc.Login(ctx, tt.loginEmail, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}

			loggedIn, err := svc.Login(ctx, tt.loginEmail, "pw1")
			if err != nil {
				t.Fatalf("login: %v", err)
			}
			claims, err = codec.Verify(loggedIn.Token, testNow.Add(time.Minute))
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if claims.Subject != registeredEmail || claims.Role != "USER" {
				t.Fatalf("unexpected claims %+v", claims)
			}

			stored, err := store.FindByEmail(ctx, claims.Subject)
			if err != nil {
				t.Fatalf("find by subject: %v", err)
			}
			if stored.ID != registered.Identity.ID {
				t.Fatalf("subject resolved to %s, want %s", stored.ID, registered.Identity.ID)
			}
			if string(stored.PasswordHash) == "pw1" {
				t.Fatalf("password stored in plaintext")
			}
		})
	}
}

func TestIssuedExpiryMatchesToken(t *testing.T) {
	issued := time.Date(2024, 5, 10, 10, 0, 0, 700*int(time.Millisecond), time.UTC)
	codec := jwtpkg.NewCodec(testSecret, 0)
	svc := New(memory.New().Set().Identities, crypto.NewHasher(4), codec, logger.Discard()).
		WithClock(func() time.Time { return issued })

	result, err := svc.Register(context.Background(), RegisterInput{Email: "jane@x.com", Password: "pw1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	want := time.Date(2024, 5, 11, 10, 0, 0, 0, time.UTC)
	if !result.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %s, got %s", want, result.ExpiresAt)
	}
	if _, err := codec.Verify(result.Token, result.ExpiresAt.Add(-500*time.Millisecond)); err != nil {
		t.Fatalf("token rejected before reported expiry: %v", err)
	}
	if _, err := codec.Verify(result.Token, result.ExpiresAt); err == nil {
		t.Fatalf("token accepted at reported expiry")
	}
}

func TestRegisterRejectsDuplicateBeforeWrite(t *testing.T) {
	store := &countingStore{IdentityStore: memory.New().Set().Identities}
	svc, _ := newService(store)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "dup@x.com", Password: "pw"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Email: "DUP@x.com", Password: "other"}); !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}
	if store.saves != 1 {
		t.Fatalf("expected a single save, got %d", store.saves)
	}
}

func TestRegisterSurfacesStorageConflict(t *testing.T) {
	svc, _ := newService(racingStore{})
	_, err := svc.Register(context.Background(), RegisterInput{Email: "race@x.com", Password: "pw"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	svc, _ := newService(memory.New().Set().Identities)
	tests := []RegisterInput{
		{Email: "no-at-sign", Password: "pw"},
		{Email: "a@x.com", Password: ""},
	}
	for _, in := range tests {
		if _, err := svc.Register(context.Background(), in); !errors.Is(err, ErrMalformedRequest) {
			t.Fatalf("expected ErrMalformedRequest for %+v, got %v", in, err)
		}
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newService(memory.New().Set().Identities)
	if _, err := svc.Login(context.Background(), "ghost@x.com", "pw"); !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("expected ErrIdentityNotFound, got %v", err)
	}
}

func TestProfileUpdatesAndPasswordChange(t *testing.T) {
	svc, _ := newService(memory.New().Set().Identities)
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterInput{FirstName: "Jane", Email: "jane@x.com", Password: "pw1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	caller := registered.Identity

	updated, err := svc.UpdateProfile(ctx, caller, ProfileInput{FirstName: " Janet ", LastName: "Doe"})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.FirstName != "Janet" || updated.Email != "jane@x.com" {
		t.Fatalf("unexpected profile %+v", updated)
	}

	if err := svc.ChangePassword(ctx, caller, "wrong", "pw2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := svc.ChangePassword(ctx, caller, "pw1", ""); !errors.Is(err, ErrMalformedRequest) {
		t.Fatalf("expected ErrMalformedRequest, got %v", err)
	}
	if err := svc.ChangePassword(ctx, caller, "pw1", "pw2"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.Login(ctx, "jane@x.com", "pw1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password should fail, got %v", err)
	}
	if _, err := svc.Login(ctx, "jane@x.com", "pw2"); err != nil {
		t.Fatalf("new password should work: %v", err)
	}
}

func TestListIdentitiesRequiresAdmin(t *testing.T) {
	svc, _ := newService(memory.New().Set().Identities)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "pw"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.ListIdentities(ctx, &domain.Identity{ID: "u", Role: domain.RoleUser}); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	all, err := svc.ListIdentities(ctx, &domain.Identity{ID: "admin", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].Email != "a@x.com" {
		t.Fatalf("unexpected identities %+v", all)
	}
}

type countingStore struct {
	repository.IdentityStore
	saves int
}

func (s *countingStore) Save(ctx context.Context, identity *domain.Identity) error {
	s.saves++
	return s.IdentityStore.Save(ctx, identity)
}

// racingStore simulates a concurrent registration winning between lookup and save.
type racingStore struct {
	repository.IdentityStore
}

func (racingStore) FindByEmail(context.Context, string) (*domain.Identity, error) {
	return nil, repository.ErrNotFound
}

func (racingStore) Save(context.Context, *domain.Identity) error {
	return repository.ErrConflict
}
