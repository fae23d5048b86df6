package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/splax/tasktracker/internal/domain"
	"github.com/splax/tasktracker/internal/repository/memory"
	jwtpkg "github.com/splax/tasktracker/pkg/jwt"
)

const testSecret = "guard-test-secret-guard-test-secret"

func setup(t *testing.T) (Guard, jwtpkg.Codec, time.Time) {
	t.Helper()
	set := memory.New().Set()
	if err := set.Identities.Save(context.Background(), &domain.Identity{ID: "a", Email: "a@x.com", Role: domain.RoleUser}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := jwtpkg.NewCodec(testSecret, 0)
	g := New(codec, set.Identities).WithClock(func() time.Time { return now })
	return g, codec, now
}

func TestResolveCaller(t *testing.T) {
	g, codec, now := setup(t)
	ctx := context.Background()

	token, err := codec.Issue("a@x.com", "USER", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	caller, err := g.ResolveCaller(ctx, " "+token+" ")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if caller.ID != "a" {
		t.Fatalf("unexpected caller %+v", caller)
	}

	expired, _ := codec.Issue("a@x.com", "USER", now.Add(-25*time.Hour))
	ghost, _ := codec.Issue("ghost@x.com", "USER", now)
	foreign, _ := jwtpkg.NewCodec("another-secret-another-secret-xx", 0).Issue("a@x.com", "USER", now)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "", want: ErrUnauthenticated},
		{name: "garbage", token: "not.a.token", want: ErrUnauthenticated},
		{name: "expired", token: expired, want: ErrUnauthenticated},
		{name: "foreign secret", token: foreign, want: ErrUnauthenticated},
		{name: "deleted identity", token: ghost, want: ErrIdentityNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := g.ResolveCaller(ctx, tt.token); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAssertOwnership(t *testing.T) {
	alice := &domain.Identity{ID: "a"}
	bob := &domain.Identity{ID: "b"}
	t1 := domain.Task{ID: 1, OwnerID: "a"}
	t2 := domain.Task{ID: 2, OwnerID: "b"}

	if err := AssertOwnership(t1, alice); err != nil {
		t.Fatalf("owner should pass: %v", err)
	}
	if err := AssertOwnership(t2, alice); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if err := AssertOwnership(domain.Category{OwnerID: "a"}, bob); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for category, got %v", err)
	}
	if err := AssertOwnership(t1, nil); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestRequireRole(t *testing.T) {
	if err := RequireRole(&domain.Identity{Role: domain.RoleAdmin}, domain.RoleAdmin); err != nil {
		t.Fatalf("admin should pass: %v", err)
	}
	if err := RequireRole(&domain.Identity{Role: domain.RoleUser}, domain.RoleAdmin); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}
