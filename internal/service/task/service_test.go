package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/splax/tasktracker/internal/domain"
	"github.com/splax/tasktracker/internal/repository"
	"github.com/splax/tasktracker/internal/repository/memory"
	"github.com/splax/tasktracker/pkg/logger"
)

type fixture struct {
	svc   Service
	set   repository.Set
	alice *domain.Identity
	bob   *domain.Identity
	clock *time.Time
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	set := memory.New().Set()
	ctx := context.Background()
	alice := &domain.Identity{ID: "alice", Email: "alice@x.com", Role: domain.RoleUser}
	bob := &domain.Identity{ID: "bob", Email: "bob@x.com", Role: domain.RoleUser}
	for _, identity := range []*domain.Identity{alice, bob} {
		if err := set.Identities.Save(ctx, identity); err != nil {
			t.Fatalf("seed identity: %v", err)
		}
	}
	clock := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	f := fixture{set: set, alice: alice, bob: bob, clock: &clock}
	f.svc = New(set.Tasks, set.Categories, set.Identities, logger.Discard()).
		WithClock(func() time.Time { return *f.clock })
	return f
}

func (f fixture) category(t *testing.T, owner *domain.Identity, name string) int64 {
	t.Helper()
	c := &domain.Category{Name: name, OwnerID: owner.ID}
	if err := f.set.Categories.Save(context.Background(), c); err != nil {
		t.Fatalf("seed category: %v", err)
	}
	return c.ID
}

func (f fixture) create(t *testing.T, owner *domain.Identity, in Input) View {
	t.Helper()
	view, err := f.svc.Create(context.Background(), owner, in)
	if err != nil {
		t.Fatalf("create %q: %v", in.Title, err)
	}
	*f.clock = f.clock.Add(time.Hour)
	return view
}

func TestCreateMapsOwnerEmailAndCategoryName(t *testing.T) {
	f := newFixture(t)
	work := f.category(t, f.alice, "Work")

	view := f.create(t, f.alice, Input{Title: "  Write report ", CategoryID: work})
	if view.Title != "Write report" || view.Status != domain.StatusTodo {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.OwnerEmail != "alice@x.com" || view.CategoryName != "Work" {
		t.Fatalf("expected denormalized owner and category, got %+v", view)
	}
}

func TestCreateValidatesInputAndCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.category(t, f.alice, "Mine")
	theirs := f.category(t, f.bob, "Theirs")

	tests := []struct {
		name string
		in   Input
		want error
	}{
		{name: "missing title", in: Input{CategoryID: mine}, want: domain.ErrMalformedRequest},
		{name: "bad status", in: Input{Title: "x", Status: "later", CategoryID: mine}, want: domain.ErrMalformedRequest},
		{name: "missing category", in: Input{Title: "x", CategoryID: 404}, want: domain.ErrNotFound},
		{name: "foreign category", in: Input{Title: "x", CategoryID: theirs}, want: domain.ErrAccessDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Create(ctx, f.alice, tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCrossOwnerDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.category(t, f.alice, "C")
	x := f.create(t, f.alice, Input{Title: "X", CategoryID: c})

	if err := f.svc.Delete(ctx, f.bob, x.ID); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if _, err := f.svc.Get(ctx, f.bob, x.ID); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied on read, got %v", err)
	}
	if err := f.svc.Delete(ctx, f.alice, x.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := f.set.Tasks.FindByID(ctx, x.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := f.svc.Get(ctx, f.alice, x.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from service, got %v", err)
	}
}

func TestUpdateKeepsOwnerAndChecksNewCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	work := f.category(t, f.alice, "Work")
	home := f.category(t, f.alice, "Home")
	foreign := f.category(t, f.bob, "Bob's")
	task := f.create(t, f.alice, Input{Title: "Laundry", CategoryID: work})

	if _, err := f.svc.Update(ctx, f.alice, task.ID, Input{Title: "Laundry", CategoryID: foreign}); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for foreign category, got %v", err)
	}
	if _, err := f.svc.Update(ctx, f.bob, task.ID, Input{Title: "mine now", CategoryID: foreign}); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for non-owner, got %v", err)
	}

	updated, err := f.svc.Update(ctx, f.alice, task.ID, Input{Title: "Laundry", Status: "done", CategoryID: home})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != domain.StatusDone || updated.CategoryName != "Home" || updated.OwnerEmail != "alice@x.com" {
		t.Fatalf("unexpected update %+v", updated)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Fatalf("expected updatedAt to advance: %+v", updated)
	}
}

func TestListAndFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	work := f.category(t, f.alice, "Work")
	home := f.category(t, f.alice, "Home")
	bobs := f.category(t, f.bob, "Bob")

	f.create(t, f.alice, Input{Title: "a1", Status: "DONE", CategoryID: work})
	f.create(t, f.alice, Input{Title: "a2", Status: "TODO", CategoryID: work})
	cutoff := *f.clock
	f.create(t, f.alice, Input{Title: "a3", Status: "DONE", CategoryID: home})
	f.create(t, f.bob, Input{Title: "b1", Status: "DONE", CategoryID: bobs})

	all, err := f.svc.List(ctx, f.alice, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if titles(all) != "a1,a2,a3" {
		t.Fatalf("unexpected list %s", titles(all))
	}

	done := domain.StatusDone
	tests := []struct {
		name     string
		criteria domain.TaskCriteria
		want     string
	}{
		{name: "no predicates", criteria: domain.TaskCriteria{}, want: "a1,a2,a3"},
		{name: "status", criteria: domain.TaskCriteria{Status: &done}, want: "a1,a3"},
		{name: "status and category", criteria: domain.TaskCriteria{Status: &done, CategoryID: &work}, want: "a1"},
		{name: "created before", criteria: domain.TaskCriteria{CreatedBefore: &cutoff}, want: "a1,a2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Filter(ctx, f.alice, tt.criteria)
			if err != nil {
				t.Fatalf("filter: %v", err)
			}
			if titles(got) != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, titles(got))
			}
		})
	}

	criteria, err := ParseFilter(`status = "DONE" AND category_id = 2`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	got, err := f.svc.Filter(ctx, f.alice, criteria)
	if err != nil {
		t.Fatalf("filter expression: %v", err)
	}
	if titles(got) != "a3" {
		t.Fatalf("expected a3, got %s", titles(got))
	}
}

func TestPaginateTitleDescending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.category(t, f.alice, "C")
	for _, title := range []string{"B", "D", "A", "C"} {
		f.create(t, f.alice, Input{Title: title, CategoryID: c})
	}

	req, err := NewPageRequest(0, 2, "title,DESC")
	if err != nil {
		t.Fatalf("page request: %v", err)
	}
	page, err := f.svc.Paginate(ctx, f.alice, req)
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if titles(page.Items) != "D,C" || page.Total != 4 || page.TotalPages() != 2 {
		t.Fatalf("unexpected page %s total=%d", titles(page.Items), page.Total)
	}
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		raw     string
		want    domain.Sort
		wantErr bool
	}{
		{raw: "", want: domain.Sort{Field: "id", Direction: domain.SortAsc}},
		{raw: "title", want: domain.Sort{Field: "title", Direction: domain.SortAsc}},
		{raw: "createdAt,Desc", want: domain.Sort{Field: "createdAt", Direction: domain.SortDesc}},
		{raw: "title,sideways", wantErr: true},
		{raw: "password,asc", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseSort(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, domain.ErrMalformedRequest) {
				t.Fatalf("ParseSort(%q): expected ErrMalformedRequest, got %v", tt.raw, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseSort(%q) = %+v, %v", tt.raw, got, err)
		}
	}

	if _, err := NewPageRequest(-1, 10, ""); !errors.Is(err, domain.ErrMalformedRequest) {
		t.Fatalf("expected negative page to be rejected, got %v", err)
	}
	if _, err := NewPageRequest(0, 0, ""); !errors.Is(err, domain.ErrMalformedRequest) {
		t.Fatalf("expected zero size to be rejected, got %v", err)
	}
}

func TestListAllRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, f.alice, Input{Title: "a", CategoryID: f.category(t, f.alice, "A")})
	f.create(t, f.bob, Input{Title: "b", CategoryID: f.category(t, f.bob, "B")})

	if _, err := f.svc.ListAll(ctx, f.alice); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	all, err := f.svc.ListAll(ctx, &domain.Identity{ID: "root", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if titles(all) != "a,b" || all[1].OwnerEmail != "bob@x.com" {
		t.Fatalf("unexpected tasks %+v", all)
	}
}

func titles(views []View) string {
	out := ""
	for i, v := range views {
		if i > 0 {
			out += ","
		}
		out += v.Title
	}
	return out
}
