package gormstore

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/splax/tasktracker/internal/domain"
	"github.com/splax/tasktracker/internal/repository"
	"github.com/splax/tasktracker/pkg/logger"
)

func newTestSet(t *testing.T) repository.Set {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "tasks.db"), logger.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	set := New(db)
	t.Cleanup(set.Close)
	return set
}

func seedOwner(t *testing.T, set repository.Set, id, email string) {
	t.Helper()
	now := time.Now().UTC()
	identity := &domain.Identity{
		ID:           id,
		Email:        email,
		PasswordHash: []byte("hash"),
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := set.Identities.Save(context.Background(), identity); err != nil {
		t.Fatalf("save identity: %v", err)
	}
}

func TestIdentityUpsertAndUniqueEmail(t *testing.T) {
	set := newTestSet(t)
	ctx := context.Background()
	seedOwner(t, set, "id-1", "Jane@Example.com")

	if err := set.Identities.Save(ctx, &domain.Identity{ID: "id-2", Email: "jane@example.com", PasswordHash: []byte("x")}); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, err := set.Identities.FindByEmail(ctx, "JANE@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if got.Email != "Jane@Example.com" {
		t.Fatalf("expected email kept as registered, got %q", got.Email)
	}
	got.LastName = "Doe"
	got.Role = domain.RoleAdmin
	if err := set.Identities.Save(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}

	all, err := set.Identities.FindAll(ctx)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(all) != 1 || all[0].LastName != "Doe" || !all[0].IsAdmin() {
		t.Fatalf("unexpected identities %+v", all)
	}

	if _, err := set.Identities.FindByID(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTaskPagingAndCategoryConflicts(t *testing.T) {
	set := newTestSet(t)
	ctx := context.Background()
	seedOwner(t, set, "owner", "owner@example.com")
	seedOwner(t, set, "other", "other@example.com")

	category := &domain.Category{Name: "Work", OwnerID: "owner"}
	if err := set.Categories.Save(ctx, category); err != nil {
		t.Fatalf("save category: %v", err)
	}

	orphan := &domain.Task{Title: "orphan", OwnerID: "owner", CategoryID: 77, Status: domain.StatusTodo}
	if err := set.Tasks.Save(ctx, orphan); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing category, got %v", err)
	}

	for _, title := range []string{"C", "A", "D", "B"} {
		task := &domain.Task{Title: title, OwnerID: "owner", CategoryID: category.ID, Status: domain.StatusTodo}
		if err := set.Tasks.Save(ctx, task); err != nil {
			t.Fatalf("save task: %v", err)
		}
	}
	foreign := &domain.Task{Title: "Z", OwnerID: "other", CategoryID: category.ID, Status: domain.StatusDone}
	if err := set.Tasks.Save(ctx, foreign); err != nil {
		t.Fatalf("save foreign task: %v", err)
	}

	page, err := set.Tasks.FindPageByOwner(ctx, "owner", domain.PageRequest{
		Page: 1,
		Size: 2,
		Sort: domain.Sort{Field: "title", Direction: domain.SortAsc},
	})
	if err != nil {
		t.Fatalf("find page: %v", err)
	}
	if page.Total != 4 || len(page.Items) != 2 || page.Items[0].Title != "C" || page.Items[1].Title != "D" {
		t.Fatalf("unexpected page %+v", page)
	}

	if _, err := set.Tasks.FindPageByOwner(ctx, "owner", domain.PageRequest{Size: 2, Sort: domain.Sort{Field: "owner"}}); !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for unknown sort field, got %v", err)
	}

	foreign.Status = domain.StatusInProgress
	if err := set.Tasks.Save(ctx, foreign); err != nil {
		t.Fatalf("update task: %v", err)
	}
	reloaded, err := set.Tasks.FindByID(ctx, foreign.ID)
	if err != nil {
		t.Fatalf("find task: %v", err)
	}
	if reloaded.Status != domain.StatusInProgress || reloaded.OwnerID != "other" {
		t.Fatalf("unexpected task %+v", reloaded)
	}

	if err := set.Categories.DeleteByID(ctx, category.ID); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := set.Tasks.DeleteByID(ctx, 999); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenReportsQueryErrorsThroughLogger(t *testing.T) {
	var buf bytes.Buffer
	db, err := Open(filepath.Join(t.TempDir(), "tasks.db"), logger.NewWithWriter(&buf, "test", slog.LevelDebug))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(New(db).Close)

	if err := db.Exec("SELECT * FROM missing_table").Error; err == nil {
		t.Fatalf("expected query error")
	}
	out := buf.String()
	if !strings.Contains(out, `"component":"gorm"`) || !strings.Contains(out, "missing_table") {
		t.Fatalf("query error not logged through slog: %s", out)
	}
}
