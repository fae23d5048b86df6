package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	httpx "github.com/splax/tasktracker/internal/http"
	"github.com/splax/tasktracker/internal/repository/memory"
	"github.com/splax/tasktracker/internal/service/auth"
	"github.com/splax/tasktracker/internal/service/category"
	"github.com/splax/tasktracker/internal/service/guard"
	"github.com/splax/tasktracker/internal/service/task"
	"github.com/splax/tasktracker/pkg/crypto"
	"github.com/splax/tasktracker/pkg/jwt"
	"github.com/splax/tasktracker/pkg/logger"
)

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	set := memory.New().Set()
	log := logger.Discard()
	codec := jwt.NewCodec("client-test-secret-client-test-secret", 0)
	router := httpx.NewRouter(log, httpx.Services{
		Auth:       auth.New(set.Identities, crypto.NewHasher(4), codec, log),
		Guard:      guard.New(codec, set.Identities),
		Tasks:      task.New(set.Tasks, set.Categories, set.Identities, log),
		Categories: category.New(set.Categories, log),
	}, httpx.NewMemoryRateLimiter(), nil)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		router.Close()
	})
	return srv
}

func TestNewNormalizesBaseURL(t *testing.T) {
	cli, err := New(" localhost:9000/ ")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if cli.baseURL != "http://localhost:9000" {
		t.Fatalf("unexpected base url %q", cli.baseURL)
	}
	cli, err = New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if cli.baseURL != "http://localhost:8080" {
		t.Fatalf("unexpected default base url %q", cli.baseURL)
	}
}

func TestClientRoundTrip(t *testing.T) {
	srv := newAPIServer(t)
	cli, err := New(srv.URL, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	if _, err := cli.Register(ctx, RegisterInput{FirstName: "Jane", LastName: "Doe", Email: "jane@x.com", Password: "pw1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err = cli.Login(ctx, "jane@x.com", "nope")
	var apiErr APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Message != "Invalid email or password" {
		t.Fatalf("expected 401 api error, got %v", err)
	}

	session, err := cli.Login(ctx, "jane@x.com", "pw1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	me, err := cli.Me(ctx, session.Token)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.Email != "jane@x.com" || me.FirstName != "Jane" {
		t.Fatalf("unexpected profile %+v", me)
	}

	cat, err := cli.CreateCategory(ctx, session.Token, CategoryInput{Name: "Work"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	for _, title := range []string{"B", "A", "C"} {
		if _, err := cli.CreateTask(ctx, session.Token, TaskInput{Title: title, Status: "TODO", CategoryID: cat.ID}); err != nil {
			t.Fatalf("create task %s: %v", title, err)
		}
	}

	page, err := cli.PageTasks(ctx, session.Token, 0, 2, "title,asc")
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if page.TotalElements != 3 || len(page.Content) != 2 || page.Content[0].Title != "A" {
		t.Fatalf("unexpected page %+v", page)
	}

	first := page.Content[0]
	updated, err := cli.UpdateTask(ctx, session.Token, first.ID, TaskInput{Title: "A", Status: "DONE", CategoryID: cat.ID})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != "DONE" || updated.CategoryName != "Work" {
		t.Fatalf("unexpected update %+v", updated)
	}
	done, err := cli.FilterTasks(ctx, session.Token, `status = "DONE"`)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(done) != 1 || done[0].ID != first.ID {
		t.Fatalf("unexpected filter result %+v", done)
	}

	if err := cli.DeleteCategory(ctx, session.Token, cat.ID); !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict {
		t.Fatalf("expected 409 deleting referenced category, got %v", err)
	}
	if err := cli.DeleteTask(ctx, session.Token, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := cli.GetTask(ctx, session.Token, first.ID); !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %v", err)
	}
	remaining, err := cli.ListTasks(ctx, session.Token, "TODO")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 remaining todo tasks, got %d", len(remaining))
	}
}
