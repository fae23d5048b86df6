package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/splax/tasktracker/internal/domain"
	"github.com/splax/tasktracker/internal/repository"
	"github.com/splax/tasktracker/internal/service/guard"
	"github.com/splax/tasktracker/internal/service/task/filterexpr"
)

// Paging defaults applied when a request leaves them unspecified.
const (
	DefaultPageSize = 10
	DefaultSort     = "id,asc"
)

var (
	ErrNotFound         = domain.ErrNotFound
	ErrMalformedRequest = domain.ErrMalformedRequest
)

// Input carries the writable fields of a task.
type Input struct {
	Title       string
	Description string
	Status      string
	CategoryID  int64
}

// View is a task as presented to its owner: owner email and category name
// replace the internal foreign keys.
type View struct {
	ID           int64
	Title        string
	Description  string
	Status       domain.Status
	OwnerEmail   string
	CategoryName string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Service implements task reads and writes scoped to a caller.
type Service struct {
	tasks      repository.TaskRepository
	categories repository.CategoryRepository
	identities repository.IdentityStore
	logger     *slog.Logger
	now        func() time.Time
}

// New returns a task service.
func New(tasks repository.TaskRepository, categories repository.CategoryRepository, identities repository.IdentityStore, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{tasks: tasks, categories: categories, identities: identities, logger: logger, now: time.Now}
}

// WithClock returns a copy of s reading time from now.
func (s Service) WithClock(now func() time.Time) Service {
	s.now = now
	return s
}

// Create files a new task owned by caller under one of caller's categories.
func (s Service) Create(ctx context.Context, caller *domain.Identity, in Input) (View, error) {
	if caller == nil {
		return View{}, guard.ErrUnauthenticated
	}
	title, status, err := validate(in, domain.StatusTodo)
	if err != nil {
		return View{}, err
	}
	if err := s.ownedCategory(ctx, caller, in.CategoryID); err != nil {
		return View{}, err
	}

	now := s.now().UTC()
	task := &domain.Task{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Status:      status,
		OwnerID:     caller.ID,
		CategoryID:  in.CategoryID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tasks.Save(ctx, task); err != nil {
		return View{}, fmt.Errorf("save task: %w", err)
	}
	s.logger.Info("task created", "task_id", task.ID, "owner_id", caller.ID)
	return s.view(ctx, *task)
}

// Get returns one of caller's tasks.
func (s Service) Get(ctx context.Context, caller *domain.Identity, id int64) (View, error) {
	task, err := s.owned(ctx, caller, id)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, *task)
}

// Update replaces the mutable fields of one of caller's tasks. The owner never changes.
func (s Service) Update(ctx context.Context, caller *domain.Identity, id int64, in Input) (View, error) {
	task, err := s.owned(ctx, caller, id)
	if err != nil {
		return View{}, err
	}
	title, status, err := validate(in, task.Status)
	if err != nil {
		return View{}, err
	}
	if in.CategoryID != task.CategoryID {
		if err := s.ownedCategory(ctx, caller, in.CategoryID); err != nil {
			return View{}, err
		}
	}

	task.Title = title
	task.Description = strings.TrimSpace(in.Description)
	task.Status = status
	task.CategoryID = in.CategoryID
	task.UpdatedAt = s.now().UTC()
	if err := s.tasks.Save(ctx, task); err != nil {
		return View{}, fmt.Errorf("save task: %w", err)
	}
	s.logger.Info("task updated", "task_id", task.ID)
	return s.view(ctx, *task)
}

// Delete removes one of caller's tasks.
func (s Service) Delete(ctx context.Context, caller *domain.Identity, id int64) error {
	if _, err := s.owned(ctx, caller, id); err != nil {
		return err
	}
	if err := s.tasks.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	s.logger.Info("task deleted", "task_id", id, "owner_id", caller.ID)
	return nil
}

// List returns caller's tasks ordered by ID, optionally restricted to status.
func (s Service) List(ctx context.Context, caller *domain.Identity, status *domain.Status) ([]View, error) {
	if caller == nil {
		return nil, guard.ErrUnauthenticated
	}
	var (
		tasks []domain.Task
		err   error
	)
	if status != nil {
		tasks, err = s.tasks.FindAllByOwnerAndStatus(ctx, caller.ID, *status)
	} else {
		tasks, err = s.tasks.FindAllByOwner(ctx, caller.ID)
	}
	if err != nil {
		return nil, err
	}
	return s.views(ctx, tasks)
}

// Filter returns caller's tasks satisfying every predicate in criteria.
func (s Service) Filter(ctx context.Context, caller *domain.Identity, criteria domain.TaskCriteria) ([]View, error) {
	if caller == nil {
		return nil, guard.ErrUnauthenticated
	}
	var (
		tasks []domain.Task
		err   error
	)
	if criteria.Status != nil {
		tasks, err = s.tasks.FindAllByOwnerAndStatus(ctx, caller.ID, *criteria.Status)
	} else {
		tasks, err = s.tasks.FindAllByOwner(ctx, caller.ID)
	}
	if err != nil {
		return nil, err
	}
	matched := make([]domain.Task, 0, len(tasks))
	for _, task := range tasks {
		if criteria.Matches(task) {
			matched = append(matched, task)
		}
	}
	return s.views(ctx, matched)
}

// ParseFilter compiles an AIP-160 expression into criteria.
func ParseFilter(raw string) (domain.TaskCriteria, error) {
	return filterexpr.Parse(raw)
}

// Paginate returns one sorted page of caller's tasks.
func (s Service) Paginate(ctx context.Context, caller *domain.Identity, req domain.PageRequest) (domain.Page[View], error) {
	if caller == nil {
		return domain.Page[View]{}, guard.ErrUnauthenticated
	}
	if err := validatePage(req); err != nil {
		return domain.Page[View]{}, err
	}
	page, err := s.tasks.FindPageByOwner(ctx, caller.ID, req)
	if err != nil {
		return domain.Page[View]{}, err
	}
	items, err := s.views(ctx, page.Items)
	if err != nil {
		return domain.Page[View]{}, err
	}
	return domain.Page[View]{Items: items, Page: page.Page, Size: page.Size, Total: page.Total}, nil
}

// ListAll returns every task in the system. Admin only.
func (s Service) ListAll(ctx context.Context, caller *domain.Identity) ([]View, error) {
	if err := guard.RequireRole(caller, domain.RoleAdmin); err != nil {
		return nil, err
	}
	tasks, err := s.tasks.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, tasks)
}

func (s Service) owned(ctx context.Context, caller *domain.Identity, id int64) (*domain.Task, error) {
	if caller == nil {
		return nil, guard.ErrUnauthenticated
	}
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	if err := guard.AssertOwnership(task, caller); err != nil {
		return nil, err
	}
	return task, nil
}

func (s Service) ownedCategory(ctx context.Context, caller *domain.Identity, id int64) error {
	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("category %d: %w", id, ErrNotFound)
		}
		return err
	}
	return guard.AssertOwnership(category, caller)
}

func validate(in Input, fallback domain.Status) (string, domain.Status, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return "", "", fmt.Errorf("%w: title is required", ErrMalformedRequest)
	}
	if strings.TrimSpace(in.Status) == "" {
		return title, fallback, nil
	}
	status, err := domain.ParseStatus(in.Status)
	if err != nil {
		return "", "", err
	}
	return title, status, nil
}

func (s Service) view(ctx context.Context, task domain.Task) (View, error) {
	views, err := s.views(ctx, []domain.Task{task})
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

// views resolves owner emails and category names with one lookup per distinct key.
func (s Service) views(ctx context.Context, tasks []domain.Task) ([]View, error) {
	out := make([]View, 0, len(tasks))
	if len(tasks) == 0 {
		return out, nil
	}

	categoryIDs := make([]int64, 0, len(tasks))
	seen := make(map[int64]struct{}, len(tasks))
	for _, task := range tasks {
		if _, ok := seen[task.CategoryID]; !ok {
			seen[task.CategoryID] = struct{}{}
			categoryIDs = append(categoryIDs, task.CategoryID)
		}
	}
	categories, err := s.categories.FindByIDs(ctx, categoryIDs)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	emails := make(map[string]string)
	for _, task := range tasks {
		email, ok := emails[task.OwnerID]
		if !ok {
			owner, err := s.identities.FindByID(ctx, task.OwnerID)
			switch {
			case err == nil:
				email = owner.Email
			case errors.Is(err, repository.ErrNotFound):
			default:
				return nil, fmt.Errorf("load owner: %w", err)
			}
			emails[task.OwnerID] = email
		}
		out = append(out, View{
			ID:           task.ID,
			Title:        task.Title,
			Description:  task.Description,
			Status:       task.Status,
			OwnerEmail:   email,
			CategoryName: categories[task.CategoryID].Name,
			CreatedAt:    task.CreatedAt,
			UpdatedAt:    task.UpdatedAt,
		})
	}
	return out, nil
}
