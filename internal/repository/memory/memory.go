// Package memory provides an in-memory implementation of the repository
// contracts for tests and single-process development. Data is lost when the
// process restarts.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/splax/tasktracker/internal/domain"
	"github.com/splax/tasktracker/internal/repository"
)

// Store holds identities, categories and tasks behind a single lock so that
// cross-entity checks (email uniqueness, category still referenced) are atomic.
type Store struct {
	mu         sync.RWMutex
	identities map[string]domain.Identity
	byEmail    map[string]string
	categories map[int64]domain.Category
	tasks      map[int64]domain.Task
	nextCat    int64
	nextTask   int64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		identities: make(map[string]domain.Identity),
		byEmail:    make(map[string]string),
		categories: make(map[int64]domain.Category),
		tasks:      make(map[int64]domain.Task),
	}
}

// Set exposes the store through the repository contracts.
func (s *Store) Set() repository.Set {
	return repository.Set{
		Identities: Identities{s},
		Tasks:      Tasks{s},
		Categories: Categories{s},
	}
}

// Identities implements repository.IdentityStore.
type Identities struct{ s *Store }

// Tasks implements repository.TaskRepository.
type Tasks struct{ s *Store }

// Categories implements repository.CategoryRepository.
type Categories struct{ s *Store }

var (
	_ repository.IdentityStore      = Identities{}
	_ repository.TaskRepository     = Tasks{}
	_ repository.CategoryRepository = Categories{}
)

// FindByEmail looks an identity up by email, ignoring case.
func (r Identities) FindByEmail(_ context.Context, email string) (*domain.Identity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.byEmail[domain.EmailKey(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	identity := r.s.identities[id]
	return &identity, nil
}

// FindByID looks an identity up by ID.
func (r Identities) FindByID(_ context.Context, id string) (*domain.Identity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	identity, ok := r.s.identities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &identity, nil
}

// Save inserts or updates an identity. A second identity whose email differs only in case is a conflict.
func (r Identities) Save(_ context.Context, identity *domain.Identity) error {
	if identity == nil || identity.ID == "" {
		return repository.ErrInvalidArgument
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := domain.EmailKey(identity.Email)
	if owner, taken := r.s.byEmail[key]; taken && owner != identity.ID {
		return repository.ErrConflict
	}
	if prev, ok := r.s.identities[identity.ID]; ok && domain.EmailKey(prev.Email) != key {
		delete(r.s.byEmail, domain.EmailKey(prev.Email))
	}
	r.s.identities[identity.ID] = *identity
	r.s.byEmail[key] = identity.ID
	return nil
}

// FindAll returns every identity ordered by email.
func (r Identities) FindAll(_ context.Context) ([]domain.Identity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Identity, 0, len(r.s.identities))
	for _, identity := range r.s.identities {
		out = append(out, identity)
	}
	sort.Slice(out, func(i, j int) bool { return domain.EmailKey(out[i].Email) < domain.EmailKey(out[j].Email) })
	return out, nil
}

// FindByID returns a task by ID.
func (r Tasks) FindByID(_ context.Context, id int64) (*domain.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	task, ok := r.s.tasks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &task, nil
}

// FindAllByOwner returns the owner's tasks ordered by ID.
func (r Tasks) FindAllByOwner(_ context.Context, ownerID string) ([]domain.Task, error) {
	return r.collect(func(t domain.Task) bool { return t.OwnerID == ownerID }), nil
}

// FindAllByOwnerAndStatus returns the owner's tasks with status, ordered by ID.
func (r Tasks) FindAllByOwnerAndStatus(_ context.Context, ownerID string, status domain.Status) ([]domain.Task, error) {
	return r.collect(func(t domain.Task) bool { return t.OwnerID == ownerID && t.Status == status }), nil
}

// FindAll returns every task ordered by ID.
func (r Tasks) FindAll(_ context.Context) ([]domain.Task, error) {
	return r.collect(func(domain.Task) bool { return true }), nil
}

// FindPageByOwner sorts the owner's tasks and slices out the requested page.
func (r Tasks) FindPageByOwner(_ context.Context, ownerID string, req domain.PageRequest) (domain.Page[domain.Task], error) {
	if _, ok := repository.TaskSortColumns[req.Sort.Field]; !ok || req.Size <= 0 || req.Page < 0 {
		return domain.Page[domain.Task]{}, repository.ErrInvalidArgument
	}
	all := r.collect(func(t domain.Task) bool { return t.OwnerID == ownerID })
	less := taskLess(req.Sort.Field)
	sort.SliceStable(all, func(i, j int) bool {
		if req.Sort.Descending() {
			return less(all[j], all[i])
		}
		return less(all[i], all[j])
	})
	page := domain.Page[domain.Task]{Page: req.Page, Size: req.Size, Total: int64(len(all)), Items: []domain.Task{}}
	start := req.Offset()
	if start >= len(all) {
		return page, nil
	}
	end := start + req.Size
	if end > len(all) {
		end = len(all)
	}
	page.Items = append(page.Items, all[start:end]...)
	return page, nil
}

// Save inserts or updates a task. The category must exist.
func (r Tasks) Save(_ context.Context, task *domain.Task) error {
	if task == nil {
		return repository.ErrInvalidArgument
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.categories[task.CategoryID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := r.s.identities[task.OwnerID]; !ok {
		return repository.ErrNotFound
	}
	if task.ID == 0 {
		r.s.nextTask++
		task.ID = r.s.nextTask
	} else if _, ok := r.s.tasks[task.ID]; !ok {
		return repository.ErrNotFound
	}
	r.s.tasks[task.ID] = *task
	return nil
}

// DeleteByID removes a task.
func (r Tasks) DeleteByID(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tasks[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.tasks, id)
	return nil
}

func (r Tasks) collect(keep func(domain.Task) bool) []domain.Task {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Task, 0)
	for _, task := range r.s.tasks {
		if keep(task) {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func taskLess(field string) func(a, b domain.Task) bool {
	byID := func(a, b domain.Task) bool { return a.ID < b.ID }
	switch field {
	case "title":
		return func(a, b domain.Task) bool {
			if c := strings.Compare(a.Title, b.Title); c != 0 {
				return c < 0
			}
			return byID(a, b)
		}
	case "status":
		return func(a, b domain.Task) bool {
			if a.Status != b.Status {
				return a.Status < b.Status
			}
			return byID(a, b)
		}
	case "createdAt":
		return func(a, b domain.Task) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return byID(a, b)
		}
	case "updatedAt":
		return func(a, b domain.Task) bool {
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
			return byID(a, b)
		}
	default:
		return byID
	}
}

// FindByID returns a category by ID.
func (r Categories) FindByID(_ context.Context, id int64) (*domain.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	category, ok := r.s.categories[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &category, nil
}

// FindByIDs returns the categories that exist among ids.
func (r Categories) FindByIDs(_ context.Context, ids []int64) (map[int64]domain.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[int64]domain.Category, len(ids))
	for _, id := range ids {
		if category, ok := r.s.categories[id]; ok {
			out[id] = category
		}
	}
	return out, nil
}

// FindAllByOwner returns the owner's categories ordered by ID.
func (r Categories) FindAllByOwner(_ context.Context, ownerID string) ([]domain.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Category, 0)
	for _, category := range r.s.categories {
		if category.OwnerID == ownerID {
			out = append(out, category)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Save inserts or updates a category.
func (r Categories) Save(_ context.Context, category *domain.Category) error {
	if category == nil {
		return repository.ErrInvalidArgument
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.identities[category.OwnerID]; !ok {
		return repository.ErrNotFound
	}
	if category.ID == 0 {
		r.s.nextCat++
		category.ID = r.s.nextCat
	} else if _, ok := r.s.categories[category.ID]; !ok {
		return repository.ErrNotFound
	}
	r.s.categories[category.ID] = *category
	return nil
}

// DeleteByID removes a category. Categories still referenced by tasks are a conflict.
func (r Categories) DeleteByID(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.categories[id]; !ok {
		return repository.ErrNotFound
	}
	for _, task := range r.s.tasks {
		if task.CategoryID == id {
			return repository.ErrConflict
		}
	}
	delete(r.s.categories, id)
	return nil
}
