package repository

import (
	"context"

	"github.com/splax/tasktracker/internal/domain"
)

// IdentityStore persists identities keyed by unique email.
type IdentityStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.Identity, error)
	FindByID(ctx context.Context, id string) (*domain.Identity, error)
	// Save inserts a new identity or updates an existing one with the same ID.
	Save(ctx context.Context, identity *domain.Identity) error
	FindAll(ctx context.Context) ([]domain.Identity, error)
}

// TaskRepository persists tasks.
type TaskRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.Task, error)
	FindAllByOwner(ctx context.Context, ownerID string) ([]domain.Task, error)
	FindAllByOwnerAndStatus(ctx context.Context, ownerID string, status domain.Status) ([]domain.Task, error)
	FindPageByOwner(ctx context.Context, ownerID string, req domain.PageRequest) (domain.Page[domain.Task], error)
	FindAll(ctx context.Context) ([]domain.Task, error)
	// Save inserts the task when ID is zero and assigns the new ID; otherwise it updates.
	Save(ctx context.Context, task *domain.Task) error
	DeleteByID(ctx context.Context, id int64) error
}

// CategoryRepository persists categories.
type CategoryRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.Category, error)
	FindByIDs(ctx context.Context, ids []int64) (map[int64]domain.Category, error)
	FindAllByOwner(ctx context.Context, ownerID string) ([]domain.Category, error)
	// Save inserts the category when ID is zero and assigns the new ID; otherwise it updates.
	Save(ctx context.Context, category *domain.Category) error
	DeleteByID(ctx context.Context, id int64) error
}

// TaskSortColumns whitelists sortable task fields and their storage column names.
var TaskSortColumns = map[string]string{
	"id":        "id",
	"title":     "title",
	"status":    "status",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// Set bundles the repositories of one storage backend.
type Set struct {
	Identities IdentityStore
	Tasks      TaskRepository
	Categories CategoryRepository
	// Ping reports backend health; nil when the backend has nothing to check.
	Ping func(ctx context.Context) error
	// Close releases backend resources; nil when there is nothing to release.
	Close func()
}
