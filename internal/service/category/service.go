package category

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"log/slog"

	"github.com/splax/tasktracker/internal/domain"
	"github.com/splax/tasktracker/internal/repository"
	"github.com/splax/tasktracker/internal/service/guard"
)

var errNameRequired = fmt.Errorf("%w: category name is required", domain.ErrMalformedRequest)

// Input carries the writable fields of a category.
type Input struct {
	Name        string
	Description string
}

// Service manages categories. Every write is restricted to the owner.
type Service struct {
	categories repository.CategoryRepository
	logger     *slog.Logger
}

// New returns a category service.
func New(categories repository.CategoryRepository, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{categories: categories, logger: logger}
}

// List returns caller's categories.
func (s Service) List(ctx context.Context, caller *domain.Identity) ([]domain.Category, error) {
	if caller == nil {
		return nil, guard.ErrUnauthenticated
	}
	return s.categories.FindAllByOwner(ctx, caller.ID)
}

// Create adds a category owned by caller.
func (s Service) Create(ctx context.Context, caller *domain.Identity, in Input) (*domain.Category, error) {
	if caller == nil {
		return nil, guard.ErrUnauthenticated
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errNameRequired
	}
	category := &domain.Category{Name: name, Description: strings.TrimSpace(in.Description), OwnerID: caller.ID}
	if err := s.categories.Save(ctx, category); err != nil {
		return nil, fmt.Errorf("save category: %w", err)
	}
	s.logger.Info("category created", "category_id", category.ID, "owner_id", caller.ID)
	return category, nil
}

// Update renames one of caller's categories.
func (s Service) Update(ctx context.Context, caller *domain.Identity, id int64, in Input) (*domain.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errNameRequired
	}
	category, err := s.owned(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	category.Name = name
	category.Description = strings.TrimSpace(in.Description)
	if err := s.categories.Save(ctx, category); err != nil {
		return nil, fmt.Errorf("save category: %w", err)
	}
	s.logger.Info("category updated", "category_id", id)
	return category, nil
}

// Delete removes one of caller's categories. Categories still holding tasks
// fail with domain.ErrConflict.
func (s Service) Delete(ctx context.Context, caller *domain.Identity, id int64) error {
	if _, err := s.owned(ctx, caller, id); err != nil {
		return err
	}
	if err := s.categories.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	s.logger.Info("category deleted", "category_id", id, "owner_id", caller.ID)
	return nil
}

func (s Service) owned(ctx context.Context, caller *domain.Identity, id int64) (*domain.Category, error) {
	if caller == nil {
		return nil, guard.ErrUnauthenticated
	}
	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("category %d: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	if err := guard.AssertOwnership(category, caller); err != nil {
		return nil, err
	}
	return category, nil
}
