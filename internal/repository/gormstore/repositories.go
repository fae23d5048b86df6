package gormstore

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/splax/tasktracker/internal/domain"
	"github.com/splax/tasktracker/internal/repository"
)

// IdentityRepository implements repository.IdentityStore with gorm.
type IdentityRepository struct {
	db *gorm.DB
}

// TaskRepository implements repository.TaskRepository with gorm.
type TaskRepository struct {
	db *gorm.DB
}

// CategoryRepository implements repository.CategoryRepository with gorm.
type CategoryRepository struct {
	db *gorm.DB
}

var (
	_ repository.IdentityStore      = (*IdentityRepository)(nil)
	_ repository.TaskRepository     = (*TaskRepository)(nil)
	_ repository.CategoryRepository = (*CategoryRepository)(nil)
)

func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	var rec identityRecord
	if err := r.db.WithContext(ctx).Where("email_key = ?", domain.EmailKey(email)).First(&rec).Error; err != nil {
		return nil, translate(err)
	}
	identity := rec.toDomain()
	return &identity, nil
}

func (r *IdentityRepository) FindByID(ctx context.Context, id string) (*domain.Identity, error) {
	var rec identityRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, translate(err)
	}
	identity := rec.toDomain()
	return &identity, nil
}

// Save upserts by ID. Email stays fixed once inserted.
func (r *IdentityRepository) Save(ctx context.Context, identity *domain.Identity) error {
	if identity == nil {
		return repository.ErrInvalidArgument
	}
	rec := toIdentityRecord(identity)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name", "password_hash", "role", "updated_at"}),
	}).Create(&rec).Error
	return translate(err)
}

func (r *IdentityRepository) FindAll(ctx context.Context) ([]domain.Identity, error) {
	var recs []identityRecord
	if err := r.db.WithContext(ctx).Order("email_key ASC").Find(&recs).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]domain.Identity, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id int64) (*domain.Task, error) {
	var rec taskRecord
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, translate(err)
	}
	task := rec.toDomain()
	return &task, nil
}

func (r *TaskRepository) FindAllByOwner(ctx context.Context, ownerID string) ([]domain.Task, error) {
	return r.find(r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("id ASC"))
}

func (r *TaskRepository) FindAllByOwnerAndStatus(ctx context.Context, ownerID string, status domain.Status) ([]domain.Task, error) {
	return r.find(r.db.WithContext(ctx).Where("owner_id = ? AND status = ?", ownerID, string(status)).Order("id ASC"))
}

func (r *TaskRepository) FindAll(ctx context.Context) ([]domain.Task, error) {
	return r.find(r.db.WithContext(ctx).Order("id ASC"))
}

// FindPageByOwner returns one sorted page of the owner's tasks with the total count.
func (r *TaskRepository) FindPageByOwner(ctx context.Context, ownerID string, req domain.PageRequest) (domain.Page[domain.Task], error) {
	column, ok := repository.TaskSortColumns[req.Sort.Field]
	if !ok || req.Size <= 0 || req.Page < 0 {
		return domain.Page[domain.Task]{}, repository.ErrInvalidArgument
	}

	var total int64
	base := r.db.WithContext(ctx).Model(&taskRecord{}).Where("owner_id = ?", ownerID)
	if err := base.Count(&total).Error; err != nil {
		return domain.Page[domain.Task]{}, translate(err)
	}

	desc := req.Sort.Descending()
	items, err := r.find(r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: desc}).
		Offset(req.Offset()).
		Limit(req.Size))
	if err != nil {
		return domain.Page[domain.Task]{}, err
	}
	return domain.Page[domain.Task]{Items: items, Page: req.Page, Size: req.Size, Total: total}, nil
}

// Save inserts when ID is zero and updates otherwise. Owner and category must exist.
func (r *TaskRepository) Save(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return repository.ErrInvalidArgument
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &categoryRecord{}, task.CategoryID); err != nil {
			return fmt.Errorf("category %d: %w", task.CategoryID, err)
		}
		rec := toTaskRecord(task)
		if task.ID == 0 {
			if err := requireRow(tx, &identityRecord{}, task.OwnerID); err != nil {
				return fmt.Errorf("owner %s: %w", task.OwnerID, err)
			}
			if err := tx.Omit(clause.Associations).Create(&rec).Error; err != nil {
				return translate(err)
			}
			task.ID = rec.ID
			return nil
		}
		res := tx.Model(&taskRecord{}).Where("id = ?", task.ID).Updates(map[string]any{
			"title":       rec.Title,
			"description": rec.Description,
			"status":      rec.Status,
			"category_id": rec.CategoryID,
			"updated_at":  rec.UpdatedAt,
		})
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (r *TaskRepository) DeleteByID(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&taskRecord{}, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *TaskRepository) find(q *gorm.DB) ([]domain.Task, error) {
	var recs []taskRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]domain.Task, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

func (r *CategoryRepository) FindByID(ctx context.Context, id int64) (*domain.Category, error) {
	var rec categoryRecord
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, translate(err)
	}
	category := rec.toDomain()
	return &category, nil
}

func (r *CategoryRepository) FindByIDs(ctx context.Context, ids []int64) (map[int64]domain.Category, error) {
	out := make(map[int64]domain.Category, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var recs []categoryRecord
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, translate(err)
	}
	for _, rec := range recs {
		out[rec.ID] = rec.toDomain()
	}
	return out, nil
}

func (r *CategoryRepository) FindAllByOwner(ctx context.Context, ownerID string) ([]domain.Category, error) {
	var recs []categoryRecord
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("id ASC").Find(&recs).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]domain.Category, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

// Save inserts when ID is zero and otherwise updates name and description.
func (r *CategoryRepository) Save(ctx context.Context, category *domain.Category) error {
	if category == nil {
		return repository.ErrInvalidArgument
	}
	db := r.db.WithContext(ctx)
	rec := toCategoryRecord(category)
	if category.ID == 0 {
		if err := requireRow(db, &identityRecord{}, category.OwnerID); err != nil {
			return fmt.Errorf("owner %s: %w", category.OwnerID, err)
		}
		if err := db.Omit(clause.Associations).Create(&rec).Error; err != nil {
			return translate(err)
		}
		category.ID = rec.ID
		return nil
	}
	res := db.Model(&categoryRecord{}).Where("id = ?", category.ID).Updates(map[string]any{
		"name":        rec.Name,
		"description": rec.Description,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteByID removes a category. A category still referenced by tasks is a conflict.
func (r *CategoryRepository) DeleteByID(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inUse int64
		if err := tx.Model(&taskRecord{}).Where("category_id = ?", id).Count(&inUse).Error; err != nil {
			return translate(err)
		}
		if inUse > 0 {
			return fmt.Errorf("category %d still has %d tasks: %w", id, inUse, repository.ErrConflict)
		}
		res := tx.Delete(&categoryRecord{}, id)
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func requireRow(tx *gorm.DB, model any, id any) error {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return translate(err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
