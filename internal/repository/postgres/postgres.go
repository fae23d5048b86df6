package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/tasktracker/internal/domain"
	"github.com/splax/tasktracker/internal/repository"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgInvalidText         = "22P02"
)

// IdentityRepository implements repository.IdentityStore on PostgreSQL.
type IdentityRepository struct {
	pool *pgxpool.Pool
}

// TaskRepository implements repository.TaskRepository on PostgreSQL.
type TaskRepository struct {
	pool *pgxpool.Pool
}

// CategoryRepository implements repository.CategoryRepository on PostgreSQL.
type CategoryRepository struct {
	pool *pgxpool.Pool
}

// ensure repositories satisfy interfaces.
var (
	_ repository.IdentityStore      = (*IdentityRepository)(nil)
	_ repository.TaskRepository     = (*TaskRepository)(nil)
	_ repository.CategoryRepository = (*CategoryRepository)(nil)
)

// New constructs the repository set backed by pool.
func New(pool *pgxpool.Pool) repository.Set {
	return repository.Set{
		Identities: &IdentityRepository{pool: pool},
		Tasks:      &TaskRepository{pool: pool},
		Categories: &CategoryRepository{pool: pool},
		Ping:       pool.Ping,
		Close:      pool.Close,
	}
}

const identityColumns = `id, email, first_name, last_name, password_hash, role, created_at, updated_at`

// FindByEmail fetches an identity by email, ignoring case. The lookup hits
// the lower(email) unique index.
func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	const query = `SELECT ` + identityColumns + ` FROM identities WHERE lower(email) = $1`
	return scanIdentity(r.pool.QueryRow(ctx, query, domain.EmailKey(email)))
}

// FindByID retrieves an identity by identifier.
func (r *IdentityRepository) FindByID(ctx context.Context, id string) (*domain.Identity, error) {
	const query = `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`
	return scanIdentity(r.pool.QueryRow(ctx, query, id))
}

// Save upserts an identity by ID. Email stays fixed once inserted.
func (r *IdentityRepository) Save(ctx context.Context, identity *domain.Identity) error {
	if identity == nil {
		return repository.ErrInvalidArgument
	}
	const query = `INSERT INTO identities (` + identityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role,
			updated_at = EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, query,
		identity.ID,
		strings.TrimSpace(identity.Email),
		identity.FirstName,
		identity.LastName,
		identity.PasswordHash,
		string(identity.Role),
		identity.CreatedAt,
		identity.UpdatedAt,
	)
	return translate(err)
}

// FindAll returns every identity ordered by email.
func (r *IdentityRepository) FindAll(ctx context.Context) ([]domain.Identity, error) {
	const query = `SELECT ` + identityColumns + ` FROM identities ORDER BY lower(email)`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	identities := make([]domain.Identity, 0)
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, *identity)
	}
	return identities, rows.Err()
}

func scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var (
		identity domain.Identity
		role     string
	)
	if err := row.Scan(
		&identity.ID,
		&identity.Email,
		&identity.FirstName,
		&identity.LastName,
		&identity.PasswordHash,
		&role,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	identity.Role = domain.ParseRole(role)
	return &identity, nil
}

const taskColumns = `id, title, description, status, owner_id, category_id, created_at, updated_at`

// FindByID fetches a task.
func (r *TaskRepository) FindByID(ctx context.Context, id int64) (*domain.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return scanTask(r.pool.QueryRow(ctx, query, id))
}

// FindAllByOwner returns the owner's tasks ordered by ID.
func (r *TaskRepository) FindAllByOwner(ctx context.Context, ownerID string) ([]domain.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1 ORDER BY id`
	return r.list(ctx, query, ownerID)
}

// FindAllByOwnerAndStatus returns the owner's tasks in status, ordered by ID.
func (r *TaskRepository) FindAllByOwnerAndStatus(ctx context.Context, ownerID string, status domain.Status) ([]domain.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1 AND status = $2 ORDER BY id`
	return r.list(ctx, query, ownerID, string(status))
}

// FindAll returns every task ordered by ID.
func (r *TaskRepository) FindAll(ctx context.Context) ([]domain.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks ORDER BY id`
	return r.list(ctx, query)
}

// FindPageByOwner returns one sorted page of the owner's tasks with the total count.
func (r *TaskRepository) FindPageByOwner(ctx context.Context, ownerID string, req domain.PageRequest) (domain.Page[domain.Task], error) {
	column, ok := repository.TaskSortColumns[req.Sort.Field]
	if !ok || req.Size <= 0 || req.Page < 0 {
		return domain.Page[domain.Task]{}, repository.ErrInvalidArgument
	}
	direction := "ASC"
	if req.Sort.Descending() {
		direction = "DESC"
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(1) FROM tasks WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return domain.Page[domain.Task]{}, translate(err)
	}

	// column and direction come from fixed whitelists above.
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE owner_id = $1 ORDER BY %s %s, id %s LIMIT $2 OFFSET $3`,
		taskColumns, column, direction, direction)
	items, err := r.list(ctx, query, ownerID, req.Size, req.Offset())
	if err != nil {
		return domain.Page[domain.Task]{}, err
	}
	return domain.Page[domain.Task]{Items: items, Page: req.Page, Size: req.Size, Total: total}, nil
}

// Save inserts a new task (ID zero) or updates the mutable columns of an existing one.
func (r *TaskRepository) Save(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return repository.ErrInvalidArgument
	}
	if task.ID == 0 {
		const insert = `INSERT INTO tasks (title, description, status, owner_id, category_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
		err := r.pool.QueryRow(ctx, insert,
			task.Title,
			task.Description,
			string(task.Status),
			task.OwnerID,
			task.CategoryID,
			task.CreatedAt,
			task.UpdatedAt,
		).Scan(&task.ID)
		return translate(err)
	}
	const update = `UPDATE tasks
		SET title = $2, description = $3, status = $4, category_id = $5, updated_at = $6
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, update,
		task.ID,
		task.Title,
		task.Description,
		string(task.Status),
		task.CategoryID,
		task.UpdatedAt,
	)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteByID removes a task.
func (r *TaskRepository) DeleteByID(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *TaskRepository) list(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		task   domain.Task
		status string
	)
	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&status,
		&task.OwnerID,
		&task.CategoryID,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	task.Status = domain.Status(status)
	return &task, nil
}

const categoryColumns = `id, name, description, owner_id`

// FindByID fetches a category.
func (r *CategoryRepository) FindByID(ctx context.Context, id int64) (*domain.Category, error) {
	const query = `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`
	return scanCategory(r.pool.QueryRow(ctx, query, id))
}

// FindByIDs loads the categories among ids in one round trip.
func (r *CategoryRepository) FindByIDs(ctx context.Context, ids []int64) (map[int64]domain.Category, error) {
	out := make(map[int64]domain.Category, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	const query = `SELECT ` + categoryColumns + ` FROM categories WHERE id = ANY($1)`
	categories, err := r.list(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	for _, category := range categories {
		out[category.ID] = category
	}
	return out, nil
}

// FindAllByOwner returns the owner's categories ordered by ID.
func (r *CategoryRepository) FindAllByOwner(ctx context.Context, ownerID string) ([]domain.Category, error) {
	const query = `SELECT ` + categoryColumns + ` FROM categories WHERE owner_id = $1 ORDER BY id`
	return r.list(ctx, query, ownerID)
}

// Save inserts a new category (ID zero) or updates name and description.
func (r *CategoryRepository) Save(ctx context.Context, category *domain.Category) error {
	if category == nil {
		return repository.ErrInvalidArgument
	}
	if category.ID == 0 {
		const insert = `INSERT INTO categories (name, description, owner_id) VALUES ($1, $2, $3) RETURNING id`
		err := r.pool.QueryRow(ctx, insert, category.Name, category.Description, category.OwnerID).Scan(&category.ID)
		return translate(err)
	}
	const update = `UPDATE categories SET name = $2, description = $3 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, update, category.ID, category.Name, category.Description)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteByID removes a category. A category still referenced by tasks is a conflict.
func (r *CategoryRepository) DeleteByID(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return fmt.Errorf("category %d still has tasks: %w", id, repository.ErrConflict)
		}
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *CategoryRepository) list(ctx context.Context, query string, args ...any) ([]domain.Category, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	categories := make([]domain.Category, 0)
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *category)
	}
	return categories, rows.Err()
}

func scanCategory(row pgx.Row) (*domain.Category, error) {
	var category domain.Category
	if err := row.Scan(&category.ID, &category.Name, &category.Description, &category.OwnerID); err != nil {
		return nil, translate(err)
	}
	return &category, nil
}

// translate maps driver errors onto repository sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, repository.ErrConflict)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, repository.ErrNotFound)
		case pgCheckViolation:
			return fmt.Errorf("%s: %w", pgErr.Message, repository.ErrInvalidArgument)
		case pgInvalidText:
			// a malformed uuid can never match a row
			return repository.ErrNotFound
		}
	}
	return err
}
