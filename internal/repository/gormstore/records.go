package gormstore

import (
	"strings"
	"time"

	"github.com/splax/tasktracker/internal/domain"
)

type identityRecord struct {
	ID           string `gorm:"primaryKey;type:text"`
	Email        string `gorm:"not null"`
	EmailKey     string `gorm:"uniqueIndex;not null"`
	FirstName    string `gorm:"not null"`
	LastName     string `gorm:"not null"`
	PasswordHash []byte `gorm:"not null"`
	Role         string `gorm:"not null;default:USER"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (identityRecord) TableName() string { return "identities" }

type categoryRecord struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"not null"`
	Description string
	OwnerID     string         `gorm:"index;not null"`
	Owner       identityRecord `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
}

func (categoryRecord) TableName() string { return "categories" }

type taskRecord struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Title       string `gorm:"not null"`
	Description string
	Status      string         `gorm:"index:tasks_owner_status_idx,priority:2;not null"`
	OwnerID     string         `gorm:"index:tasks_owner_status_idx,priority:1;not null"`
	CategoryID  int64          `gorm:"index;not null"`
	Owner       identityRecord `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	Category    categoryRecord `gorm:"foreignKey:CategoryID;constraint:OnDelete:RESTRICT"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (taskRecord) TableName() string { return "tasks" }

func toIdentityRecord(i *domain.Identity) identityRecord {
	return identityRecord{
		ID:           i.ID,
		Email:        strings.TrimSpace(i.Email),
		EmailKey:     domain.EmailKey(i.Email),
		FirstName:    i.FirstName,
		LastName:     i.LastName,
		PasswordHash: i.PasswordHash,
		Role:         string(i.Role),
		CreatedAt:    i.CreatedAt,
		UpdatedAt:    i.UpdatedAt,
	}
}

func (r identityRecord) toDomain() domain.Identity {
	return domain.Identity{
		ID:           r.ID,
		Email:        r.Email,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		PasswordHash: r.PasswordHash,
		Role:         domain.ParseRole(r.Role),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func toCategoryRecord(c *domain.Category) categoryRecord {
	return categoryRecord{ID: c.ID, Name: c.Name, Description: c.Description, OwnerID: c.OwnerID}
}

func (r categoryRecord) toDomain() domain.Category {
	return domain.Category{ID: r.ID, Name: r.Name, Description: r.Description, OwnerID: r.OwnerID}
}

func toTaskRecord(t *domain.Task) taskRecord {
	return taskRecord{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		OwnerID:     t.OwnerID,
		CategoryID:  t.CategoryID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (r taskRecord) toDomain() domain.Task {
	return domain.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      domain.Status(r.Status),
		OwnerID:     r.OwnerID,
		CategoryID:  r.CategoryID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
