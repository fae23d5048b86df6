package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// ParseStatus accepts the enum names case-insensitively.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StatusTodo, StatusInProgress, StatusDone:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrMalformedRequest, raw)
	}
}

// Task is a unit of work owned by exactly one identity and filed under one category.
// OwnerID and CategoryID are foreign keys; the owner never changes after creation.
type Task struct {
	ID          int64
	Title       string
	Description string
	Status      Status
	OwnerID     string
	CategoryID  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Owner implements Owned.
func (t Task) Owner() string { return t.OwnerID }

// Category groups tasks of one owner.
type Category struct {
	ID          int64
	Name        string
	Description string
	OwnerID     string
}

// Owner implements Owned.
func (c Category) Owner() string { return c.OwnerID }

// Owned is any resource bound to a single owning identity.
type Owned interface {
	Owner() string
}
