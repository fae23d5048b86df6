package domain

import "time"

// TaskCriteria is a conjunctive task filter. Nil fields match every task.
type TaskCriteria struct {
	Status        *Status
	CategoryID    *int64
	CreatedBefore *time.Time
}

// IsZero reports whether no predicate is set.
func (c TaskCriteria) IsZero() bool {
	return c.Status == nil && c.CategoryID == nil && c.CreatedBefore == nil
}

// Matches reports whether t satisfies every set predicate. CreatedBefore is strict.
func (c TaskCriteria) Matches(t Task) bool {
	if c.Status != nil && t.Status != *c.Status {
		return false
	}
	if c.CategoryID != nil && t.CategoryID != *c.CategoryID {
		return false
	}
	if c.CreatedBefore != nil && !t.CreatedAt.Before(*c.CreatedBefore) {
		return false
	}
	return true
}
