package task

import (
	"fmt"
	"strings"

	"github.com/splax/tasktracker/internal/domain"
	"github.com/splax/tasktracker/internal/repository"
)

// ParseSort reads a "field,direction" token. The direction is case-insensitive
// and defaults to ascending; an empty token selects DefaultSort.
func ParseSort(raw string) (domain.Sort, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultSort
	}
	field, direction, _ := strings.Cut(raw, ",")
	field = strings.TrimSpace(field)
	if _, ok := repository.TaskSortColumns[field]; !ok {
		return domain.Sort{}, fmt.Errorf("%w: unknown sort field %q", ErrMalformedRequest, field)
	}
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "", "asc":
		return domain.Sort{Field: field, Direction: domain.SortAsc}, nil
	case "desc":
		return domain.Sort{Field: field, Direction: domain.SortDesc}, nil
	default:
		return domain.Sort{}, fmt.Errorf("%w: unknown sort direction %q", ErrMalformedRequest, direction)
	}
}

// NewPageRequest validates paging input and parses sort.
func NewPageRequest(page, size int, sort string) (domain.PageRequest, error) {
	parsed, err := ParseSort(sort)
	if err != nil {
		return domain.PageRequest{}, err
	}
	req := domain.PageRequest{Page: page, Size: size, Sort: parsed}
	if err := validatePage(req); err != nil {
		return domain.PageRequest{}, err
	}
	return req, nil
}

func validatePage(req domain.PageRequest) error {
	if req.Page < 0 {
		return fmt.Errorf("%w: page must not be negative", ErrMalformedRequest)
	}
	if req.Size <= 0 {
		return fmt.Errorf("%w: size must be positive", ErrMalformedRequest)
	}
	if _, ok := repository.TaskSortColumns[req.Sort.Field]; !ok {
		return fmt.Errorf("%w: unknown sort field %q", ErrMalformedRequest, req.Sort.Field)
	}
	return nil
}
