package domain

// SortDirection orders a page.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Sort names a task field and a direction.
type Sort struct {
	Field     string
	Direction SortDirection
}

// Descending reports whether the sort is descending.
func (s Sort) Descending() bool { return s.Direction == SortDesc }

// PageRequest addresses a zero-based page of an ordered result set.
type PageRequest struct {
	Page int
	Size int
	Sort Sort
}

// Offset is the number of rows skipped before the page.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// Page is a bounded slice of an ordered result set plus total-count metadata.
type Page[T any] struct {
	Items []T
	Page  int
	Size  int
	Total int64
}

// TotalPages derives the page count from Total and Size.
func (p Page[T]) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Size) - 1) / int64(p.Size))
}

// MapPage converts the items of a page while keeping its metadata.
func MapPage[T, U any](p Page[T], fn func(T) U) Page[U] {
	items := make([]U, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, fn(item))
	}
	return Page[U]{Items: items, Page: p.Page, Size: p.Size, Total: p.Total}
}
