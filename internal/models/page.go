package models

// PageResult is a single page of a paginated listing. It is derived per
// query and never stored.
type PageResult[T any] struct {
	Items        []T `json:"items"`
	CurrentPage  int `json:"current_page"`
	TotalPages   int `json:"total_pages"`
	TotalResults int `json:"total_results"`
}

// NewPageResult computes the page envelope for the given totals.
// totalPages is ceil(totalResults/perPage); a page past the end carries an
// empty item slice, which is valid.
func NewPageResult[T any](items []T, page, perPage, totalResults int) *PageResult[T] {
	totalPages := (totalResults + perPage - 1) / perPage
	if items == nil {
		items = []T{}
	}
	return &PageResult[T]{
		Items:        items,
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalResults: totalResults,
	}
}
