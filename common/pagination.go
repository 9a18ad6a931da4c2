package common

// PaginationMeta describes the page window of a Pagination.
type PaginationMeta struct {
	Limit int   `json:"limit"`
	Page  int   `json:"page"`
	Total int64 `json:"total"`
}

// Pagination is the envelope returned by GetAllWithPagination.
type Pagination[T any] struct {
	Data       []*T           `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// NewPagination wraps a fetched page. Total counts every match regardless
// of the window.
func NewPagination[T any](data []*T, opts FindWithPaginationOptions, total int64) *Pagination[T] {
	if data == nil {
		data = []*T{}
	}

	return &Pagination[T]{
		Data: data,
		Pagination: PaginationMeta{
			Limit: opts.Limit,
			Page:  opts.Page,
			Total: total,
		},
	}
}
