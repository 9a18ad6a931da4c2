package rest

import "github.com/logistics-id/crud/common"

// ResponseBody defines the standard structure for all HTTP responses
type ResponseBody struct {
	StatusCode int    `json:"-"`
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Data       any    `json:"data,omitempty"`
	Errors     any    `json:"errors,omitempty"`
	Meta       *Meta  `json:"meta,omitempty"`
}

type Meta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

func BuildMeta(page, pageSize int, total int64) *Meta {
	var totalPages int64
	if pageSize > 0 {
		totalPages = (total + int64(pageSize) - 1) / int64(pageSize) // ceil division
	}

	return &Meta{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    int64(page) < totalPages,
		HasPrev:    page > 1,
	}
}

// Paginated wraps a service page into a response body.
func Paginated[T any](p *common.Pagination[T]) *ResponseBody {
	return &ResponseBody{
		Data: p.Data,
		Meta: BuildMeta(p.Pagination.Page, p.Pagination.Limit, p.Pagination.Total),
	}
}
