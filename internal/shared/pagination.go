package shared

import (
	"math"
	"strconv"
)

const (
	defaultPerPage = 10
	maxPerPage     = 100
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"limit"`
	Total      int `json:"count"`
	TotalPages int `json:"totalPages"`
}

// PageRequest is the normalised page/limit pair taken from a query string.
type PageRequest struct {
	Page    int
	PerPage int
}

// ParsePageRequest reads page and limit values, falling back to defaults on
// missing or malformed input.
func ParsePageRequest(page, limit string) PageRequest {
	p, err := strconv.Atoi(page)
	if err != nil || p <= 0 {
		p = 1
	}
	l, err := strconv.Atoi(limit)
	if err != nil || l <= 0 {
		l = defaultPerPage
	}
	if l > maxPerPage {
		l = maxPerPage
	}
	return PageRequest{Page: p, PerPage: l}
}

// Offset returns the number of rows to skip.
func (r PageRequest) Offset() int {
	return (r.Page - 1) * r.PerPage
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}
