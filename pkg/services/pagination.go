package services

import (
	"strings"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 5
	MinPageSize     = 1
	MaxPageSize     = 100
)

// PageRequest selects one page of a list, optionally filtered by a
// case-insensitive name search.
type PageRequest struct {
	Page     int
	PageSize int
	Search   string
}

// Pagination describes the page returned and the list it was taken from.
type Pagination struct {
	Page            int  `json:"page"`
	PageSize        int  `json:"pageSize"`
	TotalCount      int  `json:"totalCount"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

func (r PageRequest) normalize() PageRequest {
	if r.Page < DefaultPage {
		r.Page = DefaultPage
	}

	switch {
	case r.PageSize == 0:
		r.PageSize = DefaultPageSize
	case r.PageSize < MinPageSize:
		r.PageSize = MinPageSize
	case r.PageSize > MaxPageSize:
		r.PageSize = MaxPageSize
	}

	r.Search = strings.TrimSpace(r.Search)

	return r
}

func (r PageRequest) matches(name string) bool {
	return r.Search == "" || strings.Contains(strings.ToLower(name), strings.ToLower(r.Search))
}

// paginate returns the requested page of items, which must already be
// filtered and sorted.
func paginate[T any](items []T, req PageRequest) *Page[T] {
	req = req.normalize()

	total := len(items)
	totalPages := (total + req.PageSize - 1) / req.PageSize

	start := min((req.Page-1)*req.PageSize, total)
	end := min(start+req.PageSize, total)

	page := make([]T, end-start)
	copy(page, items[start:end])

	return &Page[T]{
		Items: page,
		Pagination: Pagination{
			Page:            req.Page,
			PageSize:        req.PageSize,
			TotalCount:      total,
			TotalPages:      totalPages,
			HasNextPage:     req.Page < totalPages,
			HasPreviousPage: req.Page > 1,
		},
	}
}
