// Package pagination parses page parameters and shapes paginated responses.
package pagination

import (
	"net/http"
	"strconv"
)

// Params represents pagination parameters
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Limit   int `json:"-"`
	Offset  int `json:"-"`
}

// Response represents a paginated response
type Response[T any] struct {
	Page         int `json:"page"`
	PerPage      int `json:"per_page"`
	TotalPages   int `json:"total_pages"`
	TotalResults int `json:"total_results"`
	Results      []T `json:"results"`
}

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// ParseParams extracts ?page= and ?per_page= from the request.
func ParseParams(r *http.Request) Params {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	return Params{
		Page:    page,
		PerPage: perPage,
		Limit:   perPage,
		Offset:  (page - 1) * perPage,
	}
}

// NewResponse creates a new paginated response. A nil results slice is
// rendered as an empty JSON array.
func NewResponse[T any](results []T, p Params, totalResults int) Response[T] {
	if results == nil {
		results = []T{}
	}
	return Response[T]{
		Page:         p.Page,
		PerPage:      p.PerPage,
		TotalPages:   CalculateTotalPages(totalResults, p.PerPage),
		TotalResults: totalResults,
		Results:      results,
	}
}

// CalculateTotalPages calculates the total number of pages
func CalculateTotalPages(totalResults, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	pages := (totalResults + perPage - 1) / perPage
	if pages < 1 {
		return 1
	}
	return pages
}

// Slice applies limit/offset to an in-memory result set. A non-positive
// limit returns everything after offset.
func Slice[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	if offset < 0 {
		offset = 0
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
