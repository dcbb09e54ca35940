package models

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest selects a zero-based page of results
type PageRequest struct {
	Page int
	Size int
}

// Normalize clamps page and size into their allowed ranges
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns the number of items preceding the page
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// Page is one page of results
type Page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
}
