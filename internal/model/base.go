package model

import (
	"math"
	"time"
)

// Timestamps contains common bookkeeping fields
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Pagination represents common pagination parameters
type Pagination struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

// Normalize clamps page and page size into usable bounds. Page is capped so
// Offset cannot overflow.
func (p *Pagination) Normalize(maxPageSize int) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	if p.PageSize > 0 && p.Page > math.MaxInt/p.PageSize {
		p.Page = math.MaxInt / p.PageSize
	}
}

// Offset returns the zero-based index of the first item on the page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}
