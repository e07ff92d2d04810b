package models

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Pagination is the page/limit pair accepted by list operations.
type Pagination struct {
	Page  int
	Limit int
}

// Normalize clamps page and limit to sane values.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset returns the row offset of the page.
func (p Pagination) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

// Page is the paginated list envelope.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasPrev bool `json:"hasPrev"`
	HasNext bool `json:"hasNext"`
}

// NewPage builds the envelope for items of a page out of total rows.
func NewPage[T any](items []T, p Pagination, total int) Page[T] {
	p = p.Normalize()
	if items == nil {
		items = []T{}
	}
	pages := 0
	if total > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Page[T]{
		Items:   items,
		Page:    p.Page,
		Limit:   p.Limit,
		Total:   total,
		Pages:   pages,
		HasPrev: p.Page > 1,
		HasNext: p.Page < pages,
	}
}
