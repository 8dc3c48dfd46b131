package models

// PageQuery is a requested page of a listing.
type PageQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// Normalize clamps page to >= 1 and limit to [1, MaxLimit], applying defaults for zero values.
func (q PageQuery) Normalize() PageQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	switch {
	case q.Limit == 0:
		q.Limit = DefaultLimit
	case q.Limit < 1:
		q.Limit = 1
	case q.Limit > MaxLimit:
		q.Limit = MaxLimit
	}
	return q
}

func (q PageQuery) Offset() int {
	n := q.Normalize()
	return (n.Page - 1) * n.Limit
}

type PageMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPageMeta builds listing metadata for a normalized query.
func NewPageMeta(q PageQuery, total int) PageMeta {
	q = q.Normalize()
	pages := 0
	if total > 0 {
		pages = (total + q.Limit - 1) / q.Limit
	}
	return PageMeta{Page: q.Page, Limit: q.Limit, Total: total, TotalPages: pages}
}
