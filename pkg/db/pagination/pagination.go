package pagination

// Page is the standard offset pagination input bound from query params.
type Page struct {
	Page     int `form:"page,default=1"`
	PageSize int `form:"page_size,default=20" validate:"gte=1,lte=50"`
}

// Normalize clamps the requested page and size to sane bounds.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 50 {
		p.PageSize = 50
	}
	return p
}

// Offset returns the row offset for the normalized page.
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PageSize
}

// Meta describes a page of results.
type Meta struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Pages int64 `json:"pages"`
}

// BuildMeta computes page metadata for a total row count.
func BuildMeta(total int64, page Page) Meta {
	n := page.Normalize()
	pages := total / int64(n.PageSize)
	if total%int64(n.PageSize) != 0 {
		pages++
	}
	return Meta{Total: total, Page: n.Page, Pages: pages}
}
