package shared

const (
	DefaultPerPage = 50
	MaxPerPage     = 200
)

// Pagination describes one page of a listing. Rows are not counted; HasNext is known
// after fetching one row past the page.
type Pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	HasNext bool `json:"has_next"`
}

// NewPagination normalises page numbers from user input.
func NewPagination(page, perPage int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if page <= 0 {
		page = 1
	}
	return Pagination{Page: page, PerPage: perPage}
}

// Limit is the number of rows to fetch, one more than the page holds.
func (p Pagination) Limit() int { return p.PerPage + 1 }

// Offset skips the rows of earlier pages.
func (p Pagination) Offset() int { return (p.Page - 1) * p.PerPage }

// Paginate cuts rows fetched with Limit down to the page and records whether more exist.
func Paginate[T any](p *Pagination, rows []T) []T {
	if len(rows) > p.PerPage {
		p.HasNext = true
		return rows[:p.PerPage]
	}
	p.HasNext = false
	return rows
}
