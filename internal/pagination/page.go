package pagination

// Page is a normalized offset/limit window over a catalogue.
type Page struct {
	Offset int
	Limit  int
}

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Normalize clamps raw offset/limit values into a usable window: negative
// offsets become zero, non-positive limits take the default, oversized limits
// are capped.
func Normalize(offset, limit int) Page {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Page{Offset: offset, Limit: limit}
}

// PageInfo describes where a returned page sits in the full catalogue.
type PageInfo struct {
	Offset       int   `json:"offset"`
	Limit        int   `json:"limit"`
	TotalEntries int64 `json:"total_entries"`
}

// HasMore reports whether another page exists after this one.
func (p PageInfo) HasMore() bool {
	return int64(p.Offset+p.Limit) < p.TotalEntries
}

// PageResult pairs one page of items with its catalogue position.
type PageResult[T any] struct {
	Items    []T      `json:"results"`
	PageInfo PageInfo `json:"page_info"`
}

// NewPageResult builds a PageResult for items fetched with page against a
// catalogue of total entries.
func NewPageResult[T any](items []T, page Page, total int64) PageResult[T] {
	return PageResult[T]{
		Items: items,
		PageInfo: PageInfo{
			Offset:       page.Offset,
			Limit:        page.Limit,
			TotalEntries: total,
		},
	}
}
