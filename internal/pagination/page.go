// Package pagination holds the page-window math shared by every paginated
// catalog query.
package pagination

const (
	DefaultPageSize = 10
	MaxPageSize     = 15
)

// Normalize clamps a requested page window into valid bounds. Invalid input is
// corrected, never rejected.
func Normalize(pageNumber, pageSize int) (int, int) {
	if pageNumber <= 0 {
		pageNumber = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return pageNumber, pageSize
}

// TotalPages returns ceil(itemCount/pageSize); zero items mean zero pages.
func TotalPages(itemCount, pageSize int) int {
	if itemCount <= 0 {
		return 0
	}
	return (itemCount + pageSize - 1) / pageSize
}

// PageInfo describes a page's position within the whole result set.
type PageInfo struct {
	PageNumber      int  `json:"page_number"`
	PageSize        int  `json:"page_size"`
	TotalPages      int  `json:"total_pages"`
	HasPreviousPage bool `json:"has_previous_page"`
	HasNextPage     bool `json:"has_next_page"`
}

// NewPageInfo builds metadata for a normalized window over itemCount items.
// HasPreviousPage and HasNextPage keep the expressions inherited from the
// legacy storefront (previous when PageNumber < TotalPages, next when
// PageNumber > 1); clients depend on these exact values, so they stay as-is.
func NewPageInfo(itemCount, pageNumber, pageSize int) PageInfo {
	totalPages := TotalPages(itemCount, pageSize)
	return PageInfo{
		PageNumber:      pageNumber,
		PageSize:        pageSize,
		TotalPages:      totalPages,
		HasPreviousPage: pageNumber < totalPages,
		HasNextPage:     pageNumber > 1,
	}
}

// Offset converts a normalized window into an SQL offset.
func Offset(pageNumber, pageSize int) int {
	return (pageNumber - 1) * pageSize
}
