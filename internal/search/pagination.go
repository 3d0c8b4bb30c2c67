package search

const (
	// MaxResults is the maximum number of results the GitHub search API returns for a query.
	MaxResults = 1000
	// DefaultPerPage is the number of users per page.
	DefaultPerPage = 12
	// MaxPerPage is the largest page size the GitHub search API accepts.
	MaxPerPage = 100
)

// TotalCount returns the number of results that can be shown for a search with raw total results.
func TotalCount(raw int) int {
	return max(0, min(raw, MaxResults))
}

// TotalPages returns the number of pages needed to show total results.
func TotalPages(total, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

// Shown returns the 1-based index of the first and last result on the page. Both are zero if there are no results.
func Shown(page, perPage, total int) (first int, last int) {
	if total <= 0 || perPage <= 0 {
		return 0, 0
	}
	page = max(page, 1)
	return min((page-1)*perPage+1, total), min(page*perPage, total)
}

// PageLink is one entry in a pagination bar: either a page number or an ellipsis.
type PageLink struct {
	Page     int  `json:"page,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
}

const maxVisiblePages = 5

// Pages returns the pagination bar for the current page. If there are more than 5 pages, it shows the first page,
// the last page and the pages next to the current one, with ellipses for the gaps.
func Pages(current, totalPages int) []PageLink {
	if totalPages <= 0 {
		return nil
	}
	var pages []PageLink
	if totalPages <= maxVisiblePages {
		for i := 1; i <= totalPages; i++ {
			pages = append(pages, PageLink{Page: i})
		}
		return pages
	}

	pages = append(pages, PageLink{Page: 1})
	if current > 3 {
		pages = append(pages, PageLink{Ellipsis: true})
	}
	for i := max(2, current-1); i <= min(current+1, totalPages-1); i++ {
		pages = append(pages, PageLink{Page: i})
	}
	if current < totalPages-2 {
		pages = append(pages, PageLink{Ellipsis: true})
	}
	return append(pages, PageLink{Page: totalPages})
}
