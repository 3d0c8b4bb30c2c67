package search

import (
	"fmt"
	"strings"
	"unicode"
)

// SortOption determines the order of the search results.
type SortOption string

const (
	SortRelevance    SortOption = ""
	SortFollowers    SortOption = "followers"
	SortRepositories SortOption = "repositories"
	// SortStars has no GitHub equivalent. Results are sorted on the total number of stars after enrichment.
	SortStars SortOption = "stars"
)

// ParseSortOption converts a string to a SortOption.
func ParseSortOption(s string) (SortOption, error) {
	if opt := SortOption(strings.ToLower(strings.TrimSpace(s))); opt.valid() {
		return opt, nil
	}
	return "", fmt.Errorf("%w: unsupported sort option %q", ErrValidation, s)
}

func (s SortOption) valid() bool {
	switch s {
	case SortRelevance, SortFollowers, SortRepositories, SortStars:
		return true
	default:
		return false
	}
}

func (s SortOption) String() string {
	if s == SortRelevance {
		return "relevance"
	}
	return string(s)
}

// upstream returns the sort and order parameters for the GitHub search API.
func (s SortOption) upstream() (sort string, order string) {
	switch s {
	case SortFollowers, SortRepositories:
		return string(s), "desc"
	default:
		return "", ""
	}
}

// Filters are the user-provided search criteria.
type Filters struct {
	Keyword  string
	Location string
	Language string
	// Topics are accepted but not used in the GitHub query.
	Topics []string
}

// Query is a search for one page of results.
type Query struct {
	Filters
	Page int
	Sort SortOption
}

// Request holds the parameters of a GitHub user search.
type Request struct {
	Query   string
	Page    int
	PerPage int
	Sort    string
	Order   string
}

// BuildQuery returns the GitHub search string for the filters: "<keyword> in:bio[ location:<location>][ language:<language>]".
func BuildQuery(f Filters) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(f.Keyword))
	b.WriteString(" in:bio")
	if location := strings.TrimSpace(f.Location); location != "" {
		b.WriteString(" location:" + qualifier(location))
	}
	if language := strings.TrimSpace(f.Language); language != "" {
		b.WriteString(" language:" + qualifier(language))
	}
	return b.String()
}

// qualifier quotes values with whitespace, so GitHub treats them as one qualifier value.
func qualifier(value string) string {
	if strings.ContainsFunc(value, unicode.IsSpace) {
		return `"` + strings.ReplaceAll(value, `"`, "") + `"`
	}
	return value
}

// NewRequest validates the query and returns the GitHub request parameters for it.
// If perPage is not positive, DefaultPerPage is used. perPage is capped at MaxPerPage.
func NewRequest(q Query, perPage int) (Request, error) {
	if strings.TrimSpace(q.Keyword) == "" {
		return Request{}, ErrEmptyKeyword
	}
	if !q.Sort.valid() {
		return Request{}, fmt.Errorf("%w: unsupported sort option %q", ErrValidation, q.Sort)
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	perPage = min(perPage, MaxPerPage)
	page := max(q.Page, 1)
	if (page-1)*perPage >= MaxResults {
		return Request{}, fmt.Errorf("%w: page %d is beyond the first %d results", ErrValidation, page, MaxResults)
	}
	sort, order := q.Sort.upstream()
	return Request{
		Query:   BuildQuery(q.Filters),
		Page:    page,
		PerPage: perPage,
		Sort:    sort,
		Order:   order,
	}, nil
}
