package search

import (
	"context"
	"time"

	"github.com/clambin/github-bio-search/internal/github"
	"github.com/clambin/github-bio-search/slogctx"
)

// Client is the part of the GitHub API needed to search and enrich users.
type Client interface {
	SearchUsers(ctx context.Context, query string, opts github.SearchOptions) (github.SearchResult, error)
	User(ctx context.Context, login string) (github.User, error)
	RecentRepositories(ctx context.Context, login string, count int) ([]github.Repository, error)
	OwnedRepositories(ctx context.Context, login string, count int) ([]github.Repository, error)
}

var _ Client = github.Client{}

// Result is one page of enriched search results.
type Result struct {
	Users      []User `json:"users"`
	TotalCount int    `json:"total_count"`
	Page       int    `json:"page"`
	PerPage    int    `json:"per_page"`
	TotalPages int    `json:"total_pages"`
}

// Searcher searches GitHub users and enriches the results.
type Searcher struct {
	// NewClient returns a GitHub client that authenticates with the given token.
	NewClient func(token string) Client
	Enricher  Enricher
	// PerPage is the number of users per page. Defaults to DefaultPerPage.
	PerPage int
	Metrics *Metrics
}

// Search returns one page of users matching the query. The query is validated before the token is checked,
// so an empty keyword never results in a request, even without a token.
func (s Searcher) Search(ctx context.Context, token string, q Query) (result Result, err error) {
	start := time.Now()
	defer func() { s.Metrics.observeSearch(q.Sort, err, time.Since(start)) }()

	req, err := NewRequest(q, s.PerPage)
	if err != nil {
		return Result{}, err
	}
	if token == "" {
		return Result{}, ErrAuthRequired
	}
	return s.search(ctx, token, req, q.Sort)
}

func (s Searcher) search(ctx context.Context, token string, req Request, sort SortOption) (Result, error) {
	ctx = slogctx.With(ctx, "query", req.Query, "page", req.Page, "sort", sort.String())
	logger := slogctx.FromContext(ctx)

	client := s.NewClient(token)
	found, err := client.SearchUsers(ctx, req.Query, github.SearchOptions{
		Page:    req.Page,
		PerPage: req.PerPage,
		Sort:    req.Sort,
		Order:   req.Order,
	})
	if err != nil {
		if cause := context.Cause(ctx); cause != nil {
			return Result{}, cause
		}
		logger.Error("search failed", "err", err)
		return Result{}, &UpstreamError{StatusCode: github.StatusCode(err), Err: err}
	}
	logger.Debug("search done", "total", found.Total, "hits", len(found.Users), "incomplete", found.Incomplete)

	users := s.Enricher.Enrich(ctx, client, found.Users, sort)
	if err = context.Cause(ctx); err != nil {
		return Result{}, err
	}

	total := TotalCount(found.Total)
	return Result{
		Users:      users,
		TotalCount: total,
		Page:       req.Page,
		PerPage:    req.PerPage,
		TotalPages: TotalPages(total, req.PerPage),
	}, nil
}
