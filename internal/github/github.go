package github

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/go-github/v74/github"
)

// Client is a thin wrapper around the go-github services we use. Each service is an interface, so tests can replace it.
type Client struct {
	Search       SearchService
	Users        UsersService
	Repositories RepositoriesService
}

type SearchService interface {
	Users(ctx context.Context, query string, opts *github.SearchOptions) (*github.UsersSearchResult, *github.Response, error)
}

type UsersService interface {
	Get(ctx context.Context, user string) (*github.User, *github.Response, error)
}

type RepositoriesService interface {
	ListByUser(ctx context.Context, user string, opts *github.RepositoryListByUserOptions) ([]*github.Repository, *github.Response, error)
}

// NewClient returns a Client that authenticates with the given token. If httpClient is nil, http.DefaultClient is used.
func NewClient(token string, httpClient *http.Client) *Client {
	client := github.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &Client{
		Search:       client.Search,
		Users:        client.Users,
		Repositories: client.Repositories,
	}
}

// SearchOptions are the paging and ordering parameters of a user search.
type SearchOptions struct {
	Page    int
	PerPage int
	Sort    string
	Order   string
}

// SearchResult is one page of a user search.
type SearchResult struct {
	Total      int
	Incomplete bool
	Users      []User
}

// SearchUsers runs a user search.
func (c Client) SearchUsers(ctx context.Context, query string, opts SearchOptions) (SearchResult, error) {
	result, _, err := c.Search.Users(ctx, query, &github.SearchOptions{
		Sort:        opts.Sort,
		Order:       opts.Order,
		ListOptions: github.ListOptions{Page: opts.Page, PerPage: opts.PerPage},
	})
	if err != nil {
		return SearchResult{}, err
	}
	users := make([]User, len(result.Users))
	for i, u := range result.Users {
		users[i] = userFrom(u)
	}
	return SearchResult{
		Total:      result.GetTotal(),
		Incomplete: result.GetIncompleteResults(),
		Users:      users,
	}, nil
}

// User returns the full profile of a user.
func (c Client) User(ctx context.Context, login string) (User, error) {
	u, _, err := c.Users.Get(ctx, login)
	if err != nil {
		return User{}, err
	}
	return userFrom(u), nil
}

// RecentRepositories returns up to count of the user's repositories, most recently pushed first.
func (c Client) RecentRepositories(ctx context.Context, login string, count int) ([]Repository, error) {
	return c.listRepositories(ctx, login, &github.RepositoryListByUserOptions{
		Sort:        "pushed",
		ListOptions: github.ListOptions{PerPage: count},
	})
}

// OwnedRepositories returns up to count of the repositories owned by the user.
func (c Client) OwnedRepositories(ctx context.Context, login string, count int) ([]Repository, error) {
	return c.listRepositories(ctx, login, &github.RepositoryListByUserOptions{
		Type:        "owner",
		ListOptions: github.ListOptions{PerPage: count},
	})
}

func (c Client) listRepositories(ctx context.Context, login string, opts *github.RepositoryListByUserOptions) ([]Repository, error) {
	repos, _, err := c.Repositories.ListByUser(ctx, login, opts)
	if err != nil {
		return nil, err
	}
	result := make([]Repository, len(repos))
	for i, r := range repos {
		result[i] = repositoryFrom(r)
	}
	return result, nil
}

// StatusCode returns the HTTP status code of a failed GitHub API call, or 0 if err did not come from a GitHub response.
func StatusCode(err error) int {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return errResp.Response.StatusCode
	}
	var rateLimit *github.RateLimitError
	if errors.As(err, &rateLimit) && rateLimit.Response != nil {
		return rateLimit.Response.StatusCode
	}
	return 0
}
