package search

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/clambin/github-bio-search/internal/github"
	"github.com/clambin/github-bio-search/slogctx"
	"golang.org/x/sync/errgroup"
)

const (
	// languageSampleSize is the number of most recently pushed repositories used to determine a user's most used language.
	languageSampleSize = 10
	// starSampleSize is the number of owned repositories whose stars are counted.
	starSampleSize = 100
)

// User is a search hit, enriched with the user's profile and repository statistics.
type User struct {
	github.User
	MostUsedLanguage string `json:"most_used_language,omitempty"`
	// TotalStars is only set when sorting by stars.
	TotalStars *int `json:"total_stars,omitempty"`
	// Partial is set when the user could not be enriched and only the search hit's data is available.
	Partial bool `json:"partial,omitempty"`
}

// MarshalJSON encodes the profile fields a partial user doesn't have as null.
func (u User) MarshalJSON() ([]byte, error) {
	type user User
	if !u.Partial {
		return json.Marshal(user(u))
	}
	return json.Marshal(struct {
		user
		Company         *string `json:"company"`
		Blog            *string `json:"blog"`
		Location        *string `json:"location"`
		Email           *string `json:"email"`
		TwitterUsername *string `json:"twitter_username"`
	}{user: user(u)})
}

func (u User) stars() int {
	if u.TotalStars == nil {
		return 0
	}
	return *u.TotalStars
}

// Enricher adds profile and repository data to search hits.
type Enricher struct {
	// Concurrency is the maximum number of hits enriched in parallel. Zero means no limit.
	Concurrency int
	// Timeout caps the time to enrich a single hit. Zero means no timeout.
	Timeout time.Duration
	Metrics *Metrics
}

// Enrich enriches all hits in parallel and waits for all of them to complete. A hit that can't be enriched
// is replaced by a partial record, so the result always has one entry per hit, in the same order.
// If sort is SortStars, the total number of stars is added and the result is sorted on it.
func (e Enricher) Enrich(ctx context.Context, c Client, hits []github.User, sort SortOption) []User {
	logger := slogctx.FromContext(ctx)
	start := time.Now()

	users := make([]User, len(hits))
	var g errgroup.Group
	if e.Concurrency > 0 {
		g.SetLimit(e.Concurrency)
	}
	for i, hit := range hits {
		g.Go(func() error {
			user, err := e.enrich(ctx, c, hit, sort == SortStars)
			if err != nil {
				logger.Warn("failed to enrich user. using search result instead", "err", err)
				user = partialUser(hit)
			}
			e.Metrics.observeEnrichment(err)
			users[i] = user
			return nil
		})
	}
	_ = g.Wait()
	logger.Debug("search hits enriched", "count", len(hits), "elapsed", time.Since(start))

	if sort == SortStars {
		SortByStars(users)
	}
	return users
}

func (e Enricher) enrich(ctx context.Context, c Client, hit github.User, withStars bool) (User, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	var (
		profile  github.User
		language string
		stars    *int
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if profile, err = c.User(ctx, hit.Login); err != nil {
			err = fmt.Errorf("user: %w", err)
		}
		return err
	})
	g.Go(func() error {
		repos, err := c.RecentRepositories(ctx, hit.Login, languageSampleSize)
		if err != nil {
			// not fatal: the user is shown without a language
			slogctx.FromContext(ctx).Debug("failed to get recent repositories", "login", hit.Login, "err", err)
			return nil
		}
		language = MostUsedLanguage(repos)
		return nil
	})
	if withStars {
		g.Go(func() error {
			repos, err := c.OwnedRepositories(ctx, hit.Login, starSampleSize)
			if err != nil {
				return fmt.Errorf("repositories: %w", err)
			}
			total := TotalStars(repos)
			stars = &total
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return User{}, &EnrichmentError{Login: hit.Login, Err: err}
	}
	return User{User: profile, MostUsedLanguage: language, TotalStars: stars}, nil
}

// partialUser is used when a hit can't be enriched: only the fields from the search hit are kept.
func partialUser(hit github.User) User {
	return User{
		User: github.User{
			Login:     hit.Login,
			ID:        hit.ID,
			AvatarURL: hit.AvatarURL,
			HTMLURL:   hit.HTMLURL,
			Name:      hit.Login,
		},
		Partial: true,
	}
}

// MostUsedLanguage returns the language used by most repositories. Ties go to the language seen first.
// Repositories without a language are ignored.
func MostUsedLanguage(repos []github.Repository) string {
	counts := make(map[string]int)
	var languages []string
	for _, repo := range repos {
		if repo.Language == "" {
			continue
		}
		if counts[repo.Language] == 0 {
			languages = append(languages, repo.Language)
		}
		counts[repo.Language]++
	}
	var language string
	var count int
	for _, l := range languages {
		if counts[l] > count {
			language, count = l, counts[l]
		}
	}
	return language
}

// TotalStars returns the number of stars of all repositories, excluding forks.
func TotalStars(repos []github.Repository) int {
	var total int
	for _, repo := range repos {
		if !repo.Fork {
			total += repo.Stars
		}
	}
	return total
}

// SortByStars sorts users by total stars, highest first. Users without a star count are treated as having zero stars.
// Users with the same number of stars keep their order.
func SortByStars(users []User) {
	slices.SortStableFunc(users, func(a, b User) int {
		return cmp.Compare(b.stars(), a.stars())
	})
}
