package search

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/clambin/github-bio-search/internal/github"
	"github.com/clambin/github-bio-search/internal/testutils"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnricher_Enrich(t *testing.T) {
	c := newFakeClient(12)
	c.failures["user3"] = true
	c.failures["user7"] = true
	metrics := NewMetrics("", "")
	e := Enricher{Concurrency: 4, Metrics: metrics}

	users := e.Enrich(t.Context(), c, c.hits, SortRelevance)
	require.Len(t, users, 12)

	for i, user := range users {
		login := fmt.Sprintf("user%d", i)
		assert.Equal(t, login, user.Login)
		switch login {
		case "user3", "user7":
			assert.True(t, user.Partial)
			assert.Equal(t, login, user.Name)
			assert.Empty(t, user.Bio)
			assert.Zero(t, user.Followers)
			assert.Empty(t, user.MostUsedLanguage)
			assert.Equal(t, int64(i), user.ID)
			assert.Equal(t, "https://github.com/"+login, user.HTMLURL)
		default:
			assert.False(t, user.Partial)
			assert.Equal(t, "bio of "+login, user.Bio)
			assert.Equal(t, 10, user.Followers)
			assert.Equal(t, "Go", user.MostUsedLanguage)
		}
		assert.Nil(t, user.TotalStars)
	}

	assert.LessOrEqual(t, c.maxFlight.Load(), int32(4))
	assert.Equal(t, 10.0, testutil.ToFloat64(metrics.enrichments.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.enrichments.WithLabelValues("partial")))
}

func TestEnricher_Enrich_Stars(t *testing.T) {
	c := newFakeClient(3)
	c.stars = map[string]int{"user0": 5, "user1": 50, "user2": 20}
	var e Enricher

	users := e.Enrich(t.Context(), c, c.hits, SortStars)
	require.Len(t, users, 3)

	logins := make([]string, len(users))
	stars := make([]int, len(users))
	for i, user := range users {
		require.NotNil(t, user.TotalStars)
		logins[i] = user.Login
		stars[i] = *user.TotalStars
	}
	assert.Equal(t, []string{"user1", "user2", "user0"}, logins)
	assert.Equal(t, []int{50, 20, 5}, stars)
}

func TestEnricher_Enrich_Stars_Failure(t *testing.T) {
	c := newFakeClient(3)
	// no stars for user1: its repositories can't be listed
	c.stars = map[string]int{"user0": 5, "user2": 20}
	var e Enricher

	users := e.Enrich(t.Context(), c, c.hits, SortStars)
	require.Len(t, users, 3)
	assert.Equal(t, "user2", users[0].Login)
	assert.Equal(t, "user0", users[1].Login)
	assert.Equal(t, "user1", users[2].Login)
	assert.True(t, users[2].Partial)
	assert.Nil(t, users[2].TotalStars)
}

func TestEnricher_Enrich_Timeout(t *testing.T) {
	c := newFakeClient(2)
	c.block = true
	e := Enricher{Timeout: 50 * time.Millisecond}

	start := time.Now()
	users := e.Enrich(t.Context(), c, c.hits, SortRelevance)
	assert.Less(t, time.Since(start), time.Second)
	require.Len(t, users, 2)
	for _, user := range users {
		assert.True(t, user.Partial)
	}
}

func TestEnricher_Enrich_Empty(t *testing.T) {
	var e Enricher
	assert.Empty(t, e.Enrich(t.Context(), newFakeClient(0), nil, SortStars))
}

func TestUser_MarshalJSON(t *testing.T) {
	hit := github.User{Login: "user1", ID: 1, AvatarURL: "https://avatars/user1", HTMLURL: "https://github.com/user1"}

	body, err := json.Marshal(partialUser(hit))
	require.NoError(t, err)
	assert.JSONEq(t, `{
  "login": "user1",
  "id": 1,
  "avatar_url": "https://avatars/user1",
  "html_url": "https://github.com/user1",
  "name": "user1",
  "company": null,
  "blog": null,
  "location": null,
  "email": null,
  "bio": "",
  "twitter_username": null,
  "public_repos": 0,
  "followers": 0,
  "following": 0,
  "partial": true
}`, string(body))

	// users that were enriched keep their profile fields, even if blank
	body, err = json.Marshal(User{User: github.User{Login: "user2", Location: "Berlin"}, MostUsedLanguage: "Go"})
	require.NoError(t, err)
	assert.JSONEq(t, `{
  "login": "user2",
  "id": 0,
  "avatar_url": "",
  "html_url": "",
  "name": "",
  "company": "",
  "blog": "",
  "location": "Berlin",
  "email": "",
  "bio": "",
  "twitter_username": "",
  "public_repos": 0,
  "followers": 0,
  "following": 0,
  "most_used_language": "Go"
}`, string(body))
}

func TestMostUsedLanguage(t *testing.T) {
	tests := []struct {
		name  string
		repos []github.Repository
		want  string
	}{
		{"no repositories", nil, ""},
		{"no languages", []github.Repository{{}, {}}, ""},
		{"most used", []github.Repository{{Language: "Python"}, {Language: "Go"}, {Language: "Go"}}, "Go"},
		{"repositories without language are ignored", []github.Repository{{}, {}, {Language: "Rust"}}, "Rust"},
		{"tie goes to first seen", []github.Repository{{Language: "Python"}, {Language: "Go"}, {Language: "Go"}, {Language: "Python"}}, "Python"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MostUsedLanguage(tt.repos))
		})
	}
}

func TestTotalStars(t *testing.T) {
	repos := []github.Repository{
		{FullName: "foo/bar", Stars: 10},
		{FullName: "foo/snafu", Stars: 5},
		{FullName: "foo/fork", Stars: 100, Fork: true},
	}
	assert.Equal(t, 15, TotalStars(repos))
	assert.Zero(t, TotalStars(nil))
}

func TestSortByStars(t *testing.T) {
	users := []User{
		{User: github.User{Login: "a"}, TotalStars: testutils.Ptr(5)},
		{User: github.User{Login: "b"}},
		{User: github.User{Login: "c"}, TotalStars: testutils.Ptr(50)},
		{User: github.User{Login: "d"}, TotalStars: testutils.Ptr(5)},
	}
	SortByStars(users)

	var logins []string
	for _, user := range users {
		logins = append(logins, user.Login)
	}
	assert.Equal(t, []string{"c", "a", "d", "b"}, logins)
}
