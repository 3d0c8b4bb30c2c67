package github

import (
	"time"

	"github.com/google/go-github/v74/github"
)

// User is the part of a GitHub user profile we report on.
type User struct {
	Login           string `json:"login"`
	ID              int64  `json:"id"`
	AvatarURL       string `json:"avatar_url"`
	HTMLURL         string `json:"html_url"`
	Name            string `json:"name"`
	Company         string `json:"company"`
	Blog            string `json:"blog"`
	Location        string `json:"location"`
	Email           string `json:"email"`
	Bio             string `json:"bio"`
	TwitterUsername string `json:"twitter_username"`
	PublicRepos     int    `json:"public_repos"`
	Followers       int    `json:"followers"`
	Following       int    `json:"following"`
}

// Repository is the part of a GitHub repository we need for language and star statistics.
type Repository struct {
	FullName string
	Language string
	Fork     bool
	Stars    int
	PushedAt time.Time
}

func userFrom(u *github.User) User {
	return User{
		Login:           u.GetLogin(),
		ID:              u.GetID(),
		AvatarURL:       u.GetAvatarURL(),
		HTMLURL:         u.GetHTMLURL(),
		Name:            u.GetName(),
		Company:         u.GetCompany(),
		Blog:            u.GetBlog(),
		Location:        u.GetLocation(),
		Email:           u.GetEmail(),
		Bio:             u.GetBio(),
		TwitterUsername: u.GetTwitterUsername(),
		PublicRepos:     u.GetPublicRepos(),
		Followers:       u.GetFollowers(),
		Following:       u.GetFollowing(),
	}
}

func repositoryFrom(r *github.Repository) Repository {
	return Repository{
		FullName: r.GetFullName(),
		Language: r.GetLanguage(),
		Fork:     r.GetFork(),
		Stars:    r.GetStargazersCount(),
		PushedAt: r.GetPushedAt().Time,
	}
}
