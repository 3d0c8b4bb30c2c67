// Package auth provides GitHub access tokens: a static server token, tokens obtained through GitHub's OAuth flow
// and a store that keeps them per user.
package auth

import (
	"context"
	"errors"
)

// A Provider returns the GitHub token to use for a search. It returns false if no token is available.
type Provider interface {
	Token() (string, bool)
}

var _ Provider = Static("")

// Static is a fixed token, typically configured on the command line. An empty Static has no token.
type Static string

func (s Static) Token() (string, bool) {
	return string(s), s != ""
}

// CodeExchanger exchanges an OAuth authorization code for an access token.
type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (Token, error)
}

var _ CodeExchanger = &Exchanger{}

// ErrMissingCode is returned when a token exchange is requested without an authorization code.
var ErrMissingCode = errors.New("missing code parameter")

// AuthError is an error returned by GitHub's OAuth token endpoint.
type AuthError struct {
	Code        string
	Description string
}

func (e *AuthError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	return "failed to retrieve access token"
}
