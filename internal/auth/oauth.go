package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// Token is an access token returned by GitHub's OAuth token endpoint.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// Exchanger exchanges OAuth authorization codes for GitHub access tokens.
type Exchanger struct {
	Config *oauth2.Config
	// HTTPClient is used to call the token endpoint. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
}

// NewExchanger returns an Exchanger for the GitHub OAuth app with the given credentials.
func NewExchanger(clientID, clientSecret, redirectURL string) *Exchanger {
	return &Exchanger{
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     github.Endpoint,
			RedirectURL:  redirectURL,
		},
	}
}

// AuthURL returns the GitHub URL that asks the user to authorize the app. GitHub passes state back to the redirect URL.
func (e *Exchanger) AuthURL(state string) string {
	return e.Config.AuthCodeURL(state)
}

// Exchange exchanges the authorization code for an access token. If GitHub rejects the code, Exchange returns an *AuthError.
// Any other failure to reach the token endpoint is returned as-is.
func (e *Exchanger) Exchange(ctx context.Context, code string) (Token, error) {
	if code == "" {
		return Token{}, ErrMissingCode
	}
	if e.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, e.HTTPClient)
	}
	token, err := e.Config.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "" {
			return Token{}, &AuthError{Code: retrieveErr.ErrorCode, Description: retrieveErr.ErrorDescription}
		}
		return Token{}, fmt.Errorf("exchange: %w", err)
	}
	scope, _ := token.Extra("scope").(string)
	return Token{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		Scope:       scope,
	}, nil
}
