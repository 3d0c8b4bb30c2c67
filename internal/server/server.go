// Package server exposes the user search over HTTP: a JSON API, GitHub sign-in endpoints and a Slack slash command.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/clambin/github-bio-search/internal/auth"
	"github.com/clambin/github-bio-search/internal/search"
	"github.com/clambin/github-bio-search/slogctx"
	"github.com/rs/xid"
)

// Searcher searches GitHub users with the given token.
type Searcher interface {
	Search(ctx context.Context, token string, q search.Query) (search.Result, error)
}

var _ Searcher = search.Searcher{}

// Exchanger exchanges OAuth codes for GitHub tokens and builds the URL to start a sign-in.
type Exchanger interface {
	auth.CodeExchanger
	AuthURL(state string) string
}

var _ Exchanger = &auth.Exchanger{}

// Config holds the dependencies of the server.
type Config struct {
	Searcher Searcher
	// Tokens holds the tokens of Slack users who signed in. Its default provider is used for requests without a token.
	Tokens *auth.Store
	// Exchanger handles GitHub sign-in. If nil, the sign-in endpoints are not available.
	Exchanger Exchanger
	// PerPage is the number of users per page the Searcher returns. Defaults to search.DefaultPerPage.
	PerPage int
	// SlackSigningSecret is used to verify Slack requests. If blank, requests are not verified.
	SlackSigningSecret string
}

// Server routes all HTTP requests. Searches for the same session run one at a time: a new search cancels the previous one.
type Server struct {
	http.Handler
	Slack    *SlackHandler
	sessions search.Sessions
	states   auth.States
}

func New(cfg Config, logger *slog.Logger) *Server {
	s := Server{}
	s.Slack = &SlackHandler{
		Searcher: cfg.Searcher,
		Sessions: &s.sessions,
		Tokens:   cfg.Tokens,
		States:   &s.states,
		Login:    cfg.Exchanger,
		PerPage:  cfg.PerPage,
	}

	mux := http.NewServeMux()
	mux.Handle("GET /api/search", SearchHandler(cfg.Searcher, &s.sessions, cfg.Tokens.Default))
	if cfg.Exchanger != nil {
		mux.Handle("/auth", ExchangeHandler(cfg.Exchanger))
		mux.Handle("GET /auth/callback", CallbackHandler(cfg.Exchanger, &s.states, cfg.Tokens))
	}
	mux.Handle("POST /slack/command", SlackAuth(cfg.SlackSigningSecret)(s.Slack))
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.Handler = withLogger(logger)(mux)
	return &s
}

// withLogger returns an HTTP middleware that adds a logger to the context of the request.
// Each request gets a request_id: the X-Request-ID header if set, or a new one otherwise.
func withLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = xid.New().String()
			}
			l := logger.With(
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("X-Request-ID", requestID)
			next.ServeHTTP(w, r.WithContext(slogctx.NewWithContext(r.Context(), l)))
		})
	}
}
