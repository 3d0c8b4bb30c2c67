package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/clambin/github-bio-search/internal/auth"
	"github.com/clambin/github-bio-search/internal/search"
	"github.com/clambin/github-bio-search/slogctx"
	"github.com/mattn/go-shellwords"
	"github.com/slack-go/slack"
)

// SlackAuth is an HTTP middleware that verifies the signature Slack adds to each request.
// If secret is blank, requests are passed on unverified.
func SlackAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := slogctx.FromContext(r.Context())
			verifier, err := slack.NewSecretsVerifier(r.Header, secret)
			if err != nil {
				logger.Warn("invalid slack request", "err", err)
				http.Error(w, "Invalid signature", http.StatusUnauthorized)
				return
			}
			body, err := io.ReadAll(io.TeeReader(r.Body, &verifier))
			if err != nil {
				http.Error(w, "Failed to read body", http.StatusInternalServerError)
				return
			}
			defer func() { _ = r.Body.Close() }()
			if err = verifier.Ensure(); err != nil {
				logger.Warn("invalid slack signature", "err", err)
				http.Error(w, "Invalid signature", http.StatusUnauthorized)
				return
			}
			// Restore the body and call the next handler
			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

// SlackHandler handles the Slack slash command:
//
//	/<command> login
//	/<command> logout
//	/<command> <keyword> [location:<location>] [language:<language>] [sort:<sort>] [page:<page>]
//
// Searches run in the background: the command is acknowledged immediately and the results are posted to the
// command's response URL. A new search by the same Slack user cancels the one in flight.
type SlackHandler struct {
	Searcher Searcher
	Sessions *search.Sessions
	Tokens   *auth.Store
	States   *auth.States
	// Login starts a GitHub sign-in. If nil, users can't sign in from Slack.
	Login interface{ AuthURL(state string) string }
	// PerPage is the page size the Searcher uses, so that out-of-range pages are rejected before the search starts.
	PerPage int
	// Timeout caps the time to complete a search in the background. Defaults to one minute.
	Timeout time.Duration
	wg      sync.WaitGroup
}

const defaultSlackTimeout = time.Minute

func (h *SlackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		http.Error(w, "invalid slash command", http.StatusBadRequest)
		return
	}
	ctx = slogctx.With(ctx, "user", cmd.UserID, "command", cmd.Command)
	logger := slogctx.FromContext(ctx)
	logger.Debug("slash command received", "text", cmd.Text)

	args, err := shellwords.Parse(cmd.Text)
	if err != nil {
		replySlack(w, "Could not parse your command: "+err.Error())
		return
	}

	switch {
	case len(args) == 0 || (len(args) == 1 && args[0] == "help"):
		replySlack(w, usage(cmd.Command))
	case len(args) == 1 && args[0] == "login":
		replySlack(w, h.login(cmd))
	case len(args) == 1 && args[0] == "logout":
		replySlack(w, h.logout(ctx, cmd))
	default:
		replySlack(w, h.search(ctx, cmd, args))
	}
}

// Wait waits for all background searches to complete.
func (h *SlackHandler) Wait() {
	h.wg.Wait()
}

func (h *SlackHandler) login(cmd slack.SlashCommand) string {
	if h.Login == nil {
		return "Signing in with GitHub is not available."
	}
	state := h.States.New(cmd.UserID)
	return "<" + h.Login.AuthURL(state) + "|Sign in with GitHub>. The link is valid for " + auth.DefaultStateTTL.String() + "."
}

func (h *SlackHandler) logout(ctx context.Context, cmd slack.SlashCommand) string {
	deleted, err := h.Tokens.Delete(cmd.UserID)
	if err != nil {
		slogctx.FromContext(ctx).Error("failed to delete token", "err", err)
		return "Failed to sign out. Please try again later."
	}
	if !deleted {
		return "You are not signed in."
	}
	return "You are signed out."
}

func (h *SlackHandler) search(ctx context.Context, cmd slack.SlashCommand, args []string) string {
	q, err := parseSlackQuery(args)
	if err == nil {
		_, err = search.NewRequest(q, h.PerPage)
	}
	if err != nil {
		return err.Error() + "\n" + usage(cmd.Command)
	}
	token, ok := h.Tokens.For(cmd.UserID).Token()
	if !ok {
		return "Please sign in first: `" + cmd.Command + " login`"
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = defaultSlackTimeout
	}
	// the search outlives the slash command request
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer cancel()
		h.runSearch(ctx, cmd, token, q)
	}()
	return "Searching for \"" + strings.TrimSpace(q.Keyword) + "\"…"
}

func (h *SlackHandler) runSearch(ctx context.Context, cmd slack.SlashCommand, token string, q search.Query) {
	logger := slogctx.FromContext(ctx)
	result, err := h.Sessions.Run(ctx, "slack:"+cmd.UserID, func(ctx context.Context) (search.Result, error) {
		return h.Searcher.Search(ctx, token, q)
	})
	var text string
	switch {
	case errors.Is(err, search.ErrSuperseded):
		logger.Debug("search superseded")
		return
	case errors.Is(err, search.ErrAuthRequired):
		text = "Please sign in first: `" + cmd.Command + " login`"
	case err != nil:
		logger.Warn("search failed", "err", err)
		text = "Search failed: " + err.Error()
	default:
		text = renderResult(result, q, cmd.Command)
	}

	err = slack.PostWebhookContext(ctx, cmd.ResponseURL, &slack.WebhookMessage{
		Text:         text,
		ResponseType: slack.ResponseTypeEphemeral,
		UnfurlLinks:  false,
	})
	if err != nil {
		logger.Warn("failed to post search results", "err", err)
	}
}

// parseSlackQuery converts the command's arguments to a search query. Arguments with a known prefix set a filter;
// all other arguments make up the keyword.
func parseSlackQuery(args []string) (search.Query, error) {
	var q search.Query
	var keyword []string
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, ":")
		if !ok {
			keyword = append(keyword, arg)
			continue
		}
		var err error
		switch strings.ToLower(name) {
		case "location":
			q.Location = value
		case "language":
			q.Language = value
		case "topic":
			q.Topics = append(q.Topics, value)
		case "sort":
			q.Sort, err = search.ParseSortOption(value)
		case "page":
			if q.Page, err = strconv.Atoi(value); err != nil {
				err = fmt.Errorf("invalid page: %q", value)
			}
		default:
			keyword = append(keyword, arg)
		}
		if err != nil {
			return search.Query{}, err
		}
	}
	q.Keyword = strings.Join(keyword, " ")
	return q, nil
}

func usage(command string) string {
	if command == "" {
		command = "/bio"
	}
	return "Usage: `" + command + " <keyword> [location:<location>] [language:<language>] [sort:followers|repositories|stars] [page:<n>]`, " +
		"`" + command + " login` or `" + command + " logout`"
}

func replySlack(w http.ResponseWriter, text string) {
	writeJSON(w, http.StatusOK, slack.WebhookMessage{ResponseType: slack.ResponseTypeEphemeral, Text: text})
}
