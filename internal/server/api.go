package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/clambin/github-bio-search/internal/auth"
	"github.com/clambin/github-bio-search/internal/search"
	"github.com/clambin/github-bio-search/slogctx"
)

// NoUsersFound is shown when a search has no results.
const NoUsersFound = "No users found matching your search criteria."

// statusClientClosedRequest is returned when the caller went away before the search completed.
const statusClientClosedRequest = 499

type searchResponse struct {
	search.Result
	Pages   []search.PageLink `json:"pages"`
	First   int               `json:"first"`
	Last    int               `json:"last"`
	Message string            `json:"message,omitempty"`
}

// SearchHandler serves GET /api/search?q=<keyword>&location=<location>&language=<language>&sort=<sort>&page=<page>.
//
// The GitHub token is taken from the Authorization header. If there is none, the default token is used.
// Requests with the same X-Session-ID header supersede each other: a new search cancels the one in flight,
// which fails with 409 Conflict.
func SearchHandler(s Searcher, sessions *search.Sessions, defaultToken auth.Provider) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := slogctx.FromContext(ctx)

		q, err := parseQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		token := bearerToken(r)
		if token == "" && defaultToken != nil {
			token, _ = defaultToken.Token()
		}
		var key string
		if session := r.Header.Get("X-Session-ID"); session != "" {
			key = "api:" + session
		}

		result, err := sessions.Run(ctx, key, func(ctx context.Context) (search.Result, error) {
			return s.Search(ctx, token, q)
		})
		if err != nil {
			status := statusCode(err)
			if status >= http.StatusInternalServerError {
				logger.Error("search failed", "err", err)
			} else {
				logger.Debug("search rejected", "err", err)
			}
			writeError(w, status, err.Error())
			return
		}

		resp := searchResponse{
			Result: result,
			Pages:  search.Pages(result.Page, result.TotalPages),
		}
		resp.First, resp.Last = search.Shown(result.Page, result.PerPage, result.TotalCount)
		if len(resp.Users) == 0 {
			resp.Users = []search.User{}
			resp.Pages = []search.PageLink{}
			resp.Message = NoUsersFound
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

func parseQuery(r *http.Request) (search.Query, error) {
	values := r.URL.Query()
	q := search.Query{Filters: search.Filters{
		Keyword:  values.Get("q"),
		Location: values.Get("location"),
		Language: values.Get("language"),
		Topics:   values["topic"],
	}}
	var err error
	if q.Sort, err = search.ParseSortOption(values.Get("sort")); err != nil {
		return search.Query{}, err
	}
	if page := values.Get("page"); page != "" {
		if q.Page, err = strconv.Atoi(page); err != nil {
			return search.Query{}, errors.New("invalid page: " + page)
		}
	}
	return q, nil
}

func bearerToken(r *http.Request) string {
	const prefix = "bearer "
	header := r.Header.Get("Authorization")
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func statusCode(err error) int {
	var upstreamErr *search.UpstreamError
	switch {
	case errors.Is(err, search.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, search.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, search.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.As(err, &upstreamErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}
