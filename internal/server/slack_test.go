package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/clambin/github-bio-search/internal/auth"
	"github.com/clambin/github-bio-search/internal/github"
	"github.com/clambin/github-bio-search/internal/search"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackAuth(t *testing.T) {
	const secret = "signing-secret"
	const body = "user_id=U123&text=engineer"
	now := time.Now()

	tests := []struct {
		name      string
		secret    string
		signWith  string
		timestamp time.Time
		want      int
	}{
		{"valid signature", secret, secret, now, http.StatusOK},
		{"invalid signature", secret, "invalid-secret", now, http.StatusUnauthorized},
		{"expired timestamp", secret, secret, now.Add(-time.Hour), http.StatusUnauthorized},
		{"missing signature", secret, "", now, http.StatusUnauthorized},
		{"not verified", "", "", now, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := SlackAuth(tt.secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				received, _ := io.ReadAll(r.Body)
				if string(received) != body {
					http.Error(w, "unexpected body", http.StatusBadRequest)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))

			r := httptest.NewRequest(http.MethodPost, "/slack/command", strings.NewReader(body))
			if tt.signWith != "" {
				signSlackRequest(r, []byte(body), tt.signWith, tt.timestamp)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSlackHandler_Commands(t *testing.T) {
	tests := []struct {
		name     string
		login    interface{ AuthURL(string) string }
		signedIn bool
		text     string
		want     string
	}{
		{
			name: "help",
			text: "help",
			want: "Usage: `/bio <keyword> [location:<location>] [language:<language>] [sort:followers|repositories|stars] [page:<n>]`, `/bio login` or `/bio logout`",
		},
		{
			name: "empty",
			text: "",
			want: "Usage: `/bio <keyword> [location:<location>] [language:<language>] [sort:followers|repositories|stars] [page:<n>]`, `/bio login` or `/bio logout`",
		},
		{
			name: "login not available",
			text: "login",
			want: "Signing in with GitHub is not available.",
		},
		{
			name: "logout when not signed in",
			text: "logout",
			want: "You are not signed in.",
		},
		{
			name:     "logout",
			signedIn: true,
			text:     "logout",
			want:     "You are signed out.",
		},
		{
			name: "search without token",
			text: "engineer",
			want: "Please sign in first: `/bio login`",
		},
		{
			name:     "invalid sort",
			signedIn: true,
			text:     "engineer sort:name",
			want:     "invalid search: unsupported sort option \"name\"\nUsage: `/bio <keyword> [location:<location>] [language:<language>] [sort:followers|repositories|stars] [page:<n>]`, `/bio login` or `/bio logout`",
		},
		{
			name:     "empty keyword",
			signedIn: true,
			text:     "location:Berlin",
			want:     "invalid search: keyword is required\nUsage: `/bio <keyword> [location:<location>] [language:<language>] [sort:followers|repositories|stars] [page:<n>]`, `/bio login` or `/bio logout`",
		},
		{
			name: "unbalanced quotes",
			text: `engineer "location:New York`,
			want: "Could not parse your command: invalid command line string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := auth.NewStore(t.TempDir(), nil)
			if tt.signedIn {
				require.NoError(t, tokens.Set("U123", "user-token"))
			}
			h := SlackHandler{
				Searcher: &fakeSearcher{},
				Sessions: &search.Sessions{},
				Tokens:   tokens,
				States:   &auth.States{},
				Login:    tt.login,
			}

			msg := postCommand(t, &h, tt.text, "https://example.com/response")
			assert.Equal(t, slack.ResponseTypeEphemeral, msg.ResponseType)
			assert.Equal(t, tt.want, msg.Text)
		})
	}
}

func TestSlackHandler_Login(t *testing.T) {
	states := auth.States{}
	h := SlackHandler{
		Searcher: &fakeSearcher{},
		Sessions: &search.Sessions{},
		Tokens:   auth.NewStore(t.TempDir(), nil),
		States:   &states,
		Login:    fakeExchanger{},
	}

	msg := postCommand(t, &h, "login", "https://example.com/response")
	assert.True(t, strings.HasPrefix(msg.Text, "<https://github.com/login/oauth/authorize?state="))
	assert.Equal(t, 1, states.Len())

	state := strings.TrimPrefix(strings.SplitN(msg.Text, "|", 2)[0], "<https://github.com/login/oauth/authorize?state=")
	user, ok := states.Resolve(state)
	assert.True(t, ok)
	assert.Equal(t, "U123", user)
}

func TestSlackHandler_Search(t *testing.T) {
	var webhook fakeSlackWebhook
	ts := httptest.NewServer(&webhook)
	t.Cleanup(ts.Close)

	s := fakeSearcher{result: search.Result{
		Users:      []search.User{{User: github.User{Login: "user1", Name: "User One", HTMLURL: "https://github.com/user1", Bio: "Engineer"}}},
		TotalCount: 1,
		Page:       1,
		PerPage:    12,
		TotalPages: 1,
	}}
	h := SlackHandler{
		Searcher: &s,
		Sessions: &search.Sessions{},
		Tokens:   auth.NewStore(t.TempDir(), auth.Static("default")),
		States:   &auth.States{},
	}

	msg := postCommand(t, &h, `engineer "location:New York" language:go sort:followers`, ts.URL)
	assert.Equal(t, "Searching for \"engineer\"…", msg.Text)
	h.Wait()

	token, q := s.lastCall()
	assert.Equal(t, "default", token)
	assert.Equal(t, search.Query{
		Filters: search.Filters{Keyword: "engineer", Location: "New York", Language: "go"},
		Sort:    search.SortFollowers,
	}, q)

	want := []string{"*1 users found* · showing 1-1 of 1\n• *<https://github.com/user1|User One>* (@user1) · 0 followers · 0 repos\n>*Engineer*\n"}
	assert.Equal(t, want, webhook.received())
}

func TestSlackHandler_Search_PageOutOfRange(t *testing.T) {
	var s fakeSearcher
	h := SlackHandler{
		Searcher: &s,
		Sessions: &search.Sessions{},
		Tokens:   auth.NewStore(t.TempDir(), auth.Static("default")),
		States:   &auth.States{},
		PerPage:  100,
	}

	// at 100 users per page, page 11 starts beyond the first 1000 results
	msg := postCommand(t, &h, "engineer page:11", "https://example.com/response")
	assert.True(t, strings.HasPrefix(msg.Text, "invalid search: page 11 is beyond the first 1000 results\n"), msg.Text)
	h.Wait()
	assert.Zero(t, s.calls())
}

func TestSlackHandler_Search_Failed(t *testing.T) {
	var webhook fakeSlackWebhook
	ts := httptest.NewServer(&webhook)
	t.Cleanup(ts.Close)

	h := SlackHandler{
		Searcher: &fakeSearcher{err: &search.UpstreamError{StatusCode: http.StatusForbidden, Err: io.EOF}},
		Sessions: &search.Sessions{},
		Tokens:   auth.NewStore(t.TempDir(), auth.Static("default")),
		States:   &auth.States{},
	}

	_ = postCommand(t, &h, "engineer", ts.URL)
	h.Wait()
	assert.Equal(t, []string{"Search failed: github search failed (status 403): EOF"}, webhook.received())
}

func TestSlackHandler_Search_Superseded(t *testing.T) {
	var webhook fakeSlackWebhook
	ts := httptest.NewServer(&webhook)
	t.Cleanup(ts.Close)

	s := fakeSearcher{result: search.Result{Page: 1, PerPage: 12}}
	h := SlackHandler{
		Searcher: &s,
		Sessions: &search.Sessions{},
		Tokens:   auth.NewStore(t.TempDir(), auth.Static("default")),
		States:   &auth.States{},
	}

	_ = postCommand(t, &h, "slow", ts.URL)
	require.Eventually(t, func() bool { return s.calls() == 1 }, time.Second, time.Millisecond)
	_ = postCommand(t, &h, "fast", ts.URL)
	h.Wait()

	// only the newest search is reported
	assert.Equal(t, []string{NoUsersFound}, webhook.received())
}

func TestParseSlackQuery(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    search.Query
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name:    "keyword",
			args:    []string{"site", "reliability"},
			want:    search.Query{Filters: search.Filters{Keyword: "site reliability"}},
			wantErr: assert.NoError,
		},
		{
			name: "filters",
			args: []string{"engineer", "Location:Berlin", "language:Go", "topic:k8s", "sort:stars", "page:3"},
			want: search.Query{
				Filters: search.Filters{Keyword: "engineer", Location: "Berlin", Language: "Go", Topics: []string{"k8s"}},
				Page:    3,
				Sort:    search.SortStars,
			},
			wantErr: assert.NoError,
		},
		{
			name:    "unknown prefix is part of the keyword",
			args:    []string{"c++", "fan:yes"},
			want:    search.Query{Filters: search.Filters{Keyword: "c++ fan:yes"}},
			wantErr: assert.NoError,
		},
		{
			name:    "invalid page",
			args:    []string{"engineer", "page:two"},
			wantErr: assert.Error,
		},
		{
			name:    "invalid sort",
			args:    []string{"engineer", "sort:name"},
			wantErr: assert.Error,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := parseSlackQuery(tt.args)
			tt.wantErr(t, err)
			assert.Equal(t, tt.want, q)
		})
	}
}

func postCommand(t *testing.T, h http.Handler, text, responseURL string) slack.WebhookMessage {
	t.Helper()
	form := url.Values{
		"user_id":      {"U123"},
		"command":      {"/bio"},
		"text":         {text},
		"response_url": {responseURL},
	}
	r := httptest.NewRequest(http.MethodPost, "/slack/command", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	return decode[slack.WebhookMessage](t, w.Body)
}

func signSlackRequest(r *http.Request, body []byte, secret string, timestamp time.Time) {
	ts := strconv.FormatInt(timestamp.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte("v0:" + ts + ":"))
	_, _ = mac.Write(body)
	r.Header.Set("X-Slack-Request-Timestamp", ts)
	r.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
}
