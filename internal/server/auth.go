package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clambin/github-bio-search/internal/auth"
	"github.com/clambin/github-bio-search/slogctx"
)

// ExchangeHandler exchanges the authorization code for an access token and returns the token to the caller.
// The code is read from the JSON body of a POST request, or from the code query parameter of a GET request.
func ExchangeHandler(e auth.CodeExchanger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := slogctx.FromContext(r.Context())

		var code string
		switch r.Method {
		case http.MethodPost:
			var body struct {
				Code string `json:"code"`
			}
			// a body that can't be parsed has no code
			_ = json.NewDecoder(r.Body).Decode(&body)
			code = body.Code
		case http.MethodGet:
			code = r.URL.Query().Get("code")
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		token, err := e.Exchange(r.Context(), code)
		var authErr *auth.AuthError
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, token)
		case errors.Is(err, auth.ErrMissingCode):
			writeError(w, http.StatusBadRequest, "Bad Request: Missing code parameter")
		case errors.As(err, &authErr):
			logger.Warn("token exchange rejected", "code", authErr.Code, "err", err)
			writeError(w, http.StatusBadRequest, authErr.Error())
		default:
			logger.Error("token exchange failed", "err", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
		}
	})
}

// CallbackHandler completes a sign-in started with auth.States.New: it exchanges the code for a token
// and stores it for the user who started the sign-in.
func CallbackHandler(e auth.CodeExchanger, states *auth.States, store *auth.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := slogctx.FromContext(r.Context())

		user, ok := states.Resolve(r.URL.Query().Get("state"))
		if !ok {
			logger.Warn("unknown or expired sign-in state")
			http.Error(w, "Sign-in expired. Please sign in again.", http.StatusBadRequest)
			return
		}
		logger = logger.With("user", user)

		token, err := e.Exchange(r.Context(), r.URL.Query().Get("code"))
		if err != nil {
			logger.Warn("token exchange failed", "err", err)
			status := http.StatusBadRequest
			var authErr *auth.AuthError
			if !errors.Is(err, auth.ErrMissingCode) && !errors.As(err, &authErr) {
				status = http.StatusBadGateway
			}
			http.Error(w, "Sign-in failed: "+err.Error(), status)
			return
		}
		if err = store.Set(user, token.AccessToken); err != nil {
			logger.Error("failed to store token", "err", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		logger.Info("user signed in")
		_, _ = w.Write([]byte("Signed in to GitHub. You can close this window.\n"))
	})
}
