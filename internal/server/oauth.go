package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/doowops/internal/shared"
)

const stateTTL = 10 * time.Minute

const successPage = `
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Authorization Successful</h1>
        <p>%s</p>
    </div>
</body>
</html>
`

// Exchanger completes an authorization-code grant.
type Exchanger interface {
	Exchange(ctx context.Context, code string) error
}

// AuthHandler serves the browser sign-in routes of the game server.
//
// Login redirects to the provider with a fresh state; the callback checks that state, exchanges the code, and
// hands the access token to the frontend in the URL fragment. An exchange without a refresh token restarts the
// login with the consent dialog forced.
type AuthHandler struct {
	auth        Authenticator
	frontendURL string
	logger      *log.Logger

	mu     sync.Mutex
	states map[string]time.Time
	now    func() time.Time
}

// NewAuthHandler creates an [AuthHandler]. An empty frontendURL renders a success page instead of redirecting.
func NewAuthHandler(auth Authenticator, frontendURL string, logger *log.Logger) *AuthHandler {
	return &AuthHandler{
		auth:        auth,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
		states:      make(map[string]time.Time),
		now:         time.Now,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *AuthHandler) Routes() []string {
	return []string{"GET /auth/login", "GET /auth/callback", "GET /auth/status", "GET /auth/token"}
}

func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/auth/login":
		h.login(w, r)
	case "/auth/callback":
		h.callback(w, r)
	case "/auth/status":
		writeJSON(w, http.StatusOK, map[string]bool{"authenticated": h.auth.Authenticated()})
	case "/auth/token":
		token, err := h.auth.Token()
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
	default:
		http.NotFound(w, r)
	}
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	state := shared.GenerateID()
	consent := r.URL.Query().Get("consent") != ""

	h.mu.Lock()
	now := h.now()
	for s, issued := range h.states {
		if now.Sub(issued) > stateTTL {
			delete(h.states, s)
		}
	}
	h.states[state] = now
	h.mu.Unlock()

	http.Redirect(w, r, h.auth.AuthURL(state, consent), http.StatusFound)
}

func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if !h.consumeState(q.Get("state")) {
		writeError(w, h.logger, fmt.Errorf("%w: %w", shared.ErrInvalidArgument, shared.ErrInvalidState))
		return
	}

	code := q.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: authorization failed: %s", shared.ErrInvalidArgument, q.Get("error"))
		writeError(w, h.logger, err)
		return
	}

	if err := h.auth.Exchange(r.Context(), code); err != nil {
		if errors.Is(err, shared.ErrNoRefreshToken) {
			h.logger.Warn("no refresh token issued, forcing consent")
			http.Redirect(w, r, "/auth/login?consent=1", http.StatusFound)
			return
		}
		h.logger.Error("token exchange failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}

	if h.frontendURL == "" {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, successPage, "You can close this window and return to the game.")
		return
	}

	token, err := h.auth.Token()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	fragment := url.Values{"access_token": {token}}.Encode()
	http.Redirect(w, r, h.frontendURL+"/#"+fragment, http.StatusFound)
}

func (h *AuthHandler) consumeState(state string) bool {
	if state == "" {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	issued, ok := h.states[state]
	delete(h.states, state)
	return ok && h.now().Sub(issued) <= stateTTL
}

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	err error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler handles the single callback of a command-line authorization flow.
// Implements the Handler interface for registration with a Router.
type OAuthHandler struct {
	exchanger   Exchanger
	state       string
	route       string
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a callback handler serving path. The state token should be cryptographically random for
// CSRF protection.
func NewOAuthHandler(exchanger Exchanger, state, path string) *OAuthHandler {
	if path == "" {
		path = "/auth/callback"
	}
	return &OAuthHandler{
		exchanger:  exchanger,
		state:      state,
		route:      path,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"GET " + h.route}
}

// ServeHTTP validates the state parameter, exchanges the authorization code, and sends the result through the
// result channel. Only the first callback is processed.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	state := r.URL.Query().Get("state")
	if state != h.state {
		h.Send(OAuthResult{err: shared.ErrInvalidState})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		errDesc := r.URL.Query().Get("error_description")
		err := fmt.Errorf("%w: authorization failed: %s - %s", shared.ErrExchangeFailed, errParam, errDesc)
		h.Send(OAuthResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	if err := h.exchanger.Exchange(r.Context(), code); err != nil {
		h.Send(OAuthResult{err: err})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	h.Send(OAuthResult{})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, successPage, "You can close this window and return to the terminal.")
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}
