package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/doowops/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// refreshTimeout bounds a detached refresh grant.
const refreshTimeout = 30 * time.Second

// TokenManager owns the single access/refresh token pair for the process.
//
// Refreshes are coalesced: concurrent callers that observe a rejected token share one in-flight refresh.
type TokenManager struct {
	config     *oauth2.Config
	httpClient *http.Client
	logger     *log.Logger

	mu      sync.RWMutex
	access  string
	refresh string

	flight singleflight.Group
}

// NewTokenManager creates a [TokenManager] for the given OAuth2 config.
//
// client is used for token endpoint calls and defaults to [http.DefaultClient].
func NewTokenManager(config *oauth2.Config, client *http.Client, logger *log.Logger) *TokenManager {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &TokenManager{
		config:     config,
		httpClient: client,
		logger:     shared.WithLogger(logger, "component", "tokens"),
	}
}

// AuthURL returns the provider authorization URL. forceConsent asks the provider to show the consent dialog again,
// which is needed when a previous exchange came back without a refresh token.
func (m *TokenManager) AuthURL(state string, forceConsent bool) string {
	if forceConsent {
		return m.config.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "true"))
	}
	return m.config.AuthCodeURL(state)
}

// Exchange performs the authorization-code grant and stores both tokens.
//
// A response without a refresh token is treated as a failed exchange: the caller must force re-consent.
func (m *TokenManager) Exchange(ctx context.Context, code string) error {
	if code == "" {
		return fmt.Errorf("%w: empty authorization code", shared.ErrExchangeFailed)
	}

	token, err := m.config.Exchange(m.tokenContext(ctx), code)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrExchangeFailed, err)
	}
	if token.RefreshToken == "" {
		return fmt.Errorf("%w: %w", shared.ErrExchangeFailed, shared.ErrNoRefreshToken)
	}

	m.mu.Lock()
	m.access = token.AccessToken
	m.refresh = token.RefreshToken
	m.mu.Unlock()

	m.logger.Info("authorization code exchanged")
	return nil
}

// SetTokens replaces the stored token pair.
func (m *TokenManager) SetTokens(access, refresh string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = access
	m.refresh = refresh
}

// Token returns the current access token or [shared.ErrUnauthenticated].
func (m *TokenManager) Token() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.access == "" {
		return "", shared.ErrUnauthenticated
	}
	return m.access, nil
}

// Authenticated reports whether an access token is held.
func (m *TokenManager) Authenticated() bool {
	_, err := m.Token()
	return err == nil
}

// Refresh performs the refresh grant.
//
// Fails with [shared.ErrNoRefreshToken] without any network call when no refresh token is held.
func (m *TokenManager) Refresh(ctx context.Context) error {
	return m.refreshFrom(ctx, "")
}

// refreshFrom refreshes unless the access token already differs from stale, which means another caller refreshed
// after stale was rejected. An empty stale always refreshes.
//
// The grant runs detached from ctx so a caller that gives up does not fail the refresh for the callers sharing it.
func (m *TokenManager) refreshFrom(ctx context.Context, stale string) error {
	detached := context.WithoutCancel(ctx)
	ch := m.flight.DoChan("refresh", func() (any, error) {
		ctx, cancel := context.WithTimeout(detached, refreshTimeout)
		defer cancel()

		m.mu.RLock()
		current, refresh := m.access, m.refresh
		m.mu.RUnlock()

		if stale != "" && current != stale {
			return nil, nil
		}
		if refresh == "" {
			return nil, shared.ErrNoRefreshToken
		}

		src := m.config.TokenSource(m.tokenContext(ctx), &oauth2.Token{RefreshToken: refresh})
		token, err := src.Token()
		if err != nil {
			m.logger.Error("token refresh failed", "err", err)
			return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
		}

		m.mu.Lock()
		m.access = token.AccessToken
		if token.RefreshToken != "" {
			m.refresh = token.RefreshToken
		}
		m.mu.Unlock()

		m.logger.Info("access token refreshed")
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs call with the current access token. If the provider rejects the token, Do refreshes once and retries
// the call once; a second rejection is returned as [shared.ErrAuthExpired].
func (m *TokenManager) Do(ctx context.Context, call func(ctx context.Context, token string) error) error {
	token, err := m.Token()
	if err != nil {
		return err
	}

	err = call(ctx, token)
	if !errors.Is(err, shared.ErrUnauthorized) {
		return err
	}

	m.logger.Warn("access token rejected, refreshing")
	if err := m.refreshFrom(ctx, token); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: %w", shared.ErrAuthExpired, err)
	}

	token, err = m.Token()
	if err != nil {
		return err
	}

	err = call(ctx, token)
	if errors.Is(err, shared.ErrUnauthorized) {
		return fmt.Errorf("%w: %w", shared.ErrAuthExpired, err)
	}
	return err
}

func (m *TokenManager) tokenContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}
