package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/doowops/internal/server"
	"github.com/desertthunder/doowops/internal/services"
	"github.com/desertthunder/doowops/internal/shared"
)

const authTimeout = 2 * time.Minute

// authorize returns an authenticated Spotify client, running the browser authorization flow when no token is held.
// Tokens live in memory only, so each command invocation signs in once.
func (r *Runner) authorize(ctx context.Context) (*services.SpotifyService, error) {
	svc, err := r.service()
	if err != nil {
		return nil, err
	}
	if svc.Tokens().Authenticated() {
		return svc, nil
	}
	if err := r.doOAuth(ctx, svc.Tokens()); err != nil {
		return nil, err
	}
	return svc, nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server on the configured redirect URI.
func (r *Runner) doOAuth(ctx context.Context, tokens *services.TokenManager) error {
	redirect, err := url.Parse(r.config.Credentials.Spotify.RedirectURI)
	if err != nil || redirect.Host == "" {
		return fmt.Errorf("%w: redirect_uri %q", shared.ErrInvalidConfig, r.config.Credentials.Spotify.RedirectURI)
	}

	state := shared.GenerateID()
	authURL := tokens.AuthURL(state, false)
	oauthHandler := server.NewOAuthHandler(tokens, state, redirect.Path)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return fmt.Errorf("failed to listen for the OAuth callback: %w", err)
	}
	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", redirect.Host)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := r.openURL(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return fmt.Errorf("%w: authorization after %v", shared.ErrTimeout, authTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := result.Error(); err != nil {
		if errors.Is(err, shared.ErrNoRefreshToken) {
			return fmt.Errorf("authorization failed, revoke the app's access in your Spotify account and retry: %w", err)
		}
		return fmt.Errorf("authorization failed: %w", err)
	}

	r.writePlain("✓ Authorization successful\n")
	return nil
}
