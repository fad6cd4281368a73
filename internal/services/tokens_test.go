package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/doowops/internal/shared"
	tu "github.com/desertthunder/doowops/internal/testing"
	"golang.org/x/oauth2"
)

func newTestTokenManager(t *testing.T, fake *tu.FakeSpotify) *TokenManager {
	t.Helper()
	config := &oauth2.Config{
		ClientID:     "test_client_id",
		ClientSecret: "test_client_secret",
		RedirectURL:  "http://localhost:5000/auth/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:   fake.AuthURL(),
			TokenURL:  fake.TokenURL(),
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	return NewTokenManager(config, fake.Server.Client(), shared.NewLogger(nil))
}

func TestTokenManager(t *testing.T) {
	ctx := context.Background()

	t.Run("Token", func(t *testing.T) {
		m := newTestTokenManager(t, tu.NewFakeSpotify(t))

		if _, err := m.Token(); !errors.Is(err, shared.ErrUnauthenticated) {
			t.Errorf("expected ErrUnauthenticated before exchange, got %v", err)
		}
		if m.Authenticated() {
			t.Error("expected manager to be unauthenticated")
		}

		m.SetTokens("a", "r")
		token, err := m.Token()
		if err != nil || token != "a" {
			t.Errorf("expected token a, got %q (%v)", token, err)
		}
	})

	t.Run("AuthURL", func(t *testing.T) {
		m := newTestTokenManager(t, tu.NewFakeSpotify(t))

		url := m.AuthURL("state-123", false)
		if !containsAll(url, "state=state-123", "client_id=test_client_id") {
			t.Errorf("unexpected auth url %s", url)
		}
		if containsAll(url, "show_dialog") {
			t.Errorf("did not expect show_dialog without forced consent: %s", url)
		}
		if forced := m.AuthURL("s", true); !containsAll(forced, "show_dialog=true") {
			t.Errorf("expected show_dialog=true, got %s", forced)
		}
	})

	t.Run("Exchange", func(t *testing.T) {
		t.Run("stores both tokens", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t)
			m := newTestTokenManager(t, fake)

			if err := m.Exchange(ctx, tu.ValidCode); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			access, refresh := fake.Tokens()
			if m.access != access || m.refresh != refresh {
				t.Errorf("expected tokens %s/%s, got %s/%s", access, refresh, m.access, m.refresh)
			}
		})

		tests := []struct {
			name  string
			code  string
			setup func(f *tu.FakeSpotify)
		}{
			{name: "empty code", code: ""},
			{name: "rejected code", code: "bogus"},
			{name: "missing refresh token", code: tu.ValidCode, setup: func(f *tu.FakeSpotify) { f.OmitRefreshToken(true) }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				fake := tu.NewFakeSpotify(t)
				if tt.setup != nil {
					tt.setup(fake)
				}
				m := newTestTokenManager(t, fake)

				if err := m.Exchange(ctx, tt.code); !errors.Is(err, shared.ErrExchangeFailed) {
					t.Errorf("expected ErrExchangeFailed, got %v", err)
				}
				if m.Authenticated() {
					t.Error("failed exchange must not store tokens")
				}
			})
		}
	})

	t.Run("Refresh", func(t *testing.T) {
		t.Run("without refresh token makes no network call", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t)
			m := newTestTokenManager(t, fake)
			m.SetTokens("a", "")

			if err := m.Refresh(ctx); !errors.Is(err, shared.ErrNoRefreshToken) {
				t.Errorf("expected ErrNoRefreshToken, got %v", err)
			}
			if fake.Refreshes() != 0 {
				t.Errorf("expected no refresh requests, got %d", fake.Refreshes())
			}
		})

		t.Run("keeps refresh token when provider omits it", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t)
			fake.OmitRefreshToken(true)
			m := newTestTokenManager(t, fake)
			m.SetTokens(fake.Tokens())

			if err := m.Refresh(ctx); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			access, _ := fake.Tokens()
			if m.access != access {
				t.Errorf("expected access token %s, got %s", access, m.access)
			}
			if m.refresh != "refresh-0" {
				t.Errorf("expected refresh token to be kept, got %s", m.refresh)
			}
		})

		t.Run("rotates refresh token when provided", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t)
			m := newTestTokenManager(t, fake)
			m.SetTokens(fake.Tokens())

			if err := m.Refresh(ctx); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if _, refresh := fake.Tokens(); m.refresh != refresh {
				t.Errorf("expected refresh token %s, got %s", refresh, m.refresh)
			}
		})

		t.Run("rejected refresh token", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t)
			m := newTestTokenManager(t, fake)
			m.SetTokens("a", "revoked")

			if err := m.Refresh(ctx); !errors.Is(err, shared.ErrRefreshFailed) {
				t.Errorf("expected ErrRefreshFailed, got %v", err)
			}
		})
	})

	t.Run("Do", func(t *testing.T) {
		// rejectStale fails with ErrUnauthorized unless the fake's current access token is used.
		rejectStale := func(fake *tu.FakeSpotify, calls *atomic.Int32) func(context.Context, string) error {
			return func(_ context.Context, token string) error {
				calls.Add(1)
				if access, _ := fake.Tokens(); token != access {
					return shared.ErrUnauthorized
				}
				return nil
			}
		}

		t.Run("passes through on success", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t)
			m := newTestTokenManager(t, fake)
			m.SetTokens(fake.Tokens())

			var calls atomic.Int32
			if err := m.Do(ctx, rejectStale(fake, &calls)); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if calls.Load() != 1 || fake.Refreshes() != 0 {
				t.Errorf("expected 1 call and 0 refreshes, got %d and %d", calls.Load(), fake.Refreshes())
			}
		})

		t.Run("unauthenticated", func(t *testing.T) {
			m := newTestTokenManager(t, tu.NewFakeSpotify(t))
			err := m.Do(ctx, func(context.Context, string) error {
				t.Error("call must not run without a token")
				return nil
			})
			if !errors.Is(err, shared.ErrUnauthenticated) {
				t.Errorf("expected ErrUnauthenticated, got %v", err)
			}
		})

		t.Run("refreshes once and retries once", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t)
			m := newTestTokenManager(t, fake)
			m.SetTokens("stale", "refresh-0")

			var calls atomic.Int32
			if err := m.Do(ctx, rejectStale(fake, &calls)); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if calls.Load() != 2 {
				t.Errorf("expected 2 calls, got %d", calls.Load())
			}
			if fake.Refreshes() != 1 {
				t.Errorf("expected 1 refresh, got %d", fake.Refreshes())
			}
		})

		t.Run("second rejection is terminal", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t)
			m := newTestTokenManager(t, fake)
			m.SetTokens(fake.Tokens())

			var calls int
			err := m.Do(ctx, func(context.Context, string) error {
				calls++
				return shared.ErrUnauthorized
			})
			if !errors.Is(err, shared.ErrAuthExpired) {
				t.Errorf("expected ErrAuthExpired, got %v", err)
			}
			if calls != 2 || fake.Refreshes() != 1 {
				t.Errorf("expected 2 calls and 1 refresh, got %d and %d", calls, fake.Refreshes())
			}
		})

		t.Run("failed refresh is terminal", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t)
			m := newTestTokenManager(t, fake)
			m.SetTokens("stale", "")

			var calls atomic.Int32
			err := m.Do(ctx, rejectStale(fake, &calls))
			if !errors.Is(err, shared.ErrAuthExpired) || !errors.Is(err, shared.ErrNoRefreshToken) {
				t.Errorf("expected ErrAuthExpired wrapping ErrNoRefreshToken, got %v", err)
			}
			if calls.Load() != 1 {
				t.Errorf("expected no retry after failed refresh, got %d calls", calls.Load())
			}
		})

		t.Run("other errors are not retried", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t)
			m := newTestTokenManager(t, fake)
			m.SetTokens(fake.Tokens())

			var calls int
			err := m.Do(ctx, func(context.Context, string) error {
				calls++
				return fmt.Errorf("%w: boom", shared.ErrUpstreamUnavailable)
			})
			if !errors.Is(err, shared.ErrUpstreamUnavailable) {
				t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
			}
			if calls != 1 || fake.Refreshes() != 0 {
				t.Errorf("expected 1 call and no refresh, got %d and %d", calls, fake.Refreshes())
			}
		})

		t.Run("coalesces concurrent refreshes", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t)
			m := newTestTokenManager(t, fake)
			m.SetTokens("stale", "refresh-0")

			var calls atomic.Int32
			var wg sync.WaitGroup
			errs := make(chan error, 16)
			for range 16 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs <- m.Do(ctx, rejectStale(fake, &calls))
				}()
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
			}
			if fake.Refreshes() != 1 {
				t.Errorf("expected exactly 1 refresh, got %d", fake.Refreshes())
			}
		})

		t.Run("a canceled caller does not fail a shared refresh", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t)
			m := newTestTokenManager(t, fake)
			m.SetTokens("stale", "refresh-0")
			entered, release := fake.HoldTokens()
			defer release()

			var calls atomic.Int32
			canceled, cancel := context.WithCancel(ctx)
			first := make(chan error, 1)
			go func() { first <- m.Do(canceled, rejectStale(fake, &calls)) }()
			<-entered

			second := make(chan error, 1)
			go func() { second <- m.Do(ctx, rejectStale(fake, &calls)) }()

			cancel()
			err := <-first
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled for the canceled caller, got %v", err)
			}
			if errors.Is(err, shared.ErrAuthExpired) {
				t.Error("a canceled caller must not be told to re-authenticate")
			}

			release()
			if err := <-second; err != nil {
				t.Errorf("expected the live caller to succeed, got %v", err)
			}
			if fake.Refreshes() != 1 {
				t.Errorf("expected exactly 1 refresh, got %d", fake.Refreshes())
			}
		})
	})
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
