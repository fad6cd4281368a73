package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/doowops/internal/models"
	"github.com/desertthunder/doowops/internal/shared"
	tu "github.com/desertthunder/doowops/internal/testing"
	"golang.org/x/oauth2"
)

var testCredentials = map[string]string{
	"client_id":     "test_client_id",
	"client_secret": "test_client_secret",
	"redirect_uri":  "http://localhost:5000/auth/callback",
}

// newTestService returns a service pointed at fake with the fake's current tokens installed.
func newTestService(t *testing.T, fake *tu.FakeSpotify, pageSize int) *SpotifyService {
	t.Helper()
	srv, err := NewSpotifyService(testCredentials, SpotifyOpts{
		BaseURL:    fake.URL(),
		Endpoint:   oauth2.Endpoint{AuthURL: fake.AuthURL(), TokenURL: fake.TokenURL()},
		HTTPClient: fake.Server.Client(),
		PageSize:   pageSize,
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	srv.Tokens().SetTokens(fake.Tokens())
	return srv
}

func TestSpotifyService(t *testing.T) {
	ctx := context.Background()

	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(testCredentials, SpotifyOpts{})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
			if srv.pageSize != 100 {
				t.Errorf("expected default page size 100, got %d", srv.pageSize)
			}
			if srv.baseURL != spotifyBaseURL {
				t.Errorf("expected default base url, got %s", srv.baseURL)
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_secret": "s"}, SpotifyOpts{})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_id": "c"}, SpotifyOpts{})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Default Redirect URI", func(t *testing.T) {
			srv, err := NewSpotifyService(map[string]string{"client_id": "c", "client_secret": "s"}, SpotifyOpts{})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.tokens.config.RedirectURL != "http://localhost:5000/auth/callback" {
				t.Errorf("expected default redirect URI, got %s", srv.tokens.config.RedirectURL)
			}
		})

		t.Run("Oversized Page", func(t *testing.T) {
			srv, _ := NewSpotifyService(testCredentials, SpotifyOpts{PageSize: 500})
			if srv.pageSize != 100 {
				t.Errorf("expected page size capped at 100, got %d", srv.pageSize)
			}
		})
	})

	t.Run("AuthURL", func(t *testing.T) {
		srv, _ := NewSpotifyService(testCredentials, SpotifyOpts{})
		authURL := srv.Tokens().AuthURL("test_state", false)

		if !strings.Contains(authURL, "accounts.spotify.com") {
			t.Error("auth URL should contain Spotify domain")
		}
		if !strings.Contains(authURL, "test_state") {
			t.Error("auth URL should contain state")
		}
		if !strings.Contains(authURL, "streaming") || !strings.Contains(authURL, "user-modify-playback-state") {
			t.Errorf("auth URL should request playback scopes: %s", authURL)
		}
	})

	t.Run("PlaylistTracks", func(t *testing.T) {
		t.Run("paginates until an empty page", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t)
			fake.AddPlaylist("pl", "Party", tu.Tracks(5))
			srv := newTestService(t, fake, 2)

			tracks, err := srv.PlaylistTracks(ctx, "pl")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if len(tracks) != 5 {
				t.Fatalf("expected 5 tracks, got %d", len(tracks))
			}
			for i, track := range tracks {
				want := tu.Tracks(5)[i]
				if track.URI != want.URI || track.Name != want.Name {
					t.Errorf("track %d: expected %s, got %s", i, want.URI, track.URI)
				}
			}
			if tracks[0].ArtistLine() != "Artist 0" || tracks[0].Cover() == "" {
				t.Errorf("expected artists and cover to be mapped, got %+v", tracks[0])
			}

			// offsets 0, 2, 4 and the terminating empty page at 5
			if fake.PageRequests() != 4 {
				t.Errorf("expected 4 page requests, got %d: %v", fake.PageRequests(), fake.Requests())
			}
		})

		t.Run("skips removed and local items", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t)
			fake.AddPlaylist("pl", "Party", tu.Tracks(2))
			fake.AddUnplayable("pl")
			srv := newTestService(t, fake, 100)

			tracks, err := srv.PlaylistTracks(ctx, "pl")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 2 {
				t.Errorf("expected 2 playable tracks, got %d", len(tracks))
			}
		})

		t.Run("unknown playlist", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t)
			srv := newTestService(t, fake, 100)

			if _, err := srv.PlaylistTracks(ctx, "missing"); !errors.Is(err, shared.ErrPlaylistNotFound) {
				t.Errorf("expected ErrPlaylistNotFound, got %v", err)
			}
		})

		t.Run("refreshes once on expired token", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t)
			fake.AddPlaylist("pl", "Party", tu.Tracks(3))
			srv := newTestService(t, fake, 100)
			fake.Expire()

			tracks, err := srv.PlaylistTracks(ctx, "pl")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 3 {
				t.Errorf("expected 3 tracks, got %d", len(tracks))
			}
			if fake.Refreshes() != 1 {
				t.Errorf("expected exactly 1 refresh, got %d", fake.Refreshes())
			}
		})

		t.Run("retry after refresh waits for the limiter", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t)
			fake.AddPlaylist("pl", "Party", tu.Tracks(3))
			srv, err := NewSpotifyService(testCredentials, SpotifyOpts{
				BaseURL:           fake.URL(),
				Endpoint:          oauth2.Endpoint{AuthURL: fake.AuthURL(), TokenURL: fake.TokenURL()},
				HTTPClient:        fake.Server.Client(),
				RequestsPerSecond: 1,
			})
			if err != nil {
				t.Fatalf("failed to create service: %v", err)
			}
			srv.Tokens().SetTokens(fake.Tokens())
			fake.Expire()

			ctx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
			defer cancel()
			if _, err := srv.PlaylistTracksPage(ctx, "pl", 10, 0); err == nil {
				t.Fatal("expected the retry to be held back by the limiter")
			}
			if fake.Refreshes() != 1 {
				t.Errorf("expected exactly 1 refresh, got %d", fake.Refreshes())
			}
			if fake.PageRequests() != 1 {
				t.Errorf("expected the retry to stay unsent, got %d page requests", fake.PageRequests())
			}
		})

		t.Run("rejected after refresh", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t)
			fake.AddPlaylist("pl", "Party", tu.Tracks(3))
			srv := newTestService(t, fake, 100)
			fake.RejectNext(2)

			_, err := srv.PlaylistTracks(ctx, "pl")
			if !errors.Is(err, shared.ErrAuthExpired) {
				t.Errorf("expected ErrAuthExpired, got %v", err)
			}
			if fake.Refreshes() != 1 {
				t.Errorf("expected exactly 1 refresh, got %d", fake.Refreshes())
			}
		})

		t.Run("upstream failure", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t)
			fake.AddPlaylist("pl", "Party", tu.Tracks(3))
			fake.FailWith(http.StatusServiceUnavailable)
			srv := newTestService(t, fake, 100)

			if _, err := srv.PlaylistTracks(ctx, "pl"); !errors.Is(err, shared.ErrUpstreamUnavailable) {
				t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
			}
			if fake.Refreshes() != 0 {
				t.Errorf("upstream failures must not refresh, got %d", fake.Refreshes())
			}
		})

		t.Run("transport errors", func(t *testing.T) {
			newService := func(rt http.RoundTripper) *SpotifyService {
				srv, err := NewSpotifyService(testCredentials, SpotifyOpts{
					BaseURL:    "http://spotify.invalid",
					HTTPClient: &http.Client{Transport: rt},
				})
				if err != nil {
					t.Fatalf("failed to create service: %v", err)
				}
				srv.Tokens().SetTokens("access", "refresh")
				return srv
			}

			srv := newService(tu.NewMockRoundTripper(nil, errors.New("connection refused")))
			if _, err := srv.PlaylistTracks(ctx, "pl"); !errors.Is(err, shared.ErrUpstreamUnavailable) {
				t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
			}

			resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: &tu.FCloser{}}
			srv = newService(tu.NewMockRoundTripper(resp, nil))
			_, err := srv.PlaylistTracks(ctx, "pl")
			if err == nil || !strings.Contains(err.Error(), "failed to decode response") {
				t.Errorf("expected a decode error, got %v", err)
			}
		})
	})

	t.Run("Playlist", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t)
		fake.AddPlaylist("pl", "Party", tu.Tracks(1))
		srv := newTestService(t, fake, 100)

		playlist, err := srv.Playlist(ctx, "pl")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if playlist.Name != "Party" || len(playlist.Images) != 1 {
			t.Errorf("unexpected playlist %+v", playlist)
		}

		if _, err := srv.Playlist(ctx, "nope"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("Player", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t)
		fake.SetDevices(
			models.Device{ID: "dev-1", Name: "Browser", Type: "Computer"},
			models.Device{ID: "dev-2", Name: "Phone", Type: "Smartphone", IsActive: true},
		)
		srv := newTestService(t, fake, 100)

		t.Run("Devices", func(t *testing.T) {
			devices, err := srv.Devices(ctx)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(devices) != 2 || devices[0].ID != "dev-1" || devices[0].IsActive {
				t.Errorf("unexpected devices %+v", devices)
			}
		})

		t.Run("TransferPlayback", func(t *testing.T) {
			if err := srv.TransferPlayback(ctx, "dev-1", false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			devices, _ := srv.Devices(ctx)
			if !devices[0].IsActive || devices[1].IsActive {
				t.Errorf("expected dev-1 to be the only active device, got %+v", devices)
			}
			if err := srv.TransferPlayback(ctx, "", false); !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}

			fake.IgnoreTransfers(true)
			defer fake.IgnoreTransfers(false)
			if err := srv.TransferPlayback(ctx, "dev-2", false); err != nil {
				t.Fatalf("expected an accepted transfer, got %v", err)
			}
			devices, _ = srv.Devices(ctx)
			if devices[1].IsActive {
				t.Error("expected an ignored transfer to leave the device inactive")
			}
		})

		t.Run("Play", func(t *testing.T) {
			if err := srv.Play(ctx, "dev-1", "spotify:track:t0"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			plays := fake.Plays()
			if len(plays) != 1 || plays[0] != "dev-1|spotify:track:t0" {
				t.Errorf("unexpected plays %v", plays)
			}
			if err := srv.Play(ctx, "dev-1"); !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
		})

		t.Run("Controls", func(t *testing.T) {
			if err := srv.Pause(ctx, "dev-1"); err != nil {
				t.Errorf("pause: %v", err)
			}
			if err := srv.Resume(ctx, "dev-1"); err != nil {
				t.Errorf("resume: %v", err)
			}
			if err := srv.Seek(ctx, "dev-1", 30000); err != nil {
				t.Errorf("seek: %v", err)
			}
			if err := srv.SetVolume(ctx, "dev-1", 40); err != nil {
				t.Errorf("volume: %v", err)
			}
			if err := srv.Seek(ctx, "dev-1", -1); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument for negative seek, got %v", err)
			}
			if err := srv.SetVolume(ctx, "dev-1", 101); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument for volume 101, got %v", err)
			}

			var sawSeek bool
			for _, r := range fake.Requests() {
				if strings.HasPrefix(r, "PUT /v1/me/player/seek") && strings.Contains(r, "position_ms=30000") && strings.Contains(r, "device_id=dev-1") {
					sawSeek = true
				}
			}
			if !sawSeek {
				t.Errorf("expected a seek request with position and device, got %v", fake.Requests())
			}
		})

		t.Run("Forbidden", func(t *testing.T) {
			fake.FailWith(http.StatusForbidden)
			defer fake.FailWith(0)

			if _, err := srv.Devices(ctx); !errors.Is(err, shared.ErrForbidden) {
				t.Errorf("expected ErrForbidden, got %v", err)
			}
		})
	})
}
