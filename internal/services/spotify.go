package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/doowops/internal/models"
	"github.com/desertthunder/doowops/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	defaultPageSize = 100
)

// SpotifyScopes are requested on every authorization.
var SpotifyScopes = []string{
	"streaming",
	"user-read-email",
	"user-read-private",
	"user-modify-playback-state",
	"user-read-playback-state",
	"user-read-currently-playing",
	"app-remote-control",
	"playlist-read-private",
}

// SpotifyOpts overrides the defaults of [NewSpotifyService]. The zero value talks to the real API.
type SpotifyOpts struct {
	BaseURL           string
	Endpoint          oauth2.Endpoint
	HTTPClient        *http.Client
	PageSize          int
	RequestsPerSecond float64
	Logger            *log.Logger
}

// SpotifyService is the catalog and playback client for the Spotify Web API.
//
// Every request goes through the [TokenManager] so an expired access token is refreshed once and the call retried.
type SpotifyService struct {
	tokens     *TokenManager
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	pageSize   int
	logger     *log.Logger
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts SpotifyOpts) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:5000/auth/callback"
	}

	endpoint := opts.Endpoint
	if endpoint.AuthURL == "" {
		endpoint.AuthURL = spotifyAuthURL
	}
	if endpoint.TokenURL == "" {
		endpoint.TokenURL = spotifyTokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInHeader

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       SpotifyScopes,
		Endpoint:     endpoint,
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > defaultPageSize {
		pageSize = defaultPageSize
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &SpotifyService{
		tokens:     NewTokenManager(config, client, logger),
		baseURL:    baseURL,
		httpClient: client,
		limiter:    rate.NewLimiter(limit, 1),
		pageSize:   pageSize,
		logger:     shared.WithLogger(logger, "component", "spotify"),
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Tokens exposes the token manager for the OAuth handlers.
func (s *SpotifyService) Tokens() *TokenManager {
	return s.tokens
}

// doRequest performs an authenticated HTTP request to the Spotify API.
//
// Responses are classified into the shared error taxonomy: 401 is [shared.ErrUnauthorized] (which the token
// manager turns into one refresh and one retry), 403 is [shared.ErrForbidden], 404 is [shared.ErrNotFound], and
// network errors, 429 and 5xx are [shared.ErrUpstreamUnavailable].
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	return s.tokens.Do(ctx, func(ctx context.Context, token string) error {
		// Every attempt counts against the limit, including the retry after a refresh.
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return fmt.Errorf("%w: request failed: %v", shared.ErrUpstreamUnavailable, err)
		}
		defer resp.Body.Close()

		if err := classify(resp); err != nil {
			s.logger.Debug("spotify request failed", "method", method, "endpoint", endpoint, "status", resp.StatusCode)
			return err
		}

		if result != nil && resp.StatusCode != http.StatusNoContent {
			if err := json.NewDecoder(resp.Body).Decode(result); err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil
	})
}

func classify(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg := http.StatusText(resp.StatusCode)
	var body spotifyErrorBody
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil && json.Unmarshal(data, &body) == nil {
		if body.Error.Message != "" {
			msg = body.Error.Message
		}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrUnauthorized, msg)
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", shared.ErrForbidden, msg)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, msg)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", shared.ErrUpstreamUnavailable, resp.StatusCode, msg)
	default:
		return fmt.Errorf("spotify API error: status %d: %s", resp.StatusCode, msg)
	}
}

// PlaylistTracksPage retrieves one limit/offset page of a playlist's items.
func (s *SpotifyService) PlaylistTracksPage(ctx context.Context, playlistID string, limit, offset int) (*SpotifyPlaylistTracksPage, error) {
	if limit <= 0 || limit > defaultPageSize {
		limit = s.pageSize
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", url.PathEscape(playlistID), limit, offset)

	var page SpotifyPlaylistTracksPage
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
		}
		return nil, err
	}
	return &page, nil
}

// PlaylistTracks materializes every playable track of a playlist, requesting pages from offset 0 until a page
// comes back empty. Removed and local-file items are skipped.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	var tracks []models.Track
	offset := 0

	for {
		page, err := s.PlaylistTracksPage(ctx, playlistID, s.pageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(page.Items) == 0 {
			break
		}

		for _, item := range page.Items {
			if !item.Playable() {
				continue
			}
			tracks = append(tracks, item.Track.ToModel())
		}
		offset += len(page.Items)
	}

	s.logger.Debug("fetched playlist", "playlist", playlistID, "tracks", len(tracks), "items", offset)
	return tracks, nil
}

// Playlist retrieves playlist metadata by ID.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	endpoint := fmt.Sprintf("/playlists/%s?fields=id,name,images,uri", url.PathEscape(playlistID))

	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &playlist); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
		}
		return nil, err
	}
	return &playlist, nil
}
