package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/doowops/internal/models"
	"github.com/desertthunder/doowops/internal/playback"
	"github.com/desertthunder/doowops/internal/services"
	"github.com/desertthunder/doowops/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows the route patterns it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                             // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler)         // Handle registers a handler for the specified method and path
	HandleFunc(method, path string, handler http.HandlerFunc) // HandleFunc registers a plain function
	Handler(handler Handler)                                  // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request)         // ServeHTTP implements http.Handler for the entire router
}

// Authenticator is the token lifecycle surface the auth routes need.
type Authenticator interface {
	AuthURL(state string, forceConsent bool) string
	Exchange(ctx context.Context, code string) error
	Token() (string, error)
	Authenticated() bool
}

// Candidates draws count random tracks from a playlist.
type Candidates interface {
	Candidates(ctx context.Context, playlistID string, count int) ([]models.Track, error)
}

// Invalidator drops a cached playlist so the next draw fetches it again. Catalogs that cache implement it.
type Invalidator interface {
	Invalidate(playlistID string)
}

// PlaylistLookup fetches playlist metadata for the lobby.
type PlaylistLookup interface {
	Playlist(ctx context.Context, playlistID string) (*services.SpotifyPlaylist, error)
}

// DeviceController is the playback surface driven by the game and device routes.
type DeviceController interface {
	Status() playback.DeviceStatus
	HandleEvent(ev playback.Event) error
	RequestActivation()
	Cue(uri string)
	TogglePlay(ctx context.Context) error
	Seek(ctx context.Context, positionMS int) error
	SetVolume(ctx context.Context, percent int) error
}

// Opts wires the server to its collaborators.
type Opts struct {
	Config    *shared.Config
	Auth      Authenticator
	Catalog   Candidates
	Playlists PlaylistLookup
	Device    DeviceController
	Logger    *log.Logger
}

// Server exposes the game, scoreboard, device and OAuth routes.
type Server struct {
	config  *shared.Config
	router  *BasicRouter
	handler http.Handler
	auth    *AuthHandler
	games   *GameHandler
	devices *DeviceHandler
	logger  *log.Logger
}

// New builds the route table. Auth, Catalog and Device are required.
func New(opts Opts) *Server {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	logger := shared.WithLogger(opts.Logger, "component", "server")

	s := &Server{
		config:  opts.Config,
		router:  NewBasicRouter(),
		auth:    NewAuthHandler(opts.Auth, opts.Config.Server.FrontendURL, logger),
		games:   NewGameHandler(opts.Config, opts.Catalog, opts.Playlists, opts.Device, logger),
		devices: NewDeviceHandler(opts.Device, opts.Config.Server.AllowedOrigins, logger),
		logger:  logger,
	}

	s.router.Use(Recover(logger), Logging(logger))
	s.router.Handler(s.auth)
	s.games.Register(s.router)
	s.devices.Register(s.router)

	s.handler = CORS(opts.Config.Server.AllowedOrigins)(s.router)
	return s
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Broadcast forwards device status updates to connected device sockets until ctx is done or updates closes.
func (s *Server) Broadcast(ctx context.Context, updates <-chan playback.DeviceStatus) {
	s.devices.Broadcast(ctx, updates)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err, ok := <-serverErrors:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("error shutting down server", "error", err)
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
