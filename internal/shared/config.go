package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Go-back policies accepted by [GameConfig.GoBackPolicy].
const (
	GoBackPerPlayer = "per_player"
	GoBackPerRound  = "per_round"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Server      ServerConfig      `toml:"server"`
	Catalog     CatalogConfig     `toml:"catalog"`
	Game        GameConfig        `toml:"game"`
	Playback    PlaybackConfig    `toml:"playback"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// Map returns the credentials in the shape expected by services.NewSpotifyService.
func (c SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
		"redirect_uri":  c.RedirectURI,
	}
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	FrontendURL    string   `toml:"frontend_url"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CatalogConfig controls playlist pagination, caching and provider rate limiting. WarmWorkers bounds how many
// featured playlists load at once after login.
type CatalogConfig struct {
	PageSize          int           `toml:"page_size"`
	CacheTTL          time.Duration `toml:"cache_ttl"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
	WarmWorkers       int           `toml:"warm_workers"`
}

// FeaturedPlaylist is a preset offered in the lobby.
type FeaturedPlaylist struct {
	Name string `toml:"name" json:"name"`
	ID   string `toml:"id" json:"id"`
	URL  string `toml:"url" json:"url"`
}

// GameConfig holds defaults for new game sessions.
type GameConfig struct {
	Rounds       int                `toml:"rounds"`
	GoBackPolicy string             `toml:"go_back_policy"`
	Playlists    []FeaturedPlaylist `toml:"playlists"`
}

// PlaybackConfig holds the device retry policies.
type PlaybackConfig struct {
	ActivationAttempts int           `toml:"activation_attempts"`
	PlayAttempts       int           `toml:"play_attempts"`
	BackoffBase        time.Duration `toml:"backoff_base"`
	BackoffStep        time.Duration `toml:"backoff_step"`
	ConfirmDelay       time.Duration `toml:"confirm_delay"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv loads variables from the given .env files (missing files are ignored) and lets
// SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET, SPOTIFY_REDIRECT_URI and PORT override file values.
func (c *Config) ApplyEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Credentials.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REDIRECT_URI"); v != "" {
		c.Credentials.Spotify.RedirectURI = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT=%q", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate checks the values that the game and catalog layers depend on.
func (c *Config) Validate() error {
	if c.Catalog.PageSize <= 0 || c.Catalog.PageSize > 100 {
		return fmt.Errorf("%w: catalog.page_size must be in [1,100], got %d", ErrInvalidConfig, c.Catalog.PageSize)
	}
	if c.Catalog.CacheTTL <= 0 {
		return fmt.Errorf("%w: catalog.cache_ttl must be positive", ErrInvalidConfig)
	}
	if c.Game.Rounds < 2 || c.Game.Rounds > 10 {
		return fmt.Errorf("%w: game.rounds must be in [2,10], got %d", ErrInvalidConfig, c.Game.Rounds)
	}
	switch c.Game.GoBackPolicy {
	case GoBackPerPlayer, GoBackPerRound:
	default:
		return fmt.Errorf("%w: unknown game.go_back_policy %q", ErrInvalidConfig, c.Game.GoBackPolicy)
	}
	if c.Playback.ActivationAttempts <= 0 || c.Playback.PlayAttempts <= 0 {
		return fmt.Errorf("%w: playback attempts must be positive", ErrInvalidConfig)
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
