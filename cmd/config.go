package main

import (
	"context"

	"github.com/desertthunder/doowops/internal/shared"
	"github.com/urfave/cli/v3"
)

// ConfigInit writes the embedded example configuration.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)

	r.writePlain("✓ Wrote %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.spotify.client_id and client_secret (or SPOTIFY_CLIENT_ID/SPOTIFY_CLIENT_SECRET in .env)\n")
	r.writePlain("2. Register %s as a redirect URI for your Spotify app\n", shared.DefaultConfig().Credentials.Spotify.RedirectURI)
	return nil
}

// ConfigShow prints the effective configuration with the client secret masked.
func (r *Runner) ConfigShow(ctx context.Context, cmd *cli.Command) error {
	config := *r.config
	if config.Credentials.Spotify.ClientSecret != "" {
		config.Credentials.Spotify.ClientSecret = "********"
	}
	return r.writeJSON(config, true)
}
