package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/doowops/internal/catalog"
	"github.com/desertthunder/doowops/internal/shared"
	"github.com/urfave/cli/v3"
)

// Sample prints random tracks drawn from a playlist, the same way a turn draws its candidates.
func (r *Runner) Sample(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.StringArg("playlist")
	if raw == "" {
		return fmt.Errorf("%w: playlist", shared.ErrMissingArgument)
	}
	playlistID, err := catalog.ParsePlaylistID(raw)
	if err != nil {
		return err
	}
	count := cmd.Int("count")
	if count < 0 {
		return fmt.Errorf("%w: count must be non-negative", shared.ErrInvalidArgument)
	}

	svc, err := r.authorize(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("sampling playlist", "playlist", playlistID, "count", count)
	tracks, err := svc.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return err
	}
	sampled := catalog.Sample(tracks, count)

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"tracks": sampled}, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%d of %d tracks", len(sampled), len(tracks)))
	for i, t := range sampled {
		r.writePlain("%d. %s - %s\n", i+1, t.ArtistLine(), t.Name)
		if t.Album != "" {
			r.writePlain("   Album: %s\n", t.Album)
		}
		r.writePlain("   URI: %s\n", t.URI)
	}
	return nil
}

// Devices lists the playback devices visible to the account.
func (r *Runner) Devices(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.authorize(ctx)
	if err != nil {
		return err
	}
	devices, err := svc.Devices(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(devices, true)
	}
	if len(devices) == 0 {
		return r.writePlain("No devices found. Open Spotify on a device and retry.\n")
	}

	r.writePlain("Found %d devices:\n\n", len(devices))
	for _, d := range devices {
		active := ""
		if d.IsActive {
			active = " (active)"
		}
		r.writePlain("• %s%s\n   Type: %s\n   Volume: %d%%\n", d.Name, active, d.Type, d.VolumePercent)
	}
	return nil
}
