package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/doowops/internal/catalog"
	"github.com/desertthunder/doowops/internal/formatter"
	"github.com/desertthunder/doowops/internal/game"
	"github.com/desertthunder/doowops/internal/models"
	"github.com/desertthunder/doowops/internal/playback"
	"github.com/desertthunder/doowops/internal/services"
	"github.com/desertthunder/doowops/internal/shared"
	"github.com/desertthunder/doowops/internal/ui"
	"github.com/urfave/cli/v3"
)

// Play launches the terminal game.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	playlistID, err := catalog.ParsePlaylistID(cmd.String("playlist"))
	if err != nil {
		return err
	}
	rounds := cmd.Int("rounds")
	if rounds == 0 {
		rounds = r.config.Game.Rounds
	}
	policyName := cmd.String("go-back")
	if policyName == "" {
		policyName = r.config.Game.GoBackPolicy
	}
	policy, err := game.ParseGoBackPolicy(policyName)
	if err != nil {
		return err
	}

	// The service keeps the logger it was built with, so switch before authorizing.
	if err := r.logToFile(cmd.String("log-file")); err != nil {
		return err
	}
	svc, err := r.authorize(ctx)
	if err != nil {
		return err
	}

	cache := catalog.NewCache(svc, catalog.CacheOpts{TTL: r.config.Catalog.CacheTTL, Logger: r.logger})
	session, err := game.NewSession(game.Config{
		PlaylistID: playlistID,
		Player1:    cmd.String("player1"),
		Player2:    cmd.String("player2"),
		Rounds:     rounds,
		Policy:     policy,
	}, cache, game.SessionOpts{Logger: r.logger})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := ui.ModelOpts{Game: session, Logger: r.logger}
	if !cmd.Bool("silent") {
		updates := make(chan playback.DeviceStatus, 16)
		controller := r.newController(svc, updates)
		go controller.Run(ctx)

		opts.Player = controller
		opts.Statuses = updates
		if name := cmd.String("device"); name != "" {
			device, err := findDevice(ctx, svc, name)
			if err != nil {
				return err
			}
			controller.SetDevice(device.ID)
			controller.RequestActivation()
		} else {
			opts.Devices = svc
		}
	}

	p := tea.NewProgram(ui.NewModel(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	model, ok := final.(*ui.Model)
	if !ok {
		return nil
	}
	view, done := model.Scoreboard()
	if !done {
		return nil
	}
	if path := cmd.String("results"); path != "" {
		written, err := formatter.WriteExport(view, path)
		if err != nil {
			return err
		}
		r.writePlain("✓ Results saved to %s\n", written)
	}
	text, err := formatter.ExportToText(view)
	if err != nil {
		return err
	}
	return r.writePlain("%s", text)
}

// logToFile redirects logs to path so they stay off the TUI.
func (r *Runner) logToFile(path string) error {
	fileLogger, err := shared.NewFileLogger(path)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)
	return nil
}

// findDevice resolves a device by case-insensitive name.
func findDevice(ctx context.Context, svc *services.SpotifyService, name string) (models.Device, error) {
	devices, err := svc.Devices(ctx)
	if err != nil {
		return models.Device{}, err
	}
	for _, d := range devices {
		if strings.EqualFold(d.Name, name) {
			return d, nil
		}
	}
	return models.Device{}, fmt.Errorf("%w: no device named %q", shared.ErrNotFound, name)
}
