package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/desertthunder/doowops/internal/catalog"
	"github.com/desertthunder/doowops/internal/playback"
	"github.com/desertthunder/doowops/internal/server"
	"github.com/desertthunder/doowops/internal/services"
	"github.com/desertthunder/doowops/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP game server until interrupted.
//
// The browser completes OAuth through /auth/login, so unlike the terminal commands this does not authorize up front.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.service()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	updates := make(chan playback.DeviceStatus, 16)
	controller := r.newController(svc, updates)
	cache := catalog.NewCache(svc, catalog.CacheOpts{TTL: r.config.Catalog.CacheTTL, Logger: r.logger})

	auth := &warmingAuth{
		TokenManager: svc.Tokens(),
		warm:         func() { go r.warmFeatured(ctx, cache) },
	}
	srv := server.New(server.Opts{
		Config:    r.config,
		Auth:      auth,
		Catalog:   cache,
		Playlists: svc,
		Device:    controller,
		Logger:    r.logger,
	})

	go controller.Run(ctx)
	go srv.Broadcast(ctx, updates)

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}
	r.logger.Info("starting game server", "addr", addr, "frontend", r.config.Server.FrontendURL)
	return srv.ListenAndServe(ctx, addr)
}

// warmingAuth loads the featured playlists once a browser login completes.
type warmingAuth struct {
	*services.TokenManager
	warm func()
}

func (a *warmingAuth) Exchange(ctx context.Context, code string) error {
	if err := a.TokenManager.Exchange(ctx, code); err != nil {
		return err
	}
	a.warm()
	return nil
}

// warmFeatured preloads the lobby's featured playlists into cache.
func (r *Runner) warmFeatured(ctx context.Context, cache *catalog.Cache) {
	var ids []string
	for _, p := range r.config.Game.Playlists {
		ref := p.ID
		if ref == "" {
			ref = p.URL
		}
		id, err := catalog.ParsePlaylistID(ref)
		if err != nil {
			r.logger.Warn("skipping featured playlist", "name", p.Name, "err", err)
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return
	}

	progress := make(chan tasks.ProgressUpdate, len(ids)+2)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Debug(update.Message, "phase", update.Phase)
		}
	}()

	warmer := tasks.NewWarmer(cache, tasks.WarmerOpts{Workers: r.config.Catalog.WarmWorkers, Logger: r.logger})
	if _, err := warmer.Warm(ctx, ids, progress); err != nil {
		r.logger.Warn("featured playlists not warmed", "err", err)
	}
	close(progress)
	<-done
}

// newController builds a playback controller with the configured retry policies.
func (r *Runner) newController(api playback.DeviceAPI, updates chan<- playback.DeviceStatus) *playback.Controller {
	cfg := r.config.Playback
	backoff := playback.LinearBackoff(cfg.BackoffBase, cfg.BackoffStep)
	return playback.NewController(api, playback.ControllerOpts{
		Activation: playback.RetryPolicy{MaxAttempts: cfg.ActivationAttempts, Backoff: backoff, ConfirmDelay: cfg.ConfirmDelay},
		Play:       playback.RetryPolicy{MaxAttempts: cfg.PlayAttempts, Backoff: backoff},
		Logger:     r.logger,
		Updates:    updates,
	})
}
