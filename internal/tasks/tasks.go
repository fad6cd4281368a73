package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/doowops/internal/models"
	"github.com/desertthunder/doowops/internal/shared"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 4

// Loader fetches the tracks of a playlist.
//
// This abstraction allows warming through the catalog cache in production and a static source in tests.
type Loader interface {
	Tracks(ctx context.Context, playlistID string) ([]models.Track, error)
}

// WarmResult is the outcome for a single playlist.
type WarmResult struct {
	PlaylistID string
	Tracks     int
	Error      error
}

// WarmReport contains the results of a warm run in input order.
type WarmReport struct {
	Results []WarmResult
	Loaded  int
	Failed  int
}

// WarmerOpts configures a [Warmer].
type WarmerOpts struct {
	Workers int
	Logger  *log.Logger
}

// Warmer preloads playlists into a cache.
type Warmer struct {
	loader  Loader
	workers int
	logger  *log.Logger
}

// NewWarmer creates a new Warmer over loader.
func NewWarmer(loader Loader, opts WarmerOpts) *Warmer {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Warmer{
		loader:  loader,
		workers: workers,
		logger:  shared.WithLogger(logger, "component", "warmer"),
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (w *Warmer) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Warm loads every playlist in playlistIDs. Duplicate ids are loaded once.
//
// Per-playlist failures are reported in the result; the returned error is non-nil only when ctx ends first.
func (w *Warmer) Warm(ctx context.Context, playlistIDs []string, progress chan<- ProgressUpdate) (*WarmReport, error) {
	ids := dedupe(playlistIDs)
	report := &WarmReport{Results: make([]WarmResult, len(ids))}
	total := len(ids)

	w.sendProgress(progress, warmStartUpdate(total))

	var (
		mu   sync.Mutex
		step int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)

	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tracks, err := w.loader.Tracks(gctx, id)
			result := WarmResult{PlaylistID: id, Tracks: len(tracks), Error: err}

			mu.Lock()
			report.Results[i] = result
			step++
			current := step
			if err != nil {
				report.Failed++
			} else {
				report.Loaded++
			}
			mu.Unlock()

			if err != nil {
				w.logger.Warn("failed to warm playlist", "playlist", id, "err", err)
				w.sendProgress(progress, warmFailedUpdate(current, total, result))
			} else {
				w.logger.Debug("warmed playlist", "playlist", id, "tracks", len(tracks))
				w.sendProgress(progress, warmedUpdate(current, total, result))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("warm cancelled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("warm cancelled: %w", err)
	}

	w.sendProgress(progress, warmDoneUpdate(report))
	w.logger.Info("playlists warmed", "loaded", report.Loaded, "failed", report.Failed)
	return report, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
