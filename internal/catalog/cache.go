package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/doowops/internal/models"
	"github.com/desertthunder/doowops/internal/shared"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a fetched playlist is served from memory.
const DefaultTTL = 24 * time.Hour

// fetchTimeout bounds one shared playlist fetch, all pages included.
const fetchTimeout = 2 * time.Minute

// Source materializes the full track list of a playlist.
type Source interface {
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)
}

// Entry is a cached playlist. It is usable while now is before ExpiresAt.
type Entry struct {
	PlaylistID string
	Tracks     []models.Track
	ExpiresAt  time.Time
}

// Fresh reports whether the entry may still be served at now.
func (e Entry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// CacheOpts configures a [Cache]. Zero values select the defaults.
type CacheOpts struct {
	TTL    time.Duration
	Clock  clockwork.Clock
	Logger *log.Logger
}

// Cache is the read-mostly playlist cache shared by all requests.
type Cache struct {
	source Source
	ttl    time.Duration
	clock  clockwork.Clock
	logger *log.Logger

	mu      sync.RWMutex
	entries map[string]Entry
	flight  singleflight.Group
}

// NewCache creates a cache in front of source.
func NewCache(source Source, opts CacheOpts) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Cache{
		source:  source,
		ttl:     opts.TTL,
		clock:   opts.Clock,
		logger:  shared.WithLogger(opts.Logger, "component", "catalog"),
		entries: make(map[string]Entry),
	}
}

// Tracks returns the playlist's tracks, fetching them when the cached entry is missing or expired.
//
// The returned slice is shared with the cache and must not be modified.
func (c *Cache) Tracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	if entry, ok := c.lookup(playlistID); ok {
		return entry.Tracks, nil
	}

	// the fetch is shared, so it must outlive any single caller's cancellation
	detached := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(playlistID, func() (any, error) {
		// another caller may have stored the entry between lookup and Do
		if entry, ok := c.lookup(playlistID); ok {
			return entry.Tracks, nil
		}

		ctx, cancel := context.WithTimeout(detached, fetchTimeout)
		defer cancel()
		tracks, err := c.source.PlaylistTracks(ctx, playlistID)
		if err != nil {
			c.logger.Warn("playlist fetch failed", "playlist", playlistID, "err", err)
			return nil, err
		}

		entry := Entry{PlaylistID: playlistID, Tracks: tracks, ExpiresAt: c.clock.Now().Add(c.ttl)}
		c.mu.Lock()
		c.entries[playlistID] = entry
		c.mu.Unlock()

		c.logger.Info("playlist cached", "playlist", playlistID, "tracks", len(tracks), "expires", entry.ExpiresAt)
		return tracks, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("joined in-flight playlist fetch", "playlist", playlistID)
		}
		return res.Val.([]models.Track), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Candidates returns count tracks drawn at random from the playlist.
func (c *Cache) Candidates(ctx context.Context, playlistID string, count int) ([]models.Track, error) {
	tracks, err := c.Tracks(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: playlist %s has no playable tracks", shared.ErrNoCandidates, playlistID)
	}
	return Sample(tracks, count), nil
}

// Entry returns the cached entry for playlistID, fresh or not.
func (c *Cache) Entry(playlistID string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[playlistID]
	return entry, ok
}

// Invalidate drops the entry for playlistID so the next read re-fetches.
func (c *Cache) Invalidate(playlistID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, playlistID)
}

func (c *Cache) lookup(playlistID string) (Entry, bool) {
	entry, ok := c.Entry(playlistID)
	if !ok || !entry.Fresh(c.clock.Now()) {
		return Entry{}, false
	}
	return entry, true
}
