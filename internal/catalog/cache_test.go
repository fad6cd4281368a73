package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/doowops/internal/shared"
	tu "github.com/desertthunder/doowops/internal/testing"
	"github.com/jonboulle/clockwork"
)

func newTestCache(source Source) (*Cache, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return NewCache(source, CacheOpts{TTL: DefaultTTL, Clock: clock}), clock
}

func TestCache(t *testing.T) {
	ctx := context.Background()

	t.Run("serves fresh entries without fetching", func(t *testing.T) {
		source := tu.NewStaticSource("pl", tu.Tracks(10))
		cache, clock := newTestCache(source)

		for range 3 {
			tracks, err := cache.Tracks(ctx, "pl")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 10 {
				t.Fatalf("expected 10 tracks, got %d", len(tracks))
			}
			clock.Advance(time.Hour)
		}

		if source.Calls("pl") != 1 {
			t.Errorf("expected 1 fetch within ttl, got %d", source.Calls("pl"))
		}
	})

	t.Run("re-fetches once after expiry", func(t *testing.T) {
		source := tu.NewStaticSource("pl", tu.Tracks(4))
		cache, clock := newTestCache(source)

		if _, err := cache.Tracks(ctx, "pl"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		clock.Advance(DefaultTTL)

		if _, err := cache.Tracks(ctx, "pl"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := cache.Tracks(ctx, "pl"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if source.Calls("pl") != 2 {
			t.Errorf("expected exactly 2 fetches, got %d", source.Calls("pl"))
		}

		entry, ok := cache.Entry("pl")
		if !ok || !entry.ExpiresAt.Equal(clock.Now().Add(DefaultTTL)) {
			t.Errorf("expected entry to expire one ttl from the re-fetch, got %+v", entry)
		}
	})

	t.Run("failed fetch keeps prior entry", func(t *testing.T) {
		source := tu.NewStaticSource("pl", tu.Tracks(4))
		cache, clock := newTestCache(source)

		if _, err := cache.Tracks(ctx, "pl"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		before, _ := cache.Entry("pl")

		clock.Advance(DefaultTTL + time.Second)
		source.Fail(shared.ErrUpstreamUnavailable)

		if _, err := cache.Tracks(ctx, "pl"); !errors.Is(err, shared.ErrUpstreamUnavailable) {
			t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
		}

		after, ok := cache.Entry("pl")
		if !ok {
			t.Fatal("expected prior entry to survive a failed fetch")
		}
		if !after.ExpiresAt.Equal(before.ExpiresAt) || len(after.Tracks) != len(before.Tracks) {
			t.Errorf("expected entry to be untouched, got %+v", after)
		}
	})

	t.Run("failed first fetch stores nothing", func(t *testing.T) {
		source := tu.NewStaticSource("pl", tu.Tracks(4))
		source.Fail(shared.ErrAuthExpired)
		cache, _ := newTestCache(source)

		if _, err := cache.Tracks(ctx, "pl"); !errors.Is(err, shared.ErrAuthExpired) {
			t.Fatalf("expected ErrAuthExpired, got %v", err)
		}
		if _, ok := cache.Entry("pl"); ok {
			t.Error("expected no entry after failed fetch")
		}
	})

	t.Run("concurrent readers share one fetch", func(t *testing.T) {
		source := tu.NewStaticSource("pl", tu.Tracks(6))
		release := source.Block()
		cache, _ := newTestCache(source)

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := cache.Tracks(ctx, "pl")
				errs <- err
			}()
		}
		release()
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		}
		if source.Calls("pl") != 1 {
			t.Errorf("expected 1 fetch, got %d", source.Calls("pl"))
		}
	})

	t.Run("a canceled reader does not fail a shared fetch", func(t *testing.T) {
		source := tu.NewStaticSource("pl", tu.Tracks(3))
		release := source.Block()
		defer release()
		cache, _ := newTestCache(source)

		canceled, cancel := context.WithCancel(ctx)
		first := make(chan error, 1)
		go func() {
			_, err := cache.Tracks(canceled, "pl")
			first <- err
		}()
		<-source.Entered()

		second := make(chan error, 1)
		go func() {
			_, err := cache.Tracks(ctx, "pl")
			second <- err
		}()

		cancel()
		if err := <-first; !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}

		release()
		if err := <-second; err != nil {
			t.Errorf("expected the live reader to succeed, got %v", err)
		}
		if _, ok := cache.Entry("pl"); !ok {
			t.Error("expected the shared fetch to be cached")
		}
		if source.Calls("pl") != 1 {
			t.Errorf("expected 1 fetch, got %d", source.Calls("pl"))
		}
	})

	t.Run("Invalidate", func(t *testing.T) {
		source := tu.NewStaticSource("pl", tu.Tracks(2))
		cache, _ := newTestCache(source)

		_, _ = cache.Tracks(ctx, "pl")
		cache.Invalidate("pl")
		_, _ = cache.Tracks(ctx, "pl")

		if source.Calls("pl") != 2 {
			t.Errorf("expected invalidation to force a fetch, got %d calls", source.Calls("pl"))
		}
	})

	t.Run("empty id", func(t *testing.T) {
		cache, _ := newTestCache(tu.NewStaticSource("pl", nil))
		if _, err := cache.Tracks(ctx, ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Candidates", func(t *testing.T) {
		t.Run("samples the requested count", func(t *testing.T) {
			cache, _ := newTestCache(tu.NewStaticSource("pl", tu.Tracks(10)))

			for _, count := range []int{3, 5} {
				tracks, err := cache.Candidates(ctx, "pl", count)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if len(tracks) != count {
					t.Errorf("expected %d candidates, got %d", count, len(tracks))
				}
			}
		})

		t.Run("empty playlist", func(t *testing.T) {
			cache, _ := newTestCache(tu.NewStaticSource("pl", nil))
			if _, err := cache.Candidates(ctx, "pl", 3); !errors.Is(err, shared.ErrNoCandidates) {
				t.Errorf("expected ErrNoCandidates, got %v", err)
			}
		})
	})
}
