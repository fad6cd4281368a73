package playback

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// RetryPolicy bounds a retry loop. The attempt count is the only timeout: there is no wall-clock deadline.
type RetryPolicy struct {
	MaxAttempts int
	// Backoff returns the wait after the given zero-based attempt. Nil means no wait.
	Backoff func(attempt int) time.Duration
	// ConfirmDelay is the wait between a transfer command and the re-poll that confirms it.
	ConfirmDelay time.Duration
}

// LinearBackoff waits base + step*attempt.
func LinearBackoff(base, step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base + step*time.Duration(attempt)
	}
}

// DefaultActivationPolicy polls up to 15 times, waiting 500ms + 100ms per attempt, and confirms transfers after 1s.
func DefaultActivationPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  15,
		Backoff:      LinearBackoff(500*time.Millisecond, 100*time.Millisecond),
		ConfirmDelay: time.Second,
	}
}

// DefaultPlayPolicy polls up to 8 times with the activation backoff.
func DefaultPlayPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 8,
		Backoff:     LinearBackoff(500*time.Millisecond, 100*time.Millisecond),
	}
}

// Immediate retries up to attempts times without waiting.
func Immediate(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts}
}

func (p RetryPolicy) wait(attempt int) time.Duration {
	if p.Backoff == nil {
		return 0
	}
	return p.Backoff(attempt)
}

func sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
