// Package retry re-runs transient-failure-prone calls with jittered
// exponential backoff. Akari uses it on outbound HTTP (web search); model
// calls are deliberately not retried, the user's next message is the retry.
package retry

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// A Policy describes how many times to attempt a call and how long to wait
// between attempts. The zero value attempts once with no waiting.
type Policy struct {
	Attempts  int                  // total attempts, including the first
	BaseDelay time.Duration        // delay before the second attempt
	CapDelay  time.Duration        // upper bound on any single delay
	Retryable func(err error) bool // nil retries every error
}

// delay returns the wait after the given failed attempt (1-based): base
// doubled per attempt, capped, with up to 25% random jitter subtracted so
// concurrent callers spread out.
func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if p.CapDelay > 0 && d > p.CapDelay {
		d = p.CapDelay
	}
	if d > 0 {
		d -= time.Duration(rand.Int63n(int64(d)/4 + 1))
	}
	return d
}

// Do runs fn until it succeeds, the policy is exhausted, a non-retryable
// error occurs, or ctx is done. It returns nil on success, ctx.Err() on
// cancellation, and otherwise the last error fn returned.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt >= attempts {
			return lastErr
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}

		wait := p.delay(attempt)
		slog.Debug("retrying after failure",
			"attempt", attempt, "of", attempts, "wait", wait, "err", lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
