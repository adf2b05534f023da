package nlp

import (
	"sync"
	"time"
)

const (
	// DefaultRateLimit is the maximum number of inference calls allowed per
	// user per minute when no explicit limit is configured.
	DefaultRateLimit = 20

	// defaultRateLimitWindow is the sliding window duration.
	defaultRateLimitWindow = time.Minute
)

// RateLimiter enforces a per-user sliding-window limit on inference calls.
//
// It holds the call timestamps for each user within the current window and
// prunes stale entries on every Allow call, keeping memory bounded to
// O(limit) entries per active user.
//
// RateLimiter is safe for concurrent use from multiple goroutines.
type RateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	counters map[string][]time.Time // userID → call timestamps in window
	now      func() time.Time
}

// NewRateLimiter returns a RateLimiter that allows at most limit calls per
// user within window.
//
// If limit ≤ 0 it defaults to DefaultRateLimit.
// If window ≤ 0 it defaults to one minute.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	return &RateLimiter{
		limit:    limit,
		window:   window,
		counters: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether userID may make another inference call and, when
// yes, records the call. The expected caller pattern is:
//
//	if !limiter.Allow(userID) {
//	    return ErrRateLimit
//	}
//	resp, err := provider.Generate(ctx, req)
func (r *RateLimiter) Allow(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-r.window)

	// Prune timestamps that have fallen outside the window.
	existing := r.counters[userID]
	valid := existing[:0] // reuse backing array
	for _, t := range existing {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= r.limit {
		r.counters[userID] = valid
		return false
	}

	r.counters[userID] = append(valid, now)
	return true
}

// Remaining returns the number of calls userID can still make within the
// current window. A return value of 0 means the next Allow call will
// return false.
func (r *RateLimiter) Remaining(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.window)
	count := 0
	for _, t := range r.counters[userID] {
		if t.After(cutoff) {
			count++
		}
	}
	rem := r.limit - count
	if rem < 0 {
		return 0
	}
	return rem
}
