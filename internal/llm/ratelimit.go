package llm

import (
	"sync"
	"time"
)

// rateWindow is the rolling window length for call quotas.
const rateWindow = 60 * time.Second

// RateLimiter enforces a per-model call quota over a rolling 60-second
// window. Consume never blocks: callers that exceed the quota are rejected
// immediately and waiting is delegated to the backoff clock and dispatcher.
type RateLimiter struct {
	mu      sync.Mutex
	quota   int
	nowFn   func() time.Time
	buckets map[string][]time.Time // model -> timestamps of calls in window
}

// NewRateLimiter creates a limiter allowing quota calls per model per
// rolling minute. Quotas should sit below the real endpoint limits to
// leave headroom for out-of-band calls.
func NewRateLimiter(quota int) *RateLimiter {
	return NewRateLimiterWithClock(quota, time.Now)
}

// NewRateLimiterWithClock injects the clock. Tests use a fake.
func NewRateLimiterWithClock(quota int, nowFn func() time.Time) *RateLimiter {
	if quota < 1 {
		quota = 1
	}
	return &RateLimiter{
		quota:   quota,
		nowFn:   nowFn,
		buckets: make(map[string][]time.Time),
	}
}

// Consume takes one call slot for model. It returns false when the window
// quota is already spent; the caller should surface a rate-limited outcome.
func (r *RateLimiter) Consume(model string) bool {
	now := r.nowFn()
	cutoff := now.Add(-rateWindow)

	r.mu.Lock()
	defer r.mu.Unlock()

	calls := r.buckets[model]
	kept := calls[:0]
	for _, t := range calls {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= r.quota {
		r.buckets[model] = kept
		return false
	}
	r.buckets[model] = append(kept, now)
	return true
}

// Remaining reports how many calls are left in the current window.
func (r *RateLimiter) Remaining(model string) int {
	now := r.nowFn()
	cutoff := now.Add(-rateWindow)

	r.mu.Lock()
	defer r.mu.Unlock()

	used := 0
	for _, t := range r.buckets[model] {
		if t.After(cutoff) {
			used++
		}
	}
	if used > r.quota {
		return 0
	}
	return r.quota - used
}
