package llm

import (
	"sync"
	"time"

	"codesmith/internal/logging"
)

// BackoffClock is the shared cooldown gate in front of the generation
// endpoint. A rate-limited outcome with a suggested delay marks the clock
// busy; every caller checks it before dispatching and short-circuits while
// the cooldown is active. This is NOT the per-attempt exponential sequence
// (that lives in the orchestrator's retry loop): it is one gate shared by
// all callers of one GenerationClient.
type BackoffClock struct {
	mu        sync.Mutex
	busyUntil time.Time
}

// NewBackoffClock returns an idle clock.
func NewBackoffClock() *BackoffClock {
	return &BackoffClock{}
}

// ShouldWait reports whether a cooldown is active at now, and if so for
// how much longer.
func (b *BackoffClock) ShouldWait(now time.Time) (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if now.Before(b.busyUntil) {
		return b.busyUntil.Sub(now), true
	}
	return 0, false
}

// RecordRateLimited starts a cooldown of retryAfterSeconds from now.
// Only rate-limited outcomes move the clock.
func (b *BackoffClock) RecordRateLimited(now time.Time, retryAfterSeconds int) {
	if retryAfterSeconds <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	until := now.Add(time.Duration(retryAfterSeconds) * time.Second)
	if until.After(b.busyUntil) {
		b.busyUntil = until
		logging.API("backoff: cooling down for %ds (until %s)", retryAfterSeconds, until.Format(time.RFC3339))
	}
}
