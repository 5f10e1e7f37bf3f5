package orchestrator

import (
	"sync"

	"codesmith/internal/llm"
	"codesmith/internal/logging"
)

// streakThreshold is how many consecutive retryable-streak failures trip
// offline mode.
const streakThreshold = 2

// saturatedFailures pins the counter after a quota trip so later failures
// are no-ops until an explicit reset.
const saturatedFailures = 1 << 20

// OfflineController is the process-wide offline-mode state machine. One
// instance is constructed at startup and injected everywhere it is
// consulted; tests build a fresh one per case.
//
// Once offline, only an explicit Reset clears the flag. Successes reset
// the consecutive-failure counter but never the mode itself.
type OfflineController struct {
	mu                  sync.Mutex
	offline             bool
	consecutiveFailures int
}

// NewOfflineController returns an online controller.
func NewOfflineController() *OfflineController {
	return &OfflineController{}
}

// IsOffline reports whether network attempts are disabled.
func (o *OfflineController) IsOffline() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.offline
}

// RecordFailure updates the state machine after a classified failure.
//
// QuotaExceeded trips offline immediately and saturates the counter: the
// quota is dead for the day, further calls only waste budget. The streak
// kinds (rate-limited, empty, blocked) trip after streakThreshold in a
// row. Other terminal kinds indicate a caller problem, not endpoint
// health, and reset the streak.
func (o *OfflineController) RecordFailure(kind llm.ErrorKind) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.consecutiveFailures >= saturatedFailures {
		return
	}

	switch kind {
	case llm.KindQuotaExceeded:
		o.consecutiveFailures = saturatedFailures
		if !o.offline {
			o.offline = true
			logging.Offline("offline mode: quota exhausted, disabling network attempts until reset")
		}
	case llm.KindRateLimited, llm.KindEmptyResponse, llm.KindContentBlocked:
		o.consecutiveFailures++
		if o.consecutiveFailures >= streakThreshold && !o.offline {
			o.offline = true
			logging.Offline("offline mode: %d consecutive %s failures", o.consecutiveFailures, kind)
		}
	case llm.KindInvalidRequest, llm.KindInvalidCredential, llm.KindEndpointNotFound, llm.KindCancelled:
		// Terminal, non-quota: says nothing about endpoint health.
		o.consecutiveFailures = 0
	default:
		// ServerError/Unknown: retryable noise, neither evidence of a
		// streak nor of recovery.
	}
}

// RecordSuccess resets the failure streak. It does not clear offline mode.
func (o *OfflineController) RecordSuccess() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.consecutiveFailures < saturatedFailures {
		o.consecutiveFailures = 0
	}
}

// Reset clears both fields. Operator/test use only; nothing resets
// automatically.
func (o *OfflineController) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.offline {
		logging.Offline("offline mode cleared by explicit reset")
	}
	o.offline = false
	o.consecutiveFailures = 0
}

// Snapshot returns the current state for status surfaces.
func (o *OfflineController) Snapshot() (offline bool, consecutiveFailures int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.offline, o.consecutiveFailures
}
