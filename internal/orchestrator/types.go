// Package orchestrator runs a fixed set of independent analysis jobs
// against one input in concurrency-bounded batches, with per-job retry,
// per-attempt timeout, cooperative cancellation, and graceful degradation
// to offline fallback results.
package orchestrator

import (
	"context"
	"time"

	"codesmith/internal/llm"
)

// NeutralScore is the score a job contributes when it failed or was
// skipped offline, so the aggregate mean stays defined.
const NeutralScore = 50

// Payload is the structured result a job body produces. The orchestrator
// interprets only Score; everything else passes through to the caller.
type Payload struct {
	Score       int      `json:"score"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
	Summary     string   `json:"summary"`
}

// Job is one opaque analysis task. Run either returns a payload or an
// error; classified failures (*llm.Failure) keep their kind through the
// retry loop.
type Job struct {
	Name string
	Run  func(ctx context.Context, input string) (Payload, error)
}

// Config bounds one orchestrator run. Immutable per instance; build a new
// orchestrator to change it.
type Config struct {
	MaxConcurrency    int
	Timeout           time.Duration // per attempt, not per job overall
	MaxRetries        int
	BackoffMultiplier float64
	BaseDelay         time.Duration // first retry delay; defaults to 500ms
	MaxDelay          time.Duration // backoff cap; defaults to 8s
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrency < 1 {
		c.MaxConcurrency = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 45 * time.Second
	}
	if c.BackoffMultiplier <= 1 {
		c.BackoffMultiplier = 2.0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 8 * time.Second
	}
	return c
}

// Result is the per-job outcome. Failed and offline-skipped jobs still
// carry a well-formed fallback payload; callers never see a hole.
type Result struct {
	Name      string        `json:"name"`
	Succeeded bool          `json:"succeeded"`
	Fallback  bool          `json:"fallback"`
	Offline   bool          `json:"offline"`
	Payload   Payload       `json:"payload"`
	ErrorKind llm.ErrorKind `json:"-"`
	Error     string        `json:"error,omitempty"`
	Attempts  int           `json:"attempts"`
}

// JobError is one entry in the run's error list.
type JobError struct {
	Name     string        `json:"name"`
	Kind     llm.ErrorKind `json:"kind"`
	Message  string        `json:"message"`
	Fallback bool          `json:"fallback"`
}

// Summary aggregates the run.
type Summary struct {
	OverallScore     int           `json:"overall_score"` // mean of per-job scores, rounded
	TotalIssues      int           `json:"total_issues"`
	TotalSuggestions int           `json:"total_suggestions"`
	Cancelled        bool          `json:"cancelled"`
	Offline          bool          `json:"offline"`
	Duration         time.Duration `json:"-"`
}

// RunOutput is the complete, well-formed response: one result per
// requested job, always.
type RunOutput struct {
	Results []Result   `json:"results"`
	Errors  []JobError `json:"errors"`
	Summary Summary    `json:"summary"`
}
