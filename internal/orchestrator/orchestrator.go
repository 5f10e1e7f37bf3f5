package orchestrator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"codesmith/internal/llm"
	"codesmith/internal/logging"
)

// Orchestrator executes job batches. Construct one per config; the offline
// controller is shared process-wide and injected.
type Orchestrator struct {
	cfg     Config
	offline *OfflineController
	// sleep is swapped out by tests to make backoff timing observable
	// without real waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator with the given bounds.
func New(cfg Config, offline *OfflineController) *Orchestrator {
	if offline == nil {
		offline = NewOfflineController()
	}
	return &Orchestrator{
		cfg:     cfg.withDefaults(),
		offline: offline,
		sleep:   sleepCtx,
	}
}

// Offline exposes the injected controller for status surfaces.
func (o *Orchestrator) Offline() *OfflineController { return o.offline }

// Run executes jobs against input in consecutive batches of
// MaxConcurrency. Every requested job yields exactly one Result: a real
// payload, a fallback after exhausted retries, an offline placeholder, or
// a cancelled entry. One job's failure never aborts its batch; the only
// run-level failure mode is cancellation.
func (o *Orchestrator) Run(ctx context.Context, input string, jobs []Job, obs Observer) RunOutput {
	start := time.Now()
	total := len(jobs)
	results := make([]Result, total)

	logging.Orchestrator("run starting: %d jobs, batch size %d, timeout %v, retries %d",
		total, o.cfg.MaxConcurrency, o.cfg.Timeout, o.cfg.MaxRetries)

	cancelled := false
	for batchStart := 0; batchStart < total; batchStart += o.cfg.MaxConcurrency {
		if ctx.Err() != nil {
			// Whole-run cancellation: everything not yet finished becomes
			// a Cancelled entry; no further batch starts.
			for i := batchStart; i < total; i++ {
				results[i] = cancelledResult(jobs[i].Name)
			}
			cancelled = true
			break
		}

		batchEnd := batchStart + o.cfg.MaxConcurrency
		if batchEnd > total {
			batchEnd = total
		}
		logging.OrchestratorDebug("batch %d: jobs %d..%d", batchStart/o.cfg.MaxConcurrency+1, batchStart, batchEnd-1)

		var wg sync.WaitGroup
		for i := batchStart; i < batchEnd; i++ {
			i := i
			notify(obs, Progress{Current: i + 1, Total: total, Job: jobs[i].Name, Status: StatusRunning})
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = o.runJob(ctx, input, jobs[i])
			}()
		}
		wg.Wait()
	}

	out := o.aggregate(results, cancelled || ctx.Err() != nil, time.Since(start))
	notify(obs, Progress{Current: total, Total: total, Status: StatusCompleted})
	logging.Orchestrator("run finished in %v: score=%d, %d/%d succeeded, cancelled=%v",
		out.Summary.Duration, out.Summary.OverallScore, succeededCount(out.Results), total, cancelled)
	return out
}

// runJob executes one job with retry, per-attempt timeout and offline skip.
func (o *Orchestrator) runJob(ctx context.Context, input string, job Job) Result {
	if ctx.Err() != nil {
		return cancelledResult(job.Name)
	}

	if o.offline.IsOffline() {
		// The UI must still receive a well-formed result, never a missing
		// one: synthesize a neutral placeholder without touching the
		// network.
		logging.OrchestratorDebug("job %s skipped: offline mode", job.Name)
		return Result{
			Name:      job.Name,
			Succeeded: true,
			Offline:   true,
			Fallback:  true,
			Payload: Payload{
				Score:   NeutralScore,
				Summary: fmt.Sprintf("%s skipped: offline mode active, showing neutral placeholder", job.Name),
			},
		}
	}

	var lastFailure *llm.Failure
	attempts := 0
	maxAttempts := o.cfg.MaxRetries + 1

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := o.sleep(ctx, o.retryDelay(attempt)); err != nil {
				lastFailure = &llm.Failure{Kind: llm.KindCancelled, Message: "cancelled between attempts"}
				attempts = attempt
				break
			}
		}
		if ctx.Err() != nil {
			lastFailure = &llm.Failure{Kind: llm.KindCancelled, Message: "cancelled before attempt"}
			attempts = attempt
			break
		}

		attempts = attempt + 1
		payload, err := o.attempt(ctx, input, job)
		if err == nil {
			o.offline.RecordSuccess()
			return Result{
				Name:      job.Name,
				Succeeded: true,
				Payload:   payload,
				Attempts:  attempts,
			}
		}

		lastFailure = llm.FailureFrom(err)
		logging.OrchestratorDebug("job %s attempt %d/%d failed: %s",
			job.Name, attempts, maxAttempts, lastFailure.Error())

		// Terminal kinds stop the loop without consuming remaining
		// attempts; retrying a dead credential or spent quota only burns
		// budget.
		if !lastFailure.Kind.Retryable() {
			break
		}
	}

	o.offline.RecordFailure(lastFailure.Kind)
	return fallbackResult(job.Name, lastFailure, attempts)
}

// attempt races the job body against the per-attempt timeout and
// cancellation. An in-flight body is not forcibly aborted: losing results
// are discarded when its goroutine eventually finishes.
func (o *Orchestrator) attempt(ctx context.Context, input string, job Job) (Payload, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	type outcome struct {
		payload Payload
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		p, err := job.Run(attemptCtx, input)
		done <- outcome{p, err}
	}()

	select {
	case out := <-done:
		return out.payload, out.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return Payload{}, &llm.Failure{Kind: llm.KindCancelled, Message: "run cancelled"}
		}
		return Payload{}, &llm.Failure{
			Kind:    llm.KindUnknown,
			Message: fmt.Sprintf("attempt timed out after %v", o.cfg.Timeout),
		}
	}
}

// retryDelay is the exponential backoff before retry number attempt
// (1-based), capped at MaxDelay.
func (o *Orchestrator) retryDelay(attempt int) time.Duration {
	d := time.Duration(float64(o.cfg.BaseDelay) * math.Pow(o.cfg.BackoffMultiplier, float64(attempt-1)))
	if d > o.cfg.MaxDelay {
		return o.cfg.MaxDelay
	}
	return d
}

func (o *Orchestrator) aggregate(results []Result, cancelled bool, dur time.Duration) RunOutput {
	out := RunOutput{Results: results}

	scoreSum := 0
	anyOffline := false
	for _, r := range results {
		scoreSum += r.Payload.Score
		out.Summary.TotalIssues += len(r.Payload.Issues)
		out.Summary.TotalSuggestions += len(r.Payload.Suggestions)
		if r.Offline {
			anyOffline = true
		}
		if !r.Succeeded {
			out.Errors = append(out.Errors, JobError{
				Name:     r.Name,
				Kind:     r.ErrorKind,
				Message:  r.Error,
				Fallback: r.Fallback,
			})
		}
	}
	if len(results) > 0 {
		out.Summary.OverallScore = int(math.Round(float64(scoreSum) / float64(len(results))))
	}
	out.Summary.Cancelled = cancelled
	out.Summary.Offline = anyOffline
	out.Summary.Duration = dur
	return out
}

func cancelledResult(name string) Result {
	return Result{
		Name:      name,
		Succeeded: false,
		Fallback:  true,
		ErrorKind: llm.KindCancelled,
		Error:     "run cancelled",
		Payload: Payload{
			Score:   NeutralScore,
			Summary: name + " not run: cancelled",
		},
	}
}

func fallbackResult(name string, f *llm.Failure, attempts int) Result {
	return Result{
		Name:      name,
		Succeeded: false,
		Fallback:  true,
		ErrorKind: f.Kind,
		Error:     f.Message,
		Attempts:  attempts,
		Payload: Payload{
			Score:   NeutralScore,
			Summary: fmt.Sprintf("%s unavailable (%s), showing neutral placeholder", name, f.Kind),
		},
	}
}

func notify(obs Observer, p Progress) {
	if obs != nil {
		obs.OnProgress(p)
	}
}

func succeededCount(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Succeeded {
			n++
		}
	}
	return n
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
