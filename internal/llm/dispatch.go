package llm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"codesmith/internal/logging"
)

// SerialDispatcher executes outbound endpoint calls strictly one at a time,
// in submission order, no matter how many callers submit concurrently. The
// external endpoint tolerates far less concurrency than the UI generates;
// serializing avoids thundering-herd 429s.
//
// Cancellation: a task whose submission context is done before the worker
// reaches it is skipped without executing. An already-started task is never
// aborted; its result is simply discarded by the caller.
type SerialDispatcher struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []*dispatchTask
	stopped bool

	totalExecuted int64
	totalSkipped  int64

	done chan struct{}
}

type dispatchTask struct {
	id     string
	ctx    context.Context
	fn     func(context.Context) (*Response, error)
	result chan dispatchResult
	queued time.Time
}

type dispatchResult struct {
	resp *Response
	err  error
}

// NewSerialDispatcher starts the single worker.
func NewSerialDispatcher() *SerialDispatcher {
	d := &SerialDispatcher{done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.worker()
	return d
}

// Enqueue submits fn and blocks until it has run (or was skipped). The
// worker context passed to fn is independent of ctx: once a call starts it
// runs to completion even if the submitter goes away.
func (d *SerialDispatcher) Enqueue(ctx context.Context, fn func(context.Context) (*Response, error)) (*Response, error) {
	task := &dispatchTask{
		id:     uuid.NewString()[:8],
		ctx:    ctx,
		fn:     fn,
		result: make(chan dispatchResult, 1),
		queued: time.Now(),
	}

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil, fmt.Errorf("dispatcher stopped")
	}
	d.pending = append(d.pending, task)
	depth := len(d.pending)
	d.cond.Signal()
	d.mu.Unlock()

	if depth > 1 {
		logging.DispatchDebug("task %s queued behind %d others", task.id, depth-1)
	}

	r := <-task.result
	return r.resp, r.err
}

func (d *SerialDispatcher) worker() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.pending) == 0 && !d.stopped {
			d.cond.Wait()
		}
		if d.stopped && len(d.pending) == 0 {
			d.mu.Unlock()
			return
		}
		task := d.pending[0]
		d.pending = d.pending[1:]
		d.mu.Unlock()

		if err := task.ctx.Err(); err != nil {
			// Skipped before starting: never executed.
			atomic.AddInt64(&d.totalSkipped, 1)
			task.result <- dispatchResult{err: err}
			continue
		}

		// Started tasks detach from the submitter: cancelling the
		// submission context only discards the result, it never aborts
		// the call mid-flight.
		callCtx := context.WithoutCancel(task.ctx)

		start := time.Now()
		resp, err := task.fn(callCtx)
		atomic.AddInt64(&d.totalExecuted, 1)
		logging.DispatchDebug("task %s executed in %v (waited %v)",
			task.id, time.Since(start), start.Sub(task.queued))

		task.result <- dispatchResult{resp: resp, err: err}
	}
}

// QueueDepth returns the number of not-yet-started tasks.
func (d *SerialDispatcher) QueueDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Executed returns how many tasks actually ran.
func (d *SerialDispatcher) Executed() int64 {
	return atomic.LoadInt64(&d.totalExecuted)
}

// Stop drains the queue and terminates the worker. Pending tasks still run;
// new Enqueue calls fail.
func (d *SerialDispatcher) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.cond.Signal()
	d.mu.Unlock()
	<-d.done
}
