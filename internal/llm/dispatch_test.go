package llm

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"codesmith/internal/logging"
)

func TestMain(m *testing.M) {
	logging.InitializeNop()
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func TestDispatcherStrictFIFO(t *testing.T) {
	d := NewSerialDispatcher()
	defer d.Stop()

	const n = 20
	var mu sync.Mutex
	var order []int

	// Hold the worker on a blocker so queue order is observable.
	blockerStarted := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = d.Enqueue(context.Background(), func(context.Context) (*Response, error) {
			close(blockerStarted)
			<-release
			return &Response{Text: "blocker"}, nil
		})
	}()
	<-blockerStarted

	// Enqueue n tasks with a deterministic submission order: wait for each
	// to land in the queue before submitting the next.
	for i := 0; i < n; i++ {
		i := i
		depth := d.QueueDepth()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.Enqueue(context.Background(), func(context.Context) (*Response, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return &Response{Text: "ok"}, nil
			})
		}()
		for d.QueueDepth() == depth {
			time.Sleep(100 * time.Microsecond)
		}
	}

	close(release)
	wg.Wait()

	if len(order) != n {
		t.Fatalf("executed %d tasks, want %d", len(order), n)
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("execution order %v diverges from submission order at %d", order, i)
		}
	}
	if d.Executed() != int64(n+1) {
		t.Fatalf("Executed() = %d, want %d", d.Executed(), n+1)
	}
}

func TestDispatcherSerializesExecution(t *testing.T) {
	d := NewSerialDispatcher()
	defer d.Stop()

	var mu sync.Mutex
	running := 0
	maxRunning := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.Enqueue(context.Background(), func(context.Context) (*Response, error) {
				mu.Lock()
				running++
				if running > maxRunning {
					maxRunning = running
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
				return &Response{Text: "ok"}, nil
			})
		}()
	}
	wg.Wait()

	if maxRunning != 1 {
		t.Fatalf("observed %d concurrent executions, want exactly 1", maxRunning)
	}
}

func TestDispatcherSkipsCancelledQueuedTasks(t *testing.T) {
	d := NewSerialDispatcher()
	defer d.Stop()

	blockerStarted := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _ = d.Enqueue(context.Background(), func(context.Context) (*Response, error) {
			close(blockerStarted)
			<-release
			return &Response{Text: "blocker"}, nil
		})
	}()
	<-blockerStarted

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancelled before the worker can reach it

	executed := false
	_, err := enqueueAsync(d, ctx, func(context.Context) (*Response, error) {
		executed = true
		return &Response{Text: "never"}, nil
	}, release)

	if err == nil {
		t.Fatal("cancelled queued task should return an error")
	}
	if executed {
		t.Fatal("cancelled queued task must never execute")
	}
	if f := Classify(err); f.Kind != KindCancelled {
		t.Fatalf("classified kind = %s, want cancelled", f.Kind)
	}
}

// enqueueAsync enqueues behind an in-flight blocker, then releases the
// blocker so the worker reaches the new task.
func enqueueAsync(d *SerialDispatcher, ctx context.Context, fn func(context.Context) (*Response, error), release chan struct{}) (*Response, error) {
	type out struct {
		resp *Response
		err  error
	}
	ch := make(chan out, 1)
	go func() {
		resp, err := d.Enqueue(ctx, fn)
		ch <- out{resp, err}
	}()

	// Wait until the task is queued before releasing the blocker.
	for d.QueueDepth() == 0 {
		time.Sleep(time.Millisecond)
	}
	close(release)

	o := <-ch
	return o.resp, o.err
}

func TestDispatcherStartedTasksSurviveSubmitterCancel(t *testing.T) {
	d := NewSerialDispatcher()
	defer d.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	go func() {
		<-started
		cancel()
		close(cancelled)
	}()

	resp, err := d.Enqueue(ctx, func(taskCtx context.Context) (*Response, error) {
		close(started)
		<-cancelled
		select {
		case <-taskCtx.Done():
			return nil, taskCtx.Err()
		default:
		}
		return &Response{Text: "finished"}, nil
	})

	if err != nil {
		t.Fatalf("in-flight task was aborted by submitter cancellation: %v", err)
	}
	if resp.Text != "finished" {
		t.Fatalf("response = %+v, want the completed call", resp)
	}
	if d.Executed() != 1 {
		t.Fatalf("Executed() = %d, want 1", d.Executed())
	}
}

func TestDispatcherStopRejectsNewWork(t *testing.T) {
	d := NewSerialDispatcher()
	d.Stop()

	_, err := d.Enqueue(context.Background(), func(context.Context) (*Response, error) {
		return &Response{}, nil
	})
	if err == nil {
		t.Fatal("enqueue after Stop should fail")
	}
}
