package orchestrator

// Status is the progress phase reported for one job.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Progress is one fire-and-forget progress event. Emitted before each job
// starts and once more when the whole run completes.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Job     string `json:"job,omitempty"`
	Status  Status `json:"status"`
}

// Observer receives progress events. Implementations must not block: the
// orchestrator calls OnProgress inline with no backpressure.
type Observer interface {
	OnProgress(Progress)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Progress)

func (f ObserverFunc) OnProgress(p Progress) { f(p) }

// ChannelObserver buffers progress events onto a channel, dropping when
// full so a slow consumer cannot stall a run. Handy for SSE streaming and
// for tests that want timing-independent assertions.
type ChannelObserver struct {
	ch chan Progress
}

// NewChannelObserver creates an observer with the given buffer.
func NewChannelObserver(buffer int) *ChannelObserver {
	if buffer < 1 {
		buffer = 16
	}
	return &ChannelObserver{ch: make(chan Progress, buffer)}
}

// Events returns the receive side.
func (o *ChannelObserver) Events() <-chan Progress { return o.ch }

// Close releases the channel once the run is done.
func (o *ChannelObserver) Close() { close(o.ch) }

func (o *ChannelObserver) OnProgress(p Progress) {
	select {
	case o.ch <- p:
	default:
		// Drop rather than block the run.
	}
}
