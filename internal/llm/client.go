package llm

import (
	"context"
	"strings"
	"time"

	"codesmith/internal/logging"
)

// ClientConfig configures a GenerationClient.
type ClientConfig struct {
	Temperature      float64
	MaxOutputTokens  int           // default token budget per call
	CallTimeout      time.Duration // per endpoint call
	CallsPerMinute   int           // rolling-window quota
	DefaultOperation string        // usage-tracking label when none is given
}

// GenerationClient composes the rate limiter, serial dispatcher, backoff
// clock and error classifier around the raw endpoint call. It is the sole
// component that performs network I/O; everything else in the core is pure
// or touches only in-memory state.
//
// Generate never returns an error for classified endpoint failures; the
// Outcome carries the classification as a value.
type GenerationClient struct {
	endpoint   Endpoint
	clock      *BackoffClock
	limiter    *RateLimiter
	dispatcher *SerialDispatcher
	usage      UsageRecorder
	cfg        ClientConfig
	nowFn      func() time.Time
}

// NewGenerationClient wires the client stack around endpoint. usage may be
// nil when token tracking is not wanted.
func NewGenerationClient(endpoint Endpoint, cfg ClientConfig, usage UsageRecorder) *GenerationClient {
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 4096
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 120 * time.Second
	}
	if cfg.CallsPerMinute <= 0 {
		cfg.CallsPerMinute = 8
	}
	if cfg.DefaultOperation == "" {
		cfg.DefaultOperation = "generate"
	}
	return &GenerationClient{
		endpoint:   endpoint,
		clock:      NewBackoffClock(),
		limiter:    NewRateLimiter(cfg.CallsPerMinute),
		dispatcher: NewSerialDispatcher(),
		usage:      usage,
		cfg:        cfg,
		nowFn:      time.Now,
	}
}

// Generate produces text for prompt, or a classified failure outcome.
func (c *GenerationClient) Generate(ctx context.Context, prompt Prompt) Outcome {
	return c.GenerateOp(ctx, prompt, c.cfg.DefaultOperation)
}

// GenerateOp is Generate with a usage-tracking operation label.
func (c *GenerationClient) GenerateOp(ctx context.Context, prompt Prompt, operation string) Outcome {
	// Fail fast during an active cooldown; never silently hang.
	if wait, busy := c.clock.ShouldWait(c.nowFn()); busy {
		secs := int(wait.Seconds()) + 1
		logging.APIDebug("generate short-circuited: cooldown active for %ds", secs)
		return Outcome{Failure: &Failure{
			Kind:              KindRateLimited,
			Message:           "endpoint cooling down after rate limit",
			RetryAfterSeconds: secs,
		}}
	}

	if strings.TrimSpace(prompt.User) == "" {
		return failOutcome(KindInvalidRequest, "empty prompt")
	}

	if !c.limiter.Consume(c.endpoint.Model()) {
		logging.API("generate rejected: window quota spent for %s", c.endpoint.Model())
		return Outcome{Failure: &Failure{
			Kind:              KindRateLimited,
			Message:           "local call quota exhausted for this minute",
			RetryAfterSeconds: 60,
		}}
	}

	tokens := prompt.MaxOutputTokens
	if tokens <= 0 {
		tokens = c.cfg.MaxOutputTokens
	}

	resp, err := c.dispatcher.Enqueue(ctx, func(taskCtx context.Context) (*Response, error) {
		return c.callWithEscalation(taskCtx, prompt, tokens)
	})
	if err != nil {
		f := Classify(err)
		if f.Kind == KindRateLimited {
			c.clock.RecordRateLimited(c.nowFn(), f.RetryAfterSeconds)
		}
		logging.API("generate failed: %s", f.Error())
		return Outcome{Failure: f}
	}

	if c.usage != nil && (resp.PromptTokens > 0 || resp.OutputTokens > 0) {
		c.usage.Record(c.endpoint.Model(), operation, resp.PromptTokens, resp.OutputTokens)
	}
	return textOutcome(resp.Text)
}

// callWithEscalation performs the endpoint call, retrying exactly once with
// a doubled token budget when the response came back empty because the
// output was truncated. This bounded sub-retry is independent of any
// caller-level retry policy.
func (c *GenerationClient) callWithEscalation(ctx context.Context, prompt Prompt, tokens int) (*Response, error) {
	resp, err := c.call(ctx, prompt, tokens)
	if err != nil {
		return nil, err
	}
	if resp.Text == "" && resp.Truncated {
		logging.API("empty truncated response, escalating token budget %d -> %d", tokens, tokens*2)
		resp, err = c.call(ctx, prompt, tokens*2)
		if err != nil {
			return nil, err
		}
	}

	if resp.Blocked {
		return nil, &CallError{Blocked: true, Message: "response blocked by safety filter"}
	}
	if resp.Text == "" {
		return nil, &CallError{Empty: true, Message: "endpoint returned empty response"}
	}
	return resp, nil
}

func (c *GenerationClient) call(ctx context.Context, prompt Prompt, tokens int) (*Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	return c.endpoint.Call(callCtx, Request{
		System:          prompt.System,
		User:            prompt.User,
		MaxOutputTokens: tokens,
		Temperature:     c.cfg.Temperature,
	})
}

// Remaining exposes the limiter headroom for the current window.
func (c *GenerationClient) Remaining() int {
	return c.limiter.Remaining(c.endpoint.Model())
}

// Close stops the dispatcher worker.
func (c *GenerationClient) Close() {
	c.dispatcher.Stop()
}
