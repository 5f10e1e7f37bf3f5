// Package llm contains the AI request orchestration core's client stack:
// the rate-limited, serialized, backoff-aware GenerationClient that is the
// only component talking to the external generation endpoint, plus the pure
// error classification it relies on.
package llm

import (
	"context"
	"fmt"
)

// ErrorKind is the closed taxonomy of classified endpoint failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindRateLimited
	KindQuotaExceeded
	KindInvalidRequest
	KindInvalidCredential
	KindEndpointNotFound
	KindContentBlocked
	KindEmptyResponse
	KindServerError
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindInvalidRequest:
		return "invalid_request"
	case KindInvalidCredential:
		return "invalid_credential"
	case KindEndpointNotFound:
		return "endpoint_not_found"
	case KindContentBlocked:
		return "content_blocked"
	case KindEmptyResponse:
		return "empty_response"
	case KindServerError:
		return "server_error"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the kind as its string name so API consumers never
// see the raw enum value.
func (k ErrorKind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// Retryable reports whether another attempt at the same call can succeed.
// The flag is fixed per kind.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindRateLimited, KindServerError, KindEmptyResponse, KindUnknown:
		return true
	default:
		return false
	}
}

// Failure is a classified endpoint failure. It implements error so job
// bodies can propagate it through ordinary error returns without losing
// the classification.
type Failure struct {
	Kind              ErrorKind
	Message           string
	RetryAfterSeconds int // only meaningful for KindRateLimited
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Prompt is one immutable generation request.
type Prompt struct {
	System          string
	User            string
	MaxOutputTokens int // 0 = client default
}

// Outcome is the result of one Generate call: exactly one of Text or
// Failure is set.
type Outcome struct {
	Text    string
	Failure *Failure
}

// OK reports whether the outcome carries text.
func (o Outcome) OK() bool { return o.Failure == nil }

func textOutcome(text string) Outcome { return Outcome{Text: text} }

func failOutcome(kind ErrorKind, format string, args ...interface{}) Outcome {
	return Outcome{Failure: &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}}
}

// Request is what the endpoint adapter receives per call.
type Request struct {
	System          string
	User            string
	MaxOutputTokens int
	Temperature     float64
}

// Response is the raw (unclassified) endpoint result. Truncated means the
// model stopped because it ran out of output budget; Blocked means the
// safety filter suppressed the response.
type Response struct {
	Text         string
	Truncated    bool
	Blocked      bool
	PromptTokens int
	OutputTokens int
}

// Endpoint abstracts the external generation endpoint. Implementations do
// real network I/O and return either a Response or a raw error suitable
// for Classify.
type Endpoint interface {
	Call(ctx context.Context, req Request) (*Response, error)
	Model() string
}

// UsageRecorder receives token counts after successful endpoint calls.
type UsageRecorder interface {
	Record(model, operation string, promptTokens, outputTokens int)
}
