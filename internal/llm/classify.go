package llm

import (
	"context"
	"errors"
	"strings"
)

// CallError is the structured raw failure an endpoint adapter produces.
// Classification is a total function over this shape, so the classifier
// never has to guess from free text alone.
type CallError struct {
	HTTPStatus        int
	Message           string
	RetryDelaySeconds int    // from a structured retry-delay detail, 0 if absent
	QuotaFailure      bool   // structured quota-failure marker present
	DailyLimit        string // quota limit description when QuotaFailure
	Blocked           bool   // safety filter suppressed the response
	Empty             bool   // response arrived with no text
}

func (e *CallError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "generation endpoint call failed"
}

// credentialMarkers are the message fragments that distinguish a bad key
// from a malformed request on an HTTP 400.
var credentialMarkers = []string{
	"API key",
	"api_key",
	"API_KEY_INVALID",
	"credential",
}

// Classify maps a raw endpoint failure onto the closed ErrorKind taxonomy.
// Pure function; first match wins.
func Classify(err error) *Failure {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return &Failure{Kind: KindCancelled, Message: "call cancelled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		// No dedicated timeout kind; treat as retryable.
		return &Failure{Kind: KindUnknown, Message: "call timed out"}
	}

	var ce *CallError
	if !errors.As(err, &ce) {
		return &Failure{Kind: KindUnknown, Message: err.Error()}
	}

	switch ce.HTTPStatus {
	case 400:
		for _, marker := range credentialMarkers {
			if strings.Contains(ce.Message, marker) {
				return &Failure{Kind: KindInvalidCredential, Message: ce.Message}
			}
		}
		return &Failure{Kind: KindInvalidRequest, Message: ce.Message}
	case 404:
		return &Failure{Kind: KindEndpointNotFound, Message: ce.Message}
	case 403:
		return &Failure{Kind: KindQuotaExceeded, Message: ce.Message}
	case 429:
		if ce.QuotaFailure {
			msg := ce.Message
			if ce.DailyLimit != "" {
				msg = "daily quota exhausted (limit " + ce.DailyLimit + "): " + ce.Message
			}
			return &Failure{Kind: KindQuotaExceeded, Message: msg}
		}
		delay := ce.RetryDelaySeconds
		if delay <= 0 {
			delay = 60
		}
		return &Failure{Kind: KindRateLimited, Message: ce.Message, RetryAfterSeconds: delay}
	}
	if ce.HTTPStatus >= 500 {
		return &Failure{Kind: KindServerError, Message: ce.Message}
	}

	if ce.Blocked {
		return &Failure{Kind: KindContentBlocked, Message: ce.Message}
	}
	if ce.Empty {
		return &Failure{Kind: KindEmptyResponse, Message: ce.Message}
	}

	return &Failure{Kind: KindUnknown, Message: ce.Message}
}

// FailureFrom extracts a classified Failure from an error chain, classifying
// from scratch when none is present. Returns nil for nil errors.
func FailureFrom(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return Classify(err)
}
