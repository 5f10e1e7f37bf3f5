package llm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"codesmith/internal/logging"
)

// GenAIEndpoint is the production Endpoint backed by Google's Gemini API.
type GenAIEndpoint struct {
	client *genai.Client
	model  string
}

// NewGenAIEndpoint creates the Gemini-backed endpoint.
func NewGenAIEndpoint(ctx context.Context, apiKey, model string) (*GenAIEndpoint, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("generation API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("generation model is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GenAIEndpoint{client: client, model: model}, nil
}

// Model returns the endpoint identity used for rate-limit bucketing.
func (e *GenAIEndpoint) Model() string { return e.model }

// Call performs one generation request, translating the SDK's error and
// response shapes into the structured CallError/Response the core consumes.
func (e *GenAIEndpoint) Call(ctx context.Context, req Request) (*Response, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(req.MaxOutputTokens),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	contents := []*genai.Content{genai.NewContentFromText(req.User, genai.RoleUser)}

	result, err := e.client.Models.GenerateContent(ctx, e.model, contents, cfg)
	if err != nil {
		return nil, translateAPIError(err)
	}

	resp := &Response{Text: result.Text()}

	if result.UsageMetadata != nil {
		resp.PromptTokens = int(result.UsageMetadata.PromptTokenCount)
		resp.OutputTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}
	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		resp.Blocked = true
	}
	if len(result.Candidates) > 0 {
		switch result.Candidates[0].FinishReason {
		case genai.FinishReasonMaxTokens:
			resp.Truncated = true
		case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent:
			resp.Blocked = true
		}
	}

	logging.APIDebug("genai call done: model=%s text_len=%d truncated=%v blocked=%v",
		e.model, len(resp.Text), resp.Truncated, resp.Blocked)
	return resp, nil
}

// translateAPIError lifts a genai SDK error into the structured CallError
// the classifier consumes, pulling retry-delay and quota-failure details
// out of the google.rpc status payload when present.
func translateAPIError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	ce := &CallError{
		HTTPStatus: apiErr.Code,
		Message:    apiErr.Message,
	}

	for _, detail := range apiErr.Details {
		typ, _ := detail["@type"].(string)
		switch {
		case strings.HasSuffix(typ, "google.rpc.RetryInfo"):
			if delay, ok := detail["retryDelay"].(string); ok {
				ce.RetryDelaySeconds = parseRetryDelay(delay)
			}
		case strings.HasSuffix(typ, "google.rpc.QuotaFailure"):
			ce.QuotaFailure = true
			ce.DailyLimit = quotaLimit(detail)
		}
	}
	return ce
}

// parseRetryDelay parses the protobuf duration string form, e.g. "21s" or
// "21.5s". Returns 0 when unparsable; the classifier applies the default.
func parseRetryDelay(s string) int {
	s = strings.TrimSuffix(s, "s")
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func quotaLimit(detail map[string]interface{}) string {
	violations, ok := detail["violations"].([]interface{})
	if !ok || len(violations) == 0 {
		return ""
	}
	v, ok := violations[0].(map[string]interface{})
	if !ok {
		return ""
	}
	limit, _ := v["quotaValue"].(string)
	return limit
}
