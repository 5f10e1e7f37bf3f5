package main

import (
	"context"
	"fmt"
	"path/filepath"

	"codesmith/internal/config"
	"codesmith/internal/llm"
	"codesmith/internal/usage"
)

// buildClient assembles the generation client stack from config: genai
// endpoint, rate limiter, serial dispatcher, backoff clock, usage tracker.
func buildClient(ctx context.Context, cfg config.Config) (*llm.GenerationClient, *usage.Tracker, error) {
	endpoint, err := llm.NewGenAIEndpoint(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build generation endpoint: %w", err)
	}

	tracker, err := usage.NewTracker(dataDir(cfg))
	if err != nil {
		return nil, nil, err
	}

	client := llm.NewGenerationClient(endpoint, llm.ClientConfig{
		Temperature:     cfg.LLM.Temperature,
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		CallTimeout:     cfg.LLMTimeout(),
		CallsPerMinute:  cfg.RateLimit.CallsPerMinute,
	}, tracker)
	return client, tracker, nil
}

// dataDir is where usage and the default sqlite database live.
func dataDir(cfg config.Config) string {
	return filepath.Dir(cfg.Store.Path)
}
