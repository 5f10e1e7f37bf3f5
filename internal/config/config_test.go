package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Orchestrator, cfg.Orchestrator)
	assert.Equal(t, 8, cfg.RateLimit.CallsPerMinute)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codesmith.yaml")
	yaml := `
llm:
  model: gemini-2.5-pro
  max_output_tokens: 8192
orchestrator:
  max_concurrency: 3
  max_retries: 1
  backoff_multiplier: 1.5
rate_limit:
  calls_per_minute: 4
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
	assert.Equal(t, 8192, cfg.LLM.MaxOutputTokens)
	assert.Equal(t, 3, cfg.Orchestrator.MaxConcurrency)
	assert.Equal(t, 1, cfg.Orchestrator.MaxRetries)
	assert.Equal(t, 4, cfg.RateLimit.CallsPerMinute)
	// Unset fields keep defaults.
	assert.Equal(t, Default().Orchestrator.TimeoutMs, cfg.Orchestrator.TimeoutMs)
}

func TestEnvOverridesWin(t *testing.T) {
	t.Setenv("CODESMITH_API_KEY", "env-key")
	t.Setenv("CODESMITH_MODEL", "gemini-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, "gemini-env", cfg.LLM.Model)
}

func TestValidateRejectsContractViolations(t *testing.T) {
	cfg := Default()
	cfg.Orchestrator.MaxConcurrency = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Orchestrator.BackoffMultiplier = 1.0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Orchestrator.MaxRetries = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.LLM.Timeout = "not-a-duration"
	assert.Error(t, cfg.Validate())
}

func TestLLMTimeoutParses(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "120s", cfg.LLM.Timeout)
	assert.Equal(t, float64(120), cfg.LLMTimeout().Seconds())
}
