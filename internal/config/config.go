// Package config loads and validates codesmith configuration.
// Configuration comes from a YAML file with environment-variable overrides;
// the loaded Config is immutable and read at the start of each run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"codesmith/internal/logging"
)

// Config is the root configuration for the codesmith server and CLI.
type Config struct {
	LLM          LLMConfig          `yaml:"llm"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Server       ServerConfig       `yaml:"server"`
	Store        StoreConfig        `yaml:"store"`
	Logging      logging.Config     `yaml:"logging"`
}

// LLMConfig configures the generation endpoint client.
type LLMConfig struct {
	APIKey          string  `yaml:"api_key"`
	Model           string  `yaml:"model"`
	Temperature     float64 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	Timeout         string  `yaml:"timeout"` // per-call HTTP timeout, e.g. "120s"
}

// OrchestratorConfig configures the analyzer job orchestrator.
// Replaced wholesale between runs, never mutated in place.
type OrchestratorConfig struct {
	EnabledJobs       []string `yaml:"enabled_jobs"` // empty = all analyzers
	MaxConcurrency    int      `yaml:"max_concurrency"`
	TimeoutMs         int      `yaml:"timeout_ms"`
	MaxRetries        int      `yaml:"max_retries"`
	BackoffMultiplier float64  `yaml:"backoff_multiplier"`
}

// RateLimitConfig configures the per-model rolling-window limiter.
// Quotas should sit below the real endpoint limits to leave headroom.
type RateLimitConfig struct {
	CallsPerMinute int `yaml:"calls_per_minute"`
}

// ServerConfig configures the HTTP API for the browser UI.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StoreConfig configures snippet/transcript persistence.
type StoreConfig struct {
	Path string `yaml:"path"` // sqlite database file
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Model:           "gemini-2.0-flash",
			Temperature:     0.2,
			MaxOutputTokens: 4096,
			Timeout:         "120s",
		},
		Orchestrator: OrchestratorConfig{
			MaxConcurrency:    2,
			TimeoutMs:         45000,
			MaxRetries:        2,
			BackoffMultiplier: 2.0,
		},
		RateLimit: RateLimitConfig{
			// 8 of the real 10/min free-tier budget, headroom for manual calls.
			CallsPerMinute: 8,
		},
		Server: ServerConfig{Addr: "127.0.0.1:8743"},
		Store:  StoreConfig{Path: ".codesmith/codesmith.db"},
		Logging: logging.Config{
			Level: "info",
		},
	}
}

// Load reads the config file at path, falling back to defaults when the file
// does not exist, then applies environment overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults + env only.
	case err != nil:
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment environments win over the file.
// CODESMITH_API_KEY in particular keeps the key out of the YAML.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CODESMITH_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("CODESMITH_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("CODESMITH_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CODESMITH_DB"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("CODESMITH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate applies defaults to zero values and rejects contract violations.
func (c *Config) Validate() error {
	d := Default()

	if c.LLM.Model == "" {
		c.LLM.Model = d.LLM.Model
	}
	if c.LLM.MaxOutputTokens <= 0 {
		c.LLM.MaxOutputTokens = d.LLM.MaxOutputTokens
	}
	if c.LLM.Timeout == "" {
		c.LLM.Timeout = d.LLM.Timeout
	}
	if _, err := time.ParseDuration(c.LLM.Timeout); err != nil {
		return fmt.Errorf("invalid llm.timeout %q: %w", c.LLM.Timeout, err)
	}

	if c.Orchestrator.MaxConcurrency < 1 {
		return fmt.Errorf("orchestrator.max_concurrency must be >= 1, got %d", c.Orchestrator.MaxConcurrency)
	}
	if c.Orchestrator.MaxRetries < 0 {
		return fmt.Errorf("orchestrator.max_retries must be >= 0, got %d", c.Orchestrator.MaxRetries)
	}
	if c.Orchestrator.TimeoutMs <= 0 {
		c.Orchestrator.TimeoutMs = d.Orchestrator.TimeoutMs
	}
	if c.Orchestrator.BackoffMultiplier <= 1 {
		return fmt.Errorf("orchestrator.backoff_multiplier must be > 1, got %g", c.Orchestrator.BackoffMultiplier)
	}

	if c.RateLimit.CallsPerMinute <= 0 {
		c.RateLimit.CallsPerMinute = d.RateLimit.CallsPerMinute
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Store.Path == "" {
		c.Store.Path = d.Store.Path
	}
	return nil
}

// LLMTimeout returns the parsed per-call timeout. Validate guarantees it parses.
func (c *Config) LLMTimeout() time.Duration {
	dur, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return dur
}

// DefaultPath returns the conventional config location under the workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, "codesmith.yaml")
}
