// Package logging provides config-driven categorized logging for codesmith.
// Each subsystem logs under its own category; categories can be toggled
// individually so a noisy subsystem can be silenced without losing the rest.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryAPI          Category = "api"          // Generation endpoint calls
	CategoryDispatch     Category = "dispatch"     // Serial dispatcher queue
	CategoryOrchestrator Category = "orchestrator" // Job batching and retry
	CategoryOffline      Category = "offline"      // Offline mode transitions
	CategoryAnalyzers    Category = "analyzers"    // Analyzer prompt/parse activity
	CategoryStore        Category = "store"        // Snippet/transcript persistence
	CategoryServer       Category = "server"       // HTTP API
	CategoryUsage        Category = "usage"        // Token usage tracking
)

// Config controls which categories emit.
type Config struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	Categories map[string]bool `yaml:"categories"` // empty = all enabled
}

var (
	mu      sync.RWMutex
	root    *zap.Logger
	loggers = make(map[Category]*zap.SugaredLogger)
	cfg     Config
	nop     = zap.NewNop().Sugar()
)

// Initialize installs the root logger and category config.
// Safe to call more than once; the last call wins.
func Initialize(logger *zap.Logger, c Config) {
	mu.Lock()
	defer mu.Unlock()
	root = logger
	cfg = c
	loggers = make(map[Category]*zap.SugaredLogger)
}

// InitializeNop disables all logging. Used by tests.
func InitializeNop() {
	Initialize(zap.NewNop(), Config{})
}

// ParseLevel maps a config level string onto a zap level, defaulting to info.
func ParseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Get returns the sugared logger for a category.
// Disabled categories (and an uninitialized package) get a nop logger.
func Get(c Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[c]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[c]; ok {
		return l
	}
	if root == nil || !enabled(c) {
		loggers[c] = nop
		return nop
	}
	l := root.Named(string(c)).Sugar()
	loggers[c] = l
	return l
}

func enabled(c Category) bool {
	if len(cfg.Categories) == 0 {
		return true
	}
	on, listed := cfg.Categories[string(c)]
	if !listed {
		return true
	}
	return on
}

// Convenience helpers for the hot categories. Format-style, like fmt.Printf.

func API(format string, args ...interface{})      { Get(CategoryAPI).Infof(format, args...) }
func APIDebug(format string, args ...interface{}) { Get(CategoryAPI).Debugf(format, args...) }
func Dispatch(format string, args ...interface{}) { Get(CategoryDispatch).Infof(format, args...) }
func DispatchDebug(format string, args ...interface{}) {
	Get(CategoryDispatch).Debugf(format, args...)
}
func Orchestrator(format string, args ...interface{}) {
	Get(CategoryOrchestrator).Infof(format, args...)
}
func OrchestratorDebug(format string, args ...interface{}) {
	Get(CategoryOrchestrator).Debugf(format, args...)
}
func Offline(format string, args ...interface{}) { Get(CategoryOffline).Warnf(format, args...) }
func Server(format string, args ...interface{})  { Get(CategoryServer).Infof(format, args...) }
