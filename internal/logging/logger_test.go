package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGetBeforeInitializeIsNop(t *testing.T) {
	Initialize(nil, Config{})
	l := Get(CategoryAPI)
	if l == nil {
		t.Fatal("expected nop logger, got nil")
	}
	// Must not panic.
	l.Infof("into the void %d", 1)
}

func TestCategoryToggle(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Initialize(zap.New(core), Config{
		Categories: map[string]bool{"dispatch": false},
	})
	defer InitializeNop()

	API("hello %s", "api")
	Dispatch("hello %s", "dispatch")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry (dispatch disabled), got %d", len(entries))
	}
	if entries[0].LoggerName != "api" {
		t.Errorf("expected logger name api, got %q", entries[0].LoggerName)
	}
}

func TestUnlistedCategoryEnabled(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Initialize(zap.New(core), Config{
		Categories: map[string]bool{"dispatch": false},
	})
	defer InitializeNop()

	Orchestrator("batch %d", 1)
	if logs.Len() != 1 {
		t.Fatalf("unlisted category should log, got %d entries", logs.Len())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"":      zapcore.InfoLevel,
		"wat":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
