package llm

import (
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func TestRateLimiterQuotaPerWindow(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	rl := NewRateLimiterWithClock(3, clk.Now)

	for i := 0; i < 3; i++ {
		if !rl.Consume("gemini-2.0-flash") {
			t.Fatalf("call %d should fit the quota", i+1)
		}
	}
	if rl.Consume("gemini-2.0-flash") {
		t.Fatal("fourth call should be rejected")
	}
	if rl.Remaining("gemini-2.0-flash") != 0 {
		t.Fatalf("remaining = %d, want 0", rl.Remaining("gemini-2.0-flash"))
	}
}

func TestRateLimiterRollingWindow(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	rl := NewRateLimiterWithClock(2, clk.Now)

	rl.Consume("m")
	clk.Advance(30 * time.Second)
	rl.Consume("m")
	if rl.Consume("m") {
		t.Fatal("window full, consume should fail")
	}

	// First call slides out of the 60s window; one slot frees up.
	clk.Advance(31 * time.Second)
	if !rl.Consume("m") {
		t.Fatal("slot should free after the oldest call leaves the window")
	}
	if rl.Consume("m") {
		t.Fatal("second slot still occupied")
	}
}

func TestRateLimiterBucketsPerModel(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	rl := NewRateLimiterWithClock(1, clk.Now)

	if !rl.Consume("model-a") {
		t.Fatal("model-a first call should pass")
	}
	if !rl.Consume("model-b") {
		t.Fatal("model-b has its own bucket")
	}
	if rl.Consume("model-a") {
		t.Fatal("model-a quota spent")
	}
}
