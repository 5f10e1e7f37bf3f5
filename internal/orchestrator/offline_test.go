package orchestrator

import (
	"testing"

	"codesmith/internal/llm"
)

func TestQuotaTripsImmediatelyAndSticks(t *testing.T) {
	o := NewOfflineController()
	o.RecordFailure(llm.KindQuotaExceeded)
	if !o.IsOffline() {
		t.Fatal("quota exhaustion should trip offline mode immediately")
	}

	for i := 0; i < 1000; i++ {
		o.RecordSuccess()
	}
	if !o.IsOffline() {
		t.Fatal("successes must never clear offline mode")
	}

	o.Reset()
	if o.IsOffline() {
		t.Fatal("explicit reset should clear offline mode")
	}
	if _, failures := o.Snapshot(); failures != 0 {
		t.Fatalf("failures after reset = %d, want 0", failures)
	}
}

func TestStreakOfTwoTrips(t *testing.T) {
	o := NewOfflineController()

	o.RecordFailure(llm.KindEmptyResponse)
	if o.IsOffline() {
		t.Fatal("one failure should not trip offline mode")
	}
	o.RecordFailure(llm.KindEmptyResponse)
	if !o.IsOffline() {
		t.Fatal("two consecutive empty responses should trip offline mode")
	}
}

func TestSuccessBreaksStreak(t *testing.T) {
	o := NewOfflineController()

	o.RecordFailure(llm.KindRateLimited)
	o.RecordSuccess()
	o.RecordFailure(llm.KindRateLimited)
	if o.IsOffline() {
		t.Fatal("a success in between must reset the streak")
	}
	if _, failures := o.Snapshot(); failures != 1 {
		t.Fatalf("failures = %d, want 1", failures)
	}
}

func TestMixedStreakKindsAccumulate(t *testing.T) {
	o := NewOfflineController()
	o.RecordFailure(llm.KindRateLimited)
	o.RecordFailure(llm.KindContentBlocked)
	if !o.IsOffline() {
		t.Fatal("streak kinds accumulate across kinds")
	}
}

func TestTerminalNonQuotaResetsStreak(t *testing.T) {
	o := NewOfflineController()
	o.RecordFailure(llm.KindEmptyResponse)
	o.RecordFailure(llm.KindInvalidRequest) // caller bug, not endpoint health
	o.RecordFailure(llm.KindEmptyResponse)
	if o.IsOffline() {
		t.Fatal("terminal non-quota failure should have reset the streak")
	}
}

func TestSaturationMakesFurtherFailuresNoOps(t *testing.T) {
	o := NewOfflineController()
	o.RecordFailure(llm.KindQuotaExceeded)
	_, before := o.Snapshot()

	o.RecordFailure(llm.KindEmptyResponse)
	o.RecordFailure(llm.KindInvalidRequest)
	_, after := o.Snapshot()
	if before != after {
		t.Fatalf("failures changed %d -> %d after saturation", before, after)
	}
}
