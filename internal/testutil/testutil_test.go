package testutil

import (
	"testing"
	"time"
)

func TestFakeClock_Now(t *testing.T) {
	fixed := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := NewFakeClock(fixed)

	got := clock.Now()
	if !got.Equal(fixed) {
		t.Errorf("Now() = %v, want %v", got, fixed)
	}
}

func TestFakeClock_Advance(t *testing.T) {
	fixed := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := NewFakeClock(fixed)

	clock.Advance(5 * time.Minute)

	want := fixed.Add(5 * time.Minute)
	got := clock.Now()
	if !got.Equal(want) {
		t.Errorf("after Advance(5m), Now() = %v, want %v", got, want)
	}
}

func TestTestContext_HasDeadline(t *testing.T) {
	ctx := TestContext(t)

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("TestContext should have a deadline")
	}

	remaining := time.Until(deadline)
	if remaining <= 0 || remaining > 6*time.Second {
		t.Errorf("deadline should be ~5s from now, got %v", remaining)
	}
}

func TestFakeClock_Set(t *testing.T) {
	clock := NewFakeClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))

	want := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clock.Set(want)

	if got := clock.Now(); !got.Equal(want) {
		t.Errorf("after Set, Now() = %v, want %v", got, want)
	}
}

func TestRecordingContext_Counts(t *testing.T) {
	rc := NewRecordingContext("fn")
	rc.Log("a")
	rc.Warn("b")
	rc.Log("c")

	if rc.Count("info") != 2 {
		t.Errorf("info count = %d, want 2", rc.Count("info"))
	}
	if rc.Count("warn") != 1 {
		t.Errorf("warn count = %d, want 1", rc.Count("warn"))
	}

	entries := rc.Entries()
	if len(entries) != 3 || entries[1].Message != "b" {
		t.Errorf("unexpected entries: %+v", entries)
	}
	if rc.InvocationID() == "" {
		t.Error("InvocationID should not be empty")
	}
}
