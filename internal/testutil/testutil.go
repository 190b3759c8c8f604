// Package testutil provides shared test helpers for easytimer.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// FakeClock provides deterministic time for testing.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewFakeClock creates a FakeClock set to the given time.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Set moves the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// TestContext returns a context with a 5-second timeout.
// The context is cancelled when the test completes.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// Entry is one message captured by RecordingContext.
type Entry struct {
	Level   string // "info" or "warn"
	Message string
}

// RecordingContext is an invocation context that keeps every entry in memory.
type RecordingContext struct {
	mu       sync.Mutex
	id       string
	function string
	entries  []Entry
}

// NewRecordingContext returns a RecordingContext for the named function.
func NewRecordingContext(function string) *RecordingContext {
	return &RecordingContext{id: uuid.NewString(), function: function}
}

func (r *RecordingContext) InvocationID() string { return r.id }
func (r *RecordingContext) FunctionName() string { return r.function }

func (r *RecordingContext) Log(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: "info", Message: msg})
}

func (r *RecordingContext) Warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: "warn", Message: msg})
}

// Entries returns a copy of everything recorded so far.
func (r *RecordingContext) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Count returns how many entries were recorded at level.
func (r *RecordingContext) Count(level string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}
