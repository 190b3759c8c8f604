package functions

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/djlord-it/easy-timer/internal/domain"
	"github.com/djlord-it/easy-timer/internal/host"
	"github.com/djlord-it/easy-timer/internal/testutil"
)

const executedPrefix = "Timer trigger function executed at: "

// loggedTime extracts and parses the timestamp of an informational entry.
func loggedTime(t *testing.T, msg string) time.Time {
	t.Helper()
	if !strings.HasPrefix(msg, executedPrefix) {
		t.Fatalf("unexpected message %q", msg)
	}
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimPrefix(msg, executedPrefix))
	if err != nil {
		t.Fatalf("timestamp in %q is not ISO-8601: %v", msg, err)
	}
	return ts
}

func TestTimerFunction_OnTime(t *testing.T) {
	ic := testutil.NewRecordingContext(TimerFunctionName)

	err := TimerFunction(context.Background(), domain.Timer{FiredAt: time.Now(), IsPastDue: false}, ic)
	if err != nil {
		t.Fatalf("TimerFunction returned error: %v", err)
	}

	if ic.Count("info") != 1 {
		t.Errorf("info entries = %d, want 1", ic.Count("info"))
	}
	if ic.Count("warn") != 0 {
		t.Errorf("warn entries = %d, want 0", ic.Count("warn"))
	}
	if len(ic.Entries()) != 1 {
		t.Errorf("total entries = %d, want 1", len(ic.Entries()))
	}
}

func TestTimerFunction_PastDue(t *testing.T) {
	ic := testutil.NewRecordingContext(TimerFunctionName)

	err := TimerFunction(context.Background(), domain.Timer{FiredAt: time.Now(), IsPastDue: true}, ic)
	if err != nil {
		t.Fatalf("TimerFunction returned error: %v", err)
	}

	entries := ic.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %+v, want one info and one warning", entries)
	}
	if entries[0].Level != "info" || !strings.HasPrefix(entries[0].Message, executedPrefix) {
		t.Errorf("first entry = %+v, want execution info", entries[0])
	}
	if entries[1].Level != "warn" || entries[1].Message != "The timer is running late!" {
		t.Errorf("second entry = %+v, want late warning", entries[1])
	}
}

func TestTimerFunction_LogsExecutionTimeNotFiredAt(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 123_000_000, time.UTC)
	clock := testutil.NewFakeClock(now)
	fn := NewTimerFunction(clock.Now)

	ic := testutil.NewRecordingContext(TimerFunctionName)
	firedAt := now.Add(-time.Hour)
	if err := fn(context.Background(), domain.Timer{FiredAt: firedAt}, ic); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	entries := ic.Entries()
	want := executedPrefix + "2024-01-15T10:00:00.123Z"
	if len(entries) != 1 || entries[0].Message != want {
		t.Errorf("entries = %+v, want %q", entries, want)
	}
}

func TestTimerFunction_TimestampIsUTCMillis(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	clock := testutil.NewFakeClock(time.Date(2024, 3, 10, 1, 2, 3, 0, loc))
	fn := NewTimerFunction(clock.Now)

	ic := testutil.NewRecordingContext(TimerFunctionName)
	_ = fn(context.Background(), domain.Timer{}, ic)

	want := executedPrefix + "2024-03-10T06:02:03.000Z"
	if got := ic.Entries()[0].Message; got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
}

func TestTimerFunction_TimestampReflectsNow(t *testing.T) {
	ic := testutil.NewRecordingContext(TimerFunctionName)

	before := time.Now().UTC().Truncate(time.Millisecond)
	_ = TimerFunction(context.Background(), domain.Timer{}, ic)
	after := time.Now().UTC()

	ts := loggedTime(t, ic.Entries()[0].Message)
	if ts.Before(before) || ts.After(after) {
		t.Errorf("logged time %v not within [%v, %v]", ts, before, after)
	}
}

func TestTimerFunction_IndependentInvocations(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
	fn := NewTimerFunction(clock.Now)
	timer := domain.Timer{IsPastDue: true}

	first := testutil.NewRecordingContext(TimerFunctionName)
	second := testutil.NewRecordingContext(TimerFunctionName)

	_ = fn(context.Background(), timer, first)
	clock.Advance(time.Minute)
	_ = fn(context.Background(), timer, second)

	for i, ic := range []*testutil.RecordingContext{first, second} {
		if ic.Count("info") != 1 || ic.Count("warn") != 1 {
			t.Errorf("invocation %d: entries = %+v, want one info and one warning", i, ic.Entries())
		}
	}
	if first.Entries()[0].Message == second.Entries()[0].Message {
		t.Error("second invocation should log its own execution time")
	}
}

func TestTimerFunction_NeverFails(t *testing.T) {
	for _, pastDue := range []bool{false, true} {
		ic := testutil.NewRecordingContext(TimerFunctionName)
		if err := TimerFunction(context.Background(), domain.Timer{IsPastDue: pastDue}, ic); err != nil {
			t.Errorf("IsPastDue=%v: returned error %v", pastDue, err)
		}
	}
}

type fixedParser struct{}

func (fixedParser) Parse(expression string, timezone string) (host.CronSchedule, error) {
	return fixedSchedule{}, nil
}

type fixedSchedule struct{}

func (fixedSchedule) Next(after time.Time) time.Time { return after.Add(time.Hour) }

func TestRegister(t *testing.T) {
	h := host.New(host.Config{}, fixedParser{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := Register(h, Options{Schedule: "0 */5 * * * *", RunOnStartup: true}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if got := h.Functions(); len(got) != 1 || got[0] != TimerFunctionName {
		t.Errorf("Functions() = %v, want [%s]", got, TimerFunctionName)
	}

	if err := Register(h, Options{Schedule: "0 */5 * * * *"}); err == nil {
		t.Error("registering twice should fail")
	}
}
