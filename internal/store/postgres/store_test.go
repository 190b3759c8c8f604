package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/djlord-it/easy-timer/internal/domain"
)

func TestWithTimeout(t *testing.T) {
	s := New(nil, 50*time.Millisecond)
	ctx, cancel := s.withTimeout(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected a deadline")
	}
	if remaining := time.Until(deadline); remaining > 50*time.Millisecond {
		t.Errorf("deadline too far: %v", remaining)
	}

	unbounded := New(nil, 0)
	ctx2, cancel2 := unbounded.withTimeout(context.Background())
	defer cancel2()
	if _, ok := ctx2.Deadline(); ok {
		t.Error("zero timeout should not set a deadline")
	}
}

// Runs against a real database when EASYTIMER_TEST_DATABASE_URL is set.
func TestStore_RoundTrip(t *testing.T) {
	dsn := os.Getenv("EASYTIMER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("EASYTIMER_TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	s := New(db, 5*time.Second)
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	name := "roundtrip-" + time.Now().Format("150405.000000")
	t.Cleanup(func() {
		_, _ = db.Exec("DELETE FROM timer_schedule_status WHERE name = $1", name)
	})

	got, err := s.GetStatus(ctx, name)
	if err != nil || got != nil {
		t.Fatalf("GetStatus on missing row = %v, %v; want nil, nil", got, err)
	}

	first := domain.ScheduleStatus{
		Next:        time.Date(2024, 1, 15, 10, 5, 0, 0, time.UTC),
		LastUpdated: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	}
	if err := s.UpdateStatus(ctx, name, first); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, err = s.GetStatus(ctx, name)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if !got.Last.IsZero() || !got.Next.Equal(first.Next) {
		t.Errorf("GetStatus = %+v, want %+v", got, first)
	}

	second := domain.ScheduleStatus{
		Last:        first.Next,
		Next:        first.Next.Add(5 * time.Minute),
		LastUpdated: first.Next,
	}
	if err := s.UpdateStatus(ctx, name, second); err != nil {
		t.Fatalf("UpdateStatus (upsert): %v", err)
	}
	got, _ = s.GetStatus(ctx, name)
	if !got.Last.Equal(second.Last) || !got.Next.Equal(second.Next) {
		t.Errorf("after upsert GetStatus = %+v, want %+v", got, second)
	}
}
