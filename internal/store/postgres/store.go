package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/djlord-it/easy-timer/internal/domain"
)

// Store implements host.ScheduleMonitor using PostgreSQL.
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
}

// New creates a new PostgreSQL store with the given database connection.
// opTimeout bounds each statement; zero means no extra bound.
func New(db *sql.DB, opTimeout time.Duration) *Store {
	return &Store{db: db, opTimeout: opTimeout}
}

// EnsureSchema creates the status table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, queryCreateStatusTable); err != nil {
		return fmt.Errorf("create status table: %w", err)
	}
	return nil
}

// GetStatus returns the stored status for name, or nil if none exists.
func (s *Store) GetStatus(ctx context.Context, name string) (*domain.ScheduleStatus, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var last sql.NullTime
	var status domain.ScheduleStatus

	err := s.db.QueryRowContext(ctx, queryGetStatus, name).Scan(&last, &status.Next, &status.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if last.Valid {
		status.Last = last.Time.UTC()
	}
	status.Next = status.Next.UTC()
	status.LastUpdated = status.LastUpdated.UTC()
	return &status, nil
}

// UpdateStatus upserts the status for name.
func (s *Store) UpdateStatus(ctx context.Context, name string, status domain.ScheduleStatus) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	last := sql.NullTime{Time: status.Last, Valid: !status.Last.IsZero()}
	_, err := s.db.ExecContext(ctx, queryUpsertStatus, name, last, status.Next, status.LastUpdated)
	return err
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}
