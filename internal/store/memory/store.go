// Package memory provides an in-process schedule status store.
// Status does not survive a restart, so past-due detection only covers
// firings missed while the process was running.
package memory

import (
	"context"
	"sync"

	"github.com/djlord-it/easy-timer/internal/domain"
)

type Store struct {
	mu       sync.Mutex
	statuses map[string]domain.ScheduleStatus
}

func New() *Store {
	return &Store{statuses: make(map[string]domain.ScheduleStatus)}
}

func (s *Store) GetStatus(ctx context.Context, name string) (*domain.ScheduleStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, ok := s.statuses[name]
	if !ok {
		return nil, nil
	}
	return &status, nil
}

func (s *Store) UpdateStatus(ctx context.Context, name string, status domain.ScheduleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses[name] = status
	return nil
}
