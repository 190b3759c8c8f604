// Package monitor guards a schedule status store with a circuit breaker.
//
// After threshold consecutive failures the store is skipped for cooldown;
// calls fail fast with ErrCircuitOpen. The first call after cooldown is a
// probe: success closes the circuit, failure reopens it.
package monitor

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/djlord-it/easy-timer/internal/domain"
)

var ErrCircuitOpen = errors.New("schedule monitor circuit is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

// Store is the status store being guarded.
type Store interface {
	GetStatus(ctx context.Context, name string) (*domain.ScheduleStatus, error)
	UpdateStatus(ctx context.Context, name string, status domain.ScheduleStatus) error
}

type Guarded struct {
	store     Store
	threshold int
	cooldown  time.Duration
	clock     func() time.Time

	mu                  sync.Mutex
	state               state
	consecutiveFailures int
	openedAt            time.Time
}

// Guard wraps store. A threshold below 1 is treated as 1.
func Guard(store Store, threshold int, cooldown time.Duration) *Guarded {
	if threshold < 1 {
		threshold = 1
	}
	return &Guarded{
		store:     store,
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

func (g *Guarded) GetStatus(ctx context.Context, name string) (*domain.ScheduleStatus, error) {
	if err := g.allow(); err != nil {
		return nil, err
	}
	status, err := g.store.GetStatus(ctx, name)
	g.record(err)
	return status, err
}

func (g *Guarded) UpdateStatus(ctx context.Context, name string, status domain.ScheduleStatus) error {
	if err := g.allow(); err != nil {
		return err
	}
	err := g.store.UpdateStatus(ctx, name, status)
	g.record(err)
	return err
}

func (g *Guarded) allow() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case stateOpen:
		if g.clock().Sub(g.openedAt) >= g.cooldown {
			g.state = stateHalfOpen
			return nil
		}
		return ErrCircuitOpen
	case stateHalfOpen:
		// probe in flight
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (g *Guarded) record(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Cancellation says nothing about the store's health.
	if errors.Is(err, context.Canceled) {
		if g.state == stateHalfOpen {
			g.state = stateOpen
		}
		return
	}

	if err == nil {
		if g.state != stateClosed {
			log.Println("monitor: circuit closed")
		}
		g.state = stateClosed
		g.consecutiveFailures = 0
		return
	}

	g.consecutiveFailures++
	if g.state == stateHalfOpen || g.consecutiveFailures >= g.threshold {
		if g.state != stateOpen {
			log.Printf("monitor: circuit opened after %d consecutive failures, skipping store for %s",
				g.consecutiveFailures, g.cooldown)
		}
		g.state = stateOpen
		g.openedAt = g.clock()
	}
}
