// Package host runs timer-triggered functions on their cron schedules.
//
// Each registered function gets its own loop. A loop never overlaps its own
// invocations: the next occurrence is computed after the handler returns.
// When a schedule monitor is attached, the host persists the last and next
// occurrence of every function so that firings missed while no instance was
// running are detected on startup and delivered once with IsPastDue set.
package host

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/djlord-it/easy-timer/internal/domain"
	"github.com/djlord-it/easy-timer/internal/invocation"
	"github.com/djlord-it/easy-timer/internal/metrics"
)

var (
	ErrDuplicateFunction = errors.New("function already registered")
	ErrHostRunning       = errors.New("host is running")
	ErrHandlerPanic      = errors.New("handler panicked")
	ErrNoOccurrences     = errors.New("schedule has no future occurrences")
)

// TimerHandler is invoked once per firing.
type TimerHandler func(ctx context.Context, timer domain.Timer, ic invocation.Context) error

// TimerOptions binds a function to its trigger.
type TimerOptions struct {
	// Schedule is a cron expression or a %NAME% placeholder resolved through Config.Settings.
	Schedule string

	// RunOnStartup fires the function once as soon as the host starts,
	// independent of the schedule. Meant for development.
	RunOnStartup bool

	// UseMonitor enables past-due detection across restarts. Ignored when the
	// host has no monitor.
	UseMonitor bool
}

type CronParser interface {
	Parse(expression string, timezone string) (CronSchedule, error)
}

type CronSchedule interface {
	Next(after time.Time) time.Time
}

// ScheduleMonitor persists schedule status per function.
// GetStatus returns nil, nil when no status is stored.
type ScheduleMonitor interface {
	GetStatus(ctx context.Context, name string) (*domain.ScheduleStatus, error)
	UpdateStatus(ctx context.Context, name string, status domain.ScheduleStatus) error
}

// DefaultPastDueTolerance applies when Config.PastDueTolerance is not positive.
const DefaultPastDueTolerance = time.Second

type Config struct {
	Timezone string // IANA timezone schedules are evaluated in, defaults to UTC

	// PastDueTolerance is how late a scheduled firing may start before it is flagged past due.
	PastDueTolerance time.Duration

	// Settings resolves %NAME% schedule placeholders. Nil disables resolution.
	Settings func(name string) (string, bool)
}

type function struct {
	name       string
	opts       TimerOptions
	expression string
	schedule   CronSchedule
	handler    TimerHandler
}

type Host struct {
	config  Config
	parser  CronParser
	logger  *slog.Logger
	monitor ScheduleMonitor
	metrics metrics.Sink
	clock   func() time.Time

	mu        sync.Mutex
	running   bool
	functions []*function
}

// New creates a host. logger receives the entries functions write through
// their invocation context.
func New(config Config, parser CronParser, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	if config.PastDueTolerance <= 0 {
		config.PastDueTolerance = DefaultPastDueTolerance
	}
	return &Host{
		config:  config,
		parser:  parser,
		logger:  logger,
		metrics: metrics.NewNoopSink(),
		clock:   time.Now,
	}
}

// WithMonitor attaches a schedule monitor.
func (h *Host) WithMonitor(m ScheduleMonitor) *Host {
	h.monitor = m
	return h
}

// WithMetrics attaches a metrics sink.
func (h *Host) WithMetrics(sink metrics.Sink) *Host {
	h.metrics = sink
	return h
}

// Register binds handler to the schedule in opts under name.
func (h *Host) Register(name string, opts TimerOptions, handler TimerHandler) error {
	if name == "" {
		return errors.New("function name is required")
	}
	if handler == nil {
		return fmt.Errorf("function %s: handler is required", name)
	}

	expression, err := resolveSetting(opts.Schedule, h.config.Settings)
	if err != nil {
		return fmt.Errorf("function %s: %w", name, err)
	}

	schedule, err := h.parser.Parse(expression, h.config.Timezone)
	if err != nil {
		return fmt.Errorf("function %s: %w", name, err)
	}
	if schedule.Next(h.clock()).IsZero() {
		return fmt.Errorf("function %s: %w: %q", name, ErrNoOccurrences, expression)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return fmt.Errorf("function %s: %w", name, ErrHostRunning)
	}
	for _, fn := range h.functions {
		if fn.name == name {
			return fmt.Errorf("%w: %s", ErrDuplicateFunction, name)
		}
	}

	h.functions = append(h.functions, &function{
		name:       name,
		opts:       opts,
		expression: expression,
		schedule:   schedule,
		handler:    handler,
	})

	log.Printf("host: registered %s (schedule=%q, run_on_startup=%t, use_monitor=%t)",
		name, expression, opts.RunOnStartup, opts.UseMonitor)
	return nil
}

// Functions returns the registered function names in registration order.
func (h *Host) Functions() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, len(h.functions))
	for i, fn := range h.functions {
		names[i] = fn.name
	}
	return names
}

// Run fires registered functions until ctx is cancelled.
// A host may be run again after a previous Run returned.
func (h *Host) Run(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHostRunning
	}
	h.running = true
	fns := make([]*function, len(h.functions))
	copy(fns, h.functions)
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()

	log.Printf("host: started (functions=%d)", len(fns))

	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		g.Go(func() error {
			h.runFunction(gctx, fn)
			return nil
		})
	}
	_ = g.Wait()

	log.Println("host: stopped")
	return ctx.Err()
}

func (h *Host) runFunction(ctx context.Context, fn *function) {
	now := h.clock()
	pastDue, status := h.checkPastDue(ctx, fn, now)

	switch {
	case pastDue:
		log.Printf("host: %s is past due (next was %s), invoking now",
			fn.name, status.Next.UTC().Format(time.RFC3339))
		status = h.fire(ctx, fn, status.Next, status, true)
	case fn.opts.RunOnStartup:
		log.Printf("host: %s run on startup", fn.name)
		h.invoke(ctx, fn, domain.Timer{FiredAt: h.clock(), ScheduleStatus: status})
	}

	after := h.clock()
	for {
		next := fn.schedule.Next(after)
		if next.IsZero() {
			// Run must not return before ctx ends; the elector treats that as lost leadership.
			log.Printf("host: %s has no further occurrences, idle until shutdown", fn.name)
			<-ctx.Done()
			return
		}

		if !h.sleepUntil(ctx, next) {
			return
		}

		status = h.fire(ctx, fn, next, status, false)

		after = h.clock()
		if next.After(after) {
			after = next
		}
	}
}

// fire invokes fn for the occurrence at scheduled and persists the new status.
// It returns the status the following firing should observe.
func (h *Host) fire(ctx context.Context, fn *function, scheduled time.Time, status *domain.ScheduleStatus, pastDue bool) *domain.ScheduleStatus {
	timer := domain.Timer{
		FiredAt:        h.clock(),
		ScheduledAt:    scheduled,
		ScheduleStatus: status,
	}

	delay := timer.Delay()
	h.metrics.FireDelay(fn.name, delay)
	timer.IsPastDue = pastDue || delay > h.config.PastDueTolerance

	h.invoke(ctx, fn, timer)

	if !h.monitored(fn) {
		return nil
	}

	updated := domain.ScheduleStatus{
		Last:        scheduled,
		Next:        fn.schedule.Next(scheduled),
		LastUpdated: h.clock(),
	}
	if pastDue {
		// Missed occurrences are collapsed into this one firing.
		updated.Last = timer.FiredAt
		updated.Next = fn.schedule.Next(timer.FiredAt)
	}
	h.updateStatus(ctx, fn, updated)
	return &updated
}

func (h *Host) invoke(ctx context.Context, fn *function, timer domain.Timer) (err error) {
	ic := invocation.New(ctx, h.logger, fn.name)

	h.metrics.InvocationStarted(fn.name)
	if timer.IsPastDue {
		h.metrics.PastDue(fn.name)
	}
	start := h.clock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
		h.metrics.InvocationCompleted(fn.name, h.clock().Sub(start), err)
		if err != nil {
			log.Printf("host: %s invocation %s failed: %v", fn.name, ic.InvocationID(), err)
		}
	}()

	return fn.handler(ctx, timer, ic)
}

func (h *Host) monitored(fn *function) bool {
	return fn.opts.UseMonitor && h.monitor != nil
}

// checkPastDue compares the stored status with the live schedule.
// A missing status or a schedule change resets the status and is never past due.
func (h *Host) checkPastDue(ctx context.Context, fn *function, now time.Time) (bool, *domain.ScheduleStatus) {
	if !h.monitored(fn) {
		return false, nil
	}

	stored, err := h.monitor.GetStatus(ctx, fn.name)
	if err != nil {
		h.metrics.MonitorError(metrics.MonitorOpGet)
		log.Printf("host: %s get schedule status: %v", fn.name, err)
		return false, nil
	}

	if stored == nil {
		status := domain.ScheduleStatus{Next: fn.schedule.Next(now), LastUpdated: now}
		h.updateStatus(ctx, fn, status)
		return false, &status
	}

	if stored.Next.IsZero() {
		log.Printf("host: %s stored status has no next occurrence, resetting status", fn.name)
		status := domain.ScheduleStatus{Last: stored.Last, Next: fn.schedule.Next(now), LastUpdated: now}
		h.updateStatus(ctx, fn, status)
		return false, &status
	}

	if expected := fn.schedule.Next(stored.Reference()); !expected.Equal(stored.Next) {
		log.Printf("host: %s schedule changed (stored next=%s, expected=%s), resetting status",
			fn.name, stored.Next.UTC().Format(time.RFC3339), expected.UTC().Format(time.RFC3339))
		status := domain.ScheduleStatus{Last: stored.Last, Next: fn.schedule.Next(now), LastUpdated: now}
		h.updateStatus(ctx, fn, status)
		return false, &status
	}

	return now.After(stored.Next), stored
}

func (h *Host) updateStatus(ctx context.Context, fn *function, status domain.ScheduleStatus) {
	if err := h.monitor.UpdateStatus(ctx, fn.name, status); err != nil {
		h.metrics.MonitorError(metrics.MonitorOpUpdate)
		log.Printf("host: %s update schedule status: %v", fn.name, err)
	}
}

// sleepUntil blocks until t or ctx cancellation. It reports whether t was reached.
func (h *Host) sleepUntil(ctx context.Context, t time.Time) bool {
	d := t.Sub(h.clock())
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
