// Package functions holds the timer functions served by easytimer.
package functions

import (
	"context"
	"time"

	"github.com/djlord-it/easy-timer/internal/domain"
	"github.com/djlord-it/easy-timer/internal/host"
	"github.com/djlord-it/easy-timer/internal/invocation"
)

// TimerFunctionName is the name timerFunction is registered under.
const TimerFunctionName = "timerFunction"

// isoMillis matches JavaScript's Date.prototype.toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Options binds timerFunction to its trigger.
type Options struct {
	Schedule     string
	RunOnStartup bool
	UseMonitor   bool
}

// NewTimerFunction returns the handler with its clock injected.
// The logged timestamp is read from clock when the handler runs, not from the timer.
func NewTimerFunction(clock func() time.Time) host.TimerHandler {
	return func(ctx context.Context, timer domain.Timer, ic invocation.Context) error {
		ic.Log("Timer trigger function executed at: " + clock().UTC().Format(isoMillis))

		if timer.IsPastDue {
			ic.Warn("The timer is running late!")
		}
		return nil
	}
}

// TimerFunction logs the current time on every firing and warns when the firing is past due.
var TimerFunction = NewTimerFunction(time.Now)

// Register binds timerFunction to h.
func Register(h *host.Host, opts Options) error {
	return h.Register(TimerFunctionName, host.TimerOptions{
		Schedule:     opts.Schedule,
		RunOnStartup: opts.RunOnStartup,
		UseMonitor:   opts.UseMonitor,
	}, TimerFunction)
}
