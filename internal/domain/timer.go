package domain

import "time"

// Timer is handed to a timer function for one firing of its schedule.
// The host creates it right before the call; functions must treat it as read-only.
type Timer struct {
	FiredAt     time.Time // when the host started the invocation
	ScheduledAt time.Time // nominal occurrence, zero for run-on-startup firings
	IsPastDue   bool

	// ScheduleStatus is nil when schedule monitoring is disabled.
	ScheduleStatus *ScheduleStatus
}

// Delay reports how late the firing started relative to its nominal occurrence.
// Firings without a nominal occurrence report zero.
func (t Timer) Delay() time.Duration {
	if t.ScheduledAt.IsZero() || t.FiredAt.Before(t.ScheduledAt) {
		return 0
	}
	return t.FiredAt.Sub(t.ScheduledAt)
}
