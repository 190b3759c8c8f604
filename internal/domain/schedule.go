package domain

import "time"

// ScheduleStatus is the persisted view of a timer's schedule.
// Next is compared against the live schedule on startup to detect missed
// occurrences and schedule changes.
type ScheduleStatus struct {
	Last        time.Time // last scheduled occurrence that was invoked, zero if never
	Next        time.Time // next expected occurrence
	LastUpdated time.Time
}

// Reference returns the instant the recorded Next was computed from.
func (s ScheduleStatus) Reference() time.Time {
	if s.Last.IsZero() {
		return s.LastUpdated
	}
	return s.Last
}
