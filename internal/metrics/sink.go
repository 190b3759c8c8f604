package metrics

import (
	"context"
	"errors"
	"time"
)

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
type Sink interface {
	// Host metrics
	InvocationStarted(function string)
	InvocationCompleted(function string, duration time.Duration, err error)
	PastDue(function string)
	FireDelay(function string, delay time.Duration)
	MonitorError(op string)

	// Leader election metrics
	LeaderStatusChanged(isLeader bool)
	LeaderAcquired()
	LeaderLost(reason string)
}

// Outcome constants for the invocations_total metric.
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Monitor operation labels.
const (
	MonitorOpGet    = "get"
	MonitorOpUpdate = "update"
)

// ClassifyOutcome maps a handler result to an outcome label.
func ClassifyOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	default:
		return OutcomeFailed
	}
}
