package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) InvocationStarted(function string)                                      {}
func (n *NoopSink) InvocationCompleted(function string, duration time.Duration, err error) {}
func (n *NoopSink) PastDue(function string)                                                {}
func (n *NoopSink) FireDelay(function string, delay time.Duration)                         {}
func (n *NoopSink) MonitorError(op string)                                                 {}
func (n *NoopSink) LeaderStatusChanged(isLeader bool)                                      {}
func (n *NoopSink) LeaderAcquired()                                                        {}
func (n *NoopSink) LeaderLost(reason string)                                               {}
