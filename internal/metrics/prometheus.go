package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Host metrics
	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	pastDueTotal       *prometheus.CounterVec
	fireDelay          *prometheus.HistogramVec
	monitorErrorsTotal *prometheus.CounterVec

	// Leader election metrics
	isLeader            prometheus.Gauge
	leaderAcquiredTotal prometheus.Counter
	leaderLostTotal     *prometheus.CounterVec
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initHostMetrics(reg)
	s.initLeaderMetrics(reg)
	return s
}

func (s *PrometheusSink) initHostMetrics(reg prometheus.Registerer) {
	s.invocationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easytimer_host_invocations_total",
		Help: "Total number of timer function invocations by outcome.",
	}, []string{"function", "outcome"})
	s.invocationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "easytimer_host_invocation_duration_seconds",
		Help:    "Duration of timer function invocations in seconds.",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"function"})
	s.pastDueTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easytimer_host_past_due_total",
		Help: "Total number of invocations flagged as past due.",
	}, []string{"function"})
	s.fireDelay = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "easytimer_host_fire_delay_seconds",
		Help:    "Difference between actual and scheduled fire time in seconds.",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 30, 60},
	}, []string{"function"})
	s.monitorErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easytimer_monitor_errors_total",
		Help: "Total number of schedule monitor errors by operation.",
	}, []string{"op"})

	s.register(reg, s.invocationsTotal, "easytimer_host_invocations_total")
	s.register(reg, s.invocationDuration, "easytimer_host_invocation_duration_seconds")
	s.register(reg, s.pastDueTotal, "easytimer_host_past_due_total")
	s.register(reg, s.fireDelay, "easytimer_host_fire_delay_seconds")
	s.register(reg, s.monitorErrorsTotal, "easytimer_monitor_errors_total")
}

func (s *PrometheusSink) initLeaderMetrics(reg prometheus.Registerer) {
	s.isLeader = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "easytimer_leader_is_leader",
		Help: "1 if this instance holds the singleton lock, 0 otherwise.",
	})
	s.leaderAcquiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easytimer_leader_acquired_total",
		Help: "Total number of times this instance acquired the singleton lock.",
	})
	s.leaderLostTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easytimer_leader_lost_total",
		Help: "Total number of times this instance lost the singleton lock.",
	}, []string{"reason"})

	s.register(reg, s.isLeader, "easytimer_leader_is_leader")
	s.register(reg, s.leaderAcquiredTotal, "easytimer_leader_acquired_total")
	s.register(reg, s.leaderLostTotal, "easytimer_leader_lost_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Host metrics implementation

func (s *PrometheusSink) InvocationStarted(function string) {
	// Counted on completion; ensure the series exists from the first firing.
	s.invocationsTotal.WithLabelValues(function, OutcomeSuccess).Add(0)
}

func (s *PrometheusSink) InvocationCompleted(function string, duration time.Duration, err error) {
	s.invocationsTotal.WithLabelValues(function, ClassifyOutcome(err)).Inc()
	s.invocationDuration.WithLabelValues(function).Observe(duration.Seconds())
}

func (s *PrometheusSink) PastDue(function string) {
	s.pastDueTotal.WithLabelValues(function).Inc()
}

func (s *PrometheusSink) FireDelay(function string, delay time.Duration) {
	d := delay.Seconds()
	if d < 0 {
		d = -d
	}
	s.fireDelay.WithLabelValues(function).Observe(d)
}

func (s *PrometheusSink) MonitorError(op string) {
	s.monitorErrorsTotal.WithLabelValues(op).Inc()
}

// Leader election metrics implementation

func (s *PrometheusSink) LeaderStatusChanged(isLeader bool) {
	if isLeader {
		s.isLeader.Set(1)
		return
	}
	s.isLeader.Set(0)
}

func (s *PrometheusSink) LeaderAcquired() {
	s.leaderAcquiredTotal.Inc()
}

func (s *PrometheusSink) LeaderLost(reason string) {
	s.leaderLostTotal.WithLabelValues(reason).Inc()
}
