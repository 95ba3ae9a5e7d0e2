// Package metrics exposes readiness waits as Prometheus metrics.
package metrics

import (
	"errors"
	"time"

	"github.com/alarmistdev/readiness/check"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "readiness"

const (
	outcomeSuccess = "success"
	resultReady    = "ready"
	resultTimeout  = "timeout"
	resultCanceled = "canceled"
)

// Collector records attempts and waits. It implements check.Observer.
type Collector struct {
	attempts *prometheus.CounterVec
	waits    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New creates a Collector and registers its metrics with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Number of probe attempts by target and outcome.",
		}, []string{"target", "outcome"}),
		waits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waits_total",
			Help:      "Number of finished waits by target and result.",
		}, []string{"target", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "wait_duration_seconds",
			Help:      "Time spent waiting for a target.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"target"}),
	}

	for _, collector := range []prometheus.Collector{c.attempts, c.waits, c.duration} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// ObserveAttempt implements check.Observer.
func (c *Collector) ObserveAttempt(target string, err error) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = string(check.KindOf(err))
	}

	c.attempts.WithLabelValues(target, outcome).Inc()
}

// ObserveWait implements check.Observer.
func (c *Collector) ObserveWait(target string, elapsed time.Duration, err error) {
	result := resultReady
	switch {
	case err == nil:
	case errors.Is(err, check.ErrReadinessTimeout):
		result = resultTimeout
	default:
		result = resultCanceled
	}

	c.waits.WithLabelValues(target, result).Inc()
	c.duration.WithLabelValues(target).Observe(elapsed.Seconds())
}
