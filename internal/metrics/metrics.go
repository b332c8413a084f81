// Package metrics exports engine and runner observations as Prometheus
// metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/splitwrite/internal/engine"
	"github.com/roach88/splitwrite/internal/runner"
)

const namespace = "splitwrite"

// Collector implements engine.Metrics and runner.StatementObserver.
//
// Thread-safety: all Prometheus vectors are safe for concurrent use.
type Collector struct {
	operations        *prometheus.CounterVec
	rollbackOnly      *prometheus.CounterVec
	lockFailures      *prometheus.CounterVec
	statementDuration *prometheus.HistogramVec
	statementErrors   *prometheus.CounterVec
}

var (
	_ engine.Metrics           = (*Collector)(nil)
	_ runner.StatementObserver = (*Collector)(nil)
)

// New creates a collector and registers it with reg. A nil reg registers
// with prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Split operations by operation and outcome (ok or error code).",
			}, []string{"operation", "outcome"}),
		rollbackOnly: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollback_only_total",
				Help:      "Transactions marked rollback-only after a partial split write.",
			}, []string{"operation"}),
		lockFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lock_failures_total",
				Help:      "Optimistic lock failures (versioned statements that matched no row).",
			}, []string{"operation"}),
		statementDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "statement_duration_seconds",
				Help:      "Bucketed histogram of runner statement time (s).",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15),
			}, []string{"kind"}),
		statementErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "statement_errors_total",
				Help:      "Runner statements that failed with an execution fault.",
			}, []string{"kind"}),
	}

	for _, col := range []prometheus.Collector{
		c.operations, c.rollbackOnly, c.lockFailures, c.statementDuration, c.statementErrors,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveOperation implements engine.Metrics.
func (c *Collector) ObserveOperation(operation, outcome string, _ time.Duration) {
	c.operations.WithLabelValues(operation, outcome).Inc()
}

// ObserveRollbackOnly implements engine.Metrics.
func (c *Collector) ObserveRollbackOnly(operation string) {
	c.rollbackOnly.WithLabelValues(operation).Inc()
}

// ObserveLockFailure implements engine.Metrics.
func (c *Collector) ObserveLockFailure(operation string) {
	c.lockFailures.WithLabelValues(operation).Inc()
}

// ObserveStatement implements runner.StatementObserver.
func (c *Collector) ObserveStatement(kind string, elapsed time.Duration, err error) {
	c.statementDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if err != nil && runner.IsFault(err) {
		c.statementErrors.WithLabelValues(kind).Inc()
	}
}
