package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Collector owns a private Prometheus registry with the ledger counters.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry           *prometheus.Registry
	transfers          *prometheus.CounterVec
	transferDuration   *prometheus.HistogramVec
	cancellations      *prometheus.CounterVec
	scheduledRuns      *prometheus.CounterVec
	schedulerTickTime  prometheus.Histogram
	loginFailures      prometheus.Counter
	lockouts           prometheus.Counter
	notificationErrors prometheus.Counter
}

// New registers all metrics on a fresh registry.
func New() *Collector {
	registry := prometheus.NewRegistry()
	f := promauto.With(registry)

	return &Collector{
		registry: registry,
		transfers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mm_transfers_total",
			Help: "Transfers processed, by transaction type and outcome",
		}, []string{"type", "outcome"}),
		transferDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mm_transfer_duration_seconds",
			Help:    "Time spent inside the transfer unit of work",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),
		cancellations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mm_transfer_cancellations_total",
			Help: "Cancellation attempts by outcome",
		}, []string{"outcome"}),
		scheduledRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mm_scheduled_executions_total",
			Help: "Scheduled transfer executions by outcome",
		}, []string{"outcome"}),
		schedulerTickTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mm_scheduler_tick_duration_seconds",
			Help:    "Duration of one scheduled-transfer polling pass",
			Buckets: prometheus.DefBuckets,
		}),
		loginFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "mm_login_failures_total",
			Help: "Failed secret-code checks",
		}),
		lockouts: f.NewCounter(prometheus.CounterOpts{
			Name: "mm_account_lockouts_total",
			Help: "Phones locked after too many failed attempts",
		}),
		notificationErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "mm_notification_failures_total",
			Help: "Notifications that exhausted all delivery attempts",
		}),
	}
}

// RecordTransfer counts one transfer and observes its duration.
func (m *Collector) RecordTransfer(txType, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(txType, outcome).Inc()
	m.transferDuration.WithLabelValues(txType).Observe(d.Seconds())
}

func (m *Collector) RecordCancellation(outcome string) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(outcome).Inc()
}

func (m *Collector) RecordScheduledExecution(outcome string) {
	if m == nil {
		return
	}
	m.scheduledRuns.WithLabelValues(outcome).Inc()
}

func (m *Collector) ObserveSchedulerTick(d time.Duration) {
	if m == nil {
		return
	}
	m.schedulerTickTime.Observe(d.Seconds())
}

func (m *Collector) RecordLoginFailure() {
	if m == nil {
		return
	}
	m.loginFailures.Inc()
}

func (m *Collector) RecordLockout() {
	if m == nil {
		return
	}
	m.lockouts.Inc()
}

func (m *Collector) RecordNotificationFailure() {
	if m == nil {
		return
	}
	m.notificationErrors.Inc()
}

// Registry exposes the underlying registry (tests, custom collectors).
func (m *Collector) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
