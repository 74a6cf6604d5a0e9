package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	dispatchInFlight prometheus.Gauge
	queueLag         prometheus.Histogram
	sweepTotal       *prometheus.CounterVec
	sweepDispatched  prometheus.Counter
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	dispatchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Subsystem: "dispatch",
			Name:      "total",
			Help:      "Total submission dispatch attempts by result.",
		},
		[]string{"service", "result"},
	)
	dispatchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fieldops",
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Time spent delivering a single submission upstream.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "result"},
	)
	dispatchInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fieldops",
			Subsystem: "dispatch",
			Name:      "in_flight",
			Help:      "Number of submissions currently being delivered.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fieldops",
			Subsystem: "dispatch",
			Name:      "queue_lag_seconds",
			Help:      "Delay between submission creation and dispatch start.",
			Buckets:   []float64{0.5, 1, 5, 15, 60, 300, 1800, 7200},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	sweepTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Total pending-sync sweep runs by result.",
		},
		[]string{"service", "result"},
	)
	sweepDispatched := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Subsystem: "sweep",
			Name:      "dispatched_total",
			Help:      "Total submissions re-dispatched by the sweep.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		dispatchTotal,
		dispatchDuration,
		dispatchInFlight,
		queueLag,
		sweepTotal,
		sweepDispatched,
	)

	return &WorkerMetrics{
		registry:         registry,
		dispatchTotal:    dispatchTotal,
		dispatchDuration: dispatchDuration,
		dispatchInFlight: dispatchInFlight,
		queueLag:         queueLag,
		sweepTotal:       sweepTotal,
		sweepDispatched:  sweepDispatched,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveDispatch wraps one delivery attempt. Call the returned function with
// the outcome once the attempt finishes.
func (m *WorkerMetrics) ObserveDispatch(service string) func(err error) {
	start := time.Now()
	m.dispatchInFlight.Inc()
	return func(err error) {
		m.dispatchInFlight.Dec()
		result := "success"
		if err != nil {
			result = "error"
		}
		m.dispatchTotal.WithLabelValues(service, result).Inc()
		m.dispatchDuration.WithLabelValues(service, result).Observe(time.Since(start).Seconds())
	}
}

func (m *WorkerMetrics) ObserveQueueLag(createdAt time.Time) {
	if createdAt.IsZero() {
		return
	}
	m.queueLag.Observe(time.Since(createdAt).Seconds())
}

func (m *WorkerMetrics) RecordSweep(service string, dispatched int, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.sweepTotal.WithLabelValues(service, result).Inc()
	m.sweepDispatched.Add(float64(dispatched))
}
