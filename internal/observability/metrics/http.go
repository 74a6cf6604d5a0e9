package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type APIServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	submissionsTotal        *prometheus.CounterVec
	submissionOverrides     *prometheus.CounterVec
	validationFailures      *prometheus.CounterVec
	geofenceChecksTotal     *prometheus.CounterVec
	recorderTransitions     *prometheus.CounterVec
	recorderClipDuration    *prometheus.HistogramVec
	recorderUploadsTotal    *prometheus.CounterVec
}

func NewAPIServerMetrics(service string) *APIServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fieldops",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fieldops",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	submissionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Subsystem: "submission",
			Name:      "total",
			Help:      "Total submission attempts by operation type and outcome.",
		},
		[]string{"service", "operation", "outcome"},
	)
	submissionOverrides := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Subsystem: "submission",
			Name:      "overrides_total",
			Help:      "Total submissions accepted outside the geofence via override.",
		},
		[]string{"service", "operation"},
	)
	validationFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Subsystem: "submission",
			Name:      "validation_failures_total",
			Help:      "Total missing/invalid fields reported, by field name.",
		},
		[]string{"service", "operation", "field"},
	)
	geofenceChecksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Subsystem: "geofence",
			Name:      "checks_total",
			Help:      "Total geofence evaluations by outcome.",
		},
		[]string{"service", "outcome"},
	)
	recorderTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Subsystem: "recorder",
			Name:      "transitions_total",
			Help:      "Total recorder session transitions by event and result.",
		},
		[]string{"service", "event", "result"},
	)
	recorderClipDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fieldops",
			Subsystem: "recorder",
			Name:      "clip_duration_seconds",
			Help:      "Distribution of recorded clip durations.",
			Buckets:   []float64{5, 15, 30, 60, 120, 180, 300},
		},
		[]string{"service"},
	)
	recorderUploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Subsystem: "recorder",
			Name:      "uploads_total",
			Help:      "Total clip uploads by result.",
		},
		[]string{"service", "result"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		submissionsTotal,
		submissionOverrides,
		validationFailures,
		geofenceChecksTotal,
		recorderTransitions,
		recorderClipDuration,
		recorderUploadsTotal,
	)

	return &APIServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		submissionsTotal:     submissionsTotal,
		submissionOverrides:  submissionOverrides,
		validationFailures:   validationFailures,
		geofenceChecksTotal:  geofenceChecksTotal,
		recorderTransitions:  recorderTransitions,
		recorderClipDuration: recorderClipDuration,
		recorderUploadsTotal: recorderUploadsTotal,
	}
}

func (m *APIServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *APIServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/submissions/"):
		return "/v1/submissions/{submission_id}"
	case strings.HasPrefix(path, "/v1/recorder/sessions/"):
		return "/v1/recorder/sessions/{session_id}"
	default:
		return path
	}
}

func (m *APIServerMetrics) RecordSubmission(service, operation, outcome string) {
	m.submissionsTotal.WithLabelValues(service, operation, outcome).Inc()
}

func (m *APIServerMetrics) RecordOverride(service, operation string) {
	m.submissionOverrides.WithLabelValues(service, operation).Inc()
}

func (m *APIServerMetrics) RecordValidationFailure(service, operation string, fields []string) {
	for _, field := range fields {
		m.validationFailures.WithLabelValues(service, operation, field).Inc()
	}
}

func (m *APIServerMetrics) RecordGeofenceCheck(service string, withinRange bool) {
	outcome := "within_range"
	if !withinRange {
		outcome = "out_of_range"
	}
	m.geofenceChecksTotal.WithLabelValues(service, outcome).Inc()
}

func (m *APIServerMetrics) RecordRecorderTransition(service, event string, err error) {
	result := "ok"
	if err != nil {
		result = "conflict"
	}
	m.recorderTransitions.WithLabelValues(service, event, result).Inc()
}

func (m *APIServerMetrics) RecordClipDuration(service string, seconds int) {
	if seconds <= 0 {
		return
	}
	m.recorderClipDuration.WithLabelValues(service).Observe(float64(seconds))
}

func (m *APIServerMetrics) RecordClipUpload(service string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.recorderUploadsTotal.WithLabelValues(service, result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
