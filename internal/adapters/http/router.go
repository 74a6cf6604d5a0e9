package httpadapter

import (
	"encoding/json"
	"net/http"

	"github.com/finverge/fieldops/internal/core/ports"
	"github.com/finverge/fieldops/internal/observability/metrics"
)

// RouterOptions carries the traffic-control knobs the API server applies in
// front of every handler.
type RouterOptions struct {
	ServiceName      string
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	Metrics          *metrics.APIServerMetrics
}

type Router struct {
	submissions ports.SubmissionService
	recorder    ports.RecorderService
	opts        RouterOptions
}

func NewRouter(
	submissions ports.SubmissionService,
	recorder ports.RecorderService,
	opts RouterOptions,
) *Router {
	if opts.ServiceName == "" {
		opts.ServiceName = "api"
	}
	return &Router{
		submissions: submissions,
		recorder:    recorder,
		opts:        opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/geofence/evaluate", rt.evaluateGeoFence)
	mux.HandleFunc("/v1/submissions", rt.createSubmission)
	mux.HandleFunc("/v1/submissions/", rt.getSubmissionByID)
	mux.HandleFunc("/v1/recorder/sessions", rt.createRecorderSession)
	mux.HandleFunc("/v1/recorder/sessions/", rt.recorderSessionByID)
	if rt.opts.Metrics != nil {
		mux.Handle("/metrics", rt.opts.Metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(rt.opts.ServiceName, handler)
	}
	handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, defaultBackpressureWait)
	handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
