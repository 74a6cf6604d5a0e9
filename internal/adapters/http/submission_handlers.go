package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/finverge/fieldops/internal/core/domain"
	"github.com/finverge/fieldops/internal/core/ports"
)

type geoFenceEvaluateRequest struct {
	Current domain.GeoPosition    `json:"current"`
	Target  domain.GeoFenceTarget `json:"target"`
}

func (rt *Router) evaluateGeoFence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req geoFenceEvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Target.RadiusMeters <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "target radius_meters must be positive"})
		return
	}

	result := domain.EvaluateFence(req.Current, req.Target)
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordGeofenceCheck(rt.opts.ServiceName, result.WithinRange)
	}
	writeJSON(w, http.StatusOK, result)
}

type submissionCreateRequest struct {
	OperationType string                `json:"operation_type"`
	SubjectID     string                `json:"subject_id"`
	ClientKey     string                `json:"client_key"`
	Fields        map[string]string     `json:"fields"`
	Attachments   []domain.Attachment   `json:"attachments"`
	Current       domain.GeoPosition    `json:"current"`
	Target        domain.GeoFenceTarget `json:"target"`
	Override      bool                  `json:"override"`
}

func (rt *Router) createSubmission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req submissionCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	op, err := domain.ParseOperationType(req.OperationType)
	if err != nil {
		writeError(w, err)
		return
	}

	fence := domain.EvaluateFence(req.Current, req.Target)
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordGeofenceCheck(rt.opts.ServiceName, fence.WithinRange)
	}

	before := time.Now().UTC()
	rec, err := rt.submissions.Submit(r.Context(), ports.SubmissionRequest{
		OperationType: op,
		SubjectID:     req.SubjectID,
		ClientKey:     req.ClientKey,
		Fields:        req.Fields,
		Attachments:   req.Attachments,
		GeoFence:      fence,
		RadiusMeters:  req.Target.RadiusMeters,
		Override:      req.Override,
	})
	if err != nil {
		rt.recordSubmissionOutcome(req.OperationType, err)
		writeError(w, err)
		return
	}

	// A replayed client key hands back the original record, which was created
	// before this request started.
	status := http.StatusCreated
	if rec.CreatedAt.Before(before) {
		status = http.StatusOK
	}

	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordSubmission(rt.opts.ServiceName, string(rec.OperationType), "accepted")
		if rec.Override {
			rt.opts.Metrics.RecordOverride(rt.opts.ServiceName, string(rec.OperationType))
		}
	}
	writeJSON(w, status, rec)
}

func (rt *Router) recordSubmissionOutcome(operation string, err error) {
	if rt.opts.Metrics == nil {
		return
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		rt.opts.Metrics.RecordSubmission(rt.opts.ServiceName, operation, "validation_failed")
		rt.opts.Metrics.RecordValidationFailure(rt.opts.ServiceName, operation, ve.MissingFields)
		return
	}
	if domain.IsKind(err, domain.ErrOutsideGeoFence) {
		rt.opts.Metrics.RecordSubmission(rt.opts.ServiceName, operation, "geofence_rejected")
		return
	}
	rt.opts.Metrics.RecordSubmission(rt.opts.ServiceName, operation, "error")
}

func (rt *Router) getSubmissionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/submissions/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "submission id is required"})
		return
	}

	rec, err := rt.submissions.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
