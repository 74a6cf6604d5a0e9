package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/finverge/fieldops/internal/core/domain"
)

type recorderCreateRequest struct {
	SubjectID string `json:"subject_id"`
}

func (rt *Router) createRecorderSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req recorderCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	session, err := rt.recorder.Create(r.Context(), req.SubjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// recorderSessionByID serves GET /v1/recorder/sessions/{id} and the transition
// actions POST /v1/recorder/sessions/{id}/{action}.
func (rt *Router) recorderSessionByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/recorder/sessions/")
	sessionID, action, _ := strings.Cut(rest, "/")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session id is required"})
		return
	}

	if action == "" {
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		session, err := rt.recorder.Get(r.Context(), sessionID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, session)
		return
	}

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	rt.applyRecorderAction(w, r, sessionID, action)
}

func (rt *Router) applyRecorderAction(w http.ResponseWriter, r *http.Request, sessionID, action string) {
	var session *domain.RecorderSession
	var err error

	switch action {
	case "start":
		session, err = rt.recorder.RequestStart(r.Context(), sessionID)
	case "consent":
		session, err = rt.recorder.AcceptConsent(r.Context(), sessionID)
	case "decline":
		session, err = rt.recorder.DeclineConsent(r.Context(), sessionID)
	case "stop":
		session, err = rt.recorder.RequestStop(r.Context(), sessionID)
	case "upload":
		session, err = rt.uploadClip(r.Context(), r, sessionID)
	case "discard":
		if err := rt.recorder.Discard(r.Context(), sessionID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown session action"})
		return
	}

	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordRecorderTransition(rt.opts.ServiceName, action, err)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.opts.Metrics != nil {
		if action == "stop" {
			rt.opts.Metrics.RecordClipDuration(rt.opts.ServiceName, session.DurationSeconds)
		}
		if action == "upload" {
			rt.opts.Metrics.RecordClipUpload(rt.opts.ServiceName, nil)
		}
	}
	writeJSON(w, http.StatusOK, session)
}

func (rt *Router) uploadClip(ctx context.Context, r *http.Request, sessionID string) (*domain.RecorderSession, error) {
	clip, _, err := r.FormFile("clip")
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload clip", err)
	}
	defer clip.Close()

	session, err := rt.recorder.Upload(ctx, sessionID, clip)
	if err != nil && rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordClipUpload(rt.opts.ServiceName, err)
	}
	return session, err
}
