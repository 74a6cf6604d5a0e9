package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/finverge/fieldops/internal/core/domain"
	"github.com/finverge/fieldops/internal/core/ports"
)

type submissionServiceFake struct {
	submitFn func(ctx context.Context, req ports.SubmissionRequest) (*domain.SubmissionRecord, error)
	getFn    func(ctx context.Context, id string) (*domain.SubmissionRecord, error)
}

func (f *submissionServiceFake) Submit(ctx context.Context, req ports.SubmissionRequest) (*domain.SubmissionRecord, error) {
	return f.submitFn(ctx, req)
}

func (f *submissionServiceFake) GetByID(ctx context.Context, id string) (*domain.SubmissionRecord, error) {
	return f.getFn(ctx, id)
}

type recorderServiceFake struct {
	session    *domain.RecorderSession
	err        error
	lastAction string
	uploaded   []byte
}

func (f *recorderServiceFake) apply(action string) (*domain.RecorderSession, error) {
	f.lastAction = action
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func (f *recorderServiceFake) Create(context.Context, string) (*domain.RecorderSession, error) {
	return f.apply("create")
}

func (f *recorderServiceFake) Get(context.Context, string) (*domain.RecorderSession, error) {
	return f.apply("get")
}

func (f *recorderServiceFake) RequestStart(context.Context, string) (*domain.RecorderSession, error) {
	return f.apply("start")
}

func (f *recorderServiceFake) AcceptConsent(context.Context, string) (*domain.RecorderSession, error) {
	return f.apply("consent")
}

func (f *recorderServiceFake) DeclineConsent(context.Context, string) (*domain.RecorderSession, error) {
	return f.apply("decline")
}

func (f *recorderServiceFake) RequestStop(context.Context, string) (*domain.RecorderSession, error) {
	return f.apply("stop")
}

func (f *recorderServiceFake) Upload(_ context.Context, _ string, clip io.Reader) (*domain.RecorderSession, error) {
	f.uploaded, _ = io.ReadAll(clip)
	return f.apply("upload")
}

func (f *recorderServiceFake) Discard(context.Context, string) error {
	f.lastAction = "discard"
	return f.err
}

func newTestRouter(submissions ports.SubmissionService, recorder ports.RecorderService) http.Handler {
	return NewRouter(submissions, recorder, RouterOptions{ServiceName: "api-test"}).Handler()
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestHealthzReturnsOK(t *testing.T) {
	handler := newTestRouter(&submissionServiceFake{}, &recorderServiceFake{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestEvaluateGeoFenceReturnsResult(t *testing.T) {
	handler := newTestRouter(&submissionServiceFake{}, &recorderServiceFake{})

	res := postJSON(t, handler, "/v1/geofence/evaluate", map[string]any{
		"current": map[string]any{"latitude": 12.9716, "longitude": 77.5946},
		"target": map[string]any{
			"position":      map[string]any{"latitude": 12.9716, "longitude": 77.5946},
			"radius_meters": 100,
		},
	})

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	body := decodeBody(t, res)
	if body["within_range"] != true {
		t.Fatalf("expected within_range true, got %v", body)
	}
}

func TestEvaluateGeoFenceRejectsNonPositiveRadius(t *testing.T) {
	handler := newTestRouter(&submissionServiceFake{}, &recorderServiceFake{})

	res := postJSON(t, handler, "/v1/geofence/evaluate", map[string]any{
		"current": map[string]any{"latitude": 1, "longitude": 1},
		"target":  map[string]any{"position": map[string]any{"latitude": 1, "longitude": 1}},
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestCreateSubmissionReturns201(t *testing.T) {
	submissions := &submissionServiceFake{
		submitFn: func(_ context.Context, req ports.SubmissionRequest) (*domain.SubmissionRecord, error) {
			return &domain.SubmissionRecord{
				ID:            "sub-1",
				OperationType: req.OperationType,
				SubjectID:     req.SubjectID,
				CreatedAt:     time.Now().UTC(),
			}, nil
		},
	}
	handler := newTestRouter(submissions, &recorderServiceFake{})

	res := postJSON(t, handler, "/v1/submissions", map[string]any{
		"operation_type": "payment",
		"subject_id":     "LA-2031",
		"fields":         map[string]string{"amount": "100", "paymentMode": "CASH"},
		"current":        map[string]any{"latitude": 12.9716, "longitude": 77.5946},
		"target": map[string]any{
			"position":      map[string]any{"latitude": 12.9716, "longitude": 77.5946},
			"radius_meters": 100,
		},
	})

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
}

func TestCreateSubmissionReplayReturns200(t *testing.T) {
	stale := time.Now().UTC().Add(-time.Hour)
	submissions := &submissionServiceFake{
		submitFn: func(context.Context, ports.SubmissionRequest) (*domain.SubmissionRecord, error) {
			return &domain.SubmissionRecord{ID: "sub-1", CreatedAt: stale}, nil
		},
	}
	handler := newTestRouter(submissions, &recorderServiceFake{})

	res := postJSON(t, handler, "/v1/submissions", map[string]any{
		"operation_type": "visit",
		"subject_id":     "LA-2031",
		"client_key":     "attempt-7",
		"target":         map[string]any{"radius_meters": 100},
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for replayed client key, got %d", res.Code)
	}
}

func TestCreateSubmissionUnknownOperationReturns400(t *testing.T) {
	handler := newTestRouter(&submissionServiceFake{}, &recorderServiceFake{})

	res := postJSON(t, handler, "/v1/submissions", map[string]any{
		"operation_type": "telecalling",
		"subject_id":     "LA-2031",
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestCreateSubmissionValidationReturns422(t *testing.T) {
	submissions := &submissionServiceFake{
		submitFn: func(context.Context, ports.SubmissionRequest) (*domain.SubmissionRecord, error) {
			return nil, &domain.ValidationError{MissingFields: []string{"amount", "photos (minimum 1)"}}
		},
	}
	handler := newTestRouter(submissions, &recorderServiceFake{})

	res := postJSON(t, handler, "/v1/submissions", map[string]any{
		"operation_type": "payment",
		"subject_id":     "LA-2031",
		"target":         map[string]any{"radius_meters": 100},
	})
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.Code)
	}
	body := decodeBody(t, res)
	fields, ok := body["missing_fields"].([]any)
	if !ok || len(fields) != 2 {
		t.Fatalf("expected missing_fields payload, got %v", body)
	}
}

func TestCreateSubmissionOutsideFenceReturns409(t *testing.T) {
	submissions := &submissionServiceFake{
		submitFn: func(context.Context, ports.SubmissionRequest) (*domain.SubmissionRecord, error) {
			return nil, &domain.GeoFenceError{DistanceMeters: 180, RadiusMeters: 100}
		},
	}
	handler := newTestRouter(submissions, &recorderServiceFake{})

	res := postJSON(t, handler, "/v1/submissions", map[string]any{
		"operation_type": "visit",
		"subject_id":     "LA-2031",
		"target":         map[string]any{"radius_meters": 100},
	})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
	body := decodeBody(t, res)
	if body["distance_meters"] != 180.0 {
		t.Fatalf("expected measured distance in payload, got %v", body)
	}
	if body["override_allowed"] != true {
		t.Fatalf("expected override_allowed flag, got %v", body)
	}
}

func TestGetSubmissionNotFoundReturns404(t *testing.T) {
	submissions := &submissionServiceFake{
		getFn: func(_ context.Context, id string) (*domain.SubmissionRecord, error) {
			return nil, domain.WrapError(domain.ErrSubmissionNotFound, "fetch", domain.ErrSubmissionNotFound)
		},
	}
	handler := newTestRouter(submissions, &recorderServiceFake{})

	req := httptest.NewRequest(http.MethodGet, "/v1/submissions/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestRecorderCreateReturns201(t *testing.T) {
	recorder := &recorderServiceFake{
		session: &domain.RecorderSession{ID: "sess-1", SubjectID: "LA-2031", State: domain.SessionIdle},
	}
	handler := newTestRouter(&submissionServiceFake{}, recorder)

	res := postJSON(t, handler, "/v1/recorder/sessions", map[string]any{"subject_id": "LA-2031"})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	body := decodeBody(t, res)
	if body["state"] != "idle" {
		t.Fatalf("expected idle session, got %v", body)
	}
}

func TestRecorderActionsRouteToService(t *testing.T) {
	for _, action := range []string{"start", "consent", "decline", "stop"} {
		recorder := &recorderServiceFake{
			session: &domain.RecorderSession{ID: "sess-1", State: domain.SessionRecording},
		}
		handler := newTestRouter(&submissionServiceFake{}, recorder)

		res := postJSON(t, handler, "/v1/recorder/sessions/sess-1/"+action, map[string]any{})
		if res.Code != http.StatusOK {
			t.Fatalf("action %s: expected 200, got %d", action, res.Code)
		}
		if recorder.lastAction != action {
			t.Fatalf("action %s routed to %s", action, recorder.lastAction)
		}
	}
}

func TestRecorderConflictReturns409(t *testing.T) {
	recorder := &recorderServiceFake{
		err: &domain.StateConflictError{SessionID: "sess-1", From: domain.SessionIdle, Event: "stop"},
	}
	handler := newTestRouter(&submissionServiceFake{}, recorder)

	res := postJSON(t, handler, "/v1/recorder/sessions/sess-1/stop", map[string]any{})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
	body := decodeBody(t, res)
	if body["session_state"] != "idle" {
		t.Fatalf("expected session state in payload, got %v", body)
	}
}

func TestRecorderUploadAcceptsMultipartClip(t *testing.T) {
	recorder := &recorderServiceFake{
		session: &domain.RecorderSession{ID: "sess-1", State: domain.SessionUploaded, ClipID: "clip-1"},
	}
	handler := newTestRouter(&submissionServiceFake{}, recorder)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("clip", "recording.m4a")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("audio-bytes")); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/recorder/sessions/sess-1/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if string(recorder.uploaded) != "audio-bytes" {
		t.Fatalf("expected clip bytes forwarded, got %q", recorder.uploaded)
	}
}

func TestRecorderUploadWithoutClipReturns400(t *testing.T) {
	handler := newTestRouter(&submissionServiceFake{}, &recorderServiceFake{})

	req := httptest.NewRequest(http.MethodPost, "/v1/recorder/sessions/sess-1/upload", strings.NewReader(""))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestRecorderDiscardReturns204(t *testing.T) {
	recorder := &recorderServiceFake{}
	handler := newTestRouter(&submissionServiceFake{}, recorder)

	res := postJSON(t, handler, "/v1/recorder/sessions/sess-1/discard", map[string]any{})
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if recorder.lastAction != "discard" {
		t.Fatalf("expected discard routed, got %s", recorder.lastAction)
	}
}

func TestRecorderUnknownActionReturns404(t *testing.T) {
	handler := newTestRouter(&submissionServiceFake{}, &recorderServiceFake{})

	res := postJSON(t, handler, "/v1/recorder/sessions/sess-1/pause", map[string]any{})
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}
