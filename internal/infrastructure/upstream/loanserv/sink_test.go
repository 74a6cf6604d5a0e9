package loanserv

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/finverge/fieldops/internal/core/domain"
	"github.com/finverge/fieldops/internal/infrastructure/resilience"
)

func testRecord() *domain.SubmissionRecord {
	return &domain.SubmissionRecord{
		ID:            "sub-1",
		OperationType: domain.OpPayment,
		SubjectID:     "LA-2031",
		Fields:        map[string]string{"amount": "3200", "paymentMode": "CASH"},
		GeoFence:      domain.GeoFenceResult{WithinRange: true, DistanceMeters: 12},
		SyncStatus:    domain.SyncPending,
		CreatedAt:     time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC),
	}
}

func fastExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})
}

func TestDeliverSubmissionPostsRecord(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := New(srv.URL, "secret", fastExecutor())
	if err := sink.DeliverSubmission(context.Background(), testRecord()); err != nil {
		t.Fatalf("DeliverSubmission() error = %v", err)
	}
	if gotPath != "/v1/field-submissions" {
		t.Fatalf("expected delivery path, got %s", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	if gotBody["id"] != "sub-1" {
		t.Fatalf("expected record payload, got %v", gotBody)
	}
}

func TestDeliverSubmissionRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := New(srv.URL, "", fastExecutor())
	if err := sink.DeliverSubmission(context.Background(), testRecord()); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestDeliverSubmissionExhaustedRetriesAreTemporary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := New(srv.URL, "", fastExecutor())
	err := sink.DeliverSubmission(context.Background(), testRecord())
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestDeliverSubmissionDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	sink := New(srv.URL, "", fastExecutor())
	err := sink.DeliverSubmission(context.Background(), testRecord())
	if err == nil {
		t.Fatalf("expected error")
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("client error must not be temporary, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected single attempt, got %d", calls.Load())
	}
}
