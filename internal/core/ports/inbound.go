package ports

import (
	"context"
	"io"

	"github.com/finverge/fieldops/internal/core/domain"
)

// SubmissionRequest carries everything a field agent's device sends on a
// submit action. ClientKey is the caller-generated idempotency key for the
// attempt; retries reuse it and receive the original record.
type SubmissionRequest struct {
	OperationType domain.OperationType
	SubjectID     string
	ClientKey     string
	Fields        map[string]string
	Attachments   []domain.Attachment
	GeoFence      domain.GeoFenceResult
	RadiusMeters  float64
	Override      bool
}

// SubmissionService is the inbound contract for the capture-and-submit
// workflow.
type SubmissionService interface {
	Submit(ctx context.Context, req SubmissionRequest) (*domain.SubmissionRecord, error)
	GetByID(ctx context.Context, id string) (*domain.SubmissionRecord, error)
}

// RecorderService drives consent-gated recorder sessions on behalf of the
// presentation layer. Sessions are addressed by id; each is exclusively owned
// by the operation that created it.
type RecorderService interface {
	Create(ctx context.Context, subjectID string) (*domain.RecorderSession, error)
	Get(ctx context.Context, sessionID string) (*domain.RecorderSession, error)
	RequestStart(ctx context.Context, sessionID string) (*domain.RecorderSession, error)
	AcceptConsent(ctx context.Context, sessionID string) (*domain.RecorderSession, error)
	DeclineConsent(ctx context.Context, sessionID string) (*domain.RecorderSession, error)
	RequestStop(ctx context.Context, sessionID string) (*domain.RecorderSession, error)
	Upload(ctx context.Context, sessionID string, clip io.Reader) (*domain.RecorderSession, error)
	Discard(ctx context.Context, sessionID string) error
}

// SubmissionDispatcher is the inbound contract for asynchronous delivery of
// finished submissions to the loan-servicing backend.
type SubmissionDispatcher interface {
	DispatchByID(ctx context.Context, submissionID string) error
	DispatchPending(ctx context.Context) (int, error)
}
