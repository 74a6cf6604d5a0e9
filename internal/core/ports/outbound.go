package ports

import (
	"context"
	"io"

	"github.com/finverge/fieldops/internal/core/domain"
)

// SubmissionRepository persists immutable submission records and their sync
// state. Records are append-only; only SyncStatus ever changes after create.
type SubmissionRepository interface {
	Create(ctx context.Context, rec *domain.SubmissionRecord) error
	GetByID(ctx context.Context, id string) (*domain.SubmissionRecord, error)
	GetByClientKey(ctx context.Context, clientKey string) (*domain.SubmissionRecord, error)
	UpdateSyncStatus(ctx context.Context, id string, status domain.SyncStatus) error
	ListPendingSync(ctx context.Context, limit int) ([]string, error)
}

// ClipStorage stores recorded audio clips.
type ClipStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes submission-created events.
type MessageQueue interface {
	PublishSubmissionCreated(ctx context.Context, submissionID string) error
	SubscribeSubmissionCreated(ctx context.Context, handler func(context.Context, string) error) error
	Close()
}

// UpstreamSink delivers finished submissions to the loan-servicing backend.
type UpstreamSink interface {
	DeliverSubmission(ctx context.Context, rec *domain.SubmissionRecord) error
}
