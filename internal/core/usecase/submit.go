package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finverge/fieldops/internal/core/domain"
	"github.com/finverge/fieldops/internal/core/ports"
)

// SubmitOperationUseCase validates and freezes a field set into an immutable
// SubmissionRecord. Validation is all-or-nothing: a failing submit allocates
// no id and touches no store.
type SubmitOperationUseCase struct {
	repo  ports.SubmissionRepository
	queue ports.MessageQueue
	rules domain.RuleBook
	clock func() time.Time
}

func NewSubmitOperationUseCase(
	repo ports.SubmissionRepository,
	queue ports.MessageQueue,
	rules domain.RuleBook,
) *SubmitOperationUseCase {
	return &SubmitOperationUseCase{
		repo:  repo,
		queue: queue,
		rules: rules,
		clock: time.Now,
	}
}

func (uc *SubmitOperationUseCase) Submit(ctx context.Context, req ports.SubmissionRequest) (*domain.SubmissionRecord, error) {
	if strings.TrimSpace(req.SubjectID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit", fmt.Errorf("subject id is required"))
	}

	if req.ClientKey != "" {
		existing, err := uc.repo.GetByClientKey(ctx, req.ClientKey)
		switch {
		case err == nil:
			return existing, nil
		case !domain.IsKind(err, domain.ErrSubmissionNotFound):
			return nil, fmt.Errorf("look up client key: %w", err)
		}
	}

	if err := uc.rules.Validate(req.OperationType, req.Fields, req.Attachments); err != nil {
		return nil, err
	}

	if !req.GeoFence.WithinRange && !req.Override {
		return nil, &domain.GeoFenceError{
			DistanceMeters: req.GeoFence.DistanceMeters,
			RadiusMeters:   req.RadiusMeters,
		}
	}

	rec := &domain.SubmissionRecord{
		ID:            uuid.NewString(),
		OperationType: req.OperationType,
		SubjectID:     req.SubjectID,
		Fields:        copyFields(req.Fields),
		Attachments:   append([]domain.Attachment(nil), req.Attachments...),
		GeoFence:      req.GeoFence,
		Override:      req.Override,
		ClientKey:     req.ClientKey,
		SyncStatus:    domain.SyncPending,
		CreatedAt:     uc.clock().UTC(),
	}

	if err := uc.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create submission record: %w", err)
	}

	if err := uc.queue.PublishSubmissionCreated(ctx, rec.ID); err != nil {
		return nil, fmt.Errorf("publish submission event: %w", err)
	}

	return rec, nil
}

func (uc *SubmitOperationUseCase) GetByID(ctx context.Context, id string) (*domain.SubmissionRecord, error) {
	rec, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch submission by id: %w", err)
	}
	return rec, nil
}

func copyFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
