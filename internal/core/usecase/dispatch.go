package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/finverge/fieldops/internal/core/domain"
	"github.com/finverge/fieldops/internal/core/ports"
)

const dispatchBatchSize = 100

// DispatchSubmissionUseCase pushes finished submission records to the
// loan-servicing backend and tracks their sync state. It is driven by the
// queue subscription and, for records that failed or were missed, by a
// periodic re-sweep.
type DispatchSubmissionUseCase struct {
	repo ports.SubmissionRepository
	sink ports.UpstreamSink
}

func NewDispatchSubmissionUseCase(repo ports.SubmissionRepository, sink ports.UpstreamSink) *DispatchSubmissionUseCase {
	return &DispatchSubmissionUseCase{repo: repo, sink: sink}
}

func (uc *DispatchSubmissionUseCase) DispatchByID(ctx context.Context, submissionID string) error {
	rec, err := uc.repo.GetByID(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("fetch submission for dispatch: %w", err)
	}
	if rec.SyncStatus == domain.SyncDone {
		return nil
	}

	if err := uc.sink.DeliverSubmission(ctx, rec); err != nil {
		if statusErr := uc.repo.UpdateSyncStatus(ctx, rec.ID, domain.SyncFailed); statusErr != nil {
			return fmt.Errorf("deliver submission: %w; mark failed: %w", err, statusErr)
		}
		return fmt.Errorf("deliver submission: %w", err)
	}

	if err := uc.repo.UpdateSyncStatus(ctx, rec.ID, domain.SyncDone); err != nil {
		return fmt.Errorf("mark submission synced: %w", err)
	}
	return nil
}

// DispatchPending re-dispatches records still pending or failed, returning
// how many were delivered. Individual failures do not stop the sweep.
func (uc *DispatchSubmissionUseCase) DispatchPending(ctx context.Context) (int, error) {
	ids, err := uc.repo.ListPendingSync(ctx, dispatchBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending submissions: %w", err)
	}

	delivered := 0
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := uc.DispatchByID(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}
