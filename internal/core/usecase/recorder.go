package usecase

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finverge/fieldops/internal/core/domain"
	"github.com/finverge/fieldops/internal/core/ports"
)

// RecorderUseCase keeps the in-flight recorder sessions. Each session is
// exclusively owned by the operation that created it; the mutex here guards
// only registry bookkeeping and serializes transitions arriving over HTTP.
//
// Consent sticks per subject: once a field agent's customer has accepted for
// an operation, later sessions on the same subject skip the prompt.
type RecorderUseCase struct {
	clips ports.ClipStorage

	mu       sync.Mutex
	sessions map[string]*domain.RecorderSession
	consent  map[string]bool

	maxRecordingSeconds int
	clock               func() time.Time
}

func NewRecorderUseCase(clips ports.ClipStorage, maxRecordingSeconds int) *RecorderUseCase {
	return &RecorderUseCase{
		clips:               clips,
		sessions:            make(map[string]*domain.RecorderSession),
		consent:             make(map[string]bool),
		maxRecordingSeconds: maxRecordingSeconds,
		clock:               time.Now,
	}
}

func (uc *RecorderUseCase) Create(_ context.Context, subjectID string) (*domain.RecorderSession, error) {
	if subjectID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create session", fmt.Errorf("subject id is required"))
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	session := domain.NewRecorderSession(uuid.NewString(), subjectID, uc.maxRecordingSeconds, uc.clock)
	session.ConsentGiven = uc.consent[subjectID]
	uc.sessions[session.ID] = session
	return snapshot(session), nil
}

func (uc *RecorderUseCase) Get(_ context.Context, sessionID string) (*domain.RecorderSession, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	session, err := uc.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	session.CurrentState()
	return snapshot(session), nil
}

func (uc *RecorderUseCase) RequestStart(_ context.Context, sessionID string) (*domain.RecorderSession, error) {
	return uc.transition(sessionID, func(s *domain.RecorderSession) error {
		return s.RequestStart()
	})
}

func (uc *RecorderUseCase) AcceptConsent(_ context.Context, sessionID string) (*domain.RecorderSession, error) {
	return uc.transition(sessionID, func(s *domain.RecorderSession) error {
		if err := s.AcceptConsent(); err != nil {
			return err
		}
		uc.consent[s.SubjectID] = true
		return nil
	})
}

func (uc *RecorderUseCase) DeclineConsent(_ context.Context, sessionID string) (*domain.RecorderSession, error) {
	return uc.transition(sessionID, func(s *domain.RecorderSession) error {
		return s.DeclineConsent()
	})
}

func (uc *RecorderUseCase) RequestStop(_ context.Context, sessionID string) (*domain.RecorderSession, error) {
	return uc.transition(sessionID, func(s *domain.RecorderSession) error {
		return s.RequestStop()
	})
}

// Upload moves a stopped session through uploading and stores the clip. On a
// storage failure the session returns to stopped so the caller can retry.
func (uc *RecorderUseCase) Upload(ctx context.Context, sessionID string, clip io.Reader) (*domain.RecorderSession, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	session, err := uc.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.BeginUpload(); err != nil {
		return nil, err
	}

	clipID := uuid.NewString()
	if err := uc.clips.Save(ctx, clipKey(clipID), clip); err != nil {
		_ = uc.clips.Remove(ctx, clipKey(clipID))
		_ = session.FailUpload()
		return snapshot(session), domain.WrapError(domain.ErrUploadFailed, "store clip", err)
	}

	if err := session.CompleteUpload(clipID); err != nil {
		return nil, err
	}
	return snapshot(session), nil
}

// Discard destroys a session after cancel or after its clip has been handed
// off to a submission.
func (uc *RecorderUseCase) Discard(_ context.Context, sessionID string) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if _, err := uc.lookup(sessionID); err != nil {
		return err
	}
	delete(uc.sessions, sessionID)
	return nil
}

func (uc *RecorderUseCase) transition(sessionID string, apply func(*domain.RecorderSession) error) (*domain.RecorderSession, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	session, err := uc.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	if err := apply(session); err != nil {
		return nil, err
	}
	return snapshot(session), nil
}

func (uc *RecorderUseCase) lookup(sessionID string) (*domain.RecorderSession, error) {
	session, ok := uc.sessions[sessionID]
	if !ok {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "lookup session", fmt.Errorf("id %s", sessionID))
	}
	return session, nil
}

// snapshot hands callers a copy so registry-owned state never escapes.
func snapshot(s *domain.RecorderSession) *domain.RecorderSession {
	copySession := *s
	if s.StartedAt != nil {
		started := *s.StartedAt
		copySession.StartedAt = &started
	}
	return &copySession
}

func clipKey(clipID string) string {
	return clipID + ".m4a"
}
