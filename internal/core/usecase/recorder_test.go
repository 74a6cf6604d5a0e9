package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/finverge/fieldops/internal/core/domain"
)

type clipStorageFake struct {
	saved   map[string]string
	removed []string
	saveErr error
}

func newClipStorageFake() *clipStorageFake {
	return &clipStorageFake{saved: map[string]string{}}
}

func (f *clipStorageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.saved[key] = string(raw)
	return nil
}

func (f *clipStorageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *clipStorageFake) Remove(_ context.Context, key string) error {
	f.removed = append(f.removed, key)
	return nil
}

func startRecording(t *testing.T, uc *RecorderUseCase, subjectID string) *domain.RecorderSession {
	t.Helper()
	ctx := context.Background()

	session, err := uc.Create(ctx, subjectID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := uc.RequestStart(ctx, session.ID); err != nil {
		t.Fatalf("RequestStart() error = %v", err)
	}
	if _, err := uc.AcceptConsent(ctx, session.ID); err != nil {
		t.Fatalf("AcceptConsent() error = %v", err)
	}
	return session
}

func TestRecorderUploadStoresClip(t *testing.T) {
	clips := newClipStorageFake()
	uc := NewRecorderUseCase(clips, 300)
	ctx := context.Background()

	session := startRecording(t, uc, "case-9")
	if _, err := uc.RequestStop(ctx, session.ID); err != nil {
		t.Fatalf("RequestStop() error = %v", err)
	}

	uploaded, err := uc.Upload(ctx, session.ID, strings.NewReader("audio-bytes"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if uploaded.State != domain.SessionUploaded {
		t.Fatalf("expected uploaded, got %s", uploaded.State)
	}
	if uploaded.ClipID == "" {
		t.Fatalf("expected assigned clip id")
	}
	if got := clips.saved[uploaded.ClipID+".m4a"]; got != "audio-bytes" {
		t.Fatalf("expected stored clip bytes, got %q", got)
	}
}

func TestRecorderUploadFailureReturnsToStopped(t *testing.T) {
	clips := newClipStorageFake()
	clips.saveErr = errors.New("disk full")
	uc := NewRecorderUseCase(clips, 300)
	ctx := context.Background()

	session := startRecording(t, uc, "case-9")
	_, _ = uc.RequestStop(ctx, session.ID)

	got, err := uc.Upload(ctx, session.ID, strings.NewReader("audio"))
	if !domain.IsKind(err, domain.ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	if got.State != domain.SessionStopped {
		t.Fatalf("failed upload must leave session stopped, got %s", got.State)
	}

	// Retry succeeds once storage recovers.
	clips.saveErr = nil
	retried, err := uc.Upload(ctx, session.ID, strings.NewReader("audio"))
	if err != nil {
		t.Fatalf("retry Upload() error = %v", err)
	}
	if retried.State != domain.SessionUploaded {
		t.Fatalf("expected uploaded after retry, got %s", retried.State)
	}
}

func TestRecorderConsentStickyPerSubject(t *testing.T) {
	uc := NewRecorderUseCase(newClipStorageFake(), 300)
	ctx := context.Background()

	first := startRecording(t, uc, "case-9")
	if _, err := uc.RequestStop(ctx, first.ID); err != nil {
		t.Fatalf("RequestStop() error = %v", err)
	}

	second, err := uc.Create(ctx, "case-9")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	started, err := uc.RequestStart(ctx, second.ID)
	if err != nil {
		t.Fatalf("RequestStart() error = %v", err)
	}
	if started.State != domain.SessionRecording {
		t.Fatalf("expected immediate recording with sticky consent, got %s", started.State)
	}

	other, _ := uc.Create(ctx, "case-10")
	started, err = uc.RequestStart(ctx, other.ID)
	if err != nil {
		t.Fatalf("RequestStart() error = %v", err)
	}
	if started.State != domain.SessionAwaitingConsent {
		t.Fatalf("different subject must re-prompt, got %s", started.State)
	}
}

func TestRecorderDiscardRemovesSession(t *testing.T) {
	uc := NewRecorderUseCase(newClipStorageFake(), 300)
	ctx := context.Background()

	session, _ := uc.Create(ctx, "case-9")
	if err := uc.Discard(ctx, session.ID); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	if _, err := uc.Get(ctx, session.ID); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after discard, got %v", err)
	}
}

func TestRecorderUnknownSessionIsNotFound(t *testing.T) {
	uc := NewRecorderUseCase(newClipStorageFake(), 300)

	_, err := uc.RequestStart(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRecorderSnapshotDoesNotLeakRegistryState(t *testing.T) {
	uc := NewRecorderUseCase(newClipStorageFake(), 300)
	ctx := context.Background()

	session := startRecording(t, uc, "case-9")
	outside, err := uc.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	outside.State = domain.SessionUploaded

	current, err := uc.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if current.State != domain.SessionRecording {
		t.Fatalf("mutating a snapshot must not affect the registry, got %s", current.State)
	}
}
