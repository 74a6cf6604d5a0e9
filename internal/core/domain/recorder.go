package domain

import "time"

type SessionState string

const (
	SessionIdle            SessionState = "idle"
	SessionAwaitingConsent SessionState = "awaiting_consent"
	SessionRecording       SessionState = "recording"
	SessionStopped         SessionState = "stopped"
	SessionUploading       SessionState = "uploading"
	SessionUploaded        SessionState = "uploaded"
)

// DefaultMaxRecordingSeconds is the auto-stop ceiling that bounds a forgotten
// open mic.
const DefaultMaxRecordingSeconds = 300

// RecorderSession governs one voice-recording attempt. Recording can never
// start without consent: every path into SessionRecording requires
// ConsentGiven. A session is exclusively owned by the operation that created
// it and carries no internal locking.
//
// The auto-stop ceiling is applied lazily: every transition and state read
// first settles an over-ceiling recording into SessionStopped, so no timer
// goroutine exists to race a manual stop.
type RecorderSession struct {
	ID              string       `json:"id"`
	SubjectID       string       `json:"subject_id"`
	State           SessionState `json:"state"`
	ConsentGiven    bool         `json:"consent_given"`
	StartedAt       *time.Time   `json:"started_at,omitempty"`
	DurationSeconds int          `json:"duration_seconds"`
	ClipID          string       `json:"clip_id,omitempty"`

	maxRecording time.Duration
	now          func() time.Time
}

// NewRecorderSession creates an idle session. maxRecordingSeconds <= 0 selects
// the default ceiling; a nil clock selects time.Now.
func NewRecorderSession(id, subjectID string, maxRecordingSeconds int, clock func() time.Time) *RecorderSession {
	if maxRecordingSeconds <= 0 {
		maxRecordingSeconds = DefaultMaxRecordingSeconds
	}
	if clock == nil {
		clock = time.Now
	}
	return &RecorderSession{
		ID:           id,
		SubjectID:    subjectID,
		State:        SessionIdle,
		maxRecording: time.Duration(maxRecordingSeconds) * time.Second,
		now:          clock,
	}
}

// CurrentState settles the auto-stop ceiling before reporting state.
func (s *RecorderSession) CurrentState() SessionState {
	s.settleAutoStop()
	return s.State
}

// RequestStart begins recording immediately when consent was already granted
// for this session holder, otherwise parks the session awaiting consent.
func (s *RecorderSession) RequestStart() error {
	s.settleAutoStop()
	if s.State != SessionIdle {
		return s.conflict("start")
	}
	if !s.ConsentGiven {
		s.State = SessionAwaitingConsent
		return nil
	}
	s.beginRecording()
	return nil
}

// AcceptConsent grants consent and starts recording. Consent sticks on the
// session holder, so later recordings within the same operation skip the
// prompt.
func (s *RecorderSession) AcceptConsent() error {
	if s.State != SessionAwaitingConsent {
		return s.conflict("consent_accepted")
	}
	s.ConsentGiven = true
	s.beginRecording()
	return nil
}

// DeclineConsent returns the session to idle. A decline is a user choice, not
// a failure.
func (s *RecorderSession) DeclineConsent() error {
	if s.State != SessionAwaitingConsent {
		return s.conflict("consent_declined")
	}
	s.State = SessionIdle
	return nil
}

// RequestStop ends the recording and captures its wall-clock duration. A stop
// in SessionStopped is a no-op: the lazy auto-stop may already have absorbed
// the session, and a second stop must not surface as a conflict.
func (s *RecorderSession) RequestStop() error {
	s.settleAutoStop()
	switch s.State {
	case SessionRecording:
		s.stopAt(s.now())
		return nil
	case SessionStopped:
		return nil
	default:
		return s.conflict("stop")
	}
}

// BeginUpload hands the stopped clip to the upload collaborator.
func (s *RecorderSession) BeginUpload() error {
	s.settleAutoStop()
	if s.State != SessionStopped {
		return s.conflict("upload_started")
	}
	s.State = SessionUploading
	return nil
}

// CompleteUpload records the assigned clip id. The session is finished; the
// caller attaches the clip to its submission and discards the session.
func (s *RecorderSession) CompleteUpload(clipID string) error {
	if s.State != SessionUploading {
		return s.conflict("upload_succeeded")
	}
	s.State = SessionUploaded
	s.ClipID = clipID
	return nil
}

// FailUpload returns the session to stopped so the caller can retry the
// upload. The session itself never retries.
func (s *RecorderSession) FailUpload() error {
	if s.State != SessionUploading {
		return s.conflict("upload_failed")
	}
	s.State = SessionStopped
	return nil
}

func (s *RecorderSession) beginRecording() {
	started := s.now()
	s.StartedAt = &started
	s.DurationSeconds = 0
	s.ClipID = ""
	s.State = SessionRecording
}

func (s *RecorderSession) settleAutoStop() {
	if s.State != SessionRecording || s.StartedAt == nil {
		return
	}
	if s.now().Sub(*s.StartedAt) >= s.maxRecording {
		s.stopAt(s.StartedAt.Add(s.maxRecording))
	}
}

func (s *RecorderSession) stopAt(end time.Time) {
	elapsed := end.Sub(*s.StartedAt)
	if elapsed > s.maxRecording {
		elapsed = s.maxRecording
	}
	s.DurationSeconds = int(elapsed / time.Second)
	s.State = SessionStopped
}

func (s *RecorderSession) conflict(event string) error {
	return &StateConflictError{SessionID: s.ID, From: s.State, Event: event}
}
