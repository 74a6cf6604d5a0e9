package domain

import (
	"fmt"
	"time"
)

type OperationType string

const (
	OpVerification OperationType = "verification"
	OpFollowUp     OperationType = "follow_up"
	OpVisit        OperationType = "visit"
	OpPayment      OperationType = "payment"
	OpYardEntry    OperationType = "yard_entry"
)

func ParseOperationType(raw string) (OperationType, error) {
	switch OperationType(raw) {
	case OpVerification, OpFollowUp, OpVisit, OpPayment, OpYardEntry:
		return OperationType(raw), nil
	default:
		return "", WrapError(ErrInvalidInput, "parse operation type", fmt.Errorf("unknown operation type %q", raw))
	}
}

type AttachmentType string

const (
	AttachmentPhoto    AttachmentType = "photo"
	AttachmentAudio    AttachmentType = "audio"
	AttachmentDocument AttachmentType = "document"
)

// Attachment references captured evidence by id; the bytes live in clip/object
// storage.
type Attachment struct {
	Type  AttachmentType `json:"type"`
	RefID string         `json:"ref_id"`
}

type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncDone    SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// SubmissionRecord is the immutable outcome of a successful submit. The
// geofence result is copied in, not referenced: it is a point-in-time fact.
// Override marks submissions accepted outside the fence and is kept for
// audit.
type SubmissionRecord struct {
	ID            string            `json:"id"`
	OperationType OperationType     `json:"operation_type"`
	SubjectID     string            `json:"subject_id"`
	Fields        map[string]string `json:"fields"`
	Attachments   []Attachment      `json:"attachments"`
	GeoFence      GeoFenceResult    `json:"geofence"`
	Override      bool              `json:"override"`
	ClientKey     string            `json:"client_key"`
	SyncStatus    SyncStatus        `json:"sync_status"`
	CreatedAt     time.Time         `json:"created_at"`
}
