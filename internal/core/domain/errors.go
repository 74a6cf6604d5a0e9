package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrSessionNotFound    = errors.New("recorder session not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrStateConflict      = errors.New("illegal session transition")
	ErrOutsideGeoFence    = errors.New("outside geofence")
	ErrUploadFailed       = errors.New("clip upload failed")
	ErrTemporary          = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ValidationError reports every missing or invalid field of a submission
// attempt in one pass. Validation is all-or-nothing: a submission that
// produced this error allocated nothing.
type ValidationError struct {
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: missing or invalid fields: %s", strings.Join(e.MissingFields, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// GeoFenceError is returned when a submission is attempted outside the
// operation's geofence without an explicit override. It carries the measured
// distance so callers can render "you are Nm away" with an override path.
type GeoFenceError struct {
	DistanceMeters float64
	RadiusMeters   float64
}

func (e *GeoFenceError) Error() string {
	return fmt.Sprintf("outside geofence: %.0fm from target, allowed radius %.0fm", e.DistanceMeters, e.RadiusMeters)
}

func (e *GeoFenceError) Is(target error) bool {
	return target == ErrOutsideGeoFence
}

// StateConflictError reports an illegal recorder transition. These indicate a
// sequencing defect in the caller and are surfaced, never swallowed.
type StateConflictError struct {
	SessionID string
	From      SessionState
	Event     string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("session %s: event %q not allowed in state %s", e.SessionID, e.Event, e.From)
}

func (e *StateConflictError) Is(target error) bool {
	return target == ErrStateConflict
}
