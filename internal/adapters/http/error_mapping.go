package httpadapter

import (
	"errors"
	"net/http"

	"github.com/finverge/fieldops/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrSubmissionNotFound),
		domain.IsKind(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case isValidationError(err):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrOutsideGeoFence),
		domain.IsKind(err, domain.ErrStateConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrUploadFailed),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isValidationError(err error) bool {
	var ve *domain.ValidationError
	return errors.As(err, &ve)
}

// writeError renders the error with enough structure for the device UI to
// act on it: missing fields for validation failures, measured distance for
// geofence rejections.
func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	body := map[string]any{"error": err.Error()}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body["missing_fields"] = ve.MissingFields
	}
	var ge *domain.GeoFenceError
	if errors.As(err, &ge) {
		body["distance_meters"] = ge.DistanceMeters
		body["radius_meters"] = ge.RadiusMeters
		body["override_allowed"] = true
	}
	var sc *domain.StateConflictError
	if errors.As(err, &sc) {
		body["session_state"] = string(sc.From)
	}

	writeJSON(w, status, body)
}
