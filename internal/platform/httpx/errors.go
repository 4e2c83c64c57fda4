package httpx

import (
	"errors"
	"net/http"

	"github.com/mitra-erp/mitra-erp/internal/shared"
)

// Sentinel errors for the request layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps workflow and request errors to RFC7807 responses.
// Workflow errors pass through with their kind and item list intact; nothing
// is downgraded to a generic failure.
func RespondError(w http.ResponseWriter, err error) {
	if wf, ok := shared.AsWorkflowError(err); ok {
		status := statusForKind(wf.Kind)
		JSON(w, status, ProblemDetail{
			Title:        string(wf.Kind),
			Status:       status,
			Detail:       wf.Message,
			Kind:         string(wf.Kind),
			InvalidItems: wf.InvalidItems,
		})
		return
	}
	switch {
	case errors.Is(err, shared.ErrNotFound) || errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func statusForKind(kind shared.ErrorKind) int {
	switch kind {
	case shared.KindPermissionDenied:
		return http.StatusForbidden
	case shared.KindInvalidTransition, shared.KindConcurrentModification:
		return http.StatusConflict
	case shared.KindValidationFailed:
		return http.StatusUnprocessableEntity
	case shared.KindDependencyUnavailable:
		return http.StatusFailedDependency
	default:
		return http.StatusInternalServerError
	}
}
