package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ErrorKind classifies workflow failures surfaced to callers.
type ErrorKind string

const (
	// KindPermissionDenied means the actor lacks the required permission.
	KindPermissionDenied ErrorKind = "PermissionDenied"
	// KindInvalidTransition means the entity is not in a legal source state.
	KindInvalidTransition ErrorKind = "InvalidTransition"
	// KindValidationFailed means required fields are missing or invalid.
	KindValidationFailed ErrorKind = "ValidationFailed"
	// KindDependencyUnavailable means a referenced entity vanished before commit.
	KindDependencyUnavailable ErrorKind = "DependencyUnavailable"
	// KindConcurrentModification means an optimistic status check lost a race.
	KindConcurrentModification ErrorKind = "ConcurrentModification"
)

// InvalidItem identifies one offending line in a validation failure.
type InvalidItem struct {
	Index  int    `json:"index"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// WorkflowError is the structured failure returned by every transition.
// It reaches the caller verbatim and is never retried by the core.
type WorkflowError struct {
	Kind         ErrorKind
	Message      string
	InvalidItems []InvalidItem
}

func (e *WorkflowError) Error() string {
	if len(e.InvalidItems) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	parts := make([]string, 0, len(e.InvalidItems))
	for _, item := range e.InvalidItems {
		parts = append(parts, fmt.Sprintf("line %d: %s %s", item.Index, item.Field, item.Reason))
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, strings.Join(parts, "; "))
}

// PermissionDenied builds a PermissionDenied error for the named permission.
func PermissionDenied(permission string) *WorkflowError {
	return &WorkflowError{Kind: KindPermissionDenied, Message: fmt.Sprintf("requires %s", permission)}
}

// InvalidTransition builds an InvalidTransition error.
func InvalidTransition(format string, args ...any) *WorkflowError {
	return &WorkflowError{Kind: KindInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

// ValidationFailed builds a ValidationFailed error carrying every offending item.
func ValidationFailed(message string, items ...InvalidItem) *WorkflowError {
	return &WorkflowError{Kind: KindValidationFailed, Message: message, InvalidItems: items}
}

// DependencyUnavailable builds a DependencyUnavailable error.
func DependencyUnavailable(format string, args ...any) *WorkflowError {
	return &WorkflowError{Kind: KindDependencyUnavailable, Message: fmt.Sprintf(format, args...)}
}

// ConcurrentModification builds a ConcurrentModification error.
func ConcurrentModification(format string, args ...any) *WorkflowError {
	return &WorkflowError{Kind: KindConcurrentModification, Message: fmt.Sprintf(format, args...)}
}

// AsWorkflowError unwraps err into a WorkflowError when possible.
func AsWorkflowError(err error) (*WorkflowError, bool) {
	var wf *WorkflowError
	if errors.As(err, &wf) {
		return wf, true
	}
	return nil, false
}

// IsKind reports whether err is a WorkflowError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	wf, ok := AsWorkflowError(err)
	return ok && wf.Kind == kind
}
