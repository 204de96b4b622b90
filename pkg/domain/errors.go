package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies a DomainError for callers and the HTTP layer.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "VALIDATION_ERROR"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	CodeConcurrency       ErrorCode = "CONCURRENCY_CONFLICT"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeUnauthorized      ErrorCode = "UNAUTHORIZED"
)

// DomainError is the error type returned by domain and application code.
type DomainError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidationError creates an error for malformed input.
func NewValidationError(message string) *DomainError {
	return &DomainError{Code: CodeValidation, Message: message}
}

// NewNotFoundError creates an error for a missing entity.
func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", entity, id),
		Details: map[string]interface{}{"entity": entity, "id": id},
	}
}

// NewInvalidTransitionError creates an error for a status change that the
// transition table does not allow from the current status.
func NewInvalidTransitionError(current, requested string, allowed []string) *DomainError {
	if allowed == nil {
		allowed = []string{}
	}
	msg := fmt.Sprintf("cannot transition from %s to %s", current, requested)
	if current == requested {
		msg = fmt.Sprintf("cannot transition from %s to %s: already in that status", current, requested)
	} else if len(allowed) == 0 {
		msg = fmt.Sprintf("cannot transition from %s to %s: %s is final", current, requested, current)
	} else {
		msg = fmt.Sprintf("%s (allowed: %s)", msg, strings.Join(allowed, ", "))
	}
	return &DomainError{
		Code:    CodeInvalidTransition,
		Message: msg,
		Details: map[string]interface{}{
			"current_status":        current,
			"requested_status":      requested,
			"allowed_next_statuses": allowed,
		},
	}
}

// NewConcurrencyError creates an error for a lock or version conflict.
// Callers may retry after re-reading the entity.
func NewConcurrencyError(message string) *DomainError {
	return &DomainError{Code: CodeConcurrency, Message: message}
}

// NewStaleStatusError creates the concurrency error returned when a
// conditional request names an expected status the entity no longer has.
// Repeating the request cannot succeed; the caller must re-read first.
func NewStaleStatusError(entity, id, current, expected string) *DomainError {
	return &DomainError{
		Code:    CodeConcurrency,
		Message: fmt.Sprintf("%s %s is %s, not %s", entity, id, current, expected),
		Details: map[string]interface{}{
			"current_status":  current,
			"expected_status": expected,
		},
	}
}

// NewForbiddenError creates an error for an authenticated caller lacking permission.
func NewForbiddenError(message string) *DomainError {
	return &DomainError{Code: CodeForbidden, Message: message}
}

// NewUnauthorizedError creates an error for a missing or invalid identity.
func NewUnauthorizedError(message string) *DomainError {
	return &DomainError{Code: CodeUnauthorized, Message: message}
}

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func IsValidation(err error) bool        { return CodeOf(err) == CodeValidation }
func IsNotFound(err error) bool          { return CodeOf(err) == CodeNotFound }
func IsInvalidTransition(err error) bool { return CodeOf(err) == CodeInvalidTransition }
func IsConcurrency(err error) bool       { return CodeOf(err) == CodeConcurrency }

// IsStaleStatus reports whether err came from an expected-status mismatch.
func IsStaleStatus(err error) bool {
	var de *DomainError
	if !errors.As(err, &de) || de.Code != CodeConcurrency {
		return false
	}
	_, ok := de.Details["expected_status"]
	return ok
}
