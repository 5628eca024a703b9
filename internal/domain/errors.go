package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code and message,
// so errors built with NewDomainErrorWithCause still match their sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeAlreadyExists        = "ALREADY_EXISTS"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeEmptyCorpus          = "EMPTY_CORPUS"
	ErrCodeRetrievalUnavailable = "RETRIEVAL_UNAVAILABLE"
)

// Validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidSignals       = NewDomainError(ErrCodeValidation, "invalid classification signals")
	ErrInvalidTicketStatus  = NewDomainError(ErrCodeValidation, "invalid ticket status")
	ErrInvalidSenderRole    = NewDomainError(ErrCodeValidation, "invalid sender role")
)

// Not found errors
var (
	ErrTicketNotFound   = NewDomainError(ErrCodeNotFound, "ticket not found")
	ErrSnapshotNotFound = NewDomainError(ErrCodeNotFound, "index snapshot not found")
)

// Already exists errors
var (
	ErrTicketAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "ticket already exists")
)

// Authorization errors
var (
	ErrUnauthorized = NewDomainError(ErrCodeUnauthorized, "actor is not permitted to perform this action")
)

// Lifecycle errors
var (
	ErrInvalidTransition = NewDomainError(ErrCodeInvalidTransition, "invalid ticket transition")
	// ErrStatusConflict is returned by stores when a compare-and-set on status loses a race.
	ErrStatusConflict = NewDomainError(ErrCodeInvalidTransition, "ticket status changed concurrently")
)

// Retrieval errors
var (
	ErrEmptyCorpus          = NewDomainError(ErrCodeEmptyCorpus, "corpus has no documents")
	ErrRetrievalUnavailable = NewDomainError(ErrCodeRetrievalUnavailable, "retrieval index unavailable")
)

// InvalidTransitionError reports a rejected transition together with the current status.
func InvalidTransitionError(current TicketStatus, event string) error {
	return NewDomainErrorWithCause(ErrCodeInvalidTransition, ErrInvalidTransition.Message,
		fmt.Errorf("cannot apply %s to ticket in status %s", event, current))
}

// UnauthorizedError reports which actor was refused for which event.
func UnauthorizedError(actor Actor, event string) error {
	return NewDomainErrorWithCause(ErrCodeUnauthorized, ErrUnauthorized.Message,
		fmt.Errorf("%s %q may not %s", actor.Role, actor.ID, event))
}

// IsExpected reports whether err is a normal rejection of caller input
// (validation, lookup, permission or lifecycle) rather than a fault.
func IsExpected(err error) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	switch de.Code {
	case ErrCodeValidation, ErrCodeNotFound, ErrCodeAlreadyExists, ErrCodeUnauthorized, ErrCodeInvalidTransition:
		return true
	}
	return false
}
