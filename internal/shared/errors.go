package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or rule-breaking input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a uniqueness or state clash with stored data.
	ErrConflict = errors.New("conflict")
	// ErrPersistence wraps storage failures. The transaction has been rolled back.
	ErrPersistence = errors.New("persistence failure")
	// ErrForbidden indicates the actor lacks the role for the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates the request carries no authenticated user.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidStatus rejects a transition the document status does not allow.
	ErrInvalidStatus = errors.New("invalid status transition")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// DomainError carries a message that is safe to show to the caller together
// with the sentinel kind used for classification.
type DomainError struct {
	Kind    error
	Message string
}

func (e *DomainError) Error() string {
	return e.Kind.Error() + ": " + e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Kind
}

func newDomainError(kind error, format string, args ...any) error {
	return &DomainError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validationf builds an ErrValidation error.
func Validationf(format string, args ...any) error {
	return newDomainError(ErrValidation, format, args...)
}

// NotFoundf builds an ErrNotFound error.
func NotFoundf(format string, args ...any) error {
	return newDomainError(ErrNotFound, format, args...)
}

// Conflictf builds an ErrConflict error.
func Conflictf(format string, args ...any) error {
	return newDomainError(ErrConflict, format, args...)
}

// Forbiddenf builds an ErrForbidden error.
func Forbiddenf(format string, args ...any) error {
	return newDomainError(ErrForbidden, format, args...)
}

// InvalidStatusf builds an ErrInvalidStatus error.
func InvalidStatusf(format string, args ...any) error {
	return newDomainError(ErrInvalidStatus, format, args...)
}

// Persistence wraps a driver error so callers can match ErrPersistence while
// logs keep the underlying cause.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// UserSafeMessage returns text that can be sent to clients without leaking
// driver or infrastructure details.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid email or password"
	case errors.Is(err, ErrUnauthorized):
		return "authentication required"
	case errors.Is(err, ErrForbidden):
		return "you are not allowed to perform this action"
	case errors.Is(err, ErrNotFound):
		return "record not found"
	case errors.Is(err, ErrConflict):
		return "the record was changed or already exists"
	case errors.Is(err, ErrValidation):
		return "the request is invalid"
	case errors.Is(err, ErrPersistence):
		return "the change could not be saved, please try again"
	default:
		return "an unexpected error occurred"
	}
}
