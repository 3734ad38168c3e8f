// Package domain holds the error taxonomy shared by every layer of the service.
package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how a caller should react to it.
type Kind string

const (
	// KindValidation errors are detected before any side effect and are safe to retry with corrected input.
	KindValidation Kind = "validation"
	// KindConflict errors reflect a failed precondition; callers must re-query state before retrying.
	KindConflict Kind = "conflict"
	// KindForbidden errors are authorization failures.
	KindForbidden Kind = "forbidden"
	// KindNotFound errors mean the addressed entity does not exist.
	KindNotFound Kind = "not_found"
	// KindCollaborator errors come from an external collaborator such as a token backend.
	KindCollaborator Kind = "collaborator"
	// KindInternal errors are infrastructure failures.
	KindInternal Kind = "internal"
)

// Error is the structured error returned by domain and application code.
// Two errors match under errors.Is when their codes are equal.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a domain error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Error codes.
const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeInvalidDateRange      = "INVALID_DATE_RANGE"
	CodeDatesNotAvailable     = "DATES_NOT_AVAILABLE"
	CodeInvalidListing        = "INVALID_LISTING"
	CodeNotOwner              = "NOT_OWNER"
	CodeForbidden             = "FORBIDDEN"
	CodeHomeNotFound          = "HOME_NOT_FOUND"
	CodeHomeNotListed         = "HOME_NOT_LISTED"
	CodeHomeAlreadyRegistered = "HOME_ALREADY_REGISTERED"
	CodeInvalidPaymentMethod  = "INVALID_PAYMENT_METHOD"
	CodeInvalidShareCount     = "INVALID_SHARE_COUNT"
	CodeBookingNotActive      = "BOOKING_NOT_ACTIVE"
	CodeNoSharesAvailable     = "NO_SHARES_AVAILABLE"
	CodeAlreadyParticipating  = "ALREADY_PARTICIPATING"
	CodeTokenTransferFailed   = "TOKEN_TRANSFER_FAILED"
	CodePoolNotFound          = "POOL_NOT_FOUND"
	CodeNotFound              = "NOT_FOUND"
	CodeConflict              = "CONFLICT"
	CodeInternal              = "INTERNAL_ERROR"
)

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidDateRange      = &Error{Kind: KindValidation, Code: CodeInvalidDateRange}
	ErrDatesNotAvailable     = &Error{Kind: KindConflict, Code: CodeDatesNotAvailable}
	ErrInvalidListing        = &Error{Kind: KindValidation, Code: CodeInvalidListing}
	ErrNotOwner              = &Error{Kind: KindForbidden, Code: CodeNotOwner}
	ErrHomeNotFound          = &Error{Kind: KindNotFound, Code: CodeHomeNotFound}
	ErrHomeNotListed         = &Error{Kind: KindConflict, Code: CodeHomeNotListed}
	ErrHomeAlreadyRegistered = &Error{Kind: KindConflict, Code: CodeHomeAlreadyRegistered}
	ErrInvalidPaymentMethod  = &Error{Kind: KindValidation, Code: CodeInvalidPaymentMethod}
	ErrInvalidShareCount     = &Error{Kind: KindValidation, Code: CodeInvalidShareCount}
	ErrBookingNotActive      = &Error{Kind: KindConflict, Code: CodeBookingNotActive}
	ErrNoSharesAvailable     = &Error{Kind: KindConflict, Code: CodeNoSharesAvailable}
	ErrAlreadyParticipating  = &Error{Kind: KindConflict, Code: CodeAlreadyParticipating}
	ErrTokenTransferFailed   = &Error{Kind: KindCollaborator, Code: CodeTokenTransferFailed}
	ErrPoolNotFound          = &Error{Kind: KindNotFound, Code: CodePoolNotFound}
	ErrConflict              = &Error{Kind: KindConflict, Code: CodeConflict}
)

// New builds an error of the given kind and code.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap builds an error that carries an underlying cause.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// WithDetail returns a copy of e with an additional detail entry.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	cp := *e
	cp.Details = details
	return &cp
}

// NewValidationError creates a generic validation error.
func NewValidationError(message string) *Error {
	return New(KindValidation, CodeValidation, message)
}

// NewNotFoundError creates a not-found error for the named entity.
func NewNotFoundError(entity, id string) *Error {
	return New(KindNotFound, CodeNotFound, fmt.Sprintf("%s not found: %s", entity, id))
}

// NewConflictError creates a generic conflict error.
func NewConflictError(message string) *Error {
	return New(KindConflict, CodeConflict, message)
}

// NewForbiddenError creates an authorization error.
func NewForbiddenError(message string) *Error {
	return New(KindForbidden, CodeForbidden, message)
}

// NewInvalidStateError reports a disallowed state transition.
func NewInvalidStateError(from, to string) *Error {
	return New(KindConflict, CodeConflict, fmt.Sprintf("invalid state transition from %s to %s", from, to))
}

// IsCode reports whether err is a domain error carrying code.
func IsCode(err error, code string) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == code
}

// KindOf returns the kind of err, or KindInternal when err is not a domain error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
