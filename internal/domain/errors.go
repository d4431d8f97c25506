package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for the HTTP boundary and for retry decisions.
type Kind int

// Error kinds. KindInternal is the zero value so that an unclassified error
// is always treated as an internal failure.
const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindExportNotReady
)

// Code returns the stable machine-readable code rendered to clients.
func (k Kind) Code() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindAuthentication:
		return "AUTHENTICATION_ERROR"
	case KindAuthorization:
		return "AUTHORIZATION_ERROR"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindExportNotReady:
		return "EXPORT_NOT_READY"
	default:
		return "INTERNAL_ERROR"
	}
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	return k.Code()
}

// Error is the single tagged application error. Services return it so the
// HTTP layer and the job worker can both decide what to do from the tag
// alone.
type Error struct {
	Kind    Kind
	Message string // Safe to show to clients
	// Retryable reports whether re-running the failed operation may succeed.
	// The job worker uses it to decide between retry and dead-lettering.
	Retryable bool
	Err       error // Underlying cause, never rendered to clients
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Code(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error of the given kind.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NewValidationError creates a validation error with a client-safe message.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{Kind: KindAuthentication, Message: message}
}

// NewAuthorizationError creates an authorization error.
func NewAuthorizationError(message string) *Error {
	return &Error{Kind: KindAuthorization, Message: message}
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// NewConflictError creates a conflict error.
func NewConflictError(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// NewInternalError wraps err as an internal error. The message shown to
// clients is always generic.
func NewInternalError(err error, retryable bool) *Error {
	return &Error{
		Kind:      KindInternal,
		Message:   "An unexpected error occurred",
		Retryable: retryable,
		Err:       err,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal
// when there is none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsRetryable reports whether err is tagged as retryable.
func IsRetryable(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// ErrInvalidID is wrapped by errors for malformed identifiers.
var ErrInvalidID = errors.New("invalid ID")
