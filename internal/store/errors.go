package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a user with the same email).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored, or violates a database constraint.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when a conditional update matched no row.
	ErrUpdateFailed = errors.New("update failed")

	// ErrUserNotFound indicates that the requested user does not exist in the store.
	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)

	// ErrProjectNotFound indicates that the requested project does not exist in the store.
	ErrProjectNotFound = fmt.Errorf("%w: project", ErrNotFound)

	// ErrTaskNotFound indicates that the requested task does not exist in the store.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)

	// ErrExportNotFound indicates that the requested export does not exist in the store.
	ErrExportNotFound = fmt.Errorf("%w: export", ErrNotFound)

	// ErrEmailExists indicates that a user with the given email already exists.
	ErrEmailExists = fmt.Errorf("%w: email", ErrDuplicate)

	// ErrExportNotClaimable is returned by ExportStore.Claim when the export
	// is terminal or another worker holds an unexpired claim on it.
	ErrExportNotClaimable = fmt.Errorf("%w: export not claimable", ErrUpdateFailed)

	// ErrExportLeased is the ErrExportNotClaimable case where the export is
	// PROCESSING under a claim that has not expired yet.
	ErrExportLeased = fmt.Errorf("%w: claim lease held", ErrExportNotClaimable)

	// ErrExportNotProcessing is returned when a terminal mark is attempted on
	// an export that is not PROCESSING.
	ErrExportNotProcessing = fmt.Errorf("%w: export not processing", ErrUpdateFailed)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "project", "export")
	Operation string // The operation that failed (e.g., "create", "claim")
	Message   string
	Err       error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation on %s failed: %s: %v", e.Operation, e.Entity, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
