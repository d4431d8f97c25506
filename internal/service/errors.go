package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/store"
)

var (
	// ErrExportAlreadyClaimed is returned by RunExport when another delivery
	// holds the export or it has already reached a terminal state. Job
	// handlers acknowledge it.
	ErrExportAlreadyClaimed = errors.New("export already claimed")

	// ErrExportLeased is the ErrExportAlreadyClaimed case where another
	// delivery is still inside its claim lease. The export is not finished,
	// so job handlers retry it once the lease can have expired.
	ErrExportLeased = fmt.Errorf("%w: claim lease still held", ErrExportAlreadyClaimed)

	// ErrExportNotReady is returned when an artifact is requested for an
	// export that has not completed.
	ErrExportNotReady = &domain.Error{
		Kind:    domain.KindExportNotReady,
		Message: "Export is not ready for download yet",
	}
)

// Client-facing messages.
const (
	msgProjectNotFound  = "Project not found"
	msgProjectForbidden = "You do not have access to this project"
	msgTaskNotFound     = "Task not found"
	msgTaskForbidden    = "You do not have access to this task"
	msgAssigneeNotFound = "Assigned user not found"
	msgExportNotFound   = "Export not found"
	msgExportForbidden  = "You do not have access to this export"
	msgArtifactNotFound = "Export file not found"
	msgEmailTaken       = "User with this email already exists"
	msgBadCredentials   = "Invalid email or password"
)

// fromStore converts a store error into a *domain.Error. notFound is the
// message used when err is a store.ErrNotFound.
func fromStore(err error, notFound string) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if store.IsNotFoundError(err) {
		return domain.NewError(domain.KindNotFound, notFound, err)
	}
	return domain.NewInternalError(err, false)
}

// invalid wraps a domain validation failure.
func invalid(err error) error {
	return domain.NewError(domain.KindValidation, err.Error(), err)
}

// permanent returns err tagged as not retryable, keeping its kind.
func permanent(err error) *domain.Error {
	var de *domain.Error
	if errors.As(err, &de) {
		return &domain.Error{Kind: de.Kind, Message: de.Message, Err: de.Err}
	}
	return domain.NewInternalError(err, false)
}
