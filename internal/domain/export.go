package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExportStatus is the lifecycle state of an export.
type ExportStatus string

// Possible export status values
const (
	ExportStatusPending    ExportStatus = "PENDING"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusCompleted  ExportStatus = "COMPLETED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// Export validation and lifecycle errors
var (
	ErrEmptyExportID        = errors.New("export ID cannot be empty")
	ErrEmptyExportUserID    = errors.New("export user ID cannot be empty")
	ErrEmptyExportProjectID = errors.New("export project ID cannot be empty")
	ErrInvalidExportStatus  = errors.New("invalid export status")
	ErrInvalidTransition    = errors.New("invalid export status transition")
	// ErrFilePathInvariant is returned when file_path is set on a non-completed
	// export or missing on a completed one.
	ErrFilePathInvariant = errors.New("export file path must be set if and only if the export is completed")
)

// Export records one request to produce a project report artifact.
type Export struct {
	ID        uuid.UUID    `json:"id"`
	UserID    uuid.UUID    `json:"userId"`
	ProjectID uuid.UUID    `json:"projectId"`
	Status    ExportStatus `json:"status"`
	// FilePath is the artifact name, never a full path.
	FilePath *string `json:"filePath"`
	// ErrorMessage holds the recorded failure reason for operators.
	ErrorMessage *string    `json:"-"`
	Attempts     int        `json:"attempts"`
	ClaimedAt    *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	CompletedAt  *time.Time `json:"completedAt"`

	// ProjectName is joined on reads.
	ProjectName string `json:"-"`
}

// NewExport creates a PENDING export of projectID requested by userID.
func NewExport(userID, projectID uuid.UUID) (*Export, error) {
	e := &Export{
		ID:        uuid.New(),
		UserID:    userID,
		ProjectID: projectID,
		Status:    ExportStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate checks if the Export has valid data.
func (e *Export) Validate() error {
	if e.ID == uuid.Nil {
		return ErrEmptyExportID
	}
	if e.UserID == uuid.Nil {
		return ErrEmptyExportUserID
	}
	if e.ProjectID == uuid.Nil {
		return ErrEmptyExportProjectID
	}
	if !e.Status.Valid() {
		return ErrInvalidExportStatus
	}
	if (e.FilePath != nil) != (e.Status == ExportStatusCompleted) {
		return ErrFilePathInvariant
	}
	return nil
}

// IsOwnedBy reports whether userID requested the export.
func (e *Export) IsOwnedBy(userID uuid.UUID) bool {
	return e.UserID == userID
}

// Valid reports whether s is a known status.
func (s ExportStatus) Valid() bool {
	switch s {
	case ExportStatusPending, ExportStatusProcessing, ExportStatusCompleted, ExportStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible from s.
func (s ExportStatus) IsTerminal() bool {
	return s == ExportStatusCompleted || s == ExportStatusFailed
}

// CanTransition reports whether an export may move from one status to another.
// PROCESSING to PROCESSING is a re-claim after the previous claim's lease
// expired.
func CanTransition(from, to ExportStatus) bool {
	switch from {
	case ExportStatusPending:
		return to == ExportStatusProcessing
	case ExportStatusProcessing:
		return to == ExportStatusProcessing ||
			to == ExportStatusCompleted ||
			to == ExportStatusFailed
	default:
		return false
	}
}

// Transition moves e to the given status, enforcing the transition table
// and the file path invariant. It does not persist anything.
func (e *Export) Transition(to ExportStatus, filePath *string, at time.Time) error {
	if !CanTransition(e.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, to)
	}
	if (filePath != nil) != (to == ExportStatusCompleted) {
		return ErrFilePathInvariant
	}

	switch to {
	case ExportStatusProcessing:
		e.Attempts++
		e.ClaimedAt = &at
	case ExportStatusCompleted:
		e.FilePath = filePath
		e.CompletedAt = &at
	}
	e.Status = to
	return nil
}
