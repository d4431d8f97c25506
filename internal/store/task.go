package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/domain"
)

// TaskStore defines the interface for task data persistence.
type TaskStore interface {
	// Create saves a new task. Returns ErrInvalidEntity when the project or
	// assignee does not exist.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task joined with its assignee.
	// Returns ErrTaskNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// Update saves the mutable fields of an existing task.
	// Returns ErrTaskNotFound if absent.
	Update(ctx context.Context, task *domain.Task) error

	// Delete removes a task. Returns ErrTaskNotFound if absent.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListByProject returns all tasks of a project ordered oldest first,
	// each joined with its assignee.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Task, error)

	// WithTx returns a TaskStore that runs its queries on tx.
	WithTx(tx *sql.Tx) TaskStore
}
