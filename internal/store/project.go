package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/domain"
)

// ProjectStore defines the interface for project data persistence.
type ProjectStore interface {
	// Create saves a new project.
	Create(ctx context.Context, project *domain.Project) error

	// GetByID retrieves a project without its tasks.
	// Returns ErrProjectNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)

	// GetDetail retrieves a project with its tasks ordered newest first,
	// each task joined with its assignee. Returns ErrProjectNotFound if absent.
	GetDetail(ctx context.Context, id uuid.UUID) (*domain.ProjectDetail, error)

	// ListByOwner returns the owner's projects ordered newest first, each
	// carrying its task count. Returns an empty slice when there are none.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.ProjectListItem, error)

	// Update saves the mutable fields of an existing project.
	// Returns ErrProjectNotFound if absent.
	Update(ctx context.Context, project *domain.Project) error

	// Delete removes a project. Its tasks and exports are removed by cascade.
	// Returns ErrProjectNotFound if absent.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a ProjectStore that runs its queries on tx.
	WithTx(tx *sql.Tx) ProjectStore
}
