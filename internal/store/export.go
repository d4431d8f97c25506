package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/domain"
)

// ExportStore defines the interface for export record persistence.
//
// Every status change is a single conditional UPDATE, so the transition
// table holds even when several workers race on the same export.
type ExportStore interface {
	// Create saves a new PENDING export.
	Create(ctx context.Context, export *domain.Export) error

	// GetByID retrieves an export joined with its project's name.
	// Returns ErrExportNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Export, error)

	// ListByUser returns the user's exports newest first, joined with
	// project names. Returns an empty slice when there are none.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Export, error)

	// Claim moves an export to PROCESSING and increments its attempt count.
	// It succeeds from PENDING, or from PROCESSING when the previous claim is
	// older than now minus lease. Returns ErrExportNotFound if absent and
	// ErrExportNotClaimable otherwise.
	Claim(ctx context.Context, id uuid.UUID, now time.Time, lease time.Duration) (*domain.Export, error)

	// MarkCompleted moves a PROCESSING export to COMPLETED with its artifact
	// name. Returns ErrExportNotProcessing if the export is not PROCESSING.
	MarkCompleted(ctx context.Context, id uuid.UUID, filePath string, at time.Time) error

	// MarkFailed moves a PROCESSING export to FAILED, recording reason.
	// Returns ErrExportNotProcessing if the export is not PROCESSING.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	// ListStale returns up to limit exports, oldest first, that are either
	// PENDING and created before pendingBefore, or PROCESSING with a claim
	// taken before claimedBefore.
	ListStale(ctx context.Context, pendingBefore, claimedBefore time.Time, limit int) ([]*domain.Export, error)

	// WithTx returns an ExportStore that runs its queries on tx.
	WithTx(tx *sql.Tx) ExportStore
}
