package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/logger"
	"github.com/phrazzld/taskboard-api/internal/store"
)

const exportColumns = `e.id, e.user_id, e.project_id, e.status, e.file_path, e.error_message,
		       e.attempts, e.claimed_at, e.created_at, e.completed_at, p.name`

const exportSelect = `
		SELECT ` + exportColumns + `
		FROM exports e
		JOIN projects p ON p.id = e.project_id`

// PostgresExportStore implements store.ExportStore.
type PostgresExportStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresExportStore creates a PostgresExportStore. db must not be nil.
func NewPostgresExportStore(db store.DBTX, logger *slog.Logger) *PostgresExportStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresExportStore{
		db:     db,
		logger: logger.With(slog.String("component", "export_store")),
	}
}

var _ store.ExportStore = (*PostgresExportStore)(nil)

// WithTx implements store.ExportStore.
func (s *PostgresExportStore) WithTx(tx *sql.Tx) store.ExportStore {
	return &PostgresExportStore{db: tx, logger: s.logger}
}

// Create implements store.ExportStore.
func (s *PostgresExportStore) Create(ctx context.Context, e *domain.Export) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exports (id, user_id, project_id, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.UserID, e.ProjectID, string(e.Status), e.Attempts, e.CreatedAt)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create export",
			slog.String("error", err.Error()),
			slog.String("project_id", e.ProjectID.String()))
		return MapError(err)
	}
	return nil
}

// GetByID implements store.ExportStore.
func (s *PostgresExportStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Export, error) {
	e, err := scanExport(s.db.QueryRowContext(ctx, exportSelect+` WHERE e.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrExportNotFound
		}
		return nil, MapError(err)
	}
	return e, nil
}

// ListByUser implements store.ExportStore.
func (s *PostgresExportStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Export, error) {
	rows, err := s.db.QueryContext(ctx, exportSelect+`
		WHERE e.user_id = $1
		ORDER BY e.created_at DESC, e.id DESC`, userID)
	if err != nil {
		return nil, MapError(err)
	}
	return collectExports(rows)
}

// Claim implements store.ExportStore.
func (s *PostgresExportStore) Claim(
	ctx context.Context,
	id uuid.UUID,
	now time.Time,
	lease time.Duration,
) (*domain.Export, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx, `
		WITH claimed AS (
			UPDATE exports
			SET status = 'PROCESSING', attempts = attempts + 1, claimed_at = $2
			WHERE id = $1
			  AND (status = 'PENDING' OR (status = 'PROCESSING' AND claimed_at < $3))
			RETURNING *
		)
		SELECT `+exportColumns+`
		FROM claimed e
		JOIN projects p ON p.id = e.project_id`,
		id, now, now.Add(-lease))

	e, err := scanExport(row)
	if err == nil {
		log.Debug("export claimed",
			slog.String("export_id", id.String()),
			slog.Int("attempt", e.Attempts))
		return e, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, MapError(err)
	}

	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM exports WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrExportNotFound
	}
	if err != nil {
		return nil, MapError(err)
	}
	cause := store.ErrExportNotClaimable
	if status == string(domain.ExportStatusProcessing) {
		cause = store.ErrExportLeased
	}
	return nil, store.NewStoreError("export", "claim", "status "+status, cause)
}

// MarkCompleted implements store.ExportStore.
func (s *PostgresExportStore) MarkCompleted(ctx context.Context, id uuid.UUID, filePath string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE exports
		SET status = 'COMPLETED', file_path = $2, completed_at = $3, error_message = NULL
		WHERE id = $1 AND status = 'PROCESSING'`,
		id, filePath, at)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrExportNotProcessing)
}

// MarkFailed implements store.ExportStore.
func (s *PostgresExportStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE exports
		SET status = 'FAILED', error_message = $2
		WHERE id = $1 AND status = 'PROCESSING'`,
		id, reason)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrExportNotProcessing)
}

// ListStale implements store.ExportStore.
func (s *PostgresExportStore) ListStale(
	ctx context.Context,
	pendingBefore time.Time,
	claimedBefore time.Time,
	limit int,
) ([]*domain.Export, error) {
	rows, err := s.db.QueryContext(ctx, exportSelect+`
		WHERE (e.status = 'PENDING' AND e.created_at < $1)
		   OR (e.status = 'PROCESSING' AND e.claimed_at < $2)
		ORDER BY e.created_at ASC
		LIMIT $3`, pendingBefore, claimedBefore, limit)
	if err != nil {
		return nil, MapError(err)
	}
	return collectExports(rows)
}

func scanExport(row rowScanner) (*domain.Export, error) {
	var (
		e           domain.Export
		status      string
		filePath    sql.NullString
		errMsg      sql.NullString
		claimedAt   sql.NullTime
		completedAt sql.NullTime
	)
	if err := row.Scan(
		&e.ID, &e.UserID, &e.ProjectID, &status, &filePath, &errMsg,
		&e.Attempts, &claimedAt, &e.CreatedAt, &completedAt, &e.ProjectName,
	); err != nil {
		return nil, err
	}
	e.Status = domain.ExportStatus(status)
	e.FilePath = stringPtr(filePath)
	e.ErrorMessage = stringPtr(errMsg)
	e.ClaimedAt = timePtr(claimedAt)
	e.CompletedAt = timePtr(completedAt)
	return &e, nil
}

func collectExports(rows *sql.Rows) ([]*domain.Export, error) {
	defer func() { _ = rows.Close() }()

	exports := []*domain.Export{}
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, MapError(err)
		}
		exports = append(exports, e)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return exports, nil
}
