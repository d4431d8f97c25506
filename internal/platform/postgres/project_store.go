package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/logger"
	"github.com/phrazzld/taskboard-api/internal/store"
)

// PostgresProjectStore implements store.ProjectStore.
type PostgresProjectStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresProjectStore creates a PostgresProjectStore. db must not be nil.
func NewPostgresProjectStore(db store.DBTX, logger *slog.Logger) *PostgresProjectStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresProjectStore{
		db:     db,
		logger: logger.With(slog.String("component", "project_store")),
	}
}

var _ store.ProjectStore = (*PostgresProjectStore)(nil)

// WithTx implements store.ProjectStore.
func (s *PostgresProjectStore) WithTx(tx *sql.Tx) store.ProjectStore {
	return &PostgresProjectStore{db: tx, logger: s.logger}
}

// Create implements store.ProjectStore.
func (s *PostgresProjectStore) Create(ctx context.Context, p *domain.Project) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, owner_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.OwnerID, p.Name, nullString(p.Description), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create project",
			slog.String("error", err.Error()),
			slog.String("project_id", p.ID.String()))
		return MapError(err)
	}
	return nil
}

// GetByID implements store.ProjectStore.
func (s *PostgresProjectStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	var (
		p    domain.Project
		desc sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, description, created_at, updated_at
		FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.OwnerID, &p.Name, &desc, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProjectNotFound
		}
		return nil, MapError(err)
	}
	p.Description = stringPtr(desc)
	return &p, nil
}

// GetDetail implements store.ProjectStore.
func (s *PostgresProjectStore) GetDetail(ctx context.Context, id uuid.UUID) (*domain.ProjectDetail, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, taskSelect+`
		WHERE t.project_id = $1
		ORDER BY t.created_at DESC, t.id DESC`, id)
	if err != nil {
		return nil, MapError(err)
	}
	tasks, err := collectTasks(rows)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to read project tasks",
			slog.String("error", err.Error()),
			slog.String("project_id", id.String()))
		return nil, err
	}

	return &domain.ProjectDetail{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		OwnerID:     p.OwnerID,
		CreatedAt:   p.CreatedAt,
		Tasks:       tasks,
	}, nil
}

// ListByOwner implements store.ProjectStore.
func (s *PostgresProjectStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.ProjectListItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.description, p.owner_id, p.created_at, COUNT(t.id)
		FROM projects p
		LEFT JOIN tasks t ON t.project_id = p.id
		WHERE p.owner_id = $1
		GROUP BY p.id
		ORDER BY p.created_at DESC, p.id DESC`, ownerID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	items := []domain.ProjectListItem{}
	for rows.Next() {
		var (
			item domain.ProjectListItem
			desc sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.Name, &desc, &item.OwnerID, &item.CreatedAt, &item.TaskCount); err != nil {
			return nil, MapError(err)
		}
		item.Description = stringPtr(desc)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return items, nil
}

// Update implements store.ProjectStore.
func (s *PostgresProjectStore) Update(ctx context.Context, p *domain.Project) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE projects SET name = $2, description = $3, updated_at = $4
		WHERE id = $1`,
		p.ID, p.Name, nullString(p.Description), p.UpdatedAt)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrProjectNotFound)
}

// Delete implements store.ProjectStore.
func (s *PostgresProjectStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}
	if err := CheckRowsAffected(result, store.ErrProjectNotFound); err != nil {
		return err
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("project deleted",
		slog.String("project_id", id.String()))
	return nil
}
