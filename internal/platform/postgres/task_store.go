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

// taskSelect reads a task joined with its assignee. Callers append the
// WHERE and ORDER BY clauses.
const taskSelect = `
		SELECT t.id, t.project_id, t.title, t.description, t.status, t.priority,
		       t.assigned_to, t.due_date, t.created_at, t.updated_at,
		       u.name, u.email
		FROM tasks t
		LEFT JOIN users u ON u.id = t.assigned_to`

// PostgresTaskStore implements store.TaskStore.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a PostgresTaskStore. db must not be nil.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx implements store.TaskStore.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx, logger: s.logger}
}

// Create implements store.TaskStore.
func (s *PostgresTaskStore) Create(ctx context.Context, t *domain.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, title, description, status, priority,
		                   assigned_to, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.ProjectID, t.Title, nullString(t.Description), string(t.Status), string(t.Priority),
		nullUUID(t.AssignedTo), nullTime(t.DueDate), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to create task",
			slog.String("error", err.Error()),
			slog.String("project_id", t.ProjectID.String()))
		return MapError(err)
	}
	return nil
}

// GetByID implements store.TaskStore.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, taskSelect+` WHERE t.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}
	return t, nil
}

// Update implements store.TaskStore.
func (s *PostgresTaskStore) Update(ctx context.Context, t *domain.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, priority = $5,
		    assigned_to = $6, due_date = $7, updated_at = $8
		WHERE id = $1`,
		t.ID, t.Title, nullString(t.Description), string(t.Status), string(t.Priority),
		nullUUID(t.AssignedTo), nullTime(t.DueDate), t.UpdatedAt)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// Delete implements store.TaskStore.
func (s *PostgresTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// ListByProject implements store.TaskStore.
func (s *PostgresTaskStore) ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, taskSelect+`
		WHERE t.project_id = $1
		ORDER BY t.created_at ASC, t.id ASC`, projectID)
	if err != nil {
		return nil, MapError(err)
	}
	return collectTasks(rows)
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t        domain.Task
		desc     sql.NullString
		status   string
		priority string
		assignee uuid.NullUUID
		due      sql.NullTime
		aName    sql.NullString
		aEmail   sql.NullString
	)
	if err := row.Scan(
		&t.ID, &t.ProjectID, &t.Title, &desc, &status, &priority,
		&assignee, &due, &t.CreatedAt, &t.UpdatedAt,
		&aName, &aEmail,
	); err != nil {
		return nil, err
	}

	t.Description = stringPtr(desc)
	t.Status = domain.TaskStatus(status)
	t.Priority = domain.TaskPriority(priority)
	t.DueDate = timePtr(due)
	if assignee.Valid {
		id := assignee.UUID
		t.AssignedTo = &id
		t.Assignee = &domain.UserRef{ID: id, Name: aName.String, Email: aEmail.String}
	}
	return &t, nil
}

func collectTasks(rows *sql.Rows) ([]domain.Task, error) {
	defer func() { _ = rows.Close() }()

	tasks := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, MapError(err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return tasks, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
