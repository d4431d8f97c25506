package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/cache"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/logger"
	"github.com/phrazzld/taskboard-api/internal/store"
)

// CreateTaskInput carries the fields of a new task. Nil Status and Priority
// default to TODO and MEDIUM.
type CreateTaskInput struct {
	ProjectID   uuid.UUID
	Title       string
	Description *string
	Status      *domain.TaskStatus
	Priority    *domain.TaskPriority
	AssignedTo  *uuid.UUID
	DueDate     *time.Time
}

// TaskService manages tasks. Access is granted through ownership of the
// parent project.
type TaskService interface {
	CreateTask(ctx context.Context, userID uuid.UUID, in CreateTaskInput) (*domain.Task, error)
	UpdateTask(ctx context.Context, taskID, userID uuid.UUID, update domain.TaskUpdate) (*domain.Task, error)
	DeleteTask(ctx context.Context, taskID, userID uuid.UUID) error
}

type taskService struct {
	db          *sql.DB
	tasks       store.TaskStore
	projects    store.ProjectStore
	users       store.UserStore
	invalidator *cache.Invalidator
	logger      *slog.Logger
}

// NewTaskService creates a TaskService. Creates and updates run in a
// transaction on db so the project and assignee checks see the same
// snapshot as the write.
func NewTaskService(
	db *sql.DB,
	tasks store.TaskStore,
	projects store.ProjectStore,
	users store.UserStore,
	c cache.Cache,
	logger *slog.Logger,
) (TaskService, error) {
	if db == nil || tasks == nil || projects == nil || users == nil {
		return nil, errors.New("task service dependencies cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "task_service")
	return &taskService{
		db:          db,
		tasks:       tasks,
		projects:    projects,
		users:       users,
		invalidator: cache.NewInvalidator(c, logger),
		logger:      logger,
	}, nil
}

// CreateTask implements TaskService.
func (s *taskService) CreateTask(ctx context.Context, userID uuid.UUID, in CreateTaskInput) (*domain.Task, error) {
	var created *domain.Task
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		p, err := s.projects.WithTx(tx).GetByID(ctx, in.ProjectID)
		if err != nil {
			return fromStore(err, msgProjectNotFound)
		}
		if !p.IsOwnedBy(userID) {
			return domain.NewAuthorizationError(msgProjectForbidden)
		}
		if err := s.checkAssignee(ctx, tx, in.AssignedTo); err != nil {
			return err
		}

		t, err := domain.NewTask(in.ProjectID, in.Title)
		if err != nil {
			return invalid(err)
		}
		t.Description = in.Description
		t.AssignedTo = in.AssignedTo
		t.DueDate = in.DueDate
		if in.Status != nil {
			t.Status = *in.Status
		}
		if in.Priority != nil {
			t.Priority = *in.Priority
		}
		if err := t.Validate(); err != nil {
			return invalid(err)
		}

		txTasks := s.tasks.WithTx(tx)
		if err := txTasks.Create(ctx, t); err != nil {
			return domain.NewInternalError(err, false)
		}
		created, err = txTasks.GetByID(ctx, t.ID)
		return fromStore(err, msgTaskNotFound)
	})
	if err != nil {
		return nil, err
	}

	s.invalidator.Invalidate(ctx, cache.ProjectDetailKey(in.ProjectID), cache.UserProjectsKey(userID))
	logger.FromContextOrDefault(ctx, s.logger).Info("task created",
		"task_id", created.ID,
		"project_id", created.ProjectID)
	return created, nil
}

// UpdateTask implements TaskService.
func (s *taskService) UpdateTask(
	ctx context.Context,
	taskID, userID uuid.UUID,
	update domain.TaskUpdate,
) (*domain.Task, error) {
	var updated *domain.Task
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txTasks := s.tasks.WithTx(tx)
		t, err := s.ownedTask(ctx, tx, taskID, userID)
		if err != nil {
			return err
		}
		if err := s.checkAssignee(ctx, tx, update.AssignedTo); err != nil {
			return err
		}
		if err := update.Apply(t); err != nil {
			return invalid(err)
		}
		if err := txTasks.Update(ctx, t); err != nil {
			return fromStore(err, msgTaskNotFound)
		}
		updated, err = txTasks.GetByID(ctx, taskID)
		return fromStore(err, msgTaskNotFound)
	})
	if err != nil {
		return nil, err
	}

	s.invalidator.Invalidate(ctx, cache.ProjectDetailKey(updated.ProjectID), cache.UserProjectsKey(userID))
	return updated, nil
}

// DeleteTask implements TaskService.
func (s *taskService) DeleteTask(ctx context.Context, taskID, userID uuid.UUID) error {
	t, err := s.ownedTask(ctx, nil, taskID, userID)
	if err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, taskID); err != nil {
		return fromStore(err, msgTaskNotFound)
	}

	s.invalidator.Invalidate(ctx, cache.ProjectDetailKey(t.ProjectID), cache.UserProjectsKey(userID))
	logger.FromContextOrDefault(ctx, s.logger).Info("task deleted", "task_id", taskID)
	return nil
}

// ownedTask loads a task and checks that userID owns its project. A nil tx
// reads outside any transaction.
func (s *taskService) ownedTask(ctx context.Context, tx *sql.Tx, taskID, userID uuid.UUID) (*domain.Task, error) {
	tasks, projects := s.tasks, s.projects
	if tx != nil {
		tasks, projects = tasks.WithTx(tx), projects.WithTx(tx)
	}

	t, err := tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fromStore(err, msgTaskNotFound)
	}
	p, err := projects.GetByID(ctx, t.ProjectID)
	if err != nil {
		return nil, fromStore(err, msgTaskNotFound)
	}
	if !p.IsOwnedBy(userID) {
		return nil, domain.NewAuthorizationError(msgTaskForbidden)
	}
	return t, nil
}

func (s *taskService) checkAssignee(ctx context.Context, tx *sql.Tx, assignee *uuid.UUID) error {
	if assignee == nil {
		return nil
	}
	if _, err := s.users.WithTx(tx).GetByID(ctx, *assignee); err != nil {
		return fromStore(err, msgAssigneeNotFound)
	}
	return nil
}
