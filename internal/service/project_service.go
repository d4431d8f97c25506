package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/cache"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/logger"
	"github.com/phrazzld/taskboard-api/internal/store"
)

// ProjectService manages projects. Reads go through the cache; every
// mutation invalidates the affected entries before it returns.
type ProjectService interface {
	// GetUserProjects returns the user's projects, newest first, with task counts.
	GetUserProjects(ctx context.Context, userID uuid.UUID) ([]domain.ProjectListItem, error)

	// GetProjectByID returns a project with its tasks. The owner check is
	// applied to cached and stored values alike.
	GetProjectByID(ctx context.Context, projectID, userID uuid.UUID) (*domain.ProjectDetail, error)

	// CreateProject creates a project owned by userID.
	CreateProject(ctx context.Context, userID uuid.UUID, name string, description *string) (*domain.Project, error)

	// UpdateProject applies a partial update to a project owned by userID.
	UpdateProject(ctx context.Context, projectID, userID uuid.UUID, update domain.ProjectUpdate) (*domain.Project, error)

	// DeleteProject removes a project owned by userID, with its tasks and exports.
	DeleteProject(ctx context.Context, projectID, userID uuid.UUID) error
}

type projectService struct {
	projects    store.ProjectStore
	cache       cache.Cache
	invalidator *cache.Invalidator
	logger      *slog.Logger
}

// NewProjectService creates a ProjectService. c may be nil, in which case
// every read goes to the store.
func NewProjectService(projects store.ProjectStore, c cache.Cache, logger *slog.Logger) (ProjectService, error) {
	if projects == nil {
		return nil, errors.New("project store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "project_service")
	return &projectService{
		projects:    projects,
		cache:       c,
		invalidator: cache.NewInvalidator(c, logger),
		logger:      logger,
	}, nil
}

// GetUserProjects implements ProjectService.
func (s *projectService) GetUserProjects(ctx context.Context, userID uuid.UUID) ([]domain.ProjectListItem, error) {
	key := cache.UserProjectsKey(userID)

	var items []domain.ProjectListItem
	res, err := cache.GetJSON(ctx, s.cache, key, &items)
	if res == cache.Hit {
		return items, nil
	}
	s.logMiss(ctx, key, res, err)

	items, err = s.projects.ListByOwner(ctx, userID)
	if err != nil {
		return nil, domain.NewInternalError(err, false)
	}

	s.fill(ctx, key, items, cache.UserProjectsTTL)
	return items, nil
}

// GetProjectByID implements ProjectService.
func (s *projectService) GetProjectByID(
	ctx context.Context,
	projectID, userID uuid.UUID,
) (*domain.ProjectDetail, error) {
	key := cache.ProjectDetailKey(projectID)

	var cached domain.ProjectDetail
	res, err := cache.GetJSON(ctx, s.cache, key, &cached)
	if res == cache.Hit {
		if cached.OwnerID != userID {
			return nil, domain.NewAuthorizationError(msgProjectForbidden)
		}
		return &cached, nil
	}
	s.logMiss(ctx, key, res, err)

	detail, err := s.projects.GetDetail(ctx, projectID)
	if err != nil {
		return nil, fromStore(err, msgProjectNotFound)
	}
	if detail.OwnerID != userID {
		return nil, domain.NewAuthorizationError(msgProjectForbidden)
	}

	s.fill(ctx, key, detail, cache.ProjectDetailTTL)
	return detail, nil
}

// CreateProject implements ProjectService.
func (s *projectService) CreateProject(
	ctx context.Context,
	userID uuid.UUID,
	name string,
	description *string,
) (*domain.Project, error) {
	p, err := domain.NewProject(userID, name, description)
	if err != nil {
		return nil, invalid(err)
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, domain.NewInternalError(err, false)
	}

	s.invalidator.Invalidate(ctx, cache.UserProjectsKey(userID))
	logger.FromContextOrDefault(ctx, s.logger).Info("project created", "project_id", p.ID)
	return p, nil
}

// UpdateProject implements ProjectService.
func (s *projectService) UpdateProject(
	ctx context.Context,
	projectID, userID uuid.UUID,
	update domain.ProjectUpdate,
) (*domain.Project, error) {
	p, err := s.owned(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if err := update.Apply(p); err != nil {
		return nil, invalid(err)
	}
	if err := s.projects.Update(ctx, p); err != nil {
		return nil, fromStore(err, msgProjectNotFound)
	}

	s.invalidator.Invalidate(ctx, cache.UserProjectsKey(userID), cache.ProjectDetailKey(projectID))
	return p, nil
}

// DeleteProject implements ProjectService.
func (s *projectService) DeleteProject(ctx context.Context, projectID, userID uuid.UUID) error {
	if _, err := s.owned(ctx, projectID, userID); err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, projectID); err != nil {
		return fromStore(err, msgProjectNotFound)
	}

	s.invalidator.Invalidate(ctx, cache.UserProjectsKey(userID), cache.ProjectDetailKey(projectID))
	logger.FromContextOrDefault(ctx, s.logger).Info("project deleted", "project_id", projectID)
	return nil
}

// owned loads a project from the store and checks that userID owns it.
func (s *projectService) owned(ctx context.Context, projectID, userID uuid.UUID) (*domain.Project, error) {
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, fromStore(err, msgProjectNotFound)
	}
	if !p.IsOwnedBy(userID) {
		return nil, domain.NewAuthorizationError(msgProjectForbidden)
	}
	return p, nil
}

func (s *projectService) logMiss(ctx context.Context, key cache.Key, res cache.Result, err error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	if err != nil {
		log.Debug("cache read fell back to store",
			slog.String("key", key.String()),
			slog.String("result", res.String()),
			slog.String("error", err.Error()))
		return
	}
	log.Debug("cache miss", slog.String("key", key.String()))
}

// fill stores value under key. Failures only cost a future miss.
func (s *projectService) fill(ctx context.Context, key cache.Key, value any, ttl time.Duration) {
	if err := cache.SetJSON(ctx, s.cache, key, value, ttl); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Debug("cache fill failed",
			slog.String("key", key.String()),
			slog.String("error", err.Error()))
	}
}
