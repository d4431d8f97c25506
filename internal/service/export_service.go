package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/export"
	"github.com/phrazzld/taskboard-api/internal/platform/logger"
	"github.com/phrazzld/taskboard-api/internal/redact"
	"github.com/phrazzld/taskboard-api/internal/store"
)

// ArtifactStore persists export artifacts by name.
type ArtifactStore interface {
	Write(ctx context.Context, name string, data []byte) error
	Open(name string) (io.ReadCloser, int64, error)
}

// ExportService drives exports through PENDING, PROCESSING and a terminal
// state, and serves their status and artifacts.
type ExportService interface {
	// CreateExportRecord checks access to the project and stores a PENDING
	// export. Nothing is written when the check fails.
	CreateExportRecord(ctx context.Context, projectID, userID uuid.UUID) (*domain.Export, error)

	// RunExport claims the export, generates and stores its artifact and
	// records the outcome. It returns ErrExportLeased when another delivery
	// holds an unexpired claim and ErrExportAlreadyClaimed when the export is
	// already terminal. Other errors carry Retryable=false once FAILED has
	// been recorded.
	RunExport(ctx context.Context, exportID, projectID uuid.UUID) error

	// GetExportStatus returns an export owned by userID.
	GetExportStatus(ctx context.Context, exportID, userID uuid.UUID) (*domain.Export, error)

	// ListUserExports returns the user's exports, newest first.
	ListUserExports(ctx context.Context, userID uuid.UUID) ([]*domain.Export, error)

	// OpenExportArtifact opens the artifact of a COMPLETED export owned by
	// userID. The caller must close the reader.
	OpenExportArtifact(ctx context.Context, exportID, userID uuid.UUID) (io.ReadCloser, *domain.Export, error)
}

// ExportServiceOption configures an ExportService.
type ExportServiceOption func(*exportService)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) ExportServiceOption {
	return func(s *exportService) { s.now = now }
}

type exportService struct {
	exports   store.ExportStore
	projects  store.ProjectStore
	tasks     store.TaskStore
	artifacts ArtifactStore
	lease     time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewExportService creates an ExportService. lease bounds how long a
// PROCESSING claim blocks other deliveries of the same export.
func NewExportService(
	exports store.ExportStore,
	projects store.ProjectStore,
	tasks store.TaskStore,
	artifacts ArtifactStore,
	lease time.Duration,
	logger *slog.Logger,
	opts ...ExportServiceOption,
) (ExportService, error) {
	if exports == nil || projects == nil || tasks == nil || artifacts == nil {
		return nil, errors.New("export service dependencies cannot be nil")
	}
	if lease <= 0 {
		return nil, errors.New("export lease must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &exportService{
		exports:   exports,
		projects:  projects,
		tasks:     tasks,
		artifacts: artifacts,
		lease:     lease,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With("component", "export_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateExportRecord implements ExportService.
func (s *exportService) CreateExportRecord(
	ctx context.Context,
	projectID, userID uuid.UUID,
) (*domain.Export, error) {
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, fromStore(err, msgProjectNotFound)
	}
	if !p.IsOwnedBy(userID) {
		return nil, domain.NewAuthorizationError(msgProjectForbidden)
	}

	e, err := domain.NewExport(userID, projectID)
	if err != nil {
		return nil, invalid(err)
	}
	e.CreatedAt = s.now()
	if err := s.exports.Create(ctx, e); err != nil {
		return nil, domain.NewInternalError(err, true)
	}
	e.ProjectName = p.Name

	logger.FromContextOrDefault(ctx, s.logger).Info("export requested",
		"export_id", e.ID,
		"project_id", projectID)
	return e, nil
}

// RunExport implements ExportService.
func (s *exportService) RunExport(ctx context.Context, exportID, projectID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger).With("export_id", exportID)

	e, err := s.exports.Claim(ctx, exportID, s.now(), s.lease)
	switch {
	case errors.Is(err, store.ErrExportLeased):
		log.Info("export claimed by another delivery, lease still held", "error", err)
		return ErrExportLeased
	case errors.Is(err, store.ErrExportNotClaimable):
		log.Info("export not claimable, skipping run", "error", err)
		return ErrExportAlreadyClaimed
	case errors.Is(err, store.ErrExportNotFound):
		return domain.NewError(domain.KindNotFound, msgExportNotFound, err)
	case err != nil:
		log.Error("failed to claim export", "error", err)
		return domain.NewInternalError(fmt.Errorf("claim export: %w", err), true)
	}
	if e.ProjectID != projectID {
		log.Warn("export job names a different project than the record, using the record",
			"job_project_id", projectID,
			"project_id", e.ProjectID)
	}
	log = log.With("project_id", e.ProjectID, "attempt", e.Attempts)
	log.Info("export processing")

	name, err := s.generate(ctx, e.ProjectID)
	if err != nil {
		return s.fail(ctx, log, e.ID, err)
	}

	// Terminal marks outlive the caller's context.
	markCtx := context.WithoutCancel(ctx)
	if err := s.exports.MarkCompleted(markCtx, e.ID, name, s.now()); err != nil {
		if errors.Is(err, store.ErrExportNotProcessing) {
			if s.exportGone(markCtx, e.ID) {
				log.Warn("export removed while running, discarding result", "file_path", name)
				return domain.NewError(domain.KindNotFound, msgExportNotFound, store.ErrExportNotFound)
			}
			log.Warn("export finished by another delivery, discarding result", "file_path", name)
			return ErrExportAlreadyClaimed
		}
		log.Error("failed to mark export completed", "error", err)
		return domain.NewInternalError(fmt.Errorf("mark export completed: %w", err), true)
	}

	log.Info("export completed", "file_path", name)
	return nil
}

// generate builds the report for a project and writes it to the artifact
// store, returning the artifact name.
func (s *exportService) generate(ctx context.Context, projectID uuid.UUID) (string, error) {
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return "", fromStore(err, msgProjectNotFound)
	}
	tasks, err := s.tasks.ListByProject(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("load tasks: %w", err)
	}

	data, err := export.Marshal(export.BuildReport(p, tasks))
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	name := export.ArtifactName(projectID, s.now())
	if err := s.artifacts.Write(ctx, name, data); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return name, nil
}

// fail records FAILED with a redacted reason and returns cause tagged as
// not retryable. If FAILED cannot be recorded the export is left in
// PROCESSING for a later delivery and the error is retryable. An export
// deleted with its project while running also returns cause.
func (s *exportService) fail(ctx context.Context, log *slog.Logger, exportID uuid.UUID, cause error) error {
	ctx = context.WithoutCancel(ctx)
	reason := redact.Reason(cause)
	if err := s.exports.MarkFailed(ctx, exportID, reason); err != nil {
		if errors.Is(err, store.ErrExportNotProcessing) {
			if s.exportGone(ctx, exportID) {
				log.Warn("export removed while running", "error", redact.Error(cause))
				return permanent(cause)
			}
			log.Warn("export finished by another delivery", "error", redact.Error(cause))
			return ErrExportAlreadyClaimed
		}
		log.Error("failed to mark export failed",
			"error", err,
			"cause", redact.Error(cause))
		return domain.NewInternalError(fmt.Errorf("mark export failed: %w (cause: %v)", err, cause), true)
	}

	log.Warn("export failed", "reason", reason)
	return permanent(cause)
}

// exportGone reports whether a terminal mark matched no row because the
// export itself no longer exists.
func (s *exportService) exportGone(ctx context.Context, exportID uuid.UUID) bool {
	_, err := s.exports.GetByID(ctx, exportID)
	return store.IsNotFoundError(err)
}

// GetExportStatus implements ExportService.
func (s *exportService) GetExportStatus(ctx context.Context, exportID, userID uuid.UUID) (*domain.Export, error) {
	e, err := s.exports.GetByID(ctx, exportID)
	if err != nil {
		return nil, fromStore(err, msgExportNotFound)
	}
	if !e.IsOwnedBy(userID) {
		return nil, domain.NewAuthorizationError(msgExportForbidden)
	}
	return e, nil
}

// ListUserExports implements ExportService.
func (s *exportService) ListUserExports(ctx context.Context, userID uuid.UUID) ([]*domain.Export, error) {
	exports, err := s.exports.ListByUser(ctx, userID)
	if err != nil {
		return nil, domain.NewInternalError(err, false)
	}
	return exports, nil
}

// OpenExportArtifact implements ExportService.
func (s *exportService) OpenExportArtifact(
	ctx context.Context,
	exportID, userID uuid.UUID,
) (io.ReadCloser, *domain.Export, error) {
	e, err := s.GetExportStatus(ctx, exportID, userID)
	if err != nil {
		return nil, nil, err
	}
	if e.Status != domain.ExportStatusCompleted || e.FilePath == nil {
		return nil, nil, ErrExportNotReady
	}

	rc, _, err := s.artifacts.Open(*e.FilePath)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to open export artifact",
			"export_id", e.ID,
			"error", err)
		return nil, nil, domain.NewError(domain.KindNotFound, msgArtifactNotFound, err)
	}
	return rc, e, nil
}
