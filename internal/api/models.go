package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/service"
)

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Name     string `json:"name"     validate:"required,min=2"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// CreateProjectRequest is the body of POST /api/projects.
type CreateProjectRequest struct {
	Name        string  `json:"name"        validate:"required,min=1"`
	Description *string `json:"description"`
}

// UpdateProjectRequest is the body of PATCH /api/projects/{id}. Absent
// fields are left unchanged.
type UpdateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (req UpdateProjectRequest) toUpdate() domain.ProjectUpdate {
	return domain.ProjectUpdate{Name: req.Name, Description: req.Description}
}

// CreateTaskRequest is the body of POST /api/tasks.
type CreateTaskRequest struct {
	ProjectID   string  `json:"projectId"   validate:"required,uuid"`
	Title       string  `json:"title"       validate:"required,min=1"`
	Description *string `json:"description"`
	Status      *string `json:"status"      validate:"omitempty,oneof=TODO IN_PROGRESS DONE"`
	Priority    *string `json:"priority"    validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	AssignedTo  *string `json:"assignedTo"  validate:"omitempty,uuid"`
	DueDate     *string `json:"dueDate"     validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

func (req CreateTaskRequest) toInput() service.CreateTaskInput {
	in := service.CreateTaskInput{
		ProjectID:   uuid.MustParse(req.ProjectID),
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  parseOptionalUUID(req.AssignedTo),
		DueDate:     parseOptionalTime(req.DueDate),
	}
	if req.Status != nil {
		s := domain.TaskStatus(*req.Status)
		in.Status = &s
	}
	if req.Priority != nil {
		p := domain.TaskPriority(*req.Priority)
		in.Priority = &p
	}
	return in
}

// UpdateTaskRequest is the body of PATCH /api/tasks/{id}. Absent fields are
// left unchanged.
type UpdateTaskRequest struct {
	Title       *string `json:"title"       validate:"omitempty,min=1"`
	Description *string `json:"description"`
	Status      *string `json:"status"      validate:"omitempty,oneof=TODO IN_PROGRESS DONE"`
	Priority    *string `json:"priority"    validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	AssignedTo  *string `json:"assignedTo"  validate:"omitempty,uuid"`
	DueDate     *string `json:"dueDate"     validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

func (req UpdateTaskRequest) toUpdate() domain.TaskUpdate {
	u := domain.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  parseOptionalUUID(req.AssignedTo),
		DueDate:     parseOptionalTime(req.DueDate),
	}
	if req.Status != nil {
		s := domain.TaskStatus(*req.Status)
		u.Status = &s
	}
	if req.Priority != nil {
		p := domain.TaskPriority(*req.Priority)
		u.Priority = &p
	}
	return u
}

// parseOptionalUUID parses a value that already passed the uuid tag.
func parseOptionalUUID(s *string) *uuid.UUID {
	if s == nil || *s == "" {
		return nil
	}
	id := uuid.MustParse(*s)
	return &id
}

// parseOptionalTime parses a value that already passed the datetime tag.
func parseOptionalTime(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// MessageResponse is the data of delete endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}

// ExportStartedResponse is the data of POST /api/projects/{id}/export.
type ExportStartedResponse struct {
	ExportID uuid.UUID           `json:"exportId"`
	Status   domain.ExportStatus `json:"status"`
	Message  string              `json:"message"`
}

// ProjectRef names an export's project.
type ProjectRef struct {
	Name string `json:"name"`
}

// ExportResponse is an export as rendered to its owner.
type ExportResponse struct {
	ID          uuid.UUID           `json:"id"`
	UserID      uuid.UUID           `json:"userId"`
	ProjectID   uuid.UUID           `json:"projectId"`
	Status      domain.ExportStatus `json:"status"`
	FilePath    *string             `json:"filePath"`
	CreatedAt   time.Time           `json:"createdAt"`
	CompletedAt *time.Time          `json:"completedAt"`
	Project     ProjectRef          `json:"project"`
}

// ExportStatusResponse adds the download link, null until the export has
// completed.
type ExportStatusResponse struct {
	ExportResponse
	DownloadURL *string `json:"downloadUrl"`
}

func newExportResponse(e *domain.Export) ExportResponse {
	return ExportResponse{
		ID:          e.ID,
		UserID:      e.UserID,
		ProjectID:   e.ProjectID,
		Status:      e.Status,
		FilePath:    e.FilePath,
		CreatedAt:   e.CreatedAt,
		CompletedAt: e.CompletedAt,
		Project:     ProjectRef{Name: e.ProjectName},
	}
}

func newExportStatusResponse(e *domain.Export) ExportStatusResponse {
	resp := ExportStatusResponse{ExportResponse: newExportResponse(e)}
	if e.Status == domain.ExportStatusCompleted && e.FilePath != nil {
		url := "/api/exports/" + e.ID.String() + "/download"
		resp.DownloadURL = &url
	}
	return resp
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Cache  string `json:"cache"`
}
