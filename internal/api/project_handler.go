package api

import (
	"net/http"

	"github.com/phrazzld/taskboard-api/internal/api/shared"
	"github.com/phrazzld/taskboard-api/internal/service"
)

// ProjectHandler serves the project endpoints.
type ProjectHandler struct {
	projects service.ProjectService
}

// NewProjectHandler creates a ProjectHandler.
func NewProjectHandler(projects service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// List handles GET /api/projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	projects, err := h.projects.GetUserProjects(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithData(w, r, http.StatusOK, projects)
}

// Get handles GET /api/projects/{id}.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}
	project, err := h.projects.GetProjectByID(r.Context(), projectID, userID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithData(w, r, http.StatusOK, project)
}

// Create handles POST /api/projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req CreateProjectRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	project, err := h.projects.CreateProject(r.Context(), userID, req.Name, req.Description)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithData(w, r, http.StatusCreated, project)
}

// Update handles PATCH /api/projects/{id}.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateProjectRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	project, err := h.projects.UpdateProject(r.Context(), projectID, userID, req.toUpdate())
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithData(w, r, http.StatusOK, project)
}

// Delete handles DELETE /api/projects/{id}.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.projects.DeleteProject(r.Context(), projectID, userID); err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithData(w, r, http.StatusOK, MessageResponse{Message: "Project deleted successfully"})
}
