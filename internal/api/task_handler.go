package api

import (
	"net/http"

	"github.com/phrazzld/taskboard-api/internal/api/shared"
	"github.com/phrazzld/taskboard-api/internal/service"
)

// TaskHandler serves the task endpoints.
type TaskHandler struct {
	tasks service.TaskService
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(tasks service.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// Create handles POST /api/tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req CreateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	task, err := h.tasks.CreateTask(r.Context(), userID, req.toInput())
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithData(w, r, http.StatusCreated, task)
}

// Update handles PATCH /api/tasks/{id}.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	task, err := h.tasks.UpdateTask(r.Context(), taskID, userID, req.toUpdate())
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithData(w, r, http.StatusOK, task)
}

// Delete handles DELETE /api/tasks/{id}.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.tasks.DeleteTask(r.Context(), taskID, userID); err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithData(w, r, http.StatusOK, MessageResponse{Message: "Task deleted successfully"})
}
