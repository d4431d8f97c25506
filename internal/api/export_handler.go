package api

import (
	"context"
	"io"
	"mime"
	"net/http"

	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/api/shared"
	"github.com/phrazzld/taskboard-api/internal/platform/logger"
	"github.com/phrazzld/taskboard-api/internal/service"
	"github.com/phrazzld/taskboard-api/internal/task"
)

// ExportDispatcher starts the export after its record is stored.
// *task.Dispatcher satisfies it.
type ExportDispatcher interface {
	Dispatch(ctx context.Context, exportID, projectID, userID uuid.UUID) (task.DispatchMode, error)
}

// ExportHandler serves the export endpoints.
type ExportHandler struct {
	exports    service.ExportService
	dispatcher ExportDispatcher
}

// NewExportHandler creates an ExportHandler.
func NewExportHandler(exports service.ExportService, dispatcher ExportDispatcher) *ExportHandler {
	return &ExportHandler{exports: exports, dispatcher: dispatcher}
}

// Create handles POST /api/projects/{id}/export. The PENDING record is
// stored before the job is dispatched. When the export ran inline the
// reported status is its final one.
func (h *ExportHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()

	e, err := h.exports.CreateExportRecord(ctx, projectID, userID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	mode, err := h.dispatcher.Dispatch(ctx, e.ID, projectID, userID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	status := e.Status
	if mode == task.DispatchModeSync {
		if current, err := h.exports.GetExportStatus(ctx, e.ID, userID); err == nil {
			status = current.Status
		} else {
			logger.FromContext(ctx).Warn("failed to re-read export after inline run",
				"export_id", e.ID, "error", err)
		}
	}

	shared.RespondWithData(w, r, http.StatusAccepted, ExportStartedResponse{
		ExportID: e.ID,
		Status:   status,
		Message:  "Export job started",
	})
}

// Get handles GET /api/exports/{id}.
func (h *ExportHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, exportID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}
	e, err := h.exports.GetExportStatus(r.Context(), exportID, userID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithData(w, r, http.StatusOK, newExportStatusResponse(e))
}

// List handles GET /api/exports.
func (h *ExportHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	exports, err := h.exports.ListUserExports(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	resp := make([]ExportResponse, 0, len(exports))
	for _, e := range exports {
		resp = append(resp, newExportResponse(e))
	}
	shared.RespondWithData(w, r, http.StatusOK, resp)
}

// Download handles GET /api/exports/{id}/download.
func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID, exportID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}
	rc, e, err := h.exports.OpenExportArtifact(r.Context(), exportID, userID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	defer rc.Close()

	name := e.ID.String() + ".json"
	if e.FilePath != nil {
		name = *e.FilePath
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logger.FromContext(r.Context()).Warn("export download interrupted",
			"export_id", e.ID, "error", err)
	}
}
