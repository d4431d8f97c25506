package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apimw "github.com/phrazzld/taskboard-api/internal/api/middleware"
	"github.com/phrazzld/taskboard-api/internal/service"
	"github.com/phrazzld/taskboard-api/internal/service/auth"
	"github.com/phrazzld/taskboard-api/internal/task"
)

// RouterDeps are the collaborators the HTTP routes are built from.
type RouterDeps struct {
	Auth       service.AuthService
	Projects   service.ProjectService
	Tasks      service.TaskService
	Exports    service.ExportService
	Dispatcher ExportDispatcher
	JWT        auth.JWTService
	Cache      task.Availability
	Logger     *slog.Logger
}

// NewRouter builds the application's HTTP handler.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(apimw.NewTraceMiddleware(deps.Logger))

	authHandler := NewAuthHandler(deps.Auth)
	projectHandler := NewProjectHandler(deps.Projects)
	taskHandler := NewTaskHandler(deps.Tasks)
	exportHandler := NewExportHandler(deps.Exports, deps.Dispatcher)
	authMiddleware := apimw.NewAuthMiddleware(deps.JWT)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Get("/projects", projectHandler.List)
			r.Post("/projects", projectHandler.Create)
			r.Get("/projects/{id}", projectHandler.Get)
			r.Patch("/projects/{id}", projectHandler.Update)
			r.Delete("/projects/{id}", projectHandler.Delete)
			r.Post("/projects/{id}/export", exportHandler.Create)

			r.Post("/tasks", taskHandler.Create)
			r.Patch("/tasks/{id}", taskHandler.Update)
			r.Delete("/tasks/{id}", taskHandler.Delete)

			r.Get("/exports", exportHandler.List)
			r.Get("/exports/{id}", exportHandler.Get)
			r.Get("/exports/{id}/download", exportHandler.Download)
		})
	})

	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.Cache))

	return r
}
