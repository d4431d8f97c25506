package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskboard-api/internal/api"
	"github.com/phrazzld/taskboard-api/internal/config"
	"github.com/phrazzld/taskboard-api/internal/mocks"
	"github.com/phrazzld/taskboard-api/internal/platform/artifact"
	"github.com/phrazzld/taskboard-api/internal/service"
	"github.com/phrazzld/taskboard-api/internal/service/auth"
	"github.com/phrazzld/taskboard-api/internal/task"
)

const testSecret = "thisisasecretkeythatis32charslong!!"

// queuedDispatcher pretends every export was placed on the queue.
type queuedDispatcher struct{ calls int }

func (d *queuedDispatcher) Dispatch(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) (task.DispatchMode, error) {
	d.calls++
	return task.DispatchModeQueued, nil
}

type testServer struct {
	handler http.Handler
	mem     *mocks.MemStore
	cache   *mocks.MemCache
	sqlMock sqlmock.Sqlmock
}

// newTestServer wires the real services over in-memory stores. Exports run
// inline unless dispatcher is given.
func newTestServer(t *testing.T, dispatcher api.ExportDispatcher) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := mocks.NewMemStore()
	c := mocks.NewMemCache()

	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, sqlMock.ExpectationsWereMet())
		_ = db.Close()
	})

	jwtSvc, err := auth.NewJWTService(config.AuthConfig{JWTSecret: testSecret, TokenLifetimeMinutes: 60})
	require.NoError(t, err)
	artifacts, err := artifact.NewStore(afero.NewMemMapFs(), "/exports")
	require.NoError(t, err)

	authSvc, err := service.NewAuthService(mem.Users(), auth.NewBcryptHasher(4), jwtSvc, log)
	require.NoError(t, err)
	projectSvc, err := service.NewProjectService(mem.Projects(), c, log)
	require.NoError(t, err)
	taskSvc, err := service.NewTaskService(db, mem.Tasks(), mem.Projects(), mem.Users(), c, log)
	require.NoError(t, err)
	exportSvc, err := service.NewExportService(mem.Exports(), mem.Projects(), mem.Tasks(), artifacts,
		task.DefaultConfig().Lease, log)
	require.NoError(t, err)

	if dispatcher == nil {
		d, err := task.NewDispatcher(nil, nil, c, exportSvc, task.DefaultConfig(), log)
		require.NoError(t, err)
		dispatcher = d
	}

	return &testServer{
		handler: api.NewRouter(api.RouterDeps{
			Auth:       authSvc,
			Projects:   projectSvc,
			Tasks:      taskSvc,
			Exports:    exportSvc,
			Dispatcher: dispatcher,
			JWT:        jwtSvc,
			Cache:      c,
			Logger:     log,
		}),
		mem:     mem,
		cache:   c,
		sqlMock: sqlMock,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" && rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func (s *testServer) register(t *testing.T, name, email string) (token string, userID uuid.UUID) {
	t.Helper()
	rec, env := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decodeData[struct {
		User struct {
			ID uuid.UUID `json:"id"`
		} `json:"user"`
		Token string `json:"token"`
	}](t, env)
	return res.Token, res.User.ID
}

func (s *testServer) createProject(t *testing.T, token, name string) uuid.UUID {
	t.Helper()
	rec, env := s.do(t, http.MethodPost, "/api/projects", token, map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[struct {
		ID uuid.UUID `json:"id"`
	}](t, env).ID
}

func TestExportLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	token, userID := s.register(t, "Ada Lovelace", "ada@example.com")
	projectID := s.createProject(t, token, "Analytical Engine")

	s.sqlMock.ExpectBegin()
	s.sqlMock.ExpectCommit()
	rec, _ := s.do(t, http.MethodPost, "/api/tasks", token, map[string]any{
		"projectId":  projectID,
		"title":      "Write notes",
		"priority":   "HIGH",
		"assignedTo": userID,
		"dueDate":    "2026-11-01T12:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env := s.do(t, http.MethodPost, "/api/projects/"+projectID.String()+"/export", token, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	started := decodeData[api.ExportStartedResponse](t, env)
	assert.Equal(t, "Export job started", started.Message)
	assert.Equal(t, "COMPLETED", string(started.Status), "an inline run reports its final status")

	rec, env = s.do(t, http.MethodGet, "/api/exports/"+started.ExportID.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeData[map[string]any](t, env)
	assert.Equal(t, "COMPLETED", status["status"])
	assert.Equal(t, "/api/exports/"+started.ExportID.String()+"/download", status["downloadUrl"])
	assert.Equal(t, map[string]any{"name": "Analytical Engine"}, status["project"])

	rec, _ = s.do(t, http.MethodGet, "/api/exports/"+started.ExportID.String()+"/download", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	var report struct {
		Project struct {
			Name string `json:"name"`
		} `json:"project"`
		Summary struct {
			TotalTasks int `json:"totalTasks"`
		} `json:"summary"`
		Tasks []struct {
			Assignee      string  `json:"assignee"`
			AssigneeEmail *string `json:"assigneeEmail"`
		} `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "Analytical Engine", report.Project.Name)
	assert.Equal(t, 1, report.Summary.TotalTasks)
	require.Len(t, report.Tasks, 1)
	assert.Equal(t, "Ada Lovelace", report.Tasks[0].Assignee)

	rec, env = s.do(t, http.MethodGet, "/api/exports", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[[]api.ExportResponse](t, env), 1)
}

func TestProjectAndTaskEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	token, _ := s.register(t, "Grace Hopper", "grace@example.com")
	projectID := s.createProject(t, token, "Compiler")
	path := "/api/projects/" + projectID.String()

	rec, env := s.do(t, http.MethodGet, "/api/projects", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeData[[]map[string]any](t, env)
	require.Len(t, list, 1)
	assert.EqualValues(t, 0, list[0]["taskCount"])

	s.sqlMock.ExpectBegin()
	s.sqlMock.ExpectCommit()
	rec, env = s.do(t, http.MethodPost, "/api/tasks", token, map[string]any{"projectId": projectID, "title": "Parse"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	taskID := decodeData[struct {
		ID uuid.UUID `json:"id"`
	}](t, env).ID

	s.sqlMock.ExpectBegin()
	s.sqlMock.ExpectCommit()
	rec, env = s.do(t, http.MethodPatch, "/api/tasks/"+taskID.String(), token, map[string]any{"status": "DONE"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "DONE", decodeData[map[string]any](t, env)["status"])

	rec, env = s.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[map[string]any](t, env)["tasks"], 1)

	rec, env = s.do(t, http.MethodPatch, path, token, map[string]any{"name": "Compiler v2"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Compiler v2", decodeData[map[string]any](t, env)["name"])

	rec, env = s.do(t, http.MethodDelete, "/api/tasks/"+taskID.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Task deleted successfully", decodeData[api.MessageResponse](t, env).Message)

	rec, env = s.do(t, http.MethodDelete, path, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Project deleted successfully", decodeData[api.MessageResponse](t, env).Message)

	rec, env = s.do(t, http.MethodGet, path, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
	assert.Equal(t, "Project not found", env.Error.Message)
}

func TestErrorResponses(t *testing.T) {
	s := newTestServer(t, nil)
	owner, _ := s.register(t, "Owner", "owner@example.com")
	other, _ := s.register(t, "Other", "other@example.com")
	projectID := s.createProject(t, owner, "Private")

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       any
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name: "missing token", method: http.MethodGet, path: "/api/projects",
			wantStatus: http.StatusUnauthorized, wantCode: "AUTHENTICATION_ERROR",
			wantMsg: "No token provided or invalid format",
		},
		{
			name: "garbage token", method: http.MethodGet, path: "/api/projects", token: "not.a.jwt",
			wantStatus: http.StatusUnauthorized, wantCode: "AUTHENTICATION_ERROR",
			wantMsg: "Invalid or expired token",
		},
		{
			name: "foreign project", method: http.MethodGet, path: "/api/projects/" + projectID.String(), token: other,
			wantStatus: http.StatusForbidden, wantCode: "AUTHORIZATION_ERROR",
			wantMsg: "You do not have access to this project",
		},
		{
			name: "foreign export request", method: http.MethodPost,
			path: "/api/projects/" + projectID.String() + "/export", token: other,
			wantStatus: http.StatusForbidden, wantCode: "AUTHORIZATION_ERROR",
		},
		{
			name: "malformed id", method: http.MethodGet, path: "/api/exports/nope", token: owner,
			wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR",
		},
		{
			name: "unknown export", method: http.MethodGet, path: "/api/exports/" + uuid.NewString(), token: owner,
			wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND", wantMsg: "Export not found",
		},
		{
			name: "short password", method: http.MethodPost, path: "/api/auth/register",
			body:       map[string]string{"name": "Bo", "email": "bo@example.com", "password": "123"},
			wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR",
			wantMsg: "password: must be at least 6 characters",
		},
		{
			name: "duplicate email", method: http.MethodPost, path: "/api/auth/register",
			body:       map[string]string{"name": "Again", "email": "OWNER@example.com", "password": "hunter22"},
			wantStatus: http.StatusConflict, wantCode: "CONFLICT",
			wantMsg: "User with this email already exists",
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/api/auth/login",
			body:       map[string]string{"email": "owner@example.com", "password": "wrong-one"},
			wantStatus: http.StatusUnauthorized, wantCode: "AUTHENTICATION_ERROR",
			wantMsg: "Invalid email or password",
		},
		{
			name: "bad task status", method: http.MethodPost, path: "/api/tasks", token: owner,
			body:       map[string]any{"projectId": projectID, "title": "x", "status": "BLOCKED"},
			wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR",
			wantMsg: "status: must be one of TODO, IN_PROGRESS, DONE",
		},
		{
			name: "malformed body", method: http.MethodPost, path: "/api/projects", token: owner,
			body:       "just a string",
			wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR",
			wantMsg: "Invalid request format",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := s.do(t, tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())
			assert.False(t, env.Success)
			assert.Equal(t, tc.wantCode, env.Error.Code)
			if tc.wantMsg != "" {
				assert.Equal(t, tc.wantMsg, env.Error.Message)
			}
		})
	}
}

func TestQueuedExportCannotBeDownloadedYet(t *testing.T) {
	d := &queuedDispatcher{}
	s := newTestServer(t, d)
	token, _ := s.register(t, "Ada", "ada@example.com")
	projectID := s.createProject(t, token, "Engine")

	rec, env := s.do(t, http.MethodPost, "/api/projects/"+projectID.String()+"/export", token, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	started := decodeData[api.ExportStartedResponse](t, env)
	assert.Equal(t, "PENDING", string(started.Status))
	assert.Equal(t, 1, d.calls)

	rec, env = s.do(t, http.MethodGet, "/api/exports/"+started.ExportID.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeData[map[string]any](t, env)
	assert.Contains(t, status, "downloadUrl")
	assert.Nil(t, status["downloadUrl"])

	rec, env = s.do(t, http.MethodGet, "/api/exports/"+started.ExportID.String()+"/download", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "EXPORT_NOT_READY", env.Error.Code)
	assert.Equal(t, "Export is not ready for download yet", env.Error.Message)
}

func TestHealthReportsCacheState(t *testing.T) {
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","cache":"up"}`, rec.Body.String())

	s.cache.Down = true
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","cache":"down"}`, rec.Body.String())
}
