package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/phrazzld/taskboard-api/internal/api"
	"github.com/phrazzld/taskboard-api/internal/config"
	"github.com/phrazzld/taskboard-api/internal/platform/artifact"
	"github.com/phrazzld/taskboard-api/internal/platform/postgres"
	"github.com/phrazzld/taskboard-api/internal/platform/redis"
	"github.com/phrazzld/taskboard-api/internal/service"
	"github.com/phrazzld/taskboard-api/internal/service/auth"
	"github.com/phrazzld/taskboard-api/internal/store"
	"github.com/phrazzld/taskboard-api/internal/task"
)

// application holds the shared dependencies of a running process so they
// can be released together on shutdown. Fields a mode does not use stay nil.
type application struct {
	config     *config.Config
	taskConfig task.Config
	logger     *slog.Logger
	db         *sql.DB

	userStore    store.UserStore
	projectStore store.ProjectStore
	taskStore    store.TaskStore
	exportStore  store.ExportStore

	cache     *redis.Cache
	stopCache context.CancelFunc

	jwtService     auth.JWTService
	authService    service.AuthService
	projectService service.ProjectService
	taskService    service.TaskService
	exportService  service.ExportService

	queueClient *asynq.Client
	inspector   *asynq.Inspector
	dispatcher  *task.Dispatcher
	worker      *task.Worker
	sweeper     *task.Sweeper
}

// newExportApplication wires what is needed to run exports: the stores, the
// artifact directory and the export service. It is the whole application
// for the standalone worker.
func newExportApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config:     cfg,
		taskConfig: task.NewConfig(cfg.Task, cfg.Export),
		logger:     logger,
		db:         db,
	}

	app.userStore = postgres.NewPostgresUserStore(db, logger)
	app.projectStore = postgres.NewPostgresProjectStore(db, logger)
	app.taskStore = postgres.NewPostgresTaskStore(db, logger)
	app.exportStore = postgres.NewPostgresExportStore(db, logger)

	artifacts, err := artifact.NewOSStore(cfg.Export.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare export directory: %w", err)
	}

	app.exportService, err = service.NewExportService(
		app.exportStore,
		app.projectStore,
		app.taskStore,
		artifacts,
		cfg.Export.Lease(),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create export service: %w", err)
	}

	return app, nil
}

// newApplication wires the full API process. The cache health check, the
// sweeper and, when configured, the in-process worker are started here and
// stopped by cleanup.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app, err := newExportApplication(cfg, logger, db)
	if err != nil {
		return nil, err
	}

	app.cache = redis.New(redis.NewClient(cfg.Redis), cfg.Redis.HealthCheckInterval(), logger)
	cacheCtx, stopCache := context.WithCancel(context.WithoutCancel(ctx))
	app.stopCache = stopCache
	app.cache.Start(cacheCtx)
	logger.Info("Cache initialized", "addr", cfg.Redis.Addr, "available", app.cache.Available())

	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	if err := app.initServices(); err != nil {
		app.cleanup()
		return nil, err
	}

	if err := app.initDispatch(); err != nil {
		app.cleanup()
		return nil, err
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

func (app *application) initServices() error {
	var err error

	app.authService, err = service.NewAuthService(
		app.userStore,
		auth.NewBcryptHasher(app.config.Auth.BCryptCost),
		app.jwtService,
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create auth service: %w", err)
	}

	app.projectService, err = service.NewProjectService(app.projectStore, app.cache, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create project service: %w", err)
	}

	app.taskService, err = service.NewTaskService(
		app.db,
		app.taskStore,
		app.projectStore,
		app.userStore,
		app.cache,
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create task service: %w", err)
	}

	return nil
}

// initDispatch sets up the queue client, the dispatcher, the sweeper and
// the in-process worker.
func (app *application) initDispatch() error {
	redisOpt := task.RedisOpt(app.config.Redis)
	app.queueClient = asynq.NewClient(redisOpt)
	app.inspector = asynq.NewInspector(redisOpt)

	var err error
	app.dispatcher, err = task.NewDispatcher(
		app.queueClient,
		app.inspector,
		app.cache,
		app.exportService,
		app.taskConfig,
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create export dispatcher: %w", err)
	}

	if app.config.Task.RunWorkerInServer {
		app.worker = task.NewWorker(redisOpt, app.exportService, app.taskConfig, app.logger)
		if err := app.worker.Start(); err != nil {
			app.logger.Warn("export worker not started", "error", err)
			app.worker = nil
		}
	}

	app.sweeper = task.NewSweeper(app.exportStore, app.dispatcher, app.taskConfig, app.logger)
	app.sweeper.Start()

	return nil
}

// routerDeps collects the services the HTTP routes are built from.
func (app *application) routerDeps() api.RouterDeps {
	return api.RouterDeps{
		Auth:       app.authService,
		Projects:   app.projectService,
		Tasks:      app.taskService,
		Exports:    app.exportService,
		Dispatcher: app.dispatcher,
		JWT:        app.jwtService,
		Cache:      app.cache,
		Logger:     app.logger,
	}
}

// Run serves HTTP until ctx is cancelled, then shuts down and cleans up.
func (app *application) Run(ctx context.Context) error {
	if err := app.startHTTPServer(ctx, api.NewRouter(app.routerDeps())); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup releases resources in reverse order of acquisition. It is safe
// to call on a partially initialized application. The database belongs to
// the caller.
func (app *application) cleanup() {
	if app.sweeper != nil {
		app.sweeper.Stop()
	}
	if app.worker != nil {
		app.worker.Shutdown()
	}

	var errs []error
	if app.queueClient != nil {
		errs = append(errs, app.queueClient.Close())
	}
	if app.inspector != nil {
		errs = append(errs, app.inspector.Close())
	}
	if app.stopCache != nil {
		app.stopCache()
	}
	if app.cache != nil {
		errs = append(errs, app.cache.Close())
	}

	if err := errors.Join(errs...); err != nil {
		app.logger.Error("Error releasing resources", "error", err)
	}
	app.logger.Info("Application shutdown completed")
}
