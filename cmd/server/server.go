package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/phrazzld/taskboard-api/internal/platform/postgres"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API. Pending migrations are applied first unless
--skip-migrations is set. With task.run_worker_in_server the export worker
runs in the same process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, skipMigrations)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply pending migrations on startup")

	return cmd
}

func runServe(ctx context.Context, opts *rootOptions, skipMigrations bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, closeLog, err := bootstrap(opts)
	if err != nil {
		return err
	}
	defer closeLog()

	db, err := setupAppDatabase(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if !skipMigrations {
		if err := postgres.Migrate(db, "up", log); err != nil {
			return err
		}
	}

	app, err := newApplication(ctx, cfg, log, db)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}

// startHTTPServer serves handler until ctx is cancelled or the listener
// fails, then drains in-flight requests within the configured shutdown
// timeout and releases the application's resources.
func (app *application) startHTTPServer(ctx context.Context, handler http.Handler) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	defer app.cleanup()

	serveErr := make(chan error, 1)
	go func() {
		app.logger.Info("Starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok {
			app.logger.Error("Server failed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
		app.logger.Info("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("Server shutdown failed", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.logger.Info("Server shutdown completed")
	return nil
}
