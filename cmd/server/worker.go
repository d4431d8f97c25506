package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/phrazzld/taskboard-api/internal/task"
)

func workerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process queued export jobs",
		Long: `Run the export worker without the HTTP API. Use it with
task.run_worker_in_server=false to scale export processing separately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context(), opts)
		},
	}
}

func runWorker(ctx context.Context, opts *rootOptions) error {
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

	app, err := newExportApplication(cfg, log, db)
	if err != nil {
		return fmt.Errorf("failed to initialize worker: %w", err)
	}

	app.worker = task.NewWorker(task.RedisOpt(cfg.Redis), app.exportService, app.taskConfig, log)
	if err := app.worker.Start(); err != nil {
		return err
	}
	defer app.cleanup()

	log.Info("Worker running", "concurrency", app.taskConfig.Concurrency)
	<-ctx.Done()
	log.Info("Shutting down worker...")
	return nil
}
