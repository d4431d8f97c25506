package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/logger"
	"github.com/phrazzld/taskboard-api/internal/redact"
	"github.com/phrazzld/taskboard-api/internal/service"
)

// Worker consumes export jobs from the queue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner Runner
	logger *slog.Logger
}

// NewWorker creates a Worker reading from the Redis behind redisOpt.
func NewWorker(redisOpt asynq.RedisConnOpt, runner Runner, config Config, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	w := &Worker{
		runner: runner,
		logger: log.With("component", "export_worker"),
	}

	w.server = asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:    config.Concurrency,
		Queues:         map[string]int{QueueExports: 1},
		RetryDelayFunc: RetryDelay(config.BackoffBase, config.Lease),
		ErrorHandler:   asynq.ErrorHandlerFunc(w.handleError),
		Logger:         asynqLogger{w.logger},
		LogLevel:       asynq.WarnLevel,
	})
	w.mux = asynq.NewServeMux()
	w.mux.HandleFunc(TypeExportGenerate, w.HandleExport)
	return w
}

// Start begins processing in background goroutines.
func (w *Worker) Start() error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start export worker: %w", err)
	}
	w.logger.Info("export worker started")
	return nil
}

// Shutdown stops fetching jobs and waits for running ones up to asynq's
// shutdown timeout.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
	w.logger.Info("export worker stopped")
}

// HandleExport runs one delivery of an export job. Deliveries of finished
// exports are acknowledged. A delivery that finds another one inside its
// claim lease is retried, since that claim may still expire unfinished.
// Errors that retrying cannot fix skip the remaining retries.
func (w *Worker) HandleExport(ctx context.Context, t *asynq.Task) error {
	p, err := ParseExportPayload(t)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	taskID, _ := asynq.GetTaskID(ctx)
	retried, _ := asynq.GetRetryCount(ctx)
	log := w.logger.With(
		"task_id", taskID,
		"export_id", p.ExportID,
		"project_id", p.ProjectID,
		"retry", retried,
	)
	if p.RequestID != "" {
		ctx = logger.WithRequestID(ctx, p.RequestID)
		log = log.With("request_id", p.RequestID)
	}
	ctx = logger.WithLogger(ctx, log)

	err = w.runner.RunExport(ctx, p.ExportID, p.ProjectID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrExportLeased):
		log.Info("export lease held by another delivery, retrying later")
		return err
	case errors.Is(err, service.ErrExportAlreadyClaimed):
		log.Info("export already claimed or finished, acknowledging job")
		return nil
	case !domain.IsRetryable(err):
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	default:
		return err
	}
}

func (w *Worker) handleError(ctx context.Context, t *asynq.Task, err error) {
	taskID, _ := asynq.GetTaskID(ctx)
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	log := w.logger.With(
		"task_id", taskID,
		"task_type", t.Type(),
		"retry", retried,
		"max_retry", maxRetry,
		"error", redact.Error(err),
	)
	switch {
	case errors.Is(err, asynq.SkipRetry):
		log.Error("export job failed permanently")
	case errors.Is(err, service.ErrExportLeased) && retried < maxRetry:
		log.Info("export job deferred until the claim lease expires")
	case retried >= maxRetry:
		log.Error("export job failed after final retry")
	default:
		log.Warn("export job failed, will retry")
	}
}

// maxBackoffShift keeps base<<n from overflowing.
const maxBackoffShift = 16

// RetryDelay returns an asynq retry delay function that waits base, then
// 2*base, 4*base and so on, where n is the number of retries so far. A job
// deferred by a held claim waits one lease instead.
func RetryDelay(base, lease time.Duration) asynq.RetryDelayFunc {
	return func(n int, err error, _ *asynq.Task) time.Duration {
		if lease > 0 && errors.Is(err, service.ErrExportLeased) {
			return lease
		}
		if n < 0 {
			n = 0
		}
		if n > maxBackoffShift {
			n = maxBackoffShift
		}
		return base << n
	}
}

// asynqLogger routes asynq's internal logging through slog.
type asynqLogger struct {
	l *slog.Logger
}

func (a asynqLogger) Debug(args ...any) { a.l.Debug(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...any) { a.l.Error(fmt.Sprint(args...)) }

func (a asynqLogger) Fatal(args ...any) {
	a.l.Error(fmt.Sprint(args...))
	os.Exit(1)
}
