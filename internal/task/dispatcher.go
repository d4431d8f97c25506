package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/phrazzld/taskboard-api/internal/platform/logger"
	"github.com/phrazzld/taskboard-api/internal/service"
)

// DispatchMode tells how an export was handed off.
type DispatchMode string

const (
	// DispatchModeQueued means the job was placed on the queue.
	DispatchModeQueued DispatchMode = "queued"

	// DispatchModeSync means the export ran inline before Dispatch returned.
	DispatchModeSync DispatchMode = "sync"
)

// Enqueuer places tasks on the queue. *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskLookup reads and removes queued tasks. *asynq.Inspector satisfies it.
type TaskLookup interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
}

// Dispatcher hands exports to the queue when the broker is healthy and runs
// them inline when it is not.
type Dispatcher struct {
	enqueuer Enqueuer
	lookup   TaskLookup
	avail    Availability
	runner   Runner
	config   Config
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. enqueuer and lookup may be nil, in
// which case every export runs inline.
func NewDispatcher(
	enqueuer Enqueuer,
	lookup TaskLookup,
	avail Availability,
	runner Runner,
	config Config,
	logger *slog.Logger,
) (*Dispatcher, error) {
	if runner == nil {
		return nil, errors.New("dispatcher requires an export runner")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		enqueuer: enqueuer,
		lookup:   lookup,
		avail:    avail,
		runner:   runner,
		config:   config,
		logger:   logger.With("component", "export_dispatcher"),
	}, nil
}

// Dispatch starts an export. When queued it returns as soon as the job is
// stored. When run inline the returned error is RunExport's, except that an
// export already claimed elsewhere counts as success.
func (d *Dispatcher) Dispatch(ctx context.Context, exportID, projectID, userID uuid.UUID) (DispatchMode, error) {
	log := logger.FromContextOrDefault(ctx, d.logger).With("export_id", exportID)

	if d.queueAvailable() {
		err := d.enqueue(ctx, ExportPayload{
			ExportID:  exportID,
			ProjectID: projectID,
			UserID:    userID,
			RequestID: logger.RequestIDFromContext(ctx),
		})
		if err == nil {
			log.Info("export job queued")
			return DispatchModeQueued, nil
		}
		log.Warn("failed to enqueue export job, running inline", "error", err)
	} else {
		log.Info("queue unavailable, running export inline")
	}

	err := d.runner.RunExport(ctx, exportID, projectID)
	if errors.Is(err, service.ErrExportAlreadyClaimed) {
		return DispatchModeSync, nil
	}
	return DispatchModeSync, err
}

func (d *Dispatcher) queueAvailable() bool {
	if d.enqueuer == nil {
		return false
	}
	return d.avail == nil || d.avail.Available()
}

// Options returns the asynq options an export job is enqueued with.
func (d *Dispatcher) Options(exportID uuid.UUID) []asynq.Option {
	return []asynq.Option{
		asynq.Queue(QueueExports),
		asynq.TaskID(exportID.String()),
		asynq.MaxRetry(d.config.maxRetry()),
		asynq.Timeout(d.config.Timeout),
	}
}

// enqueue stores the job. A job with the same ID that is still queued or
// running makes this a no-op. An archived one, left behind when its retries
// ran out, is removed and replaced.
func (d *Dispatcher) enqueue(ctx context.Context, p ExportPayload) error {
	t, err := NewExportTask(p)
	if err != nil {
		return err
	}

	_, err = d.enqueuer.EnqueueContext(ctx, t, d.Options(p.ExportID)...)
	if !errors.Is(err, asynq.ErrTaskIDConflict) {
		return err
	}

	replaced, err := d.replaceArchived(p.ExportID.String())
	if err != nil || !replaced {
		return err
	}
	if _, err := d.enqueuer.EnqueueContext(ctx, t, d.Options(p.ExportID)...); err != nil &&
		!errors.Is(err, asynq.ErrTaskIDConflict) {
		return err
	}
	return nil
}

func (d *Dispatcher) replaceArchived(id string) (bool, error) {
	if d.lookup == nil {
		return false, nil
	}
	info, err := d.lookup.GetTaskInfo(QueueExports, id)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect export job: %w", err)
	}
	if info.State != asynq.TaskStateArchived {
		return false, nil
	}
	if err := d.lookup.DeleteTask(QueueExports, id); err != nil {
		return false, fmt.Errorf("failed to delete archived export job: %w", err)
	}
	d.logger.Info("replacing archived export job", "export_id", id)
	return true, nil
}
