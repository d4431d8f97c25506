package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/phrazzld/taskboard-api/internal/config"
)

const (
	// TypeExportGenerate is the asynq task type of export jobs.
	TypeExportGenerate = "export:generate"

	// QueueExports is the asynq queue export jobs are placed on.
	QueueExports = "exports"
)

// Runner executes a single export. service.ExportService satisfies it.
type Runner interface {
	RunExport(ctx context.Context, exportID, projectID uuid.UUID) error
}

// Availability reports whether the queue broker is reachable.
type Availability interface {
	Available() bool
}

// ExportPayload is the JSON body of an export job.
type ExportPayload struct {
	ExportID  uuid.UUID `json:"export_id"`
	ProjectID uuid.UUID `json:"project_id"`
	UserID    uuid.UUID `json:"user_id"`

	// RequestID is the ID of the HTTP request that created the export, so
	// worker logs can be matched to it.
	RequestID string `json:"request_id,omitempty"`
}

// NewExportTask encodes p as an asynq task.
func NewExportTask(p ExportPayload) (*asynq.Task, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode export payload: %w", err)
	}
	return asynq.NewTask(TypeExportGenerate, body), nil
}

// ParseExportPayload decodes the payload of an export task.
func ParseExportPayload(t *asynq.Task) (ExportPayload, error) {
	var p ExportPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("failed to decode export payload: %w", err)
	}
	if p.ExportID == uuid.Nil {
		return p, fmt.Errorf("export payload has no export_id")
	}
	return p, nil
}

// Config holds settings shared by the dispatcher, the worker and the
// sweeper.
type Config struct {
	// Concurrency is the number of export jobs a worker runs at once.
	Concurrency int

	// MaxAttempts is the total number of deliveries per job, first one
	// included.
	MaxAttempts int

	// BackoffBase is the delay before the first retry; each later retry
	// doubles it.
	BackoffBase time.Duration

	// Timeout bounds a single delivery.
	Timeout time.Duration

	// StaleAge is how long an export may stay PENDING before the sweeper
	// dispatches it again.
	StaleAge time.Duration

	// CheckInterval is how often the sweeper runs.
	CheckInterval time.Duration

	// Lease is the export claim lease. PROCESSING exports claimed longer
	// ago than this are swept as well.
	Lease time.Duration

	// SweepBatch caps the exports handled per sweep.
	SweepBatch int
}

// DefaultConfig returns a Config with the same defaults as the config
// package.
func DefaultConfig() Config {
	return Config{
		Concurrency:   2,
		MaxAttempts:   3,
		BackoffBase:   2 * time.Second,
		Timeout:       2 * time.Minute,
		StaleAge:      10 * time.Minute,
		CheckInterval: 5 * time.Minute,
		Lease:         5 * time.Minute,
		SweepBatch:    100,
	}
}

// NewConfig builds a Config from the application configuration.
func NewConfig(tc config.TaskConfig, ec config.ExportConfig) Config {
	cfg := DefaultConfig()
	cfg.Concurrency = tc.WorkerConcurrency
	cfg.MaxAttempts = tc.MaxAttempts
	cfg.BackoffBase = tc.BackoffBase()
	cfg.Timeout = tc.Timeout()
	cfg.StaleAge = tc.StalePendingAge()
	cfg.CheckInterval = tc.StaleCheckInterval()
	cfg.Lease = ec.Lease()
	return cfg
}

// maxRetry converts MaxAttempts to asynq's retry count.
func (c Config) maxRetry() int {
	if c.MaxAttempts <= 1 {
		return 0
	}
	return c.MaxAttempts - 1
}

// RedisOpt returns asynq connection options for the configured Redis.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout(),
		ReadTimeout:  cfg.DialTimeout(),
		WriteTimeout: cfg.DialTimeout(),
	}
}
