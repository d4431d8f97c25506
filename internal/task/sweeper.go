package task

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/store"
)

// ExportDispatcher starts an export. *Dispatcher satisfies it.
type ExportDispatcher interface {
	Dispatch(ctx context.Context, exportID, projectID, userID uuid.UUID) (DispatchMode, error)
}

// Sweeper periodically re-dispatches exports that have been PENDING for too
// long or whose PROCESSING claim has expired.
type Sweeper struct {
	exports    store.ExportStore
	dispatcher ExportDispatcher
	config     Config
	now        func() time.Time
	logger     *slog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	startOnce  sync.Once
}

// NewSweeper creates a Sweeper. Zero CheckInterval and SweepBatch fall back
// to DefaultConfig.
func NewSweeper(exports store.ExportStore, dispatcher ExportDispatcher, config Config, logger *slog.Logger) *Sweeper {
	defaults := DefaultConfig()
	if config.CheckInterval <= 0 {
		config.CheckInterval = defaults.CheckInterval
	}
	if config.SweepBatch <= 0 {
		config.SweepBatch = defaults.SweepBatch
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		exports:    exports,
		dispatcher: dispatcher,
		config:     config,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With("component", "export_sweeper"),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start runs a sweep immediately and then every CheckInterval until Stop.
func (s *Sweeper) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.monitor()
	})
}

// Stop cancels the sweeper and waits for an in-flight sweep to return.
func (s *Sweeper) Stop() {
	s.cancelFunc()
	s.wg.Wait()
}

func (s *Sweeper) monitor() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(s.ctx); err != nil && s.ctx.Err() == nil {
			s.logger.Error("failed to sweep stale exports", "error", err)
		}

		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep runs one pass and returns the number of exports dispatched again.
// A failure to dispatch one export is logged and does not stop the pass.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	stale, err := s.exports.ListStale(ctx, now.Add(-s.config.StaleAge), now.Add(-s.config.Lease), s.config.SweepBatch)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}
	s.logger.Info("found stale exports", "count", len(stale))

	dispatched := 0
	for _, e := range stale {
		if ctx.Err() != nil {
			return dispatched, ctx.Err()
		}

		runCtx, cancel := s.runContext(ctx)
		mode, err := s.dispatcher.Dispatch(runCtx, e.ID, e.ProjectID, e.UserID)
		cancel()
		if err != nil {
			s.logger.Error("failed to re-dispatch stale export",
				"export_id", e.ID,
				"status", e.Status,
				"error", err)
			continue
		}
		dispatched++
		s.logger.Info("re-dispatched stale export",
			"export_id", e.ID,
			"status", e.Status,
			"mode", mode)
	}
	return dispatched, nil
}

// runContext bounds an inline run the way the queue's task timeout bounds a
// queued one.
func (s *Sweeper) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.Timeout)
}
