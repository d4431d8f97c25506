package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/mocks"
	"github.com/phrazzld/taskboard-api/internal/platform/logger"
	"github.com/phrazzld/taskboard-api/internal/service"
)

type queue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

func newQueue(t *testing.T) *queue {
	t.Helper()
	mr := miniredis.RunT(t)
	opt := asynq.RedisClientOpt{Addr: mr.Addr()}

	q := &queue{client: asynq.NewClient(opt), inspector: asynq.NewInspector(opt)}
	t.Cleanup(func() {
		_ = q.client.Close()
		_ = q.inspector.Close()
	})
	return q
}

// enqueuerFunc adapts a function to Enqueuer.
type enqueuerFunc func(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)

func (f enqueuerFunc) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return f(ctx, task, opts...)
}

func newDispatcher(t *testing.T, enq Enqueuer, lookup TaskLookup, up bool, runner Runner) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(enq, lookup, availability(up), runner, DefaultConfig(), quietLogger())
	require.NoError(t, err)
	return d
}

func TestNewDispatcherRequiresRunner(t *testing.T) {
	_, err := NewDispatcher(nil, nil, availability(true), nil, DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestDispatchQueuesWhenBrokerAvailable(t *testing.T) {
	q := newQueue(t)
	runner := &mocks.MockExportRunner{}
	d := newDispatcher(t, q.client, q.inspector, true, runner)
	exportID, projectID, userID := uuid.New(), uuid.New(), uuid.New()

	ctx := logger.WithRequestID(context.Background(), "host/abc-000042")
	mode, err := d.Dispatch(ctx, exportID, projectID, userID)
	require.NoError(t, err)
	assert.Equal(t, DispatchModeQueued, mode)
	runner.AssertNotCalled(t, "RunExport", mock.Anything, mock.Anything, mock.Anything)

	info, err := q.inspector.GetTaskInfo(QueueExports, exportID.String())
	require.NoError(t, err)
	assert.Equal(t, TypeExportGenerate, info.Type)
	assert.Equal(t, QueueExports, info.Queue)
	assert.Equal(t, 2, info.MaxRetry)
	assert.Equal(t, 2*time.Minute, info.Timeout)
	assert.Equal(t, asynq.TaskStatePending, info.State)

	p, err := ParseExportPayload(asynq.NewTask(info.Type, info.Payload))
	require.NoError(t, err)
	assert.Equal(t, ExportPayload{
		ExportID:  exportID,
		ProjectID: projectID,
		UserID:    userID,
		RequestID: "host/abc-000042",
	}, p)
}

func TestDispatchTwiceKeepsOneQueuedJob(t *testing.T) {
	q := newQueue(t)
	d := newDispatcher(t, q.client, q.inspector, true, &mocks.MockExportRunner{})
	exportID, projectID, userID := uuid.New(), uuid.New(), uuid.New()

	_, err := d.Dispatch(context.Background(), exportID, projectID, userID)
	require.NoError(t, err)
	mode, err := d.Dispatch(context.Background(), exportID, projectID, userID)
	require.NoError(t, err, "a job already queued under the export ID counts as success")
	assert.Equal(t, DispatchModeQueued, mode)

	info, err := q.inspector.GetTaskInfo(QueueExports, exportID.String())
	require.NoError(t, err)
	assert.Equal(t, asynq.TaskStatePending, info.State)
}

func TestDispatchReplacesArchivedJob(t *testing.T) {
	q := newQueue(t)
	d := newDispatcher(t, q.client, q.inspector, true, &mocks.MockExportRunner{})
	exportID, projectID, userID := uuid.New(), uuid.New(), uuid.New()

	_, err := d.Dispatch(context.Background(), exportID, projectID, userID)
	require.NoError(t, err)
	require.NoError(t, q.inspector.ArchiveTask(QueueExports, exportID.String()))

	mode, err := d.Dispatch(context.Background(), exportID, projectID, userID)
	require.NoError(t, err)
	assert.Equal(t, DispatchModeQueued, mode)

	info, err := q.inspector.GetTaskInfo(QueueExports, exportID.String())
	require.NoError(t, err)
	assert.Equal(t, asynq.TaskStatePending, info.State)
}

func TestDispatchRunsInlineWhenBrokerUnavailable(t *testing.T) {
	q := newQueue(t)
	exportID, projectID := uuid.New(), uuid.New()
	runner := &mocks.MockExportRunner{}
	runner.On("RunExport", mock.Anything, exportID, projectID).Return(nil).Once()
	d := newDispatcher(t, q.client, q.inspector, false, runner)

	mode, err := d.Dispatch(context.Background(), exportID, projectID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, DispatchModeSync, mode)
	runner.AssertExpectations(t)

	_, err = q.inspector.GetTaskInfo(QueueExports, exportID.String())
	assert.Error(t, err, "nothing may be queued in inline mode")
}

func TestDispatchInlineWithoutQueue(t *testing.T) {
	exportID, projectID := uuid.New(), uuid.New()
	runner := &mocks.MockExportRunner{}
	runner.On("RunExport", mock.Anything, exportID, projectID).Return(nil).Once()
	d := newDispatcher(t, nil, nil, true, runner)

	mode, err := d.Dispatch(context.Background(), exportID, projectID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, DispatchModeSync, mode)
	runner.AssertExpectations(t)
}

func TestDispatchInlineResults(t *testing.T) {
	failure := domain.NewInternalError(errors.New("disk full"), false)
	tests := []struct {
		name    string
		runErr  error
		wantErr error
	}{
		{"success", nil, nil},
		{"claimed elsewhere", service.ErrExportAlreadyClaimed, nil},
		{"lease held elsewhere", service.ErrExportLeased, nil},
		{"failure propagates", failure, failure},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			runner := &mocks.MockExportRunner{}
			runner.On("RunExport", mock.Anything, mock.Anything, mock.Anything).Return(tc.runErr)
			d := newDispatcher(t, nil, nil, false, runner)

			mode, err := d.Dispatch(context.Background(), uuid.New(), uuid.New(), uuid.New())
			assert.Equal(t, DispatchModeSync, mode)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestDispatchFallsBackWhenEnqueueFails(t *testing.T) {
	exportID, projectID := uuid.New(), uuid.New()
	runner := &mocks.MockExportRunner{}
	runner.On("RunExport", mock.Anything, exportID, projectID).Return(nil).Once()
	enq := enqueuerFunc(func(context.Context, *asynq.Task, ...asynq.Option) (*asynq.TaskInfo, error) {
		return nil, errors.New("connection reset by peer")
	})
	d := newDispatcher(t, enq, nil, true, runner)

	mode, err := d.Dispatch(context.Background(), exportID, projectID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, DispatchModeSync, mode)
	runner.AssertExpectations(t)
}

func TestDispatchFallsBackWhenBrokerDiesAfterHealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	opt := asynq.RedisClientOpt{Addr: mr.Addr(), DialTimeout: 100 * time.Millisecond}
	client := asynq.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	exportID, projectID := uuid.New(), uuid.New()
	runner := &mocks.MockExportRunner{}
	runner.On("RunExport", mock.Anything, exportID, projectID).Return(nil).Once()
	d := newDispatcher(t, client, nil, true, runner)

	mode, err := d.Dispatch(context.Background(), exportID, projectID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, DispatchModeSync, mode)
	runner.AssertExpectations(t)
}
