package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/mocks"
)

var sweepNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

// recordingDispatcher remembers what it was asked to dispatch.
type recordingDispatcher struct {
	mu    sync.Mutex
	ids   []uuid.UUID
	fail  map[uuid.UUID]error
	calls chan struct{}
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{fail: map[uuid.UUID]error{}, calls: make(chan struct{}, 16)}
}

func (r *recordingDispatcher) Dispatch(_ context.Context, exportID, _, _ uuid.UUID) (DispatchMode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, exportID)
	select {
	case r.calls <- struct{}{}:
	default:
	}
	if err := r.fail[exportID]; err != nil {
		return "", err
	}
	return DispatchModeQueued, nil
}

func (r *recordingDispatcher) dispatched() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.ids...)
}

type sweepFixture struct {
	mem     *mocks.MemStore
	userID  uuid.UUID
	project uuid.UUID
}

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()
	ctx := context.Background()
	mem := mocks.NewMemStore()

	u, err := domain.NewUser("Grace Hopper", "grace@example.com", "secret123")
	require.NoError(t, err)
	u.HashedPassword = "not-a-real-hash"
	require.NoError(t, mem.Users().Create(ctx, u))

	p, err := domain.NewProject(u.ID, "Compiler", nil)
	require.NoError(t, err)
	require.NoError(t, mem.Projects().Create(ctx, p))

	return &sweepFixture{mem: mem, userID: u.ID, project: p.ID}
}

// export stores an export created age before sweepNow. A non-zero claimAge
// claims it that long before sweepNow.
func (f *sweepFixture) export(t *testing.T, age, claimAge time.Duration) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	e, err := domain.NewExport(f.userID, f.project)
	require.NoError(t, err)
	e.CreatedAt = sweepNow.Add(-age)
	require.NoError(t, f.mem.Exports().Create(ctx, e))
	if claimAge > 0 {
		_, err := f.mem.Exports().Claim(ctx, e.ID, sweepNow.Add(-claimAge), time.Hour)
		require.NoError(t, err)
	}
	return e.ID
}

func newTestSweeper(f *sweepFixture, d ExportDispatcher) *Sweeper {
	cfg := DefaultConfig()
	cfg.StaleAge = 10 * time.Minute
	cfg.Lease = 5 * time.Minute
	s := NewSweeper(f.mem.Exports(), d, cfg, quietLogger())
	s.now = func() time.Time { return sweepNow }
	return s
}

func TestSweepRedispatchesStaleExports(t *testing.T) {
	f := newSweepFixture(t)
	stalePending := f.export(t, 30*time.Minute, 0)
	freshPending := f.export(t, time.Minute, 0)
	expiredClaim := f.export(t, 20*time.Minute, 10*time.Minute)
	liveClaim := f.export(t, 40*time.Minute, time.Minute)

	d := newRecordingDispatcher()
	n, err := newTestSweeper(f, d).Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, []uuid.UUID{stalePending, expiredClaim}, d.dispatched(), "oldest first")
	assert.NotContains(t, d.dispatched(), freshPending)
	assert.NotContains(t, d.dispatched(), liveClaim)
}

func TestSweepSkipsTerminalExports(t *testing.T) {
	f := newSweepFixture(t)
	id := f.export(t, time.Hour, 30*time.Minute)
	require.NoError(t, f.mem.Exports().MarkCompleted(context.Background(), id, "done.json", sweepNow))

	d := newRecordingDispatcher()
	n, err := newTestSweeper(f, d).Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, d.dispatched())
}

func TestSweepContinuesPastDispatchFailure(t *testing.T) {
	f := newSweepFixture(t)
	first := f.export(t, 50*time.Minute, 0)
	second := f.export(t, 40*time.Minute, 0)

	d := newRecordingDispatcher()
	d.fail[first] = errors.New("runner exploded")
	n, err := newTestSweeper(f, d).Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, []uuid.UUID{first, second}, d.dispatched())
}

func TestSweepHonorsBatchSize(t *testing.T) {
	f := newSweepFixture(t)
	for i := 0; i < 5; i++ {
		f.export(t, time.Duration(20+i)*time.Minute, 0)
	}

	d := newRecordingDispatcher()
	s := newTestSweeper(f, d)
	s.config.SweepBatch = 3
	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSweepReportsStoreError(t *testing.T) {
	f := newSweepFixture(t)
	f.mem.SetError("ExportStore.ListStale", errors.New("connection refused"))

	_, err := newTestSweeper(f, newRecordingDispatcher()).Sweep(context.Background())
	assert.Error(t, err)
}

func TestSweeperStartSweepsImmediatelyAndStops(t *testing.T) {
	f := newSweepFixture(t)
	id := f.export(t, time.Hour, 0)

	d := newRecordingDispatcher()
	s := newTestSweeper(f, d)
	s.config.CheckInterval = time.Hour
	s.Start()
	s.Start()

	select {
	case <-d.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not run on start")
	}
	s.Stop()

	assert.Equal(t, []uuid.UUID{id}, d.dispatched())
}
