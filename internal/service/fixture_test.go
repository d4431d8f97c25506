package service_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/mocks"
	"github.com/phrazzld/taskboard-api/internal/platform/artifact"
)

const artifactDir = "/exports"

// fixture bundles the in-memory collaborators shared by the service tests.
type fixture struct {
	mem       *mocks.MemStore
	cache     *mocks.MemCache
	fs        afero.Fs
	artifacts *artifact.Store
	db        *sql.DB
	sqlMock   sqlmock.Sqlmock
	clock     *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fs := afero.NewMemMapFs()
	artifacts, err := artifact.NewStore(fs, artifactDir)
	require.NoError(t, err)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	return &fixture{
		mem:       mocks.NewMemStore(),
		cache:     mocks.NewMemCache(),
		fs:        fs,
		artifacts: artifacts,
		db:        db,
		sqlMock:   mock,
		clock:     newClock(time.Date(2026, 10, 15, 9, 30, 12, 345_000_000, time.UTC)),
	}
}

// expectTx registers one transaction that ends in a commit or a rollback.
func (f *fixture) expectTx(commit bool) {
	f.sqlMock.ExpectBegin()
	if commit {
		f.sqlMock.ExpectCommit()
	} else {
		f.sqlMock.ExpectRollback()
	}
}

func (f *fixture) seedUser(t *testing.T, name, email string) *domain.User {
	t.Helper()
	u, err := domain.NewUser(name, email, "secret123")
	require.NoError(t, err)
	u.HashedPassword = "not-a-real-hash"
	require.NoError(t, f.mem.Users().Create(context.Background(), u))
	return u
}

func (f *fixture) seedProject(t *testing.T, ownerID uuid.UUID, name string, createdAt time.Time) *domain.Project {
	t.Helper()
	p, err := domain.NewProject(ownerID, name, nil)
	require.NoError(t, err)
	p.CreatedAt = createdAt
	require.NoError(t, f.mem.Projects().Create(context.Background(), p))
	return p
}

func (f *fixture) seedTask(t *testing.T, projectID uuid.UUID, title string, mutate func(*domain.Task)) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(projectID, title)
	require.NoError(t, err)
	if mutate != nil {
		mutate(task)
	}
	require.NoError(t, f.mem.Tasks().Create(context.Background(), task))
	return task
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func ptr[T any](v T) *T { return &v }
