//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/postgres"
	"github.com/phrazzld/taskboard-api/internal/store"
	"github.com/phrazzld/taskboard-api/internal/testdb"
)

var testDB *testdb.Database

func TestMain(m *testing.M) {
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	var err error
	testDB, err = testdb.Start(ctx)
	if err != nil {
		log.Fatalf("failed to start test database: %v", err)
	}

	code := m.Run()
	_ = testDB.Close(ctx)
	os.Exit(code)
}

type stores struct {
	users    *postgres.PostgresUserStore
	projects *postgres.PostgresProjectStore
	tasks    *postgres.PostgresTaskStore
	exports  *postgres.PostgresExportStore
}

func newStores(tx *sql.Tx) stores {
	return stores{
		users:    postgres.NewPostgresUserStore(tx, nil),
		projects: postgres.NewPostgresProjectStore(tx, nil),
		tasks:    postgres.NewPostgresTaskStore(tx, nil),
		exports:  postgres.NewPostgresExportStore(tx, nil),
	}
}

func seedUser(t *testing.T, s stores, email string) *domain.User {
	t.Helper()
	u, err := domain.NewUser("Test User", email, "secret123")
	require.NoError(t, err)
	u.HashedPassword = "$2a$10$notarealhash"
	require.NoError(t, s.users.Create(context.Background(), u))
	return u
}

func TestProjectAndTaskLifecycle(t *testing.T) {
	testdb.WithTx(t, testDB.DB, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		s := newStores(tx)
		owner := seedUser(t, s, "owner@example.com")
		assignee := seedUser(t, s, "assignee@example.com")

		_, err := s.users.GetByEmail(ctx, "OWNER@example.com")
		require.NoError(t, err)
		assert.ErrorIs(t, s.users.Create(ctx, &domain.User{
			ID: uuid.New(), Name: "Dup", Email: "owner@example.com", HashedPassword: "x",
		}), store.ErrEmailExists)

		p, err := domain.NewProject(owner.ID, "Roadmap", nil)
		require.NoError(t, err)
		require.NoError(t, s.projects.Create(ctx, p))

		first, err := domain.NewTask(p.ID, "First")
		require.NoError(t, err)
		first.AssignedTo = &assignee.ID
		require.NoError(t, s.tasks.Create(ctx, first))

		second, err := domain.NewTask(p.ID, "Second")
		require.NoError(t, err)
		second.CreatedAt = first.CreatedAt.Add(time.Second)
		require.NoError(t, s.tasks.Create(ctx, second))

		items, err := s.projects.ListByOwner(ctx, owner.ID)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, 2, items[0].TaskCount)

		detail, err := s.projects.GetDetail(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, detail.Tasks, 2)
		assert.Equal(t, "Second", detail.Tasks[0].Title, "detail lists newest first")
		require.NotNil(t, detail.Tasks[1].Assignee)
		assert.Equal(t, "assignee@example.com", detail.Tasks[1].Assignee.Email)

		ordered, err := s.tasks.ListByProject(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "First", ordered[0].Title, "export order is oldest first")

		bogus := uuid.New()
		first.AssignedTo = &bogus
		assert.ErrorIs(t, s.tasks.Update(ctx, first), store.ErrInvalidEntity)
	})
}

func TestExportClaimLifecycle(t *testing.T) {
	testdb.WithTx(t, testDB.DB, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		s := newStores(tx)
		owner := seedUser(t, s, "exporter@example.com")
		p, err := domain.NewProject(owner.ID, "Roadmap", nil)
		require.NoError(t, err)
		require.NoError(t, s.projects.Create(ctx, p))

		e, err := domain.NewExport(owner.ID, p.ID)
		require.NoError(t, err)
		require.NoError(t, s.exports.Create(ctx, e))

		now := time.Now().UTC()
		lease := time.Minute

		claimed, err := s.exports.Claim(ctx, e.ID, now, lease)
		require.NoError(t, err)
		assert.Equal(t, domain.ExportStatusProcessing, claimed.Status)
		assert.Equal(t, "Roadmap", claimed.ProjectName)

		_, err = s.exports.Claim(ctx, e.ID, now.Add(time.Second), lease)
		assert.ErrorIs(t, err, store.ErrExportLeased, "an active lease blocks a second claim")

		reclaimed, err := s.exports.Claim(ctx, e.ID, now.Add(2*lease), lease)
		require.NoError(t, err, "an expired lease may be re-claimed")
		assert.Equal(t, 2, reclaimed.Attempts)

		require.NoError(t, s.exports.MarkCompleted(ctx, e.ID, "project-x.json", now))
		assert.ErrorIs(t, s.exports.MarkFailed(ctx, e.ID, "late failure"), store.ErrExportNotProcessing)

		_, err = s.exports.Claim(ctx, e.ID, now.Add(time.Hour), lease)
		assert.ErrorIs(t, err, store.ErrExportNotClaimable, "terminal exports are never re-claimed")

		got, err := s.exports.GetByID(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ExportStatusCompleted, got.Status)
		require.NotNil(t, got.FilePath)
		assert.Equal(t, "project-x.json", *got.FilePath)
	})
}

func TestExportFilePathConstraint(t *testing.T) {
	testdb.WithTx(t, testDB.DB, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		s := newStores(tx)
		owner := seedUser(t, s, "constraint@example.com")
		p, err := domain.NewProject(owner.ID, "Roadmap", nil)
		require.NoError(t, err)
		require.NoError(t, s.projects.Create(ctx, p))
		e, err := domain.NewExport(owner.ID, p.ID)
		require.NoError(t, err)
		require.NoError(t, s.exports.Create(ctx, e))

		_, err = tx.ExecContext(ctx, `UPDATE exports SET file_path = 'x.json' WHERE id = $1`, e.ID)
		assert.ErrorIs(t, postgres.MapError(err), store.ErrInvalidEntity)
	})
}
