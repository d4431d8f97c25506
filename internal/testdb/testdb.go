// Package testdb provides a disposable, migrated PostgreSQL database for
// integration tests. It starts a container with testcontainers unless
// TASKBOARD_TEST_DB_URL points at an existing database.
package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/phrazzld/taskboard-api/internal/platform/postgres"
)

// URLEnv names the variable that overrides container startup.
const URLEnv = "TASKBOARD_TEST_DB_URL"

// Database is a migrated test database and the container backing it, if any.
type Database struct {
	DB        *sql.DB
	URL       string
	container testcontainers.Container
}

// Start provisions and migrates a database. Call Close when done, typically
// from TestMain.
func Start(ctx context.Context) (*Database, error) {
	d := &Database{URL: os.Getenv(URLEnv)}

	if d.URL == "" {
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "postgres:16-alpine",
				ExposedPorts: []string{"5432/tcp"},
				Env: map[string]string{
					"POSTGRES_USER":     "taskboard",
					"POSTGRES_PASSWORD": "taskboard",
					"POSTGRES_DB":       "taskboard_test",
				},
				WaitingFor: wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60 * time.Second),
			},
			Started: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to start postgres container: %w", err)
		}
		d.container = container

		host, err := container.Host(ctx)
		if err != nil {
			_ = d.Close(ctx)
			return nil, fmt.Errorf("failed to get container host: %w", err)
		}
		port, err := container.MappedPort(ctx, "5432")
		if err != nil {
			_ = d.Close(ctx)
			return nil, fmt.Errorf("failed to get mapped port: %w", err)
		}
		d.URL = fmt.Sprintf("postgres://taskboard:taskboard@%s:%s/taskboard_test?sslmode=disable", host, port.Port())
	}

	db, err := sql.Open("pgx", d.URL)
	if err != nil {
		_ = d.Close(ctx)
		return nil, fmt.Errorf("failed to open test database: %w", err)
	}
	d.DB = db

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = d.Close(ctx)
		return nil, fmt.Errorf("failed to ping test database: %w", err)
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := postgres.Migrate(db, "up", quiet); err != nil {
		_ = d.Close(ctx)
		return nil, err
	}
	return d, nil
}

// Close releases the connection pool and terminates the container.
func (d *Database) Close(ctx context.Context) error {
	if d.DB != nil {
		_ = d.DB.Close()
	}
	if d.container != nil {
		return d.container.Terminate(ctx)
	}
	return nil
}

// WithTx runs fn inside a transaction that is always rolled back, so tests
// sharing the database stay isolated.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	fn(t, tx)
}
