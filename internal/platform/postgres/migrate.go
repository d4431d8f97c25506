package postgres

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationsDir is the directory inside the embedded filesystem.
const MigrationsDir = "migrations"

// MigrationTable is the goose version table.
const MigrationTable = "schema_migrations"

// gooseMu serialises goose's package-level configuration.
var gooseMu sync.Mutex

// slogGooseLogger routes goose output through slog.
type slogGooseLogger struct {
	logger *slog.Logger
}

func (l *slogGooseLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *slogGooseLogger) Fatalf(format string, v ...any) {
	// goose calls Fatalf only from its CLI helpers, which are not used here.
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Migrate runs a goose command (up, down, reset, status, version) against db
// using the embedded migrations.
func Migrate(db *sql.DB, command string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	goose.SetTableName(MigrationTable)
	goose.SetLogger(&slogGooseLogger{logger: logger.With("component", "migrations")})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	var err error
	switch command {
	case "up":
		err = goose.Up(db, MigrationsDir)
	case "down":
		err = goose.Down(db, MigrationsDir)
	case "reset":
		err = goose.Reset(db, MigrationsDir)
	case "status":
		err = goose.Status(db, MigrationsDir)
	case "version":
		err = goose.Version(db, MigrationsDir)
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}
	return nil
}
