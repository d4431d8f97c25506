package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phrazzld/taskboard-api/internal/platform/postgres"
)

var migrationCommands = []string{"up", "down", "reset", "status", "version"}

func migrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down|reset|status|version]",
		Short: "Run database migrations",
		Long: `Run the embedded goose migrations against database.url.

Examples:
  taskboard-api migrate up
  taskboard-api migrate status --config ./config/prod.yaml`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), validMigrationCommand),
		ValidArgs: migrationCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, opts, args[0])
		},
	}
}

func validMigrationCommand(_ *cobra.Command, args []string) error {
	if !slices.Contains(migrationCommands, args[0]) {
		return fmt.Errorf("unknown migration command %q (want one of %s)",
			args[0], strings.Join(migrationCommands, ", "))
	}
	return nil
}

func runMigrate(cmd *cobra.Command, opts *rootOptions, command string) error {
	cfg, log, closeLog, err := bootstrap(opts)
	if err != nil {
		return err
	}
	defer closeLog()

	db, err := setupAppDatabase(cmd.Context(), cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	log.Info("Executing migrations", "command", command)
	return postgres.Migrate(db, command, log)
}
