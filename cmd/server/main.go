// Package main implements the entry point for the taskboard API. The same
// binary serves HTTP, runs the standalone export worker and applies database
// migrations.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/phrazzld/taskboard-api/internal/config"
	"github.com/phrazzld/taskboard-api/internal/platform/logger"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "taskboard-api",
		Short:         "Project and task management API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"config file (default ./config.yaml or ./config/config.yaml when present)")

	rootCmd.AddCommand(serveCmd(opts))
	rootCmd.AddCommand(workerCmd(opts))
	rootCmd.AddCommand(migrateCmd(opts))
	rootCmd.AddCommand(hashPasswordCmd())

	return rootCmd
}

// loadAppConfig loads the configuration from the --config file when given,
// otherwise from the default locations and the environment.
func loadAppConfig(opts *rootOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// bootstrap loads configuration and sets up logging. The returned function
// releases the log file, if any.
func bootstrap(opts *rootOptions) (*config.Config, *slog.Logger, func(), error) {
	cfg, err := loadAppConfig(opts)
	if err != nil {
		return nil, nil, nil, err
	}

	l, closeLog, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("Configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"run_worker_in_server", cfg.Task.RunWorkerInServer)
	l.Debug("Redis configuration", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)

	return cfg, l, func() {
		if err := closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
	}, nil
}
