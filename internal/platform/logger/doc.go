// Package logger provides structured logging functionality for the application.
//
// It builds JSON log/slog loggers with configurable levels, optionally fanning
// records out to a log file, and carries request-scoped loggers in contexts.
package logger
