package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"

	"github.com/phrazzld/taskboard-api/internal/config"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
)

// ParseLevel converts a configured level name to a slog.Level.
// Unknown names map to info.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Setup initializes the application's logger from cfg and installs it as the
// slog default. Records go to stdout as JSON; when cfg.LogFile is set they are
// also appended to that file. The returned close function releases the file.
func Setup(cfg config.ServerConfig) (*slog.Logger, func() error, error) {
	level, ok := ParseLevel(cfg.LogLevel)
	if !ok {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Warn(
			"invalid log level configured, using default level",
			"configured_level", cfg.LogLevel,
			"default_level", "info")
	}

	if cfg.LogFile == "" {
		l := New(os.Stdout, nil, level)
		slog.SetDefault(l)
		return l, func() error { return nil }, nil
	}

	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.LogFile, err)
	}

	l := New(os.Stdout, file, level)
	slog.SetDefault(l)
	return l, file.Close, nil
}

// New builds a JSON logger writing to out and, when extra is non-nil, fanning
// out to extra as well.
func New(out io.Writer, extra io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	primary := slog.NewJSONHandler(out, opts)
	if extra == nil {
		return slog.New(primary)
	}
	return slog.New(slogmulti.Fanout(primary, slog.NewJSONHandler(extra, opts)))
}

// WithLogger returns a copy of ctx carrying l.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored in ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	return FromContextOrDefault(ctx, slog.Default())
}

// FromContextOrDefault returns the logger stored in ctx, or fallback when
// there is none. A nil fallback resolves to slog.Default().
func FromContextOrDefault(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}

// WithRequestID returns a copy of ctx carrying the request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
